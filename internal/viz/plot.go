package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/pidsim/internal/storage"
)

type PlotOptions struct {
	Width  int
	Height int
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{Width: 80, Height: 12}
}

// PlotResponse draws the process value with the setpoint as a second line.
func PlotResponse(pv, setpoint []float64, opts PlotOptions) string {
	if len(pv) == 0 {
		return ""
	}

	data := [][]float64{pv}
	legends := []string{"process value"}
	colors := []asciigraph.AnsiColor{asciigraph.Cyan}
	if len(setpoint) > 0 {
		data = append(data, setpoint)
		legends = append(legends, "setpoint")
		colors = append(colors, asciigraph.Yellow)
	}

	return asciigraph.PlotMany(data,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
		asciigraph.Caption("process value vs time"),
	)
}

func PlotOutput(output []float64, opts PlotOptions) string {
	if len(output) == 0 {
		return ""
	}

	return asciigraph.Plot(output,
		asciigraph.Height(opts.Height/2+1),
		asciigraph.Width(opts.Width),
		asciigraph.SeriesColors(asciigraph.Green),
		asciigraph.Caption("controller output vs time"),
	)
}

// RenderRun is the full report printed by the plot command.
func RenderRun(meta *storage.RunMetadata, series *storage.Series, opts PlotOptions) string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("run %s", meta.ID)) + "\n")
	b.WriteString(Metric("plant", meta.Plant) + "\n")
	b.WriteString(Metric("controller", meta.Controller) + "\n")
	if meta.Controller == "pid" {
		b.WriteString(Metric("gains", fmt.Sprintf("kp=%g ki=%g kd=%g", meta.Kp, meta.Ki, meta.Kd)) + "\n")
	}
	b.WriteString(Metric("limits", formatLimits(meta.OutputMin, meta.OutputMax)) + "\n")
	b.WriteString(Metric("samples", fmt.Sprintf("%d", series.Len())) + "\n\n")

	if series.Len() == 0 {
		b.WriteString(Subtle.Render("no samples") + "\n")
		return b.String()
	}

	b.WriteString(PlotResponse(series.PV, series.Setpoint, opts) + "\n\n")
	b.WriteString(PlotOutput(series.Output, opts) + "\n")

	if len(meta.Metrics) > 0 {
		b.WriteString("\n" + RenderMetrics(meta.Metrics))
	}
	return b.String()
}

// RenderMetrics prints metrics sorted by name.
func RenderMetrics(metrics map[string]float64) string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(Metric(name, fmt.Sprintf("%.6f", metrics[name])) + "\n")
	}
	return b.String()
}

func formatLimits(min, max *float64) string {
	lo, hi := "-inf", "+inf"
	if min != nil {
		lo = fmt.Sprintf("%g", *min)
	}
	if max != nil {
		hi = fmt.Sprintf("%g", *max)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}
