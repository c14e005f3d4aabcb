package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/pidsim/internal/storage"
	"gonum.org/v1/gonum/floats"
)

const (
	pvColor       = "#00ffff"
	setpointColor = "#ffcc00"
	outputColor   = "#00ff88"
	axisColor     = "#444466"
)

// box is a plotting area in SVG coordinates with the data range it shows.
type box struct {
	x, y, w, h float64
	minX, maxX float64
	minY, maxY float64
}

func newBox(x, y, w, h float64, xs []float64, ys ...[]float64) box {
	b := box{x: x, y: y, w: w, h: h, minX: floats.Min(xs), maxX: floats.Max(xs)}
	b.minY, b.maxY = ys[0][0], ys[0][0]
	for _, s := range ys {
		b.minY = min(b.minY, floats.Min(s))
		b.maxY = max(b.maxY, floats.Max(s))
	}

	rangeY := b.maxY - b.minY
	if rangeY == 0 {
		rangeY = 1
	}
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
	if b.maxX == b.minX {
		b.maxX = b.minX + 1
	}
	return b
}

func (b box) point(x, y float64) (float64, float64) {
	px := b.x + (x-b.minX)/(b.maxX-b.minX)*b.w
	py := b.y + b.h - (y-b.minY)/(b.maxY-b.minY)*b.h
	return px, py
}

func (b box) path(sb *strings.Builder, xs, ys []float64, color, extra string) {
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5"%s d="`, color, extra)
	for i := range xs {
		px, py := b.point(xs[i], ys[i])
		if i == 0 {
			fmt.Fprintf(sb, "M%.1f,%.1f", px, py)
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", px, py)
		}
	}
	sb.WriteString("\"/>\n")
}

func (b box) frame(sb *strings.Builder, label string) {
	fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="%s"/>`+"\n",
		b.x, b.y, b.w, b.h, axisColor)
	fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" fill="#888899" font-size="12" font-family="monospace">%s [%.3g, %.3g]</text>`+"\n",
		b.x+4, b.y+14, label, b.minY, b.maxY)
}

// SeriesToSVG draws a run as two stacked panels: the process value against
// a dashed setpoint line, and the controller output below it.
func SeriesToSVG(series *storage.Series, width, height int) string {
	if series.Len() < 2 {
		return ""
	}

	const pad = 10.0
	w, h := float64(width), float64(height)
	top := newBox(pad, pad, w-2*pad, h*0.6-pad, series.Times, series.PV, series.Setpoint)
	bottom := newBox(pad, h*0.6+pad, w-2*pad, h*0.4-2*pad, series.Times, series.Output)

	var sb strings.Builder

	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	top.frame(&sb, "process value")
	top.path(&sb, series.Times, series.Setpoint, setpointColor, ` stroke-dasharray="6,4"`)
	top.path(&sb, series.Times, series.PV, pvColor, "")

	bottom.frame(&sb, "output")
	bottom.path(&sb, series.Times, series.Output, outputColor, "")

	sb.WriteString("</svg>\n")
	return sb.String()
}

func WriteSVG(w io.Writer, series *storage.Series, width, height int) error {
	svg := SeriesToSVG(series, width, height)
	if svg == "" {
		return fmt.Errorf("export: need at least two samples, have %d", series.Len())
	}
	_, err := io.WriteString(w, svg)
	return err
}
