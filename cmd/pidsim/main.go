package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/pidsim/internal/analysis"
	"github.com/san-kum/pidsim/internal/automation"
	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/experiment"
	"github.com/san-kum/pidsim/internal/export"
	"github.com/san-kum/pidsim/internal/storage"
	"github.com/san-kum/pidsim/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir string
	verbose bool
	logger  = zap.NewNop()

	kp         float64
	ki         float64
	kd         float64
	setpoint   float64
	outMin     float64
	outMax     float64
	manualOut  float64
	dt         float64
	duration   float64
	pv0        float64
	integrator string
	controller string
	configFile string
	preset     string
	saveConfig string

	gainSets   []string
	frameRate  int
	plotWidth  int
	plotHeight int
	settleBand float64

	saveRuns    bool
	trials      int
	initSpread  float64
	paramSpread float64
	seed        uint64
	svgOut      string
	svgWidth    int
	svgHeight   int
)

// main registers the pidsim commands and executes the root command, exiting
// with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:          "pidsim",
		Short:        "PID controller simulation lab",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pidsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [plant]",
		Short: "run a closed-loop simulation and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addLoopFlags(runCmd)
	runCmd.Flags().StringVar(&saveConfig, "save-config", "", "write the resolved config to this path (yaml)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot process value, setpoint and output of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 12, "plot height")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run history to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and history to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "settling time and oscillation spectrum of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Float64Var(&settleBand, "band", 0.02, "settling band as a fraction of the initial step")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render a run as an svg chart",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&svgOut, "out", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 500, "image height")

	presetsCmd := &cobra.Command{
		Use:   "presets [plant]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [plant]",
		Short: "run several gain sets side by side",
		Args:  cobra.MaximumNArgs(1),
		RunE:  compareGains,
	}
	addLoopFlags(compareCmd)
	compareCmd.Flags().StringArrayVar(&gainSets, "gains", nil, "gain set kp,ki,kd (repeatable)")

	liveCmd := &cobra.Command{
		Use:   "live [plant]",
		Short: "run a closed loop with live visualization and tuning",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addLoopFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted batch of simulations from a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&saveRuns, "save", true, "store each run")

	robustCmd := &cobra.Command{
		Use:   "robust [plant]",
		Short: "monte carlo check of a tuning against perturbed plants",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRobust,
	}
	addLoopFlags(robustCmd)
	robustCmd.Flags().IntVar(&trials, "trials", 50, "number of trials")
	robustCmd.Flags().Float64Var(&initSpread, "spread", 5, "half-width of the initial value perturbation")
	robustCmd.Flags().Float64Var(&paramSpread, "param-spread", 0.1, "relative half-width of plant parameter perturbation")
	robustCmd.Flags().Float64Var(&settleBand, "band", 0.02, "settling band as a fraction of the initial step")
	robustCmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd, compareCmd, liveCmd, scenarioCmd, robustCmd)

	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func addLoopFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "proportional gain")
	cmd.Flags().Float64Var(&ki, "ki", config.DefaultKi, "integral gain")
	cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "derivative gain")
	cmd.Flags().Float64Var(&setpoint, "setpoint", config.DefaultSetpoint, "target process value")
	cmd.Flags().Float64Var(&outMin, "min", config.DefaultOutputMin, "lower output limit")
	cmd.Flags().Float64Var(&outMax, "max", config.DefaultOutputMax, "upper output limit")
	cmd.Flags().Float64Var(&manualOut, "output", 0, "held output (manual controller)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Float64Var(&pv0, "pv0", config.DefaultInitial, "initial process value")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	cmd.Flags().StringVar(&controller, "controller", config.DefaultController, "controller")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// resolveConfig layers the plant's default preset, the --preset, the
// --config file and finally any flag set on the command line.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	plant := config.DefaultPlant
	if len(args) > 0 {
		plant = args[0]
	}

	cfg := config.ForPlant(plant)

	if preset != "" {
		p := config.GetPreset(plant, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(plant))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if len(args) > 0 {
			cfg.Plant = plant
		}
	}

	flags := cmd.Flags()
	if flags.Changed("kp") {
		cfg.ControllerParams.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.ControllerParams.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.ControllerParams.Kd = kd
	}
	if flags.Changed("setpoint") {
		cfg.ControllerParams.Setpoint = setpoint
	}
	if flags.Changed("min") {
		cfg.ControllerParams.OutputMin = config.Float(outMin)
	}
	if flags.Changed("max") {
		cfg.ControllerParams.OutputMax = config.Float(outMax)
	}
	if flags.Changed("output") {
		cfg.ControllerParams.Output = manualOut
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("pv0") {
		cfg.Initial = pv0
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("controller") {
		cfg.Controller = controller
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	if saveConfig != "" {
		if err := config.Save(saveConfig, cfg); err != nil {
			return err
		}
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp := experiment.New(cfg).WithLogger(logger)
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s with %s controller...\n", cfg.Plant, cfg.Controller)
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}
	logger.Debug("run stored", zap.String("run_id", runID), zap.String("dir", dataDir))

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	if n := len(result.States); n > 0 {
		fmt.Printf("final pv: %.4f (setpoint %.4f)\n", result.States[n-1][0], cfg.ControllerParams.Setpoint)
	}
	for _, e := range result.Errors {
		fmt.Printf("warning: %v\n", e)
	}
	fmt.Println("\nmetrics:")
	fmt.Print(viz.RenderMetrics(result.Metrics))

	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLANT\tTIME\tCTRL\tGAINS\tSETPOINT\tFINAL PV")

	for _, run := range runs {
		gains := "-"
		if run.Controller == "pid" {
			gains = experiment.Gains{Kp: run.Kp, Ki: run.Ki, Kd: run.Kd}.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.3f\t%.3f\n",
			run.ID,
			run.Plant,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Controller,
			gains,
			run.Setpoint,
			run.FinalPV,
		)
	}

	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, *storage.Series, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}

	series, err := st.LoadSeries(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, series, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(args[0])
	if err != nil {
		return err
	}

	if series.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Println(viz.RenderRun(meta, series, viz.PlotOptions{Width: plotWidth, Height: plotHeight}))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(args[0])
	if err != nil {
		return err
	}

	errs, err := analysis.TrackingError(series.PV, series.Setpoint)
	if err != nil {
		return err
	}

	spec, err := analysis.NewSpectrum(errs, meta.Dt)
	if err != nil {
		return err
	}

	fmt.Printf("analysis: %s\n", meta.ID)
	fmt.Printf("plant: %s\n\n", meta.Plant)

	plotData := spec.Amplitude[:max(len(spec.Amplitude)/4, 2)]
	graph := asciigraph.Plot(plotData,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("tracking error spectrum"),
	)
	fmt.Println(graph)
	fmt.Println()

	freq, amp := spec.Dominant()
	fmt.Printf("dominant frequency: %.4f hz (amplitude %.4f)\n", freq, amp)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}

	band := analysis.Band(series.PV, series.Setpoint, settleBand)
	settle, err := analysis.SettlingTime(series.Times, series.PV, series.Setpoint, band)
	if err != nil {
		return err
	}
	if math.IsNaN(settle) {
		fmt.Printf("settling time (±%.4f): not settled\n", band)
	} else {
		fmt.Printf("settling time (±%.4f): %.3f s\n", band, settle)
	}

	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, series, err := loadRun(args[0])
	if err != nil {
		return err
	}

	if series.Len() == 0 {
		return fmt.Errorf("no data to export")
	}

	return storage.WriteCSV(os.Stdout, series)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(args[0])
	if err != nil {
		return err
	}

	return storage.ExportJSON(os.Stdout, meta, series)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	_, series, err := loadRun(args[0])
	if err != nil {
		return err
	}

	if svgOut == "" {
		return export.WriteSVG(os.Stdout, series, svgWidth, svgHeight)
	}

	f, err := os.Create(svgOut)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := export.WriteSVG(f, series, svgWidth, svgHeight); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", svgOut)
	return f.Close()
}

func listPresets(cmd *cobra.Command, args []string) error {
	plants := config.ListPlants()
	if len(args) > 0 {
		plants = args
	}

	for _, plant := range plants {
		presets := config.ListPresets(plant)
		if len(presets) == 0 {
			fmt.Printf("no presets for plant: %s\n", plant)
			continue
		}
		fmt.Printf("presets for %s:\n", plant)
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func compareGains(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	if len(gainSets) == 0 {
		return fmt.Errorf("at least one --gains kp,ki,kd is required")
	}

	gains := make([]experiment.Gains, 0, len(gainSets))
	for _, s := range gainSets {
		g, err := experiment.ParseGains(s)
		if err != nil {
			return err
		}
		gains = append(gains, g)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := experiment.Compare(ctx, experiment.NewRegistry(), cfg, gains, logger)
	if err != nil {
		return err
	}

	fmt.Printf("comparing gains for %s (setpoint=%g, dt=%g, duration=%gs)\n\n",
		cfg.Plant, cfg.ControllerParams.Setpoint, cfg.Dt, cfg.Duration)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GAINS\tFINAL PV\tIAE\tOVERSHOOT\tSS ERROR\tSATURATION")

	for i, result := range results {
		final := 0.0
		if n := len(result.States); n > 0 {
			final = result.States[n-1][0]
		}
		m := result.Metrics
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.1f%%\n",
			gains[i], final, m["iae"], m["overshoot"], m["steady_state_error"], m["saturation"]*100)
	}

	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	var st *storage.Store
	if saveRuns {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("scenario: %s (%d runs)\n", sc.Name, len(sc.Runs))
	if sc.Description != "" {
		fmt.Println(sc.Description)
	}
	fmt.Println()

	outcomes, runErr := automation.RunScenario(ctx, sc, experiment.NewRegistry(), st, logger)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN ID\tPLANT\tFINAL PV\tIAE\tOVERSHOOT")
	for _, o := range outcomes {
		runID := o.RunID
		if runID == "" {
			runID = "-"
		}
		final := 0.0
		if n := len(o.Result.States); n > 0 {
			final = o.Result.States[n-1][0]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%.4f\n",
			o.Name, runID, o.Config.Plant, final, o.Result.Metrics["iae"], o.Result.Metrics["overshoot"])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return runErr
}

func runRobust(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mc := automation.MonteCarloConfig{
		Base:          cfg,
		Trials:        trials,
		InitialSpread: initSpread,
		ParamSpread:   paramSpread,
		Band:          settleBand,
		Seed:          seed,
	}
	results, err := automation.RunMonteCarlo(ctx, mc, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	s := automation.Summarize(results, cfg.ControllerParams.Setpoint)
	gains := experiment.Gains{Kp: cfg.ControllerParams.Kp, Ki: cfg.ControllerParams.Ki, Kd: cfg.ControllerParams.Kd}
	fmt.Printf("robustness of %s on %s (%d trials, seed %d)\n\n", gains, cfg.Plant, s.Trials, seed)
	fmt.Println(viz.Metric("stable", fmt.Sprintf("%d/%d", s.Stable, s.Trials)))
	fmt.Println(viz.Metric("settled", fmt.Sprintf("%d/%d", s.Settled, s.Trials)))
	fmt.Println(viz.Metric("mean iae", fmt.Sprintf("%.4f", s.MeanIAE)))
	fmt.Println(viz.Metric("settling", fmt.Sprintf("mean %.2fs, worst %.2fs", s.MeanSettling, s.WorstSettling)))
	fmt.Println(viz.Metric("final error", fmt.Sprintf("worst %.4f", s.WorstFinalError)))

	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg).WithLogger(logger)
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return err
	}

	m := viz.NewModel(exp.Plant(), exp.Integrator(), exp.Controller(), cfg.GetInitState(), cfg.Dt, cfg.Plant).
		WithFPS(frameRate)

	return viz.Run(m)
}
