package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/dpend/internal/analysis"
	"github.com/san-kum/dpend/internal/config"
	"github.com/san-kum/dpend/internal/experiment"
	"github.com/san-kum/dpend/internal/optim"
	"github.com/san-kum/dpend/internal/report"
	"github.com/san-kum/dpend/internal/storage"
)

const modelName = "double_pendulum"

var (
	dataDir string
	verbose bool
	logger  *log.Logger

	// initial conditions in degrees and deg/s
	theta1 float64
	omega1 float64
	theta2 float64
	omega2 float64

	gravity float64
	l1      float64
	l2      float64
	m1      float64
	m2      float64

	dt         float64
	duration   float64
	integrator string
	tolerance  float64
	maxStep    float64
	seed       int64
	configFile string
	preset     string

	output string

	lyapDt       float64
	perturbation float64

	epsilon   float64
	members   int
	workers   int
	threshold float64
	columns   int

	sweepRanges []string
	metricName  string
	maximize    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dpend",
		Short:         "double pendulum simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
	}

	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "dpend",
	})

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dpend", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation and store the trajectory",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addScenarioFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata and summary",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	exportXLSXCmd := &cobra.Command{
		Use:   "export-xlsx [run_id]",
		Short: "export run data to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  exportXLSX,
	}
	exportXLSXCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <run_id>.xlsx)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov",
		Short: "estimate the largest lyapunov exponent",
		Args:  cobra.NoArgs,
		RunE:  lyapunov,
	}
	addScenarioFlags(lyapunovCmd)
	lyapunovCmd.Flags().Float64Var(&lyapDt, "lyap-dt", 0.01, "fixed step of the estimate")
	lyapunovCmd.Flags().Float64Var(&perturbation, "perturbation", 1e-8, "initial separation")

	divergenceCmd := &cobra.Command{
		Use:   "divergence",
		Short: "integrate perturbed copies of the initial state in parallel",
		Args:  cobra.NoArgs,
		RunE:  divergence,
	}
	addScenarioFlags(divergenceCmd)
	divergenceCmd.Flags().Float64Var(&epsilon, "eps", 1e-6, "theta1 perturbation step (rad)")
	divergenceCmd.Flags().IntVar(&members, "members", 5, "ensemble size including the reference")
	divergenceCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = GOMAXPROCS)")
	divergenceCmd.Flags().Float64Var(&threshold, "threshold", 0.1, "separation counted as diverged")
	divergenceCmd.Flags().IntVar(&columns, "columns", 6, "sample times to print")

	compareCmd := &cobra.Command{
		Use:   "compare [integrator1] [integrator2] ...",
		Short: "compare integrators on the same scenario (default all)",
		RunE:  compareIntegrators,
	}
	addScenarioFlags(compareCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search a metric over initial conditions or constants",
		Args:  cobra.NoArgs,
		RunE:  sweep,
	}
	addScenarioFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepRanges, "range", nil, "name=start:stop:n or name=v1,v2 (repeatable)")
	sweepCmd.Flags().StringVar(&metricName, "metric", "flips", "metric to optimize (energy, energy_drift, flips, stability)")
	sweepCmd.Flags().BoolVar(&maximize, "max", false, "pick the largest value instead of the smallest")
	_ = sweepCmd.MarkFlagRequired("range")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, listCmd, showCmd, exportCSVCmd, exportJSONCmd, exportXLSXCmd,
		analyzeCmd, lyapunovCmd, divergenceCmd, compareCmd, sweepCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error(err)
		stop()
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	f := cmd.Flags()
	f.Float64Var(&theta1, "theta1", def.InitState.Theta1, "initial upper angle (deg)")
	f.Float64Var(&omega1, "omega1", def.InitState.Omega1, "initial upper angular velocity (deg/s)")
	f.Float64Var(&theta2, "theta2", def.InitState.Theta2, "initial lower angle (deg)")
	f.Float64Var(&omega2, "omega2", def.InitState.Omega2, "initial lower angular velocity (deg/s)")
	f.Float64Var(&gravity, "g", def.Physics.G, "gravitational acceleration (m/s^2)")
	f.Float64Var(&l1, "l1", def.Physics.L1, "upper rod length (m)")
	f.Float64Var(&l2, "l2", def.Physics.L2, "lower rod length (m)")
	f.Float64Var(&m1, "m1", def.Physics.M1, "upper bob mass (kg)")
	f.Float64Var(&m2, "m2", def.Physics.M2, "lower bob mass (kg)")
	f.Float64Var(&dt, "dt", def.Dt, "sampling interval (s)")
	f.Float64Var(&duration, "time", def.Duration, "duration (s)")
	f.StringVar(&integrator, "integrator", def.Integrator, "integrator (euler, rk4, rk45)")
	f.Float64Var(&tolerance, "tol", def.Tolerance, "error tolerance of adaptive integrators (0 = fixed steps)")
	f.Float64Var(&maxStep, "max-step", def.MaxStep, "largest internal step (0 = sampling interval)")
	f.Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed recorded with the run")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
}

// resolveConfig layers defaults, preset, config file and explicit flags,
// in increasing priority.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	floats := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"theta1", &theta1, &cfg.InitState.Theta1},
		{"omega1", &omega1, &cfg.InitState.Omega1},
		{"theta2", &theta2, &cfg.InitState.Theta2},
		{"omega2", &omega2, &cfg.InitState.Omega2},
		{"g", &gravity, &cfg.Physics.G},
		{"l1", &l1, &cfg.Physics.L1},
		{"l2", &l2, &cfg.Physics.L2},
		{"m1", &m1, &cfg.Physics.M1},
		{"m2", &m2, &cfg.Physics.M2},
		{"dt", &dt, &cfg.Dt},
		{"time", &duration, &cfg.Duration},
		{"tol", &tolerance, &cfg.Tolerance},
		{"max-step", &maxStep, &cfg.MaxStep},
	}
	for _, fl := range floats {
		if flags.Changed(fl.name) {
			*fl.dst = *fl.src
		}
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("resolved config", "preset", preset, "config", configFile,
		"theta1", cfg.InitState.Theta1, "theta2", cfg.InitState.Theta2, "integrator", cfg.Integrator)
	return cfg, nil
}

func experimentConfig(cfg *config.Config) experiment.Config {
	return experiment.Config{
		Model:      modelName,
		Integrator: cfg.Integrator,
		InitState:  cfg.InitialState(),
		Params:     cfg.Params(),
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Tolerance:  cfg.Tolerance,
		MaxStep:    cfg.MaxStep,
		Seed:       cfg.Seed,
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	runner := experiment.NewRunner(experiment.NewRegistry(), st, logger)

	out, err := runner.Run(cmd.Context(), experimentConfig(cfg))
	if err != nil {
		return err
	}

	meta, err := st.Load(out.RunID)
	if err != nil {
		return err
	}

	fmt.Println(report.Summary(meta))
	fmt.Printf("completed in %v\n", out.Elapsed)
	fmt.Printf("run id: %s\n", out.RunID)
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
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tDT\tINTEG\tSAMPLES\tDRIFT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%.2e\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Samples,
			run.EnergyDrift,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	fmt.Println(report.Summary(meta))
	return nil
}

// withOutput calls fn with the file named by --output, or stdout.
func withOutput(fn func(w io.Writer) error) error {
	if output == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("exported", "path", output)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return withOutput(func(w io.Writer) error {
		return st.ExportCSV(args[0], w)
	})
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return withOutput(func(w io.Writer) error {
		return st.ExportJSON(args[0], w)
	})
}

func exportXLSX(cmd *cobra.Command, args []string) error {
	runID := args[0]
	path := output
	if path == "" {
		path = runID + ".xlsx"
	}
	if err := storage.New(dataDir).ExportXLSX(runID, path); err != nil {
		return err
	}
	logger.Info("exported", "path", path)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, result, err := st.Result(args[0])
	if err != nil {
		return err
	}
	if len(result.States) < 2 {
		return fmt.Errorf("run %s has too few samples to analyze", meta.ID)
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("model: %s, samples: %d, dt: %.4fs\n\n", meta.Model, len(result.States), meta.Dt)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ANGLE\tDOMINANT FREQ\tPERIOD")
	for _, c := range []struct {
		name string
		idx  int
	}{{"theta1", 0}, {"theta2", 2}} {
		if c.idx >= meta.StateDim {
			continue
		}
		freq := analysis.DominantFrequency(result.Column(c.idx), meta.Dt)
		period := "-"
		if freq > 0 {
			period = fmt.Sprintf("%.3f s", 1/freq)
		}
		fmt.Fprintf(w, "%s\t%.3f hz\t%s\n", c.name, freq, period)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if flips, ok := meta.Metrics["flips"]; ok {
		fmt.Printf("\nflips over the top: %.0f\n", flips)
	}
	return nil
}

func lyapunov(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	runner := experiment.NewRunner(experiment.NewRegistry(), nil, logger)
	start := time.Now()
	lambda, err := runner.Lyapunov(experimentConfig(cfg), lyapDt, perturbation)
	if err != nil {
		return err
	}

	fmt.Printf("largest lyapunov exponent: %.4f 1/s (%v)\n", lambda, time.Since(start))
	if lambda > 0.05 {
		fmt.Println("trajectory is chaotic")
	} else {
		fmt.Println("trajectory looks regular")
	}
	return nil
}

func divergence(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	runner := experiment.NewRunner(experiment.NewRegistry(), nil, logger)
	d, err := runner.Divergence(cmd.Context(), experimentConfig(cfg), epsilon, members, workers, threshold)
	if err != nil {
		return err
	}

	fmt.Printf("separation from the reference run (theta1=%.2f°, threshold %.2g)\n\n", cfg.InitState.Theta1, threshold)
	fmt.Println(report.Divergence(d, columns))
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	names := args
	if len(names) == 0 {
		names = registry.ListIntegrators()
	}

	runner := experiment.NewRunner(registry, nil, logger)
	rows := runner.Compare(cmd.Context(), experimentConfig(cfg), names)

	fmt.Printf("comparing integrators (dt=%.4f, duration=%.1fs, tol=%.1e)\n\n", cfg.Dt, cfg.Duration, cfg.Tolerance)
	fmt.Println(report.Comparison(rows))
	return nil
}

func sweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(sweepRanges))
	ranges := make([][]float64, 0, len(sweepRanges))
	for _, expr := range sweepRanges {
		name, values, err := optim.ParseRange(expr)
		if err != nil {
			return err
		}
		if err := cfg.Set(name, values[0]); err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	runner := experiment.NewRunner(experiment.NewRegistry(), nil, logger)
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		c := *cfg
		for name, v := range params {
			if err := c.Set(name, v); err != nil {
				return nil, err
			}
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return runner.Experiment(experimentConfig(&c))
	}

	logger.Info("sweeping", "params", names, "metric", metricName)
	points, best, err := optim.NewGridSearch(names, ranges).Search(cmd.Context(), build, metricName, maximize)
	if err != nil {
		return err
	}

	fmt.Println(report.Sweep(points, best, metricName))
	if best < 0 {
		return fmt.Errorf("no grid point completed")
	}
	fmt.Printf("best %s: %.6g at %v\n", metricName, points[best].Value, points[best].Params)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tTHETA1\tTHETA2\tL1/L2\tM1/M2\tDT\tDURATION")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%.0f°\t%.0f°\t%g/%g\t%g/%g\t%.3fs\t%.0fs\n",
			name, p.InitState.Theta1, p.InitState.Theta2,
			p.Physics.L1, p.Physics.L2, p.Physics.M1, p.Physics.M2,
			p.Dt, p.Duration)
	}
	return w.Flush()
}
