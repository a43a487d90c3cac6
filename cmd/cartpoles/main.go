package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/cartpoles/internal/config"
	"github.com/san-kum/cartpoles/internal/control"
	"github.com/san-kum/cartpoles/internal/experiment"
	"github.com/san-kum/cartpoles/internal/figure"
	"github.com/san-kum/cartpoles/internal/optim"
	"github.com/san-kum/cartpoles/internal/sim"
	"github.com/san-kum/cartpoles/internal/storage"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	dt         float64
	duration   float64
	seed       uint64
	integrator string
	dynamics   string
	lqrMode    string
	horizon    int
	clamp      bool
	runs       int
	maxPlots   int
	imagePath  string
	qxScales   []float64
	qthScales  []float64
	rScales    []float64
)

var (
	heading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	good    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cartpoles",
		Short: "multi-pole cart simulation and LQR synthesis",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".cartpoles", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "single", "preset configuration")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate the rig and store the run",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	runCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	runCmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator (fe, rk4)")
	runCmd.Flags().StringVar(&dynamics, "dynamics", sim.DynamicsNonlinear, "dynamics (linear, nonlinear)")
	runCmd.Flags().StringVar(&lqrMode, "lqr", config.LQRContinuous, "lqr mode (none, continuous, discrete, finite)")
	runCmd.Flags().IntVar(&horizon, "horizon", config.DefaultHorizon, "finite-horizon stages")
	runCmd.Flags().BoolVar(&clamp, "clamp", false, "clamp cart travel and wrap angles")
	runCmd.Flags().IntVar(&runs, "runs", 1, "independent runs from sampled starts")

	linearizeCmd := &cobra.Command{
		Use:   "linearize",
		Short: "print the upright linear model",
		Args:  cobra.NoArgs,
		RunE:  printLinearization,
	}
	linearizeCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "discretization timestep")

	gainsCmd := &cobra.Command{
		Use:   "gains",
		Short: "print continuous and discrete LQR gains",
		Args:  cobra.NoArgs,
		RunE:  printGains,
	}
	gainsCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "discretization timestep")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&maxPlots, "max", 6, "maximum number of series")
	plotCmd.Flags().StringVarP(&imagePath, "out", "o", "", "also write the series to an image file (png, svg, pdf)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write a stored run as CSV to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "write a stored run as JSON to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid-search LQR weight scales",
		Args:  cobra.NoArgs,
		RunE:  tuneWeights,
	}
	tuneCmd.Flags().Float64Var(&duration, "time", 3, "duration of each trial")
	tuneCmd.Flags().Float64SliceVar(&qxScales, "qx", []float64{1, 10, 100}, "cart weight scales")
	tuneCmd.Flags().Float64SliceVar(&qthScales, "qtheta", []float64{1, 10, 100}, "pole weight scales")
	tuneCmd.Flags().Float64SliceVar(&rScales, "r", []float64{0.1, 1, 10}, "voltage weight scales")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.ListPresets()
			sort.Strings(names)
			fmt.Println(heading.Render("presets"))
			for _, name := range names {
				cfg := config.GetPreset(name)
				fmt.Printf("  %-8s %s\n", name, dim.Render(fmt.Sprintf("%d poles, dt=%g, lqr=%s", len(cfg.Poles), cfg.Dt, cfg.LQR.Mode)))
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, linearizeCmd, gainsCmd, tuneCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves preset, then config file, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("dynamics") {
		cfg.Dynamics = dynamics
	}
	if flags.Changed("lqr") {
		cfg.LQR.Mode = lqrMode
	}
	if flags.Changed("horizon") {
		cfg.LQR.Horizon = horizon
	}
	if flags.Changed("clamp") {
		cfg.Clamp = clamp
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp := experiment.New(cfg, slog.Default())
	if err := exp.Setup(); err != nil {
		return err
	}

	if runs > 1 {
		return runEnsemble(ctx, exp, cfg)
	}

	fmt.Println(heading.Render(fmt.Sprintf("running %d-pole rig", len(cfg.Poles))))
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	s := exp.Simulator()
	runID, err := st.Save(storage.RunMetadata{
		Preset:     preset,
		Poles:      s.Plant().NumPoles(),
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Integrator: cfg.Integrator,
		Dynamics:   cfg.Dynamics,
		Controller: cfg.LQR.Mode,
		Metrics:    result.Metrics,
	}, s.History())
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", good.Render(runID))
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("end height: %.4f / %.4f\n", s.EndHeight(), s.MaxHeight())
	printMetrics(result.Metrics)
	return nil
}

func runEnsemble(ctx context.Context, exp *experiment.Experiment, cfg *config.Config) error {
	fmt.Println(heading.Render(fmt.Sprintf("running %d independent %d-pole rigs", runs, len(cfg.Poles))))
	results, err := exp.RunEnsemble(ctx, runs)
	if err != nil {
		return err
	}

	names := make([]string, 0)
	for name := range results[0].Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN\tMIN\tMAX")
	for _, name := range names {
		vals := make([]float64, len(results))
		for i, r := range results {
			vals[i] = r.Metrics[name]
		}
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\n", name, floats.Sum(vals)/float64(len(vals)), floats.Min(vals), floats.Max(vals))
	}
	return w.Flush()
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func printLinearization(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp := experiment.New(cfg, slog.Default())
	if err := exp.Setup(); err != nil {
		return err
	}
	model, d := exp.Simulator().Model()

	printMatrix("A", model.A)
	printMatrix("B", model.B)
	printMatrix(fmt.Sprintf("A_d (dt=%g)", d.Dt), d.A)
	printMatrix(fmt.Sprintf("B_d (dt=%g)", d.Dt), d.B)
	return nil
}

func printGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.LQR.Mode = config.LQRNone
	exp := experiment.New(cfg, slog.Default())
	if err := exp.Setup(); err != nil {
		return err
	}
	Q, R, err := cfg.Weights()
	if err != nil {
		return err
	}
	model, d := exp.Simulator().Model()

	K, _, err := control.ContinuousGain(model.A, model.B, Q, R)
	if err != nil {
		return fmt.Errorf("continuous: %w", err)
	}
	Kd, _, err := control.DiscreteGain(d.A, d.B, Q, R)
	if err != nil {
		return fmt.Errorf("discrete: %w", err)
	}
	printMatrix("K", K)
	printMatrix(fmt.Sprintf("K_d (dt=%g)", d.Dt), Kd)
	return nil
}

func tuneWeights(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Duration = duration
	if len(cfg.InitialState) == 0 {
		cfg.InitialState = make([]float64, cfg.StateDim())
		cfg.InitialState[2] = 0.1
	}
	if cfg.LQR.Mode == config.LQRNone {
		cfg.LQR.Mode = config.LQRContinuous
	}

	gs, err := optim.NewGridSearch(
		[]string{"q_x", "q_theta", "r"},
		[][]float64{qxScales, qthScales, rScales},
		slog.Default(),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println(heading.Render(fmt.Sprintf("tuning %d-pole rig over %d weight sets", len(cfg.Poles), len(qxScales)*len(qthScales)*len(rScales))))
	best, score, err := gs.Search(ctx, optim.WeightBuilder(cfg), optim.UprightEffort)
	if err != nil {
		return err
	}
	fmt.Printf("best: q_x=%g q_theta=%g r=%g\n", best["q_x"], best["q_theta"], best["r"])
	fmt.Printf("score: %s\n", good.Render(fmt.Sprintf("%.4f", score)))
	return nil
}

func printMatrix(name string, m mat.Matrix) {
	fmt.Println(heading.Render(name))
	fmt.Printf("%.5g\n\n", mat.Formatted(m, mat.Squeeze()))
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
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tPOLES\tSTEPS\tDT\tINTEG\tDYN\tLQR")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4fs\t%s\t%s\t%s\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Poles,
			run.Steps,
			run.Dt,
			run.Integrator,
			run.Dynamics,
			run.Controller,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	h, numPoles, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	if h.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Println(heading.Render("run " + meta.ID))
	fmt.Printf("poles: %d\n", numPoles)
	fmt.Printf("samples: %d\n\n", h.Len())

	series, err := figure.Columns(h, numPoles)
	if err != nil {
		return err
	}
	if maxPlots > 0 && len(series) > maxPlots {
		series = series[:maxPlots]
	}

	for _, s := range series {
		graph := asciigraph.Plot(s.Values,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s  [%.4g, %.4g]", s.Name, floats.Min(s.Values), floats.Max(s.Values))),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if imagePath != "" {
		if err := figure.SavePlot(imagePath, "run "+meta.ID, h.Times(), series, 8*vg.Inch, 5*vg.Inch); err != nil {
			return err
		}
		fmt.Println(good.Render("wrote " + imagePath))
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	h, numPoles, err := st.LoadHistory(args[0])
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, h, numPoles)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	h, numPoles, err := st.LoadHistory(args[0])
	if err != nil {
		return err
	}
	return storage.WriteJSON(os.Stdout, h, numPoles, meta.Metrics)
}
