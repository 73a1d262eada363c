package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/control"
	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/experiment"
	"github.com/san-kum/robosim/internal/linalg"
	"github.com/san-kum/robosim/internal/optim"
	"github.com/san-kum/robosim/internal/physics"
	"github.com/san-kum/robosim/internal/report"
	"github.com/san-kum/robosim/internal/sim"
	"github.com/san-kum/robosim/internal/storage"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	dataDir string
	verbose bool
	quiet   bool

	dt         float64
	duration   float64
	seed       uint64
	controller string
	plant      string
	integrator string
	particles  int
	runs       int
	configFile string
	preset     string
	chart      bool
	pngPath    string

	gainQ       []float64
	gainR       []float64
	gainEpsilon float64
	gainMaxIter int

	columns []string

	tuneParams   []string
	tuneMetric   string
	tuneMaximize bool
)

var logger *slog.Logger

func main() {
	rootCmd := &cobra.Command{
		Use:           "robosim",
		Short:         "inverted pendulum control and particle filter localization",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = newLogger(verbose, quiet)
			slog.SetDefault(logger)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".robosim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "log errors only")

	runCmd := &cobra.Command{
		Use:       "run [pendulum|pf]",
		Short:     "run simulation",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{config.ScenarioPendulum, config.ScenarioPF},
		RunE:      runSimulation,
	}
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	runCmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "random seed")
	runCmd.Flags().StringVar(&controller, "controller", "lqr", "controller (lqr, pid, none)")
	runCmd.Flags().StringVar(&plant, "plant", config.PlantLinear, "plant model (linear, nonlinear)")
	runCmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator for the nonlinear plant")
	runCmd.Flags().IntVar(&particles, "particles", 100, "particle count (pf)")
	runCmd.Flags().IntVar(&runs, "runs", 1, "independent runs with consecutive seeds")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().BoolVar(&chart, "chart", false, "print terminal charts")
	runCmd.Flags().StringVar(&pngPath, "png", "", "write a PNG plot to this path")

	gainCmd := &cobra.Command{
		Use:   "gain",
		Short: "compute the cart-pole LQR gain",
		Args:  cobra.NoArgs,
		RunE:  computeGain,
	}
	gainCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	gainCmd.Flags().Float64SliceVar(&gainQ, "q", []float64{0, 1, 1, 0}, "diagonal of Q")
	gainCmd.Flags().Float64SliceVar(&gainR, "r", []float64{0.01}, "diagonal of R")
	gainCmd.Flags().Float64Var(&gainEpsilon, "epsilon", control.DefaultEpsilon, "convergence threshold")
	gainCmd.Flags().IntVar(&gainMaxIter, "max-iter", control.DefaultMaxIter, "iteration limit")

	tuneCmd := &cobra.Command{
		Use:   "tune [pendulum|pf]",
		Short: "grid search tunables against a run metric",
		Args:  cobra.ExactArgs(1),
		RunE:  tune,
	}
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", nil, "grid axis: name=lo:hi:n or name=v1,v2 (kp, ki, kd, q_x, q_v, q_theta, q_omega, r, particles, resample_ratio)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "control_effort", "metric to optimise")
	tuneCmd.Flags().BoolVar(&tuneMaximize, "maximize", false, "prefer larger metric values")
	tuneCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	tuneCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	tuneCmd.Flags().StringVar(&controller, "controller", "lqr", "controller (lqr, pid, none)")
	tuneCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	tuneCmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "random seed")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "column", nil, "columns to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportPNGCmd := &cobra.Command{
		Use:   "export-png [run_id] [file]",
		Short: "export run plot to PNG",
		Args:  cobra.ExactArgs(2),
		RunE:  exportPNG,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [scenario]",
		Short: "list available presets for a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for scenario: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, gainCmd, tuneCmd, listCmd, plotCmd, exportCmd, exportPNGCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		if logger == nil {
			logger = newLogger(false, false)
		}
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveConfig applies preset, then config file, then explicit flags.
func resolveConfig(cmd *cobra.Command, scenario string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(scenario, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(scenario))
		}
	}
	if configFile != "" {
		if err := cfg.Overlay(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg.Scenario = scenario

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
	if flags.Changed("controller") {
		cfg.Controller = controller
	}
	if flags.Changed("plant") {
		cfg.Plant = plant
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("particles") {
		cfg.ParticleFilter.Particles = particles
	}
	return cfg, cfg.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	scenario := args[0]
	if _, err := sim.ParseKind(scenario); err != nil {
		return err
	}

	cfg, err := resolveConfig(cmd, scenario)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if runs > 1 {
		return runEnsemble(ctx, exp, runs)
	}

	logger.Info("running simulation", "scenario", scenario, "controller", cfg.Controller, "steps", exp.SimConfig().Steps())
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		if result == nil || !errors.Is(err, dynamo.ErrContextCanceled) {
			return err
		}
		logger.Warn("run interrupted, saving partial result", "steps", result.StepsTaken)
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Scenario: scenario,
		Seed:     cfg.Seed,
		Dt:       cfg.Dt,
		Duration: cfg.Duration,
	}
	if result.Kind == sim.KindPendulum {
		meta.Plant = cfg.Plant
		meta.Integrator = cfg.Integrator
		meta.Controller = cfg.Controller
	} else {
		meta.Landmarks = cfg.Landmarks()
	}

	runID, err := st.Save(meta, result)
	if err != nil {
		return err
	}
	saved, err := st.Load(runID)
	if err != nil {
		return err
	}
	fmt.Println(report.Summary(*saved, elapsed))

	table := storage.NewTable(result)
	if chart {
		out, err := report.Charts(table)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(out)
	}
	if pngPath != "" {
		if err := report.SavePNG(table, runID, pngPath, meta.Landmarks); err != nil {
			return err
		}
		logger.Info("wrote plot", "path", pngPath)
	}
	return nil
}

// runEnsemble prints the mean and standard deviation of every metric over
// n independent runs.
func runEnsemble(ctx context.Context, exp *experiment.Experiment, n int) error {
	logger.Info("running ensemble", "runs", n)
	results, err := exp.RunEnsemble(ctx, n)
	if err != nil {
		return err
	}

	values := make(map[string][]float64)
	for _, r := range results {
		for name, v := range r.Metrics {
			values[name] = append(values[name], v)
		}
	}

	metrics := make(map[string]float64, 2*len(values))
	for name, vs := range values {
		mean, std := stat.MeanStdDev(vs, nil)
		metrics[name+" mean"] = mean
		metrics[name+" std"] = std
	}
	fmt.Println(report.Summary(storage.RunMetadata{
		ID:       fmt.Sprintf("ensemble of %d", n),
		Scenario: exp.Config().Scenario,
		Seed:     exp.Config().Seed,
		Dt:       exp.Config().Dt,
		Steps:    results[0].StepsTaken,
		Metrics:  metrics,
	}, 0))
	return nil
}

func tune(cmd *cobra.Command, args []string) error {
	if len(tuneParams) == 0 {
		return fmt.Errorf("at least one --param is required")
	}
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	params := make([]optim.Param, 0, len(tuneParams))
	points := 1
	for _, s := range tuneParams {
		p, err := optim.ParseParam(s)
		if err != nil {
			return err
		}
		params = append(params, p)
		points *= len(p.Values)
	}

	opts := []optim.Option{optim.WithLogger(logger)}
	if tuneMaximize {
		opts = append(opts, optim.Maximize())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("grid search", "points", points, "metric", tuneMetric)
	out, err := optim.NewGridSearch(params, opts...).Search(ctx, cfg, tuneMetric)
	if err != nil {
		return err
	}

	best := make(map[string]float64, len(out.Params)+1)
	for k, v := range out.Params {
		best[k] = v
	}
	best[tuneMetric] = out.Value
	fmt.Println(report.Summary(storage.RunMetadata{
		ID:       fmt.Sprintf("best of %d (%d failed)", out.Evaluated, out.Failed),
		Scenario: cfg.Scenario,
		Seed:     cfg.Seed,
		Dt:       cfg.Dt,
		Metrics:  best,
	}, 0))
	return nil
}

func computeGain(cmd *cobra.Command, args []string) error {
	params := control.Params{
		Q:       linalg.Diag(gainQ...),
		R:       linalg.Diag(gainR...),
		Epsilon: gainEpsilon,
		MaxIter: gainMaxIter,
	}
	if r, _ := params.Q.Dims(); r != physics.CartPoleStates {
		return dynamo.NewConfigError("q", gainQ, "must have 4 diagonal entries")
	}
	if r, _ := params.R.Dims(); r != physics.CartPoleInputs {
		return dynamo.NewConfigError("r", gainR, "must have 1 diagonal entry")
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if !(dt > 0) {
		return dynamo.NewConfigError("dt", dt, "must be positive")
	}

	A, B := physics.NewCartPole().Discretize(dt)
	sol, err := control.SolveDARE(A, B, params.Q, params.R, params.Epsilon, params.MaxIter)
	if err != nil && !errors.Is(err, dynamo.ErrNonConvergent) {
		return err
	}
	if err != nil {
		logger.Warn("riccati iteration did not converge", "iterations", sol.Iterations, "residual", sol.Residual)
	}

	K, err := control.Gain(A, B, params.R, sol.P, params.Epsilon)
	if err != nil {
		return err
	}
	eigs, err := control.ClosedLoopEigenvalues(A, B, K)
	if err != nil {
		return err
	}

	fmt.Println(report.Gain(report.GainReport{
		K:           mat.Row(nil, 0, K),
		Iterations:  sol.Iterations,
		Residual:    sol.Residual,
		Converged:   sol.Converged,
		Eigenvalues: eigs,
	}))
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
	fmt.Println(report.RunList(runs))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	table, err := st.LoadTable(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(table.Rows))

	out, err := report.Charts(table, columns...)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportJSON(args[0], os.Stdout)
}

func exportPNG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	table, err := st.LoadTable(args[0])
	if err != nil {
		return err
	}
	if err := report.SavePNG(table, meta.ID, args[1], meta.Landmarks); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[1])
	return nil
}
