package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/crnsim/internal/config"
	"github.com/san-kum/crnsim/internal/crn"
	"github.com/san-kum/crnsim/internal/experiment"
	"github.com/san-kum/crnsim/internal/logging"
	"github.com/san-kum/crnsim/internal/models"
)

var (
	dataDir    string
	configFile string
	logLevel   string
	logFormat  string
	preset     string

	integrator string
	dt         float64
	duration   float64
	tolerance  float64
	rateFlags  map[string]string
	x0Flags    map[string]string

	// Run inspection
	speciesName string
	xSpecies    string
	ySpecies    string
	chartOut    string
	themeName   string

	// Sweeps
	sweepGrid  []string
	metricName string
	workers    int
	rateName   string
	rangeFrom  float64
	rangeTo    float64
	rangeSteps int
	transient  float64

	// Batch and Monte Carlo
	saveRuns  bool
	trials    int
	perturb   float64
	trialSeed int64
)

var (
	appCfg *config.Config
	logger *zap.Logger
)

// main registers the crnsim commands and executes the root command, exiting
// with status 1 when it fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "crnsim",
		Short:         "mass-action chemical reaction network simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "run directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	showCmd := &cobra.Command{
		Use:   "show [spec]",
		Short: "print the network, its stoichiometry and rates",
		Args:  cobra.ExactArgs(1),
		RunE:  showSpec,
	}
	addOverrideFlags(showCmd)

	runCmd := &cobra.Command{
		Use:   "run [spec]",
		Short: "integrate a network and store the run",
		Args:  cobra.ExactArgs(1),
		RunE:  runSpec,
	}
	addSimFlags(runCmd)
	addOverrideFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot species trajectories of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&themeName, "theme", "cyberpunk", "color theme (cyberpunk, retro, minimal)")

	chartCmd := &cobra.Command{
		Use:   "chart [run_id]",
		Short: "render a run as a PNG chart",
		Args:  cobra.ExactArgs(1),
		RunE:  chartRun,
	}
	chartCmd.Flags().StringVarP(&chartOut, "output", "o", "", "output file (default <run_id>.png)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of one species",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&speciesName, "species", "", "species to analyze (default first)")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "plot one species against another",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().StringVar(&xSpecies, "x", "", "species on the x-axis (default first)")
	phaseCmd.Flags().StringVar(&ySpecies, "y", "", "species on the y-axis (default second)")

	panelCmd := &cobra.Command{
		Use:   "panel [spec]",
		Short: "interactive panel with rate sliders and x0 fields",
		Args:  cobra.ExactArgs(1),
		RunE:  runPanel,
	}
	addSimFlags(panelCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [spec]",
		Short: "grid search over rate constants",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepRates,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepGrid, "grid", nil, "rate=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&metricName, "metric", "equilibrium_residual", "metric to minimise")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (default NumCPU)")

	bifurcationCmd := &cobra.Command{
		Use:   "bifurcation [spec]",
		Short: "long-run species values across a rate range",
		Args:  cobra.ExactArgs(1),
		RunE:  bifurcation,
	}
	addSimFlags(bifurcationCmd)
	bifurcationCmd.Flags().StringVar(&rateName, "rate", "k1", "rate to vary")
	bifurcationCmd.Flags().Float64Var(&rangeFrom, "from", 1e-4, "first rate value")
	bifurcationCmd.Flags().Float64Var(&rangeTo, "to", 1e-2, "last rate value")
	bifurcationCmd.Flags().IntVar(&rangeSteps, "steps", 20, "number of rate values")
	bifurcationCmd.Flags().StringVar(&speciesName, "species", "", "species to record (default first)")
	bifurcationCmd.Flags().Float64Var(&transient, "transient", 0.5, "fraction of the run discarded as transient")

	compareCmd := &cobra.Command{
		Use:   "compare [spec] [integrator...]",
		Short: "compare integrators on the same network (default all)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	addSimFlags(compareCmd)

	batchCmd := &cobra.Command{
		Use:   "batch [scenario]",
		Short: "run a YAML scenario of spec runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	addSimFlags(batchCmd)
	batchCmd.Flags().BoolVar(&saveRuns, "save", true, "store every step as a run")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [spec]",
		Short: "integrate under randomly perturbed rates",
		Args:  cobra.ExactArgs(1),
		RunE:  monteCarlo,
	}
	addSimFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Float64Var(&perturb, "perturb", 0.1, "relative rate perturbation")
	monteCarloCmd.Flags().Int64Var(&trialSeed, "seed", 0, "random seed (default time based)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list simulation presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-8s integrator=%s dt=%g duration=%g tolerance=%g\n", name, p.Integrator, p.Dt, p.Duration, p.Tolerance)
			}
			return nil
		},
	}

	examplesCmd := &cobra.Command{
		Use:   "examples [name]",
		Short: "list built-in networks or print one as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range models.Names() {
					fmt.Printf("  %s%s\n", models.Prefix, name)
				}
				return nil
			}
			data, err := models.Spec(args[0])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	rootCmd.AddCommand(examplesCmd, showCmd, runCmd, listCmd, plotCmd, chartCmd, exportCmd, exportCSVCmd, exportJSONCmd,
		analyzeCmd, phaseCmd, panelCmd, sweepCmd, bifurcationCmd, compareCmd, batchCmd, monteCarloCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator (euler, rk4, rk45)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "output interval")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Float64Var(&tolerance, "tol", config.DefaultTolerance, "adaptive step tolerance")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().StringToStringVar(&rateFlags, "rate", nil, "override rates, e.g. k1=1e-3,k-1=5e-6")
	cmd.Flags().StringToStringVar(&x0Flags, "x0", nil, "override initial concentrations, e.g. X=0.4,Y=0.35")
}

// setup loads the config (file, then preset, then flags) and builds the logger.
func setup(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if preset != "" && !config.ApplyPreset(cfg, preset) {
		return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("tol") {
		cfg.Tolerance = tolerance
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	appCfg, logger = cfg, l
	return nil
}

// loadModel reads a spec file, or a built-in network when path carries the
// builtin: prefix.
func loadModel(path string) (*crn.Model, error) {
	if name, ok := models.Builtin(path); ok {
		return models.Load(name, crn.WithLogger(logger))
	}
	model, err := crn.FromJSON(path, crn.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return model, nil
}

// applyOverrides rebuilds model with the --rate and --x0 flag values.
func applyOverrides(model *crn.Model) (*crn.Model, error) {
	if len(rateFlags) == 0 && len(x0Flags) == 0 {
		return model, nil
	}

	rates := model.Rates()
	for name, raw := range rateFlags {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("rate %s: %w", name, err)
		}
		if rates, err = rates.With(name, v); err != nil {
			return nil, err
		}
	}

	x0 := model.InitialState()
	for name, raw := range x0Flags {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("x0 %s: %w", name, err)
		}
		if !model.Species().Contains(name) {
			return nil, fmt.Errorf("%w: unknown species %q", crn.ErrInvalidInitialState, name)
		}
		x0 = x0.With(name, v)
	}

	return model.With(rates, x0)
}

func expConfig() experiment.Config {
	return appCfg.Experiment()
}
