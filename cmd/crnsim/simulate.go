package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/crnsim/internal/analysis"
	"github.com/san-kum/crnsim/internal/automation"
	"github.com/san-kum/crnsim/internal/dynamo"
	"github.com/san-kum/crnsim/internal/experiment"
	"github.com/san-kum/crnsim/internal/models"
	"github.com/san-kum/crnsim/internal/optim"
	"github.com/san-kum/crnsim/internal/storage"
	"github.com/san-kum/crnsim/internal/viz"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func showSpec(cmd *cobra.Command, args []string) error {
	model, err := loadModel(args[0])
	if err != nil {
		return err
	}
	model, err = applyOverrides(model)
	if err != nil {
		return err
	}

	fmt.Println(model.String())
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RATE\tVALUE\tUNIT")
	rates := model.Rates()
	for i, name := range rates.Names {
		fmt.Fprintf(w, "%s\t%g\t%s\n", name, rates.Values[i], model.RateUnit(name))
	}
	w.Flush()

	fmt.Printf("\nspecies: %s\n", strings.Join(model.Species(), " "))
	fmt.Println("\nstoichiometry (species x terms):")
	fmt.Printf("%v\n", mat.Formatted(model.Gamma(), mat.Prefix(""), mat.Squeeze()))
	fmt.Println("\nreactants (terms x species):")
	fmt.Printf("%v\n", mat.Formatted(model.ReactantsMatrix(), mat.Prefix(""), mat.Squeeze()))
	return nil
}

func runSpec(cmd *cobra.Command, args []string) error {
	model, err := loadModel(args[0])
	if err != nil {
		return err
	}
	model, err = applyOverrides(model)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	cfg := expConfig()
	reg := experiment.NewRegistry()

	logger.Info("integrating",
		zap.String("model", model.Name()),
		zap.String("integrator", cfg.Integrator),
		zap.Float64("duration", cfg.Duration),
		zap.Float64("dt", cfg.Dt))

	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return err
	}
	exp := experiment.New(model, cfg)
	if err := exp.Setup(integ, reg.DefaultMetrics(model)); err != nil {
		return err
	}
	exp.GetSimulator().AddObserver(newProgress(cfg.Duration))

	start := time.Now()
	result, runErr := exp.Run(ctx)
	if result == nil {
		return runErr
	}
	if runErr != nil {
		logger.Warn("run finished with errors", zap.Error(runErr))
	}

	store := storage.New(appCfg.DataDir)
	if err := store.Init(); err != nil {
		return err
	}
	meta := storage.NewMetadata(exp.Model(), args[0], cfg.Integrator, cfg.Simulation(), result)
	id, err := store.Save(meta, result)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	fmt.Printf("run: %s (%d samples, %d steps, %d rejected, %s)\n",
		id, len(result.States), result.StepsTaken, result.Rejected, time.Since(start).Round(time.Millisecond))
	printMetrics(result.Metrics)
	printFinal(model.Species(), result.Final())
	return runErr
}

// progress logs every tenth of a run at debug level.
type progress struct {
	duration float64
	next     float64
}

func newProgress(duration float64) *progress {
	return &progress{duration: duration, next: duration / 10}
}

func (p *progress) OnStep(x dynamo.State, t float64) {
	if t < p.next {
		return
	}
	logger.Debug("progress",
		zap.Float64("t", t),
		zap.Int("percent", int(100*t/p.duration)),
		zap.Float64("total", x.Sum()))
	p.next += p.duration / 10
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-22s %.6g\n", name, m[name])
	}
}

func printFinal(species []string, x dynamo.State) {
	if len(x) == 0 {
		return
	}
	fmt.Println("final:")
	for i, s := range species {
		fmt.Printf("  %-8s %.6g\n", s, x[i])
	}
}

func runPanel(cmd *cobra.Command, args []string) error {
	model, err := loadModel(args[0])
	if err != nil {
		return err
	}

	specPath := args[0]
	if _, ok := models.Builtin(specPath); ok {
		specPath = ""
	}

	// the panel owns the terminal, keep stderr quiet
	quiet := logger.WithOptions(zap.IncreaseLevel(zap.ErrorLevel))
	p := viz.NewPanel(model, specPath, appCfg, experiment.NewRegistry(), quiet)
	if err := p.Watch(); err != nil {
		logger.Warn("spec reload disabled", zap.Error(err))
	}
	return viz.Run(p)
}

func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("invalid grid %q, want rate=v1,v2,...", spec)
		}
		var vals []float64
		for _, raw := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("grid %s: %w", name, err)
			}
			vals = append(vals, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func sweepRates(cmd *cobra.Command, args []string) error {
	if len(sweepGrid) == 0 {
		return fmt.Errorf("at least one --grid is required")
	}
	names, ranges, err := parseGrid(sweepGrid)
	if err != nil {
		return err
	}

	model, err := loadModel(args[0])
	if err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	if _, err := reg.GetMetric(metricName, model); err != nil {
		return fmt.Errorf("%w (available: %v)", err, reg.ListMetrics())
	}

	ctx, cancel := signalContext()
	defer cancel()

	gs := optim.NewGridSearch(names, ranges).WithWorkers(workers)
	evals, err := gs.Evaluate(ctx, optim.RateBuilder(model, expConfig(), reg), metricName)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.Join(names, "\t"), strings.ToUpper(metricName))
	var best *optim.Evaluation
	for i := range evals {
		ev := &evals[i]
		cols := make([]string, len(names))
		for j, name := range names {
			cols[j] = fmt.Sprintf("%g", ev.Params[name])
		}
		value := fmt.Sprintf("%.6g", ev.Value)
		if ev.Err != nil {
			value = "error: " + ev.Err.Error()
		} else if best == nil || ev.Value < best.Value {
			best = ev
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(cols, "\t"), value)
	}
	w.Flush()

	if best == nil {
		return fmt.Errorf("no grid point completed")
	}
	fmt.Printf("\nbest %s = %.6g at %v\n", metricName, best.Value, best.Params)
	return nil
}

func bifurcation(cmd *cobra.Command, args []string) error {
	model, err := loadModel(args[0])
	if err != nil {
		return err
	}
	species := speciesName
	if species == "" {
		species = model.Species()[0]
	}

	ctx, cancel := signalContext()
	defer cancel()

	points, err := analysis.BifurcationScan(ctx, experiment.NewRegistry(), model, expConfig(),
		rateName, rangeFrom, rangeTo, rangeSteps, species, transient, 1e-4)
	if err != nil {
		return err
	}

	fmt.Printf("%s vs %s\n", species, rateName)
	fmt.Println(analysis.BifurcationToASCII(points, 70, 20))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RATE\tVALUES\tMIN\tMAX")
	for _, p := range points {
		if len(p.Values) == 0 {
			continue
		}
		lo, hi := p.Values[0], p.Values[0]
		for _, v := range p.Values {
			lo, hi = min(lo, v), max(hi, v)
		}
		fmt.Fprintf(w, "%g\t%d\t%.6g\t%.6g\n", p.Param, len(p.Values), lo, hi)
	}
	return w.Flush()
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	model, err := loadModel(args[0])
	if err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	names := args[1:]
	if len(names) == 0 {
		names = reg.ListIntegrators()
	}
	members := make([]dynamo.Member, 0, len(names))
	for _, name := range names {
		integ, err := reg.GetIntegrator(name)
		if err != nil {
			return err
		}
		members = append(members, dynamo.Member{Name: name, System: model, Integrator: integ, X0: model.X0()})
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	ens := dynamo.NewEnsemble(members, func() []dynamo.Metric { return reg.DefaultMetrics(model) })
	results, err := ens.Run(ctx, expConfig().Simulation())
	if err != nil {
		return err
	}
	logger.Debug("ensemble finished", zap.Duration("elapsed", time.Since(start)))

	metricNames := reg.ListMetrics()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "INTEGRATOR\tSTEPS\tREJECTED\t%s\n", strings.ToUpper(strings.Join(metricNames, "\t")))
	for i, res := range results {
		cols := make([]string, len(metricNames))
		for j, m := range metricNames {
			if v, ok := res.Metrics[m]; ok {
				cols[j] = fmt.Sprintf("%.4g", v)
			} else {
				cols[j] = "-"
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", members[i].Name, res.StepsTaken, res.Rejected, strings.Join(cols, "\t"))
	}
	return w.Flush()
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, runErr := automation.RunScenario(ctx, scenario, expConfig(), experiment.NewRegistry(), logger)

	store := storage.New(appCfg.DataDir)
	if saveRuns {
		if err := store.Init(); err != nil {
			return err
		}
	}

	fmt.Printf("scenario: %s (%d/%d steps)\n", scenario.Name, len(results), len(scenario.Steps))
	for i, r := range results {
		line := fmt.Sprintf("  %d. %-20s %s", i+1, r.Model.Name(), r.Config.Integrator)
		if saveRuns {
			meta := storage.NewMetadata(r.Model, r.Step.Spec, r.Config.Integrator, r.Config.Simulation(), r.Result)
			if r.Step.SaveAs != "" {
				meta.Name = r.Step.SaveAs
			}
			id, err := store.Save(meta, r.Result)
			if err != nil {
				return err
			}
			line += " -> " + id
		}
		fmt.Println(line)
	}
	return runErr
}

func monteCarlo(cmd *cobra.Command, args []string) error {
	model, err := loadModel(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	mc := automation.MonteCarloConfig{Perturbation: perturb, NumTrials: trials, Seed: trialSeed}
	results, err := automation.RunMonteCarlo(ctx, model, mc, expConfig(), experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("trials: %d  stable: %d  unstable: %d\n\n", len(results), stable, unstable)

	species := model.Species()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TRIAL\tSTABLE\t%s\n", strings.Join(species, "\t"))
	for _, r := range results {
		cols := make([]string, len(species))
		for i := range species {
			if i < len(r.FinalState) {
				cols[i] = fmt.Sprintf("%.4g", r.FinalState[i])
			}
		}
		fmt.Fprintf(w, "%d\t%v\t%s\n", r.TrialID, r.Stable, strings.Join(cols, "\t"))
	}
	return w.Flush()
}
