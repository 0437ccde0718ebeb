package optim

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/crnsim/internal/crn"
	"github.com/san-kum/crnsim/internal/experiment"
)

// BuildFunc returns a ready-to-run experiment for one grid point.
type BuildFunc func(params map[string]float64) (*experiment.Experiment, error)

// Evaluation is the outcome of one grid point. Err is set when the point could
// not be built or its run failed; Value is then NaN.
type Evaluation struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: runtime.NumCPU()}
}

// WithWorkers bounds the number of concurrent runs.
func (g *GridSearch) WithWorkers(n int) *GridSearch {
	if n > 0 {
		g.workers = n
	}
	return g
}

// Points enumerates the grid with the last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	points := []map[string]float64{{}}
	for depth, name := range g.paramNames {
		next := make([]map[string]float64, 0, len(points)*len(g.ranges[depth]))
		for _, p := range points {
			for _, val := range g.ranges[depth] {
				np := make(map[string]float64, len(p)+1)
				for k, v := range p {
					np[k] = v
				}
				np[name] = val
				next = append(next, np)
			}
		}
		points = next
	}
	return points
}

// Evaluate runs every grid point concurrently and returns evaluations in
// Points order. Only context cancellation aborts the search.
func (g *GridSearch) Evaluate(ctx context.Context, build BuildFunc, metricName string) ([]Evaluation, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("optim: %d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	points := g.Points()
	evals := make([]Evaluation, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	for i, p := range points {
		i, p := i, p
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			evals[i] = evaluate(ctx, build, p, metricName)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return evals, nil
}

func evaluate(ctx context.Context, build BuildFunc, params map[string]float64, metricName string) Evaluation {
	ev := Evaluation{Params: params, Value: math.NaN()}

	exp, err := build(params)
	if err != nil {
		ev.Err = err
		return ev
	}

	result, err := exp.Run(ctx)
	if err != nil {
		ev.Err = err
		return ev
	}

	val, ok := result.Metrics[metricName]
	if !ok {
		ev.Err = fmt.Errorf("optim: metric %q not recorded", metricName)
		return ev
	}
	ev.Value = val
	return ev
}

// Search returns the grid point that minimises metricName.
func (g *GridSearch) Search(ctx context.Context, build BuildFunc, metricName string) (map[string]float64, float64, error) {
	evals, err := g.Evaluate(ctx, build, metricName)
	if err != nil {
		return nil, 0, err
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	for _, ev := range evals {
		if ev.Err == nil && ev.Value < best {
			best = ev.Value
			bestParams = ev.Params
		}
	}

	if bestParams == nil {
		return nil, best, fmt.Errorf("optim: no grid point produced %q", metricName)
	}
	return bestParams, best, nil
}

// RateBuilder builds experiments from model with the grid parameters applied
// as rate constants.
func RateBuilder(model *crn.Model, cfg experiment.Config, reg *experiment.Registry) BuildFunc {
	return func(params map[string]float64) (*experiment.Experiment, error) {
		rates := model.Rates()
		for name, val := range params {
			var err error
			if rates, err = rates.With(name, val); err != nil {
				return nil, err
			}
		}

		m, err := model.WithRates(rates)
		if err != nil {
			return nil, err
		}

		integ, err := reg.GetIntegrator(cfg.Integrator)
		if err != nil {
			return nil, err
		}

		exp := experiment.New(m, cfg)
		if err := exp.Setup(integ, reg.DefaultMetrics(m)); err != nil {
			return nil, err
		}
		return exp, nil
	}
}
