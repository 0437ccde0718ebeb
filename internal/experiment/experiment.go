package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/crnsim/internal/crn"
	"github.com/san-kum/crnsim/internal/dynamo"
)

type Config struct {
	Integrator string
	Dt         float64
	Duration   float64
	Tolerance  float64
	MinDt      float64
	MaxDt      float64
	Adaptive   bool
}

// DefaultConfig samples t in [0, 20000] at 10000 points with adaptive RK45
// steps between samples.
func DefaultConfig() Config {
	d := dynamo.DefaultConfig()
	return Config{
		Integrator: "rk45",
		Dt:         d.Dt,
		Duration:   d.Duration,
		Tolerance:  d.Tolerance,
		MinDt:      d.MinDt,
		MaxDt:      d.MaxDt,
		Adaptive:   d.Adaptive,
	}
}

// Simulation converts the experiment config into a dynamo run config.
func (c Config) Simulation() dynamo.Config {
	return dynamo.Config{
		Dt:            c.Dt,
		Duration:      c.Duration,
		Tolerance:     c.Tolerance,
		MinDt:         c.MinDt,
		MaxDt:         c.MaxDt,
		Adaptive:      c.Adaptive,
		ValidateState: true,
	}
}

// Experiment binds one CRN model to a simulator run.
type Experiment struct {
	cfg       Config
	model     *crn.Model
	simulator *dynamo.Simulator
}

func New(model *crn.Model, cfg Config) *Experiment {
	return &Experiment{
		cfg:   cfg,
		model: model,
	}
}

func (e *Experiment) Setup(integrator dynamo.Integrator, metrics []dynamo.Metric) error {
	if e.model == nil {
		return fmt.Errorf("experiment has no model")
	}
	e.simulator = dynamo.New(e.model, integrator)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

// Run integrates from the model's initial state. Errors recorded during the
// run are returned alongside the partial result.
func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	result, err := e.simulator.Run(ctx, e.model.X0(), e.cfg.Simulation())
	if err != nil {
		return result, err
	}
	if len(result.Errors) > 0 {
		return result, result.Errors[0]
	}
	return result, nil
}

func (e *Experiment) Model() *crn.Model { return e.model }

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *dynamo.Simulator {
	return e.simulator
}

// Integrate runs model with the named integrator and the default metrics.
func Integrate(ctx context.Context, reg *Registry, model *crn.Model, cfg Config) (*dynamo.Result, error) {
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	exp := New(model, cfg)
	if err := exp.Setup(integ, reg.DefaultMetrics(model)); err != nil {
		return nil, err
	}
	return exp.Run(ctx)
}
