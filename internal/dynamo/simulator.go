package dynamo

import (
	"context"
	"errors"
	"fmt"
	"math"
)

type Simulator struct {
	dyn        System
	integrator Integrator
	metrics    []Metric
	observers  []Observer
}

func New(dyn System, integrator Integrator) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run integrates from x0 over [0, cfg.Duration] and records the state at every
// multiple of cfg.Dt. Metrics and observers see each recorded state before the
// system is advanced from it.
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("%w: state has %d entries, system %d", ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{
		States:  make([]State, 0, steps+1),
		Times:   make([]float64, 0, steps+1),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := 0.0
	h := cfg.Dt
	if cfg.MaxDt > 0 && h > cfg.MaxDt {
		h = cfg.MaxDt
	}

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("%w: %w", ErrContextCanceled, ctx.Err())
		default:
		}

		for _, m := range s.metrics {
			m.Observe(x, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, t)
		}

		next := float64(i+1) * cfg.Dt
		newX, err := s.advance(x, t, next-t, &h, cfg, result)
		if err != nil {
			result.Errors = append(result.Errors, &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err})
			break
		}

		if cfg.ValidateState && !newX.IsValid() {
			result.Errors = append(result.Errors, &SimulationError{Step: i, Time: t, State: newX, Wrapped: ErrInvalidState})
			break
		}

		x = newX
		t = next

		result.States = append(result.States, x.Clone())
		result.Times = append(result.Times, t)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", ErrInvalidConfig, cfg.Duration)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive for adaptive stepping", ErrInvalidConfig)
	}
	return nil
}

// advance moves x from t across span. Fixed-step integrators take one step of
// span; adaptive ones take as many accepted steps as needed, starting from the
// step size carried in h.
func (s *Simulator) advance(x State, t, span float64, h *float64, cfg Config, result *Result) (State, error) {
	adaptive, ok := s.integrator.(AdaptiveIntegrator)
	if !cfg.Adaptive || !ok {
		result.StepsTaken++
		return s.integrator.Step(s.dyn, x, t, span), nil
	}

	end := t + span
	eps := 1e-12 * math.Max(1, math.Abs(end))
	for end-t > eps {
		dt := *h
		clipped := false
		if dt >= end-t {
			dt = end - t
			clipped = true
		}

		newX, suggested, err := adaptive.StepAdaptive(s.dyn, x, t, dt, cfg.Tolerance)
		if errors.Is(err, ErrStepRejected) {
			result.Rejected++
			if suggested < cfg.MinDt {
				return x, ErrStepTooSmall
			}
			*h = suggested
			continue
		}
		if err != nil {
			return x, err
		}

		x = newX
		t += dt
		result.StepsTaken++

		if !clipped || suggested < *h {
			*h = suggested
		}
		if cfg.MaxDt > 0 && *h > cfg.MaxDt {
			*h = cfg.MaxDt
		}
	}
	return x, nil
}
