package dynamo

import (
	"context"
	"errors"
	"math"
	"testing"
)

// decay is dx/dt = -k x for every component.
type decay struct{ k float64 }

func (d decay) Derive(x State, t float64) State { return x.Scale(-d.k) }
func (d decay) StateDim() int                   { return 2 }

type blowUp struct{}

func (blowUp) Derive(x State, t float64) State { return State{math.Inf(1)} }
func (blowUp) StateDim() int                   { return 1 }

type euler struct{}

func (euler) Step(dyn System, x State, t, dt float64) State {
	return x.Add(dyn.Derive(x, t).Scale(dt))
}

// cappedAdaptive accepts any step up to limit and rejects larger ones.
type cappedAdaptive struct {
	euler
	limit float64
}

func (c cappedAdaptive) StepAdaptive(dyn System, x State, t, dt, tol float64) (State, float64, error) {
	if dt > c.limit {
		return x, c.limit, ErrStepRejected
	}
	return c.Step(dyn, x, t, dt), 2 * dt, nil
}

// alwaysReject shrinks the step tenfold on every attempt.
type alwaysReject struct{ euler }

func (alwaysReject) StepAdaptive(dyn System, x State, t, dt, tol float64) (State, float64, error) {
	return x, dt / 10, ErrStepRejected
}

type countMetric struct{ n int }

func (c *countMetric) Name() string               { return "count" }
func (c *countMetric) Observe(x State, t float64) { c.n++ }
func (c *countMetric) Value() float64             { return float64(c.n) }
func (c *countMetric) Reset()                     { c.n = 0 }

type recorder struct{ times []float64 }

func (r *recorder) OnStep(x State, t float64) { r.times = append(r.times, t) }

func fixedConfig(dt, duration float64) Config {
	return Config{Dt: dt, Duration: duration, ValidateState: true}
}

func TestRunSampling(t *testing.T) {
	sim := New(decay{k: 0.1}, euler{})
	metric := &countMetric{}
	obs := &recorder{}
	sim.AddMetric(metric)
	sim.AddObserver(obs)

	res, err := sim.Run(context.Background(), State{1, 0.5}, fixedConfig(0.5, 10))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.States) != 21 || len(res.Times) != 21 {
		t.Fatalf("expected 21 samples, got %d states and %d times", len(res.States), len(res.Times))
	}
	if res.Times[20] != 10 {
		t.Errorf("expected last sample at t=10, got %g", res.Times[20])
	}
	if res.StepsTaken != 20 {
		t.Errorf("expected 20 steps, got %d", res.StepsTaken)
	}
	if res.Metrics["count"] != 20 {
		t.Errorf("expected metric to observe 20 states, got %g", res.Metrics["count"])
	}
	if len(obs.times) != 20 || obs.times[0] != 0 {
		t.Errorf("unexpected observer times %v", obs.times)
	}
}

func TestRunFixedStepMatchesEuler(t *testing.T) {
	k, dt := 0.2, 0.25
	res, err := New(decay{k: k}, euler{}).Run(context.Background(), State{1, 2}, fixedConfig(dt, 5))
	if err != nil {
		t.Fatal(err)
	}

	for i, x := range res.States {
		want := math.Pow(1-k*dt, float64(i))
		if math.Abs(x[0]-want) > 1e-12 || math.Abs(x[1]-2*want) > 1e-12 {
			t.Fatalf("sample %d: expected %g, got %v", i, want, x)
		}
	}
}

func TestRunDoesNotMutateInitialState(t *testing.T) {
	x0 := State{1, 1}
	if _, err := New(decay{k: 1}, euler{}).Run(context.Background(), x0, fixedConfig(0.1, 1)); err != nil {
		t.Fatal(err)
	}
	if x0[0] != 1 || x0[1] != 1 {
		t.Errorf("x0 mutated: %v", x0)
	}
}

func TestRunAdaptiveSubsteps(t *testing.T) {
	cfg := Config{Dt: 1, Duration: 5, Tolerance: 1e-6, MinDt: 1e-9, MaxDt: 100, Adaptive: true}
	res, err := New(decay{k: 0.1}, cappedAdaptive{limit: 0.4}).Run(context.Background(), State{1, 1}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	if len(res.States) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(res.States))
	}
	if res.StepsTaken <= 5 {
		t.Errorf("expected several substeps per interval, got %d steps", res.StepsTaken)
	}
	if res.Rejected == 0 {
		t.Error("expected rejected attempts")
	}
	for i, tm := range res.Times {
		if tm != float64(i) {
			t.Errorf("sample %d at t=%g, want %d", i, tm, i)
		}
	}

	final := res.Final()
	if math.Abs(final[0]-math.Exp(-0.5)) > 0.02 {
		t.Errorf("expected ~%g, got %g", math.Exp(-0.5), final[0])
	}
}

func TestRunAdaptiveIgnoredWhenDisabled(t *testing.T) {
	cfg := fixedConfig(1, 3)
	res, err := New(decay{k: 0.1}, cappedAdaptive{limit: 0.4}).Run(context.Background(), State{1, 1}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.StepsTaken != 3 || res.Rejected != 0 {
		t.Errorf("expected 3 fixed steps, got %d steps %d rejected", res.StepsTaken, res.Rejected)
	}
}

func TestRunStepTooSmall(t *testing.T) {
	cfg := Config{Dt: 1, Duration: 5, Tolerance: 1e-6, MinDt: 1e-3, Adaptive: true}
	res, err := New(decay{k: 0.1}, alwaysReject{}).Run(context.Background(), State{1, 1}, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Errors) != 1 {
		t.Fatalf("expected one error, got %v", res.Errors)
	}
	if !errors.Is(res.Errors[0], ErrStepTooSmall) {
		t.Errorf("expected ErrStepTooSmall, got %v", res.Errors[0])
	}
	var simErr *SimulationError
	if !errors.As(res.Errors[0], &simErr) || simErr.Step != 0 {
		t.Errorf("expected SimulationError at step 0, got %v", res.Errors[0])
	}
	if len(res.States) != 1 {
		t.Errorf("expected only the initial sample, got %d", len(res.States))
	}
}

func TestRunInvalidState(t *testing.T) {
	res, err := New(blowUp{}, euler{}).Run(context.Background(), State{1}, fixedConfig(1, 3))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", res.Errors)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(decay{k: 1}, euler{}).Run(ctx, State{1, 1}, fixedConfig(0.1, 1))
	if !errors.Is(err, ErrContextCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res == nil || len(res.States) != 1 {
		t.Error("expected partial result holding the initial state")
	}
}

func TestRunDimensionMismatch(t *testing.T) {
	_, err := New(decay{k: 1}, euler{}).Run(context.Background(), State{1, 2, 3}, fixedConfig(0.1, 1))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1}},
		{"negative duration", Config{Dt: 0.1, Duration: -1}},
		{"adaptive without tolerance", Config{Dt: 0.1, Duration: 1, Adaptive: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(decay{k: 1}, euler{}).Run(context.Background(), State{1, 1}, tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestResultSeries(t *testing.T) {
	r := &Result{States: []State{{1, 2}, {3, 4}}}
	s := r.Series(1)
	if len(s) != 2 || s[0] != 2 || s[1] != 4 {
		t.Errorf("unexpected series %v", s)
	}
	if got := (&Result{}).Final(); got != nil {
		t.Errorf("expected nil final state, got %v", got)
	}
}

func TestStateHelpers(t *testing.T) {
	s := State{3, 4}
	if s.Norm() != 5 {
		t.Errorf("expected norm 5, got %g", s.Norm())
	}
	if s.Sum() != 7 {
		t.Errorf("expected sum 7, got %g", s.Sum())
	}
	if !s.IsValid() || (State{math.NaN()}).IsValid() {
		t.Error("IsValid mismatch")
	}
	if d := s.Sub(State{1, 1}); d[0] != 2 || d[1] != 3 {
		t.Errorf("unexpected difference %v", d)
	}
}
