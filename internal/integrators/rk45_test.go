package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/crnsim/internal/dynamo"
)

// cycle is A -> B -> C -> A, all with rate 1. Total mass is conserved and the
// state spirals into (1/3, 1/3, 1/3).
type cycle struct{}

func (cycle) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[2] - x[0], x[0] - x[1], x[1] - x[2]}
}

func (cycle) StateDim() int { return 3 }

func TestRK45SettlesCycle(t *testing.T) {
	rk := NewRK45()
	x := dynamo.State{1, 0, 0}
	const dt = 0.01

	for i := 0; i < 1000; i++ {
		x = rk.Step(cycle{}, x, float64(i)*dt, dt)
	}

	for i, v := range x {
		if math.Abs(v-1.0/3) > 1e-4 {
			t.Errorf("species %d at %.8f, want 1/3", i, v)
		}
	}
	if math.Abs(x.Sum()-1) > 1e-10 {
		t.Errorf("mass drifted to %.15f", x.Sum())
	}
}

func TestRK45StepAdaptive(t *testing.T) {
	tests := []struct {
		name     string
		dt, tol  float64
		rejected bool
	}{
		{"easy step grows", 0.01, 1e-6, false},
		{"oversized step rejected", 50, 1e-10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x0 := dynamo.State{1, 0}
			x, next, err := NewRK45().StepAdaptive(&decay{k: 1}, x0, 0, tt.dt, tt.tol)

			if tt.rejected {
				if !errors.Is(err, dynamo.ErrStepRejected) {
					t.Fatalf("expected ErrStepRejected, got %v", err)
				}
				if x[0] != x0[0] || x[1] != x0[1] {
					t.Errorf("rejected step changed the state: %v", x)
				}
				if next <= 0 || next >= tt.dt {
					t.Errorf("expected a smaller positive step, got %g", next)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next <= tt.dt {
				t.Errorf("expected the step to grow, got %g", next)
			}
			if math.Abs(x[0]-math.Exp(-tt.dt)) > 1e-10 {
				t.Errorf("inaccurate accepted step: %.12f", x[0])
			}
		})
	}
}

func TestRK45BeatsRK4OnDecay(t *testing.T) {
	dyn := &decay{k: 1}
	x4 := dynamo.State{1, 0}
	x5 := dynamo.State{1, 0}
	rk4, rk45 := NewRK4(), NewRK45()
	const dt = 0.1

	for i := 0; i < 100; i++ {
		tt := float64(i) * dt
		x4 = rk4.Step(dyn, x4, tt, dt)
		x5 = rk45.Step(dyn, x5, tt, dt)
	}

	want := math.Exp(-10)
	e4, e5 := math.Abs(x4[0]-want), math.Abs(x5[0]-want)
	if e5 >= e4 {
		t.Errorf("rk45 error %.3e not below rk4 error %.3e", e5, e4)
	}
}
