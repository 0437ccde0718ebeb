package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/crnsim/internal/dynamo"
)

// decay is A -> B with rate k: dA = -kA, dB = kA.
type decay struct{ k float64 }

func (d *decay) Derive(x dynamo.State, t float64) dynamo.State {
	flux := d.k * x[0]
	return dynamo.State{-flux, flux}
}

func (d *decay) StateDim() int { return 2 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &decay{k: 0.5}
	integ := NewRK4()

	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 200

	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, float64(i)*dt, dt)
	}

	expectedA := math.Exp(-0.5 * float64(steps) * dt)
	if math.Abs(x[0]-expectedA) > 1e-8 {
		t.Errorf("A error too large: got %.10f, expected %.10f", x[0], expectedA)
	}
	if math.Abs(x.Sum()-1.0) > 1e-12 {
		t.Errorf("mass not conserved: sum %.15f", x.Sum())
	}
}

func TestEulerFirstOrder(t *testing.T) {
	dyn := &decay{k: 1}
	x := NewEuler().Step(dyn, dynamo.State{1, 0}, 0, 0.1)

	if math.Abs(x[0]-0.9) > 1e-12 || math.Abs(x[1]-0.1) > 1e-12 {
		t.Errorf("unexpected euler step: %v", x)
	}
}

func TestRK4ReusesScratchAcrossDimensions(t *testing.T) {
	integ := NewRK4()
	integ.Step(&decay{k: 1}, dynamo.State{1, 0}, 0, 0.1)

	x := integ.Step(cycle{}, dynamo.State{1, 0, 0}, 0, 0.01)
	if !x.IsValid() || len(x) != 3 {
		t.Errorf("unexpected state after reuse: %v", x)
	}
}
