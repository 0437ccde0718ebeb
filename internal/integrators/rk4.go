package integrators

import "github.com/san-kum/crnsim/internal/dynamo"

// Classical Runge-Kutta tableau. Stage s is evaluated at x + nodes[s]·dt·k(s-1).
var (
	rk4Nodes   = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6}
)

// RK4 is the classical fourth-order Runge-Kutta stepper. Its stage buffers are
// reused between calls, so an instance must not be shared across goroutines.
type RK4 struct {
	k     dynamo.State
	stage dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) grow(n int) {
	if len(r.k) != n {
		r.k = make(dynamo.State, n)
		r.stage = make(dynamo.State, n)
	}
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	r.grow(len(x))
	out := x.Clone()

	for s, c := range rk4Nodes {
		in := x
		if s > 0 {
			for i := range r.stage {
				r.stage[i] = x[i] + c*dt*r.k[i]
			}
			in = r.stage
		}
		copy(r.k, dyn.Derive(in, t+c*dt))

		w := rk4Weights[s] * dt
		for i := range out {
			out[i] += w * r.k[i]
		}
	}
	return out
}
