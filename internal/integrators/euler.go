package integrators

import "github.com/san-kum/crnsim/internal/dynamo"

// Euler is the explicit first-order method x + dt·f(x, t). It is stateless
// and mostly useful as a baseline in integrator comparisons.
type Euler struct{}

func NewEuler() *Euler { return &Euler{} }

func (Euler) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	return x.Add(dyn.Derive(x, t).Scale(dt))
}
