// Package dynamo integrates autonomous or time-dependent ODE systems and
// records sampled trajectories.
//
// A [System] exposes dX/dt = f(X, t). An [Integrator] advances a [State] by
// one step; one that also implements [AdaptiveIntegrator] lets the
// [Simulator] refine its step between output samples. [Metric] and
// [Observer] hooks see every recorded sample.
//
//	model, _ := crn.FromJSON("toy.json")
//	sim := dynamo.New(model, integrators.NewRK45())
//	result, _ := sim.Run(ctx, model.X0(), dynamo.DefaultConfig())
//
// A Simulator keeps per-run state and must not be shared between
// goroutines; [Ensemble] runs independent simulations in parallel.
package dynamo
