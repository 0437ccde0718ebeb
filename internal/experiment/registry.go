package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/crnsim/internal/dynamo"
	"github.com/san-kum/crnsim/internal/integrators"
	"github.com/san-kum/crnsim/internal/metrics"
)

type Registry struct {
	integrators map[string]func() dynamo.Integrator
	metrics     map[string]func(dynamo.System) dynamo.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
		metrics:     make(map[string]func(dynamo.System) dynamo.Metric),
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }

	r.metrics["total_drift"] = func(dynamo.System) dynamo.Metric { return metrics.NewTotalDrift() }
	r.metrics["min_concentration"] = func(dynamo.System) dynamo.Metric { return metrics.NewMinConcentration() }
	r.metrics["bounded"] = func(dynamo.System) dynamo.Metric { return metrics.NewBoundedness(-1e-6, 10) }
	r.metrics["equilibrium_residual"] = func(dyn dynamo.System) dynamo.Metric { return metrics.NewEquilibriumResidual(dyn) }
	r.metrics["mean_flux"] = func(dyn dynamo.System) dynamo.Metric { return metrics.NewMeanFlux(dyn) }

	return r
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetMetric(name string, dyn dynamo.System) (dynamo.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(dyn), nil
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func (r *Registry) ListMetrics() []string {
	return sortedKeys(r.metrics)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns a fresh instance of every registered metric for dyn.
func (r *Registry) DefaultMetrics(dyn dynamo.System) []dynamo.Metric {
	out := make([]dynamo.Metric, 0, len(r.metrics))
	for _, name := range r.ListMetrics() {
		out = append(out, r.metrics[name](dyn))
	}
	return out
}
