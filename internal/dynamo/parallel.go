package dynamo

import (
	"context"
	"sync"
)

// Member is one system/integrator pairing of an Ensemble.
type Member struct {
	Name       string
	System     System
	Integrator Integrator
	X0         State
}

// Ensemble runs independent simulations concurrently with a shared config.
// Integrators keep scratch buffers, so every member needs its own instance.
type Ensemble struct {
	members    []Member
	newMetrics func() []Metric
}

// NewEnsemble builds an ensemble. newMetrics, when non-nil, is called once per
// member so no metric is shared between goroutines.
func NewEnsemble(members []Member, newMetrics func() []Metric) *Ensemble {
	return &Ensemble{members: members, newMetrics: newMetrics}
}

// Run returns one result per member, in member order. The first error wins.
func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(e.members))
	errs := make([]error, len(e.members))

	var wg sync.WaitGroup
	for i := range e.members {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			mem := e.members[idx]
			s := New(mem.System, mem.Integrator)
			if e.newMetrics != nil {
				for _, m := range e.newMetrics() {
					s.AddMetric(m)
				}
			}

			results[idx], errs[idx] = s.Run(ctx, mem.X0, cfg)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
