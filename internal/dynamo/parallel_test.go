package dynamo

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestEnsembleRun(t *testing.T) {
	members := []Member{
		{Name: "slow", System: decay{k: 0.1}, Integrator: euler{}, X0: State{1, 1}},
		{Name: "fast", System: decay{k: 1}, Integrator: euler{}, X0: State{1, 1}},
		{Name: "adaptive", System: decay{k: 0.1}, Integrator: cappedAdaptive{limit: 0.05}, X0: State{1, 1}},
	}

	ens := NewEnsemble(members, func() []Metric { return []Metric{&countMetric{}} })
	cfg := Config{Dt: 0.1, Duration: 2, Tolerance: 1e-6, MinDt: 1e-9, Adaptive: true}
	results, err := ens.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != len(members) {
		t.Fatalf("expected %d results, got %d", len(members), len(results))
	}
	for i, res := range results {
		if len(res.States) != 21 {
			t.Errorf("%s: expected 21 samples, got %d", members[i].Name, len(res.States))
		}
		if res.Metrics["count"] != 20 {
			t.Errorf("%s: metric shared or miscounted: %g", members[i].Name, res.Metrics["count"])
		}
	}

	if results[1].Final()[0] >= results[0].Final()[0] {
		t.Error("results out of member order")
	}
	if results[2].Rejected == 0 {
		t.Error("expected the adaptive member to reject steps")
	}
	if math.Abs(results[2].Final()[0]-math.Exp(-0.2)) > 1e-2 {
		t.Errorf("adaptive member: expected ~%g, got %g", math.Exp(-0.2), results[2].Final()[0])
	}
}

func TestEnsembleFirstErrorWins(t *testing.T) {
	members := []Member{
		{Name: "ok", System: decay{k: 1}, Integrator: euler{}, X0: State{1, 1}},
		{Name: "bad", System: decay{k: 1}, Integrator: euler{}, X0: State{1}},
	}

	_, err := NewEnsemble(members, nil).Run(context.Background(), fixedConfig(0.1, 1))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
