package metrics

import (
	"math"

	"github.com/san-kum/crnsim/internal/dynamo"
)

func l1(v dynamo.State) float64 {
	sum := 0.0
	for _, x := range v {
		sum += math.Abs(x)
	}
	return sum
}

// MeanFlux is the average L1 norm of the derivative over all samples.
type MeanFlux struct {
	name    string
	dyn     dynamo.System
	sum     float64
	samples int
}

func NewMeanFlux(dyn dynamo.System) *MeanFlux {
	return &MeanFlux{
		name: "mean_flux",
		dyn:  dyn,
	}
}

func (f *MeanFlux) Name() string {
	return f.name
}

func (f *MeanFlux) Observe(x dynamo.State, t float64) {
	f.sum += l1(f.dyn.Derive(x, t))
	f.samples++
}

func (f *MeanFlux) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return f.sum / float64(f.samples)
}

func (f *MeanFlux) Reset() {
	f.sum = 0
	f.samples = 0
}

// EquilibriumResidual is the L1 norm of the derivative at the latest sample.
// It approaches zero as the network settles.
type EquilibriumResidual struct {
	name     string
	dyn      dynamo.System
	residual float64
}

func NewEquilibriumResidual(dyn dynamo.System) *EquilibriumResidual {
	return &EquilibriumResidual{
		name: "equilibrium_residual",
		dyn:  dyn,
	}
}

func (e *EquilibriumResidual) Name() string { return e.name }

func (e *EquilibriumResidual) Observe(x dynamo.State, t float64) {
	e.residual = l1(e.dyn.Derive(x, t))
}

func (e *EquilibriumResidual) Value() float64 { return e.residual }

func (e *EquilibriumResidual) Reset() { e.residual = 0 }
