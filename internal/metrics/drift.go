package metrics

import (
	"math"

	"github.com/san-kum/crnsim/internal/dynamo"
)

// TotalDrift tracks the largest deviation of the total concentration from its
// value at the first sample. Networks that conserve mass keep it near zero.
type TotalDrift struct {
	name     string
	initial  float64
	current  float64
	maxDrift float64
	samples  int
}

func NewTotalDrift() *TotalDrift {
	return &TotalDrift{name: "total_drift"}
}

func (d *TotalDrift) Name() string { return d.name }

func (d *TotalDrift) Observe(x dynamo.State, t float64) {
	total := x.Sum()
	if d.samples == 0 {
		d.initial = total
	}

	d.current = total
	d.samples++
	d.maxDrift = math.Max(d.maxDrift, math.Abs(total-d.initial))
}

func (d *TotalDrift) Value() float64 {
	return d.maxDrift
}

func (d *TotalDrift) Reset() {
	d.initial = 0
	d.current = 0
	d.maxDrift = 0
	d.samples = 0
}

// MinConcentration is the smallest species value seen. A negative value means
// the integrator overshot through zero.
type MinConcentration struct {
	name    string
	min     float64
	samples int
}

func NewMinConcentration() *MinConcentration {
	return &MinConcentration{name: "min_concentration"}
}

func (m *MinConcentration) Name() string { return m.name }

func (m *MinConcentration) Observe(x dynamo.State, t float64) {
	for _, v := range x {
		if m.samples == 0 || v < m.min {
			m.min = v
		}
		m.samples++
	}
}

func (m *MinConcentration) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.min
}

func (m *MinConcentration) Reset() {
	m.min = 0
	m.samples = 0
}
