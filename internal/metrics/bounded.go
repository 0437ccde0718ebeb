package metrics

import (
	"math"

	"github.com/san-kum/crnsim/internal/dynamo"
)

// Boundedness is the fraction of samples whose concentrations are all finite
// and inside [floor, ceiling]. A small negative floor tolerates integration
// error around zero; the ceiling catches runaway growth from inflow reactions.
type Boundedness struct {
	floor, ceiling float64
	inside, total  int
}

func NewBoundedness(floor, ceiling float64) *Boundedness {
	return &Boundedness{floor: floor, ceiling: ceiling}
}

func (b *Boundedness) Name() string { return "bounded" }

func (b *Boundedness) Observe(x dynamo.State, t float64) {
	b.total++
	if b.contains(x) {
		b.inside++
	}
}

func (b *Boundedness) contains(x dynamo.State) bool {
	for _, v := range x {
		// NaN fails both comparisons
		if !(v >= b.floor && v <= b.ceiling) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Value is 1 for an empty run.
func (b *Boundedness) Value() float64 {
	if b.total == 0 {
		return 1
	}
	return float64(b.inside) / float64(b.total)
}

func (b *Boundedness) Reset() { b.inside, b.total = 0, 0 }
