package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/crnsim/internal/config"
	"github.com/san-kum/crnsim/internal/crn"
)

type controlKind int

const (
	rateControl controlKind = iota
	x0Control
)

// control is one adjustable input of the panel: a rate slider or an x0 field.
type control struct {
	kind     controlKind
	name     string
	value    float64
	min, max float64
	step     float64
	unit     string
}

// controlsFor lays out one slider per rate, in rate order, followed by one
// field per species.
func controlsFor(m *crn.Model, cfg *config.Config) []control {
	rates := m.Rates()
	out := make([]control, 0, rates.Len()+m.StateDim())

	for i, name := range rates.Names {
		s := cfg.SliderFor(name)
		out = append(out, control{
			kind:  rateControl,
			name:  name,
			value: rates.Values[i],
			min:   s.Min,
			max:   s.Max,
			step:  s.Step,
			unit:  m.RateUnit(name),
		})
	}

	for _, a := range m.InitialState() {
		out = append(out, control{
			kind:  x0Control,
			name:  a.Species,
			value: a.Value,
			min:   0,
			max:   math.Inf(1),
			step:  cfg.Panel.X0Step,
			unit:  "Mol",
		})
	}
	return out
}

// coarse is the increment of one arrow press. Sliders move by a hundredth of
// their range, x0 fields by their step.
func (c control) coarse() float64 {
	if c.kind == rateControl {
		return math.Max(c.step, (c.max-c.min)/100)
	}
	return c.step
}

// fine is the increment of a shifted arrow press.
func (c control) fine() float64 {
	if c.kind == rateControl {
		return c.step
	}
	return c.step / 10
}

func (c *control) set(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = math.Min(math.Max(v, c.min), c.max)
	if c.kind == rateControl && c.step > 0 {
		v = c.min + math.Round((v-c.min)/c.step)*c.step
		v = math.Min(v, c.max)
	}
	c.value = v
}

func (c *control) nudge(delta float64) {
	c.set(c.value + delta)
}

func (c control) label() string {
	if c.kind == rateControl {
		return "rate " + c.name
	}
	return c.name + " (" + c.unit + ")"
}

func (c control) readout() string {
	if c.kind == rateControl {
		return fmt.Sprintf("%.2e %s", c.value, c.unit)
	}
	return fmt.Sprintf("%.4g", c.value)
}

// bar draws the slider position. x0 fields have no upper bound and no bar.
func (c control) bar(width int) string {
	if c.kind != rateControl || c.max <= c.min {
		return ""
	}
	ratio := (c.value - c.min) / (c.max - c.min)
	ratio = math.Min(math.Max(ratio, 0), 1)
	filled := int(ratio * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]"
}

// apply builds the rate set and initial state described by controls on top
// of the network of m.
func apply(m *crn.Model, controls []control) (crn.RateSet, crn.InitialState) {
	rates := m.Rates()
	x0 := m.InitialState()
	for _, c := range controls {
		switch c.kind {
		case rateControl:
			if i := rates.Index(c.name); i >= 0 {
				rates.Values[i] = c.value
			}
		case x0Control:
			x0 = x0.With(c.name, c.value)
		}
	}
	return rates, x0
}
