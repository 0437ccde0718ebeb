package crn

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/crnsim/internal/dynamo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// InitialStateTolerance is the absolute tolerance on the sum of the initial
// relative concentrations.
const InitialStateTolerance = 1e-8

// Amount is the initial relative concentration of one species.
type Amount struct {
	Species string
	Value   float64
}

// InitialState is an ordered species → concentration mapping.
type InitialState []Amount

// Lookup returns the concentration recorded for name.
func (s InitialState) Lookup(name string) (float64, bool) {
	for _, a := range s {
		if a.Species == name {
			return a.Value, true
		}
	}
	return 0, false
}

// With returns a copy with the concentration of name replaced, or appended
// when name is not present yet.
func (s InitialState) With(name string, value float64) InitialState {
	c := append(InitialState(nil), s...)
	for i := range c {
		if c[i].Species == name {
			c[i].Value = value
			return c
		}
	}
	return append(c, Amount{Species: name, Value: value})
}

// Vector lays the concentrations out in species order. Species without an
// entry start at 0.
func (s InitialState) Vector(species Species) ([]float64, error) {
	v := make([]float64, len(species))
	seen := make([]bool, len(species))
	for _, a := range s {
		i := species.Index(a.Species)
		if i < 0 {
			return nil, fmt.Errorf("%w: species %q is not declared", ErrInvalidInitialState, a.Species)
		}
		if seen[i] {
			return nil, fmt.Errorf("%w: species %q listed twice", ErrInvalidInitialState, a.Species)
		}
		if a.Value < 0 || math.IsNaN(a.Value) || math.IsInf(a.Value, 0) {
			return nil, fmt.Errorf("%w: concentration of %s must be a non-negative finite number, got %g",
				ErrInvalidInitialState, a.Species, a.Value)
		}
		seen[i] = true
		v[i] = a.Value
	}
	return v, nil
}

type options struct {
	logger *zap.Logger
}

// Option configures parsing and model construction.
type Option func(*options)

// WithLogger makes parsing and construction emit debug records to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Model is an immutable mass-action CRN. It implements dynamo.System.
type Model struct {
	name      string
	species   Species
	initial   InitialState
	x0        []float64
	rates     RateSet
	reactions []Reaction
	terms     []Term

	// gamma is species × terms; reactants is terms × species (absolute values).
	gamma     *mat.Dense
	reactants *mat.Dense

	opts []Option
}

// New builds a model from parsed parts. Terms are flattened in reaction order,
// forward before reverse, and must line up one-to-one with rates.
func New(name string, species Species, x0 InitialState, rates RateSet, reactions []Reaction, opts ...Option) (*Model, error) {
	o := buildOptions(opts)

	if err := species.validate(); err != nil {
		return nil, err
	}

	x0Vec, err := x0.Vector(species)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, v := range x0Vec {
		sum += v
	}
	if math.Abs(sum-1.0) > InitialStateTolerance {
		return nil, fmt.Errorf("%w: relative concentrations do not sum to 1: %v (sum %.10g)",
			ErrInvalidInitialState, x0Vec, sum)
	}

	if len(rates.Names) != len(rates.Values) {
		return nil, fmt.Errorf("%w: %d rate names for %d rate values",
			ErrInternalConsistency, len(rates.Names), len(rates.Values))
	}
	for i, v := range rates.Values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s = %g", ErrInvalidRate, rates.Names[i], v)
		}
	}

	terms, err := flatten(species, rates, reactions)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, parseErrorf("", "", "network declares no reactions")
	}

	n, k := len(species), len(terms)
	reactants := mat.NewDense(k, n, nil)
	gamma := mat.NewDense(n, k, nil)
	for j, term := range terms {
		for s := 0; s < n; s++ {
			reactants.Set(j, s, math.Abs(term.Reactants[s]))
			gamma.Set(s, j, term.Reactants[s]+term.Products[s])
		}
	}

	m := &Model{
		name:      name,
		species:   append(Species(nil), species...),
		initial:   append(InitialState(nil), x0...),
		x0:        x0Vec,
		rates:     rates.Clone(),
		reactions: cloneReactions(reactions),
		terms:     terms,
		gamma:     gamma,
		reactants: reactants,
		opts:      opts,
	}

	if ce := o.logger.Check(zap.DebugLevel, "mass action model built"); ce != nil {
		ce.Write(
			zap.String("name", m.name),
			zap.Strings("species", m.species),
			zap.Float64s("x0", m.x0),
			zap.Strings("rate_names", m.rates.Names),
			zap.Float64s("rates", m.rates.Values),
			zap.Int("terms", k),
			zap.String("reactants_matrix", fmt.Sprintf("%v", mat.Formatted(reactants, mat.Squeeze()))),
			zap.String("gamma", fmt.Sprintf("%v", mat.Formatted(gamma, mat.Squeeze()))),
		)
	}

	return m, nil
}

// flatten lists every directional term in rate order and checks that term j
// carries the canonical name of rate j.
func flatten(species Species, rates RateSet, reactions []Reaction) ([]Term, error) {
	terms := make([]Term, 0, rates.Len())
	for i, r := range reactions {
		if len(r.Terms) == 0 || len(r.Terms) > 2 {
			return nil, fmt.Errorf("%w: reaction %q has %d terms", ErrInternalConsistency, r.Expr, len(r.Terms))
		}
		for t, term := range r.Terms {
			if len(term.Reactants) != len(species) || len(term.Products) != len(species) {
				return nil, fmt.Errorf("%w: reaction %q term %d has length %d/%d, want %d",
					ErrInternalConsistency, r.Expr, t, len(term.Reactants), len(term.Products), len(species))
			}
			j := len(terms)
			want := ForwardRateName(i + 1)
			if t == 1 {
				want = ReverseRateName(i + 1)
			}
			if j >= rates.Len() {
				return nil, fmt.Errorf("%w: term %d of %q has no rate (%d rates)",
					ErrInternalConsistency, t, r.Expr, rates.Len())
			}
			if rates.Names[j] != want {
				return nil, fmt.Errorf("%w: term %d of %q expects rate %s, found %s",
					ErrInternalConsistency, t, r.Expr, want, rates.Names[j])
			}
			terms = append(terms, term)
		}
	}
	if len(terms) != rates.Len() {
		return nil, fmt.Errorf("%w: %d directional terms for %d rates",
			ErrInternalConsistency, len(terms), rates.Len())
	}
	return terms, nil
}

func cloneReactions(rs []Reaction) []Reaction {
	out := make([]Reaction, len(rs))
	for i, r := range rs {
		out[i] = Reaction{Expr: r.Expr, Terms: make([]Term, len(r.Terms))}
		for j, t := range r.Terms {
			out[i].Terms[j] = Term{
				Reactants: append([]float64(nil), t.Reactants...),
				Products:  append([]float64(nil), t.Products...),
			}
		}
	}
	return out
}

// Derive evaluates the mass-action right-hand side. The rate law of term j is
// rates[j] · Π_s x[s]^|reactants[j,s]|, so non-integer coefficients give
// fractional powers. Derive does not mutate the model and is safe for
// concurrent use.
func (m *Model) Derive(x dynamo.State, t float64) dynamo.State {
	k := len(m.terms)
	speed := make([]float64, k)
	for j := 0; j < k; j++ {
		v := m.rates.Values[j]
		for s, p := range m.reactants.RawRowView(j) {
			if p != 0 {
				v *= math.Pow(x[s], p)
			}
		}
		speed[j] = v
	}

	dx := mat.NewVecDense(len(m.species), nil)
	dx.MulVec(m.gamma, mat.NewVecDense(k, speed))
	return dynamo.State(dx.RawVector().Data)
}

// Derivative returns Derive as a plain function for external ODE solvers.
func (m *Model) Derivative() func(x []float64, t float64) []float64 {
	return func(x []float64, t float64) []float64 {
		return m.Derive(x, t)
	}
}

// StateDim returns the number of species.
func (m *Model) StateDim() int { return len(m.species) }

func (m *Model) Name() string { return m.name }

func (m *Model) Species() Species { return append(Species(nil), m.species...) }

func (m *Model) InitialState() InitialState { return append(InitialState(nil), m.initial...) }

// X0 returns the initial state in species order.
func (m *Model) X0() dynamo.State { return append(dynamo.State(nil), m.x0...) }

func (m *Model) Rates() RateSet { return m.rates.Clone() }

func (m *Model) Reactions() []Reaction { return cloneReactions(m.reactions) }

// Terms returns the flattened directional terms, in rate order.
func (m *Model) Terms() []Term {
	return cloneReactions([]Reaction{{Terms: m.terms}})[0].Terms
}

// Gamma returns a copy of the stoichiometric matrix (species × terms).
func (m *Model) Gamma() *mat.Dense { return mat.DenseCopyOf(m.gamma) }

// ReactantsMatrix returns a copy of the absolute reactant matrix (terms × species).
func (m *Model) ReactantsMatrix() *mat.Dense { return mat.DenseCopyOf(m.reactants) }

// RatesFor returns the forward (and reverse) rate of reaction i, 0-based.
func (m *Model) RatesFor(i int) []float64 {
	var out []float64
	for _, name := range []string{ForwardRateName(i + 1), ReverseRateName(i + 1)} {
		if v, ok := m.rates.Lookup(name); ok {
			out = append(out, v)
		}
	}
	return out
}

// Order returns the kinetic order of the named rate's term: the sum of its
// absolute reactant coefficients.
func (m *Model) Order(rate string) (float64, bool) {
	j := m.rates.Index(rate)
	if j < 0 {
		return 0, false
	}
	order := 0.0
	for _, p := range m.reactants.RawRowView(j) {
		order += p
	}
	return order, true
}

// RateUnit returns the unit of a mass-action constant of the given rate,
// M^(1-order)·s^-1, or "" for an unknown rate.
func (m *Model) RateUnit(rate string) string {
	order, ok := m.Order(rate)
	if !ok {
		return ""
	}
	switch exp := 1 - order; exp {
	case 0:
		return "s^-1"
	case 1:
		return "M s^-1"
	default:
		return "M^" + strconv.FormatFloat(exp, 'g', -1, 64) + " s^-1"
	}
}

// WithRates returns a new model with the same network and the given rates.
func (m *Model) WithRates(rates RateSet) (*Model, error) {
	return New(m.name, m.species, m.initial, rates, m.reactions, m.opts...)
}

// WithInitialState returns a new model with the same network and the given x0.
func (m *Model) WithInitialState(x0 InitialState) (*Model, error) {
	return New(m.name, m.species, x0, m.rates, m.reactions, m.opts...)
}

// With returns a new model with both rates and x0 replaced.
func (m *Model) With(rates RateSet, x0 InitialState) (*Model, error) {
	return New(m.name, m.species, x0, rates, m.reactions, m.opts...)
}

// String summarises the initial concentrations and the numbered reactions
// with their rates.
func (m *Model) String() string {
	var sb strings.Builder
	sb.WriteString("initial relative concentrations:\n")
	for _, a := range m.initial {
		fmt.Fprintf(&sb, "%s:%s ", a.Species, strconv.FormatFloat(a.Value, 'g', -1, 64))
	}
	sb.WriteString("\n\nreactions:\n")
	for i, r := range m.reactions {
		rates := m.RatesFor(i)
		parts := make([]string, len(rates))
		for j, v := range rates {
			parts[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		fmt.Fprintf(&sb, "%d. %s [%s]", i+1, r.Expr, strings.Join(parts, ", "))
		if i+1 != len(m.reactions) {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
