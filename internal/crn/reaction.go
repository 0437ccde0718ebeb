package crn

import (
	"errors"
	"strings"
	"unicode"
)

// Reaction separators.
const (
	Irreversible  = "->"
	Reversible    = "<->"
	TermSeparator = "+"
)

// Term is one direction of a reaction. Reactants holds the consumed amounts as
// non-positive entries and Products the produced amounts, both indexed by species.
type Term struct {
	Reactants []float64
	Products  []float64
}

// Net returns the change vector of the term: Reactants + Products.
func (t Term) Net() []float64 {
	net := make([]float64, len(t.Reactants))
	for i := range net {
		net[i] = t.Reactants[i] + t.Products[i]
	}
	return net
}

// Mirror returns the reverse direction: (-Products, -Reactants).
func (t Term) Mirror() Term {
	return Term{Reactants: negate(t.Products), Products: negate(t.Reactants)}
}

func negate(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -1 * x
	}
	return out
}

// Reaction is a declared reaction: its literal text and its directional terms
// (one for "->", forward then reverse for "<->").
type Reaction struct {
	Expr  string
	Terms []Term
}

// Reversible reports whether the reaction has a reverse term.
func (r Reaction) Reversible() bool { return len(r.Terms) == 2 }

// ParseReaction turns a reaction string such as "2X + 3Y <-> Z" into its
// directional terms. Either side may be empty ("X -> ").
//
// A species repeated on one side keeps the coefficient of its last mention:
// "X + X -> Y" consumes one X, not two.
func ParseReaction(expr string, species Species) ([]Term, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, expr)

	separator := Irreversible
	if strings.Contains(clean, Reversible) {
		separator = Reversible
	}

	sides := strings.Split(clean, separator)
	if len(sides) != 2 {
		return nil, parseErrorf(expr, "", "expected exactly one %q or %q separator", Irreversible, Reversible)
	}

	reactants, err := parseSide(expr, sides[0], species, -1)
	if err != nil {
		return nil, err
	}
	products, err := parseSide(expr, sides[1], species, 1)
	if err != nil {
		return nil, err
	}

	forward := Term{Reactants: reactants, Products: products}
	if separator == Reversible {
		return []Term{forward, forward.Mirror()}, nil
	}
	return []Term{forward}, nil
}

func parseSide(expr, side string, species Species, sign float64) ([]float64, error) {
	v := make([]float64, len(species))
	if side == "" {
		return v, nil
	}
	if strings.ContainsAny(side, "<>") {
		return nil, parseErrorf(expr, side, "more than one reaction separator")
	}

	for _, token := range strings.Split(side, TermSeparator) {
		name, coeff, err := ParseTerm(token, species)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Expr = expr
			}
			return nil, err
		}
		v[species.Index(name)] = sign * coeff
	}
	return v, nil
}
