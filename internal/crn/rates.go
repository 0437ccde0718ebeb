package crn

import "fmt"

// ReactionDecl is a reaction as declared in a specification: its text and the
// forward (and optionally reverse) rate constants.
type ReactionDecl struct {
	Expr  string
	Rates []float64
}

// RateSet is an ordered mapping from canonical rate name to rate constant.
// Position j holds the rate of directional term j of the flattened reaction list.
type RateSet struct {
	Names  []string
	Values []float64
}

// ForwardRateName returns the name of the forward rate of reaction i (1-based).
func ForwardRateName(i int) string { return fmt.Sprintf("k%d", i) }

// ReverseRateName returns the name of the reverse rate of reaction i (1-based).
func ReverseRateName(i int) string { return fmt.Sprintf("k-%d", i) }

// NameRates assigns k{i} to the first declared rate of reaction i and k-{i} to
// the second, in declaration order.
func NameRates(decls []ReactionDecl) (RateSet, error) {
	var rs RateSet
	for i, d := range decls {
		if len(d.Rates) == 0 || len(d.Rates) > 2 {
			return RateSet{}, parseErrorf(d.Expr, "", "expected 1 or 2 rates, got %d", len(d.Rates))
		}
		for j, v := range d.Rates {
			name := ForwardRateName(i + 1)
			if j == 1 {
				name = ReverseRateName(i + 1)
			}
			rs.Names = append(rs.Names, name)
			rs.Values = append(rs.Values, v)
		}
	}
	return rs, nil
}

// Len returns the number of rates.
func (r RateSet) Len() int { return len(r.Names) }

// Index returns the position of name, or -1.
func (r RateSet) Index(name string) int {
	for i, n := range r.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Lookup returns the value of the named rate.
func (r RateSet) Lookup(name string) (float64, bool) {
	i := r.Index(name)
	if i < 0 {
		return 0, false
	}
	return r.Values[i], true
}

// Clone returns a deep copy.
func (r RateSet) Clone() RateSet {
	return RateSet{
		Names:  append([]string(nil), r.Names...),
		Values: append([]float64(nil), r.Values...),
	}
}

// With returns a copy with the named rate replaced.
func (r RateSet) With(name string, value float64) (RateSet, error) {
	i := r.Index(name)
	if i < 0 {
		return RateSet{}, fmt.Errorf("%w: unknown rate %q", ErrInvalidRate, name)
	}
	c := r.Clone()
	c.Values[i] = value
	return c, nil
}
