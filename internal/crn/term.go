package crn

import (
	"math"
	"strconv"
	"strings"
)

// Species is the ordered list of declared species names. Position i is the
// vector index of species i in every state, term and matrix of a model.
type Species []string

// Index returns the position of name, or -1 when it is not declared.
func (s Species) Index(name string) int {
	for i, n := range s {
		if n == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is declared.
func (s Species) Contains(name string) bool { return s.Index(name) >= 0 }

func (s Species) validate() error {
	if len(s) == 0 {
		return parseErrorf("", "", "no species declared")
	}
	seen := make(map[string]struct{}, len(s))
	for _, name := range s {
		if name == "" || !isLetter(rune(name[0])) || strings.ContainsAny(name, "+<> \t\r\n") {
			return parseErrorf("", name, "species name is not an identifier")
		}
		if _, dup := seen[name]; dup {
			return parseErrorf("", name, "species declared twice")
		}
		seen[name] = struct{}{}
	}
	return nil
}

func isLetter(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

// ParseTerm splits a reactant/product token of the form <coefficient><name>,
// e.g. "2X", "X" or "2.89Y_0", into the species name and its stoichiometric
// coefficient. The name starts at the first ASCII letter; an empty prefix means
// a coefficient of 1.
func ParseTerm(token string, species Species) (string, float64, error) {
	i := strings.IndexFunc(token, isLetter)
	if i < 0 {
		return "", 0, parseErrorf("", token, "no species found in reactant/product")
	}

	name := token[i:]
	if !species.Contains(name) {
		return "", 0, parseErrorf("", token, "species %s was not declared", name)
	}

	prefix := token[:i]
	if prefix == "" {
		return name, 1, nil
	}

	coeff, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return "", 0, parseErrorf("", token, "malformed coefficient %q", prefix)
	}
	if coeff < 0 || math.IsInf(coeff, 0) || math.IsNaN(coeff) {
		return "", 0, parseErrorf("", token, "coefficient must be a non-negative finite number")
	}
	return name, coeff, nil
}
