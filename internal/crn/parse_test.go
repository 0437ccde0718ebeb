package crn

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTerm(t *testing.T) {
	species := Species{"X", "Y", "Y_0"}

	tests := []struct {
		token   string
		name    string
		coeff   float64
		wantErr bool
	}{
		{"X", "X", 1, false},
		{"2.5Y", "Y", 2.5, false},
		{"2.89Y_0", "Y_0", 2.89, false},
		{"10X", "X", 10, false},
		{"0X", "X", 0, false},
		{"W", "", 0, true},
		{"3", "", 0, true},
		{"", "", 0, true},
		{"-1X", "", 0, true},
		{"2..5X", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			name, coeff, err := ParseTerm(tt.token, species)
			if tt.wantErr {
				if !errors.Is(err, ErrParse) {
					t.Fatalf("expected ErrParse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if name != tt.name || coeff != tt.coeff {
				t.Errorf("got (%s, %g), want (%s, %g)", name, coeff, tt.name, tt.coeff)
			}
		})
	}
}

func TestParseReaction(t *testing.T) {
	species := Species{"X", "Y", "Z"}

	tests := []struct {
		expr  string
		terms []Term
	}{
		{"X -> Y", []Term{{Reactants: []float64{-1, 0, 0}, Products: []float64{0, 1, 0}}}},
		{"2X+3Y<->Z", []Term{
			{Reactants: []float64{-2, -3, 0}, Products: []float64{0, 0, 1}},
			{Reactants: []float64{0, 0, -1}, Products: []float64{2, 3, 0}},
		}},
		{"X -> ", []Term{{Reactants: []float64{-1, 0, 0}, Products: []float64{0, 0, 0}}}},
		{" -> Z", []Term{{Reactants: []float64{0, 0, 0}, Products: []float64{0, 0, 1}}}},
		{"X + Y -> 2X", []Term{{Reactants: []float64{-1, -1, 0}, Products: []float64{2, 0, 0}}}},
		{"X + X -> Y", []Term{{Reactants: []float64{-1, 0, 0}, Products: []float64{0, 1, 0}}}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			terms, err := ParseReaction(tt.expr, species)
			if err != nil {
				t.Fatal(err)
			}
			if len(terms) != len(tt.terms) {
				t.Fatalf("expected %d terms, got %d", len(tt.terms), len(terms))
			}
			for i := range terms {
				if !reflect.DeepEqual(terms[i].Net(), tt.terms[i].Net()) {
					t.Errorf("term %d: got net %v, want %v", i, terms[i].Net(), tt.terms[i].Net())
				}
				for s := range species {
					if terms[i].Reactants[s] != tt.terms[i].Reactants[s] || terms[i].Products[s] != tt.terms[i].Products[s] {
						t.Errorf("term %d: got %+v, want %+v", i, terms[i], tt.terms[i])
						break
					}
				}
			}
		})
	}
}

func TestParseReactionErrors(t *testing.T) {
	species := Species{"X", "Y"}

	for _, expr := range []string{
		"X -> W",
		"X Y",
		"X -> Y -> X",
		"X <-> Y <-> X",
		"X + -> Y",
		"X => Y",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseReaction(expr, species)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Expr != expr {
				t.Errorf("expected ParseError naming %q, got %v", expr, err)
			}
		})
	}
}

func TestNameRates(t *testing.T) {
	rates, err := NameRates([]ReactionDecl{
		{Expr: "A <-> B", Rates: []float64{1, 2}},
		{Expr: "B -> C", Rates: []float64{3}},
		{Expr: "C <-> A", Rates: []float64{4, 5}},
	})
	if err != nil {
		t.Fatal(err)
	}

	wantNames := []string{"k1", "k-1", "k2", "k3", "k-3"}
	if !reflect.DeepEqual(rates.Names, wantNames) {
		t.Errorf("names: got %v, want %v", rates.Names, wantNames)
	}
	if !reflect.DeepEqual(rates.Values, []float64{1, 2, 3, 4, 5}) {
		t.Errorf("values: got %v", rates.Values)
	}
	if v, ok := rates.Lookup("k-3"); !ok || v != 5 {
		t.Errorf("Lookup(k-3) = %g, %v", v, ok)
	}

	for _, n := range []int{0, 3} {
		_, err := NameRates([]ReactionDecl{{Expr: "A -> B", Rates: make([]float64, n)}})
		if !errors.Is(err, ErrParse) {
			t.Errorf("%d rates: expected ErrParse, got %v", n, err)
		}
	}
}

func TestRateSetWithCopies(t *testing.T) {
	r := RateSet{Names: []string{"k1"}, Values: []float64{1}}
	c, err := r.With("k1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if r.Values[0] != 1 || c.Values[0] != 2 {
		t.Errorf("With mutated the original: %v / %v", r.Values, c.Values)
	}
}

func TestSpeciesValidate(t *testing.T) {
	tests := []struct {
		species Species
		ok      bool
	}{
		{Species{"X", "Y_0", "ATP"}, true},
		{Species{}, false},
		{Species{"X", "X"}, false},
		{Species{"2X"}, false},
		{Species{"A+B"}, false},
		{Species{""}, false},
	}
	for _, tt := range tests {
		err := tt.species.validate()
		if (err == nil) != tt.ok {
			t.Errorf("validate(%v) = %v, want ok=%v", tt.species, err, tt.ok)
		}
	}
}

func TestInitialStateWith(t *testing.T) {
	s := InitialState{{Species: "X", Value: 1}}
	u := s.With("X", 0.5).With("Y", 0.5)

	if v, _ := s.Lookup("X"); v != 1 {
		t.Errorf("original changed: %v", s)
	}
	v, err := u.Vector(Species{"Y", "X"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, []float64{0.5, 0.5}) {
		t.Errorf("got %v", v)
	}
	if _, err := (InitialState{{Species: "X", Value: 1}, {Species: "X", Value: 0}}).Vector(Species{"X"}); !errors.Is(err, ErrInvalidInitialState) {
		t.Errorf("expected duplicate entry error, got %v", err)
	}
}

func TestParseErrorMessage(t *testing.T) {
	err := parseErrorf("X -> W", "W", "species %s was not declared", "W")
	want := `crn: parse "X -> W": species W was not declared (token "W")`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
