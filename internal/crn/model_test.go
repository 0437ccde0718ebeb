package crn_test

import (
	"math"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/crnsim/internal/crn"
	"github.com/san-kum/crnsim/internal/dynamo"
)

const toySpec = `{
    "type": "mass action",
    "name": "toy",
    "species": {"X": "0.5", "Y": "0.25", "Z": "0.25"},
    "reactions": {
        "2X + 3Y <-> Z": ["0.0001", "0.000008"],
        "2X -> Y + Z": ["0.003"],
        "X -> ": ["0.229"]
    }
}`

func build(doc string, opts ...crn.Option) (*crn.Model, error) {
	spec, err := crn.ParseSpec([]byte(doc))
	if err != nil {
		return nil, err
	}
	return spec.Build(opts...)
}

func column(m *mat.Dense, j int) []float64 {
	return mat.Col(nil, j, m)
}

var _ = Describe("Model", func() {
	var toy *crn.Model

	BeforeEach(func() {
		var err error
		toy, err = build(toySpec)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("construction", func() {
		It("mirrors the forward term of a reversible reaction", func() {
			terms := toy.Reactions()[0].Terms
			Expect(terms).To(HaveLen(2))

			fwd, rev := terms[0], terms[1]
			for s := range fwd.Reactants {
				Expect(rev.Reactants[s]).To(Equal(-fwd.Products[s]))
				Expect(rev.Products[s]).To(Equal(-fwd.Reactants[s]))
			}
		})

		It("pairs every directional term with one rate", func() {
			Expect(toy.Terms()).To(HaveLen(toy.Rates().Len()))
			Expect(toy.Rates().Names).To(Equal([]string{"k1", "k-1", "k2", "k3"}))
			Expect(toy.Rates().Values).To(Equal([]float64{1e-4, 8e-6, 3e-3, 0.229}))
		})

		It("builds gamma and the reactant matrix", func() {
			gamma := toy.Gamma()
			r, c := gamma.Dims()
			Expect([]int{r, c}).To(Equal([]int{3, 4}))
			Expect(column(gamma, 0)).To(Equal([]float64{-2, -3, 1}))
			Expect(column(gamma, 1)).To(Equal([]float64{2, 3, -1}))
			Expect(column(gamma, 2)).To(Equal([]float64{-2, 1, 1}))
			Expect(column(gamma, 3)).To(Equal([]float64{-1, 0, 0}))

			reactants := toy.ReactantsMatrix()
			r, c = reactants.Dims()
			Expect([]int{r, c}).To(Equal([]int{4, 3}))
			Expect(mat.Row(nil, 0, reactants)).To(Equal([]float64{2, 3, 0}))
			Expect(mat.Row(nil, 1, reactants)).To(Equal([]float64{0, 0, 1}))
		})

		It("keeps a degradation reaction with an empty product side", func() {
			terms := toy.Reactions()[2].Terms
			Expect(terms).To(HaveLen(1))
			Expect(terms[0].Reactants).To(Equal([]float64{-1, 0, 0}))
			Expect(terms[0].Products).To(Equal([]float64{0, 0, 0}))
		})

		It("returns copies of its matrices", func() {
			g := toy.Gamma()
			g.Set(0, 0, 42)
			Expect(toy.Gamma().At(0, 0)).To(Equal(-2.0))
		})
	})

	DescribeTable("initial state validation",
		func(x, y float64, ok bool) {
			x0 := crn.InitialState{{Species: "X", Value: x}, {Species: "Y", Value: y}}
			_, err := toy.WithInitialState(append(x0, crn.Amount{Species: "Z", Value: 0}))
			if ok {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(MatchError(crn.ErrInvalidInitialState))
			}
		},
		Entry("exact", 0.5, 0.5, true),
		Entry("within tolerance", 0.5, 0.499999995, true),
		Entry("short", 0.5, 0.4, false),
		Entry("over", 0.7, 0.4, false),
		Entry("negative", 1.5, -0.5, false),
	)

	It("rejects x0 entries for undeclared species", func() {
		_, err := toy.WithInitialState(crn.InitialState{{Species: "W", Value: 1}})
		Expect(err).To(MatchError(crn.ErrInvalidInitialState))
	})

	DescribeTable("terms that do not line up with rates",
		func(expr string, termSpecies crn.Species, names []string) {
			species := crn.Species{"X", "Y", "Z"}
			terms, err := crn.ParseReaction(expr, termSpecies)
			Expect(err).NotTo(HaveOccurred())

			x0 := crn.InitialState{{Species: "X", Value: 1}, {Species: "Y", Value: 0}, {Species: "Z", Value: 0}}
			rates := crn.RateSet{Names: names, Values: make([]float64, len(names))}
			reactions := []crn.Reaction{{Expr: expr, Terms: terms}}

			_, err = crn.New("mismatch", species, x0, rates, reactions)
			Expect(err).To(MatchError(crn.ErrInternalConsistency))
		},
		Entry("irreversible with a reverse rate", "X -> Y", crn.Species{"X", "Y", "Z"}, []string{"k1", "k-1"}),
		Entry("reversible with only a forward rate", "X <-> Y", crn.Species{"X", "Y", "Z"}, []string{"k1"}),
		Entry("rates out of order", "X <-> Y", crn.Species{"X", "Y", "Z"}, []string{"k-1", "k1"}),
		Entry("term vector of the wrong length", "X -> Y", crn.Species{"X", "Y"}, []string{"k1"}),
	)

	Describe("Derive", func() {
		It("follows the mass-action law", func() {
			x := dynamo.State{0.5, 0.25, 0.25}
			v1 := 1e-4 * math.Pow(0.5, 2) * math.Pow(0.25, 3)
			v2 := 8e-6 * 0.25
			v3 := 3e-3 * math.Pow(0.5, 2)
			v4 := 0.229 * 0.5

			dx := toy.Derive(x, 0)
			Expect(dx).To(HaveLen(3))
			Expect(dx[0]).To(BeNumerically("~", -2*v1+2*v2-2*v3-v4, 1e-15))
			Expect(dx[1]).To(BeNumerically("~", -3*v1+3*v2+v3, 1e-15))
			Expect(dx[2]).To(BeNumerically("~", v1-v2+v3, 1e-15))
		})

		It("uses fractional powers for non-integer coefficients", func() {
			m, err := build(`{"type": "mass action", "species": {"A": "1", "B": "0"},
				"reactions": {"0.5A -> B": ["2"]}}`)
			Expect(err).NotTo(HaveOccurred())

			dx := m.Derive(dynamo.State{0.25, 0.75}, 0)
			Expect(dx[0]).To(BeNumerically("~", -0.5, 1e-15))
			Expect(dx[1]).To(BeNumerically("~", 1.0, 1e-15))
		})

		It("does not touch its input", func() {
			x := dynamo.State{0.5, 0.25, 0.25}
			toy.Derive(x, 0)
			Expect(x).To(Equal(dynamo.State{0.5, 0.25, 0.25}))
		})

		It("is safe for concurrent use", func() {
			x := toy.X0()
			want := toy.Derive(x, 0)
			f := toy.Derivative()

			var wg sync.WaitGroup
			results := make([][]float64, 16)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for n := 0; n < 100; n++ {
						results[i] = f(x, float64(n))
					}
				}(i)
			}
			wg.Wait()

			for _, r := range results {
				Expect(r).To(Equal([]float64(want)))
			}
		})
	})

	Describe("rates", func() {
		It("returns new models for new rates", func() {
			rates, err := toy.Rates().With("k2", 0.01)
			Expect(err).NotTo(HaveOccurred())

			m, err := toy.WithRates(rates)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.RatesFor(1)).To(Equal([]float64{0.01}))
			Expect(toy.RatesFor(1)).To(Equal([]float64{0.003}))
		})

		It("lists forward and reverse rates per reaction", func() {
			Expect(toy.RatesFor(0)).To(Equal([]float64{1e-4, 8e-6}))
			Expect(toy.RatesFor(2)).To(Equal([]float64{0.229}))
			Expect(toy.RatesFor(3)).To(BeEmpty())
		})

		It("rejects unknown and negative rates", func() {
			_, err := toy.Rates().With("k-2", 1)
			Expect(err).To(MatchError(crn.ErrInvalidRate))

			rates, err := toy.Rates().With("k1", -1)
			Expect(err).NotTo(HaveOccurred())
			_, err = toy.WithRates(rates)
			Expect(err).To(MatchError(crn.ErrInvalidRate))
		})

		It("accepts a zero rate", func() {
			rates, _ := toy.Rates().With("k3", 0)
			_, err := toy.WithRates(rates)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("units",
			func(rate, unit string) {
				Expect(toy.RateUnit(rate)).To(Equal(unit))
			},
			Entry("fifth order", "k1", "M^-4 s^-1"),
			Entry("first order reverse", "k-1", "s^-1"),
			Entry("second order", "k2", "M^-1 s^-1"),
			Entry("first order", "k3", "s^-1"),
			Entry("unknown", "k9", ""),
		)

		It("gives zero order rates a concentration unit", func() {
			m, err := build(`{"type": "mass action", "species": {"X": 1},
				"reactions": {" -> X": [0.1]}}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.RateUnit("k1")).To(Equal("M s^-1"))
		})
	})

	It("summarises itself", func() {
		s := toy.String()
		Expect(s).To(HavePrefix("initial relative concentrations:\nX:0.5 Y:0.25 Z:0.25 \n"))
		Expect(s).To(ContainSubstring("1. 2X + 3Y <-> Z [0.0001, 8e-06]"))
		Expect(s).To(ContainSubstring("2. 2X -> Y + Z [0.003]"))
		Expect(s).To(HaveSuffix("3. X ->  [0.229]"))
	})

	It("logs construction at debug level", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		_, err := build(toySpec, crn.WithLogger(zap.New(core)))
		Expect(err).NotTo(HaveOccurred())

		Expect(logs.FilterMessage("mass action model built").Len()).To(Equal(1))
		Expect(logs.FilterMessage("reaction term").Len()).To(Equal(4))
	})
})

var _ = Describe("Spec", func() {
	It("keeps the document order of species and reactions", func() {
		spec, err := crn.ParseSpec([]byte(`{
			"type": "mass action",
			"species": {"Z": "0.2", "A": "0.3", "M": "0.5"},
			"reactions": {"M -> A": ["1"], "A <-> Z": ["2", "3"], "Z -> M": ["4"]}
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(spec.Species).To(Equal(crn.Species{"Z", "A", "M"}))

		m, err := spec.Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(m.X0()).To(Equal(dynamo.State{0.2, 0.3, 0.5}))
		Expect(m.Rates().Names).To(Equal([]string{"k1", "k2", "k-2", "k3"}))
		Expect(m.Rates().Values).To(Equal([]float64{1, 2, 3, 4}))
	})

	It("overwrites repeated species with the last coefficient", func() {
		m, err := build(`{"type": "mass action", "species": {"X": "1", "Y": "0"},
			"reactions": {"X + 2X -> Y": ["1"]}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Terms()[0].Reactants).To(Equal([]float64{-2, 0}))
	})

	It("accepts bare JSON numbers", func() {
		m, err := build(`{"type": "mass action", "species": {"X": 0.5, "Y": 0.5},
			"reactions": {"X -> Y": [1e-3]}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Rates().Values).To(Equal([]float64{1e-3}))
	})

	DescribeTable("type field",
		func(doc string, target error) {
			_, err := crn.ParseSpec([]byte(doc))
			Expect(err).To(MatchError(target))
		},
		Entry("missing", `{"species": {}, "reactions": {}}`, crn.ErrSpecificationType),
		Entry("unknown", `{"type": "gillespie"}`, crn.ErrSpecificationType),
		Entry("stochastic", `{"type": "stochastic"}`, crn.ErrNotImplemented),
		Entry("not a string", `{"type": 3}`, crn.ErrSpecificationType),
	)

	DescribeTable("malformed documents",
		func(doc string, target error) {
			_, err := build(doc)
			Expect(err).To(MatchError(target))
		},
		Entry("invalid JSON", `{"type": `, crn.ErrParse),
		Entry("not an object", `[1, 2]`, crn.ErrParse),
		Entry("undeclared species", `{"type": "mass action", "species": {"X": "0.5", "Y": "0.5"},
			"reactions": {"X -> W": ["1"]}}`, crn.ErrParse),
		Entry("rate not a number", `{"type": "mass action", "species": {"X": "1"},
			"reactions": {"X -> ": ["fast"]}}`, crn.ErrParse),
		Entry("rates not a list", `{"type": "mass action", "species": {"X": "1"},
			"reactions": {"X -> ": "1"}}`, crn.ErrParse),
		Entry("too few rates", `{"type": "mass action", "species": {"X": "0.5", "Y": "0.5"},
			"reactions": {"X <-> Y": ["1"]}}`, crn.ErrParse),
		Entry("too many rates", `{"type": "mass action", "species": {"X": "0.5", "Y": "0.5"},
			"reactions": {"X -> Y": ["1", "2"]}}`, crn.ErrParse),
		Entry("no reactions", `{"type": "mass action", "species": {"X": "1"}, "reactions": {}}`, crn.ErrParse),
		Entry("no species", `{"type": "mass action", "species": {}, "reactions": {"-> ": ["1"]}}`, crn.ErrParse),
		Entry("bad sum", `{"type": "mass action", "species": {"X": "0.9"},
			"reactions": {"X -> ": ["1"]}}`, crn.ErrInvalidInitialState),
	)

	It("names a spec after its file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "oscillator.json")
		Expect(os.WriteFile(path, []byte(`{"type": "mass action", "species": {"X": "1"},
			"reactions": {"X -> ": ["1"]}}`), 0644)).To(Succeed())

		m, err := crn.FromJSON(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Name()).To(Equal("oscillator"))
	})

	It("reports the file of a failing spec", func() {
		path := filepath.Join(GinkgoT().TempDir(), "broken.json")
		Expect(os.WriteFile(path, []byte(`{"type": "mass action", "species": {"X": "1"},
			"reactions": {"X -> Q": ["1"]}}`), 0644)).To(Succeed())

		_, err := crn.FromJSON(path)
		Expect(err).To(MatchError(crn.ErrParse))
		Expect(err.Error()).To(ContainSubstring("broken.json"))
	})
})
