// Package crn parses mass-action chemical reaction network specifications and
// builds the ODE system they describe.
//
// The package turns human-readable reactions into the matrices of the
// mass-action right-hand side:
//
//   - [ParseTerm]: "2.5Y" → ("Y", 2.5)
//   - [ParseReaction]: "2X + 3Y <-> Z" → forward and reverse [Term]
//   - [NameRates]: k1, k-1, k2, ... in declaration order
//   - [New]: stoichiometric matrix (gamma), reactant matrix and [Model.Derive]
//   - [ParseSpec], [LoadSpec], [FromJSON]: the JSON specification format
//
// # Ordering
//
// Species order fixes vector indices. Flattening the reactions' terms in
// declaration order, forward before reverse, yields the same order as the rate
// set: term j is driven by rate j. Both orders are carried in slices.
//
// # Example
//
//	m, err := crn.FromJSON("toy.json")
//	if err != nil {
//	    return err
//	}
//	sim := dynamo.New(m, integrators.NewRK45())
//	result, _ := sim.Run(ctx, m.X0(), cfg)
//
// # Thread Safety
//
// A [Model] is immutable once built; [Model.Derive] may be called from many
// goroutines. Changing rates or initial concentrations builds a new Model.
package crn
