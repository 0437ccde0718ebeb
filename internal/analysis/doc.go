// Package analysis inspects integrated CRN trajectories.
//
//   - [PowerSpectrum], [DominantPeriod]: oscillation detection on one species
//   - [PhasePortrait], [Crossings]: one species against another
//   - [BifurcationScan]: long-run species values across a range of one rate
//
// The ASCII renderers draw into a fixed-size rune canvas for terminal output.
package analysis
