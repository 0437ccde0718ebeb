// Package viz renders CRN trajectories in the terminal and hosts the
// interactive panel.
//
// The panel is a Bubble Tea program with one slider per rate constant and one
// field per initial concentration. Each change builds a new crn.Model and
// integrates it off the UI goroutine; only the newest integration is shown.
//
// # Key Bindings
//
//	j/k     - Select control
//	h/l     - Adjust by a coarse step
//	H/L     - Adjust by the slider step
//	Enter   - Type a value
//	R       - Reset to the spec values
//	P       - Toggle phase view of the first two species
//	T       - Cycle color themes
//	Q       - Quit
package viz
