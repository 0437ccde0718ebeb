package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/crnsim/internal/analysis"
	"github.com/san-kum/crnsim/internal/chart"
	"github.com/san-kum/crnsim/internal/dynamo"
	"github.com/san-kum/crnsim/internal/storage"
	"github.com/san-kum/crnsim/internal/viz"
)

func openStore() *storage.Store {
	return storage.New(appCfg.DataDir)
}

func loadRun(id string) (*storage.RunMetadata, []dynamo.State, []float64, error) {
	store := openStore()
	meta, err := store.Load(id)
	if err != nil {
		return nil, nil, nil, err
	}
	states, times, err := store.LoadStates(id)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(states) == 0 {
		return nil, nil, nil, fmt.Errorf("run %s has no samples", id)
	}
	return meta, states, times, nil
}

func speciesIndex(meta *storage.RunMetadata, name string, fallback int) (int, error) {
	if name == "" {
		if fallback >= len(meta.Species) {
			return 0, fmt.Errorf("run %s has only %d species", meta.ID, len(meta.Species))
		}
		return fallback, nil
	}
	for i, s := range meta.Species {
		if s == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown species %q (have %s)", name, strings.Join(meta.Species, ", "))
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := openStore().List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tINTEGRATOR\tSAMPLES\tERRORS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Integrator,
			run.Samples,
			len(run.Errors),
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, states, times, err := loadRun(args[0])
	if err != nil {
		return err
	}

	if !slices.Contains(viz.ThemeNames(), themeName) {
		return fmt.Errorf("unknown theme %q (available: %v)", themeName, viz.ThemeNames())
	}
	theme := viz.GetTheme(themeName)
	caption := fmt.Sprintf("%s  t = 0..%g", meta.Name, times[len(times)-1])
	fmt.Println(viz.PlotSpecies(meta.Species, states, appCfg.Panel.PlotWidth, appCfg.Panel.PlotHeight, theme, caption))
	fmt.Println(viz.Legend(meta.Species, theme))
	return nil
}

func chartRun(cmd *cobra.Command, args []string) error {
	meta, states, times, err := loadRun(args[0])
	if err != nil {
		return err
	}

	out := chartOut
	if out == "" {
		out = args[0] + ".png"
	}
	tr := chart.Trajectory{Title: meta.Name, Species: meta.Species, Times: times, States: states}
	if err := chart.RenderFile(out, tr, appCfg.Chart); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", out)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	meta, err := openStore().Load(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, nil, nil)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	meta, states, times, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, meta.Species, times, states)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, states, times, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, times, states)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, states, times, err := loadRun(args[0])
	if err != nil {
		return err
	}
	idx, err := speciesIndex(meta, speciesName, 0)
	if err != nil {
		return err
	}

	series := make([]float64, len(states))
	lo, hi := states[0][idx], states[0][idx]
	for i, s := range states {
		series[i] = s[idx]
		lo, hi = min(lo, s[idx]), max(hi, s[idx])
	}

	fmt.Printf("run: %s  species: %s\n", meta.ID, meta.Species[idx])
	fmt.Printf("  range:  [%.6g, %.6g]\n", lo, hi)
	fmt.Printf("  final:  %.6g\n", series[len(series)-1])

	// skip the first half, it is usually transient
	tail := series[len(series)/2:]
	sampleDt := meta.Dt
	if len(times) > 1 {
		sampleDt = times[1] - times[0]
	}
	if period, power, ok := analysis.DominantPeriod(tail, sampleDt); ok {
		fmt.Printf("  period: %.6g (power %.4g)\n", period, power)
	} else {
		fmt.Println("  period: none")
	}

	if ps := analysis.PowerSpectrum(tail); len(ps) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(ps[1:],
			asciigraph.Height(10),
			asciigraph.Width(appCfg.Panel.PlotWidth),
			asciigraph.Caption("power spectrum")))
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, states, _, err := loadRun(args[0])
	if err != nil {
		return err
	}
	xi, err := speciesIndex(meta, xSpecies, 0)
	if err != nil {
		return err
	}
	yi, err := speciesIndex(meta, ySpecies, 1)
	if err != nil {
		return err
	}

	portrait, err := analysis.PhasePortrait(states, xi, yi)
	if err != nil {
		return err
	}

	fmt.Printf("%s vs %s\n", meta.Species[yi], meta.Species[xi])
	fmt.Println(analysis.PhasePortraitToASCII(portrait, appCfg.Panel.PlotWidth, appCfg.Panel.PlotHeight+5))

	mean := 0.0
	for _, s := range states {
		mean += s[yi]
	}
	mean /= float64(len(states))

	crossings := analysis.Crossings(states, yi, mean, xi, yi)
	fmt.Printf("%s crosses its mean %.6g upward %d times\n", meta.Species[yi], mean, len(crossings))
	for _, c := range crossings[max(0, len(crossings)-5):] {
		fmt.Printf("  %s = %.6g\n", meta.Species[xi], c.X)
	}
	return nil
}
