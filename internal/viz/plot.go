package viz

import (
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/crnsim/internal/dynamo"
)

// downsample keeps at most n evenly spaced entries of values, always
// including the last one.
func downsample(values []float64, n int) []float64 {
	if n <= 1 || len(values) <= n {
		return values
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = values[i*(len(values)-1)/(n-1)]
	}
	return out
}

// PlotSpecies draws every species trajectory on one asciigraph chart.
func PlotSpecies(species []string, states []dynamo.State, width, height int, theme Theme, caption string) string {
	if len(states) < 2 || len(species) == 0 {
		return ""
	}

	series := make([][]float64, len(species))
	colors := make([]asciigraph.AnsiColor, len(species))
	for i := range species {
		col := make([]float64, len(states))
		for j, s := range states {
			col[j] = s[i]
		}
		series[i] = downsample(col, width)
		colors[i] = theme.SeriesColor(i)
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Precision(3),
		asciigraph.Caption(caption),
	)
}

// Legend pairs each species name with its plot color.
func Legend(species []string, theme Theme) string {
	out := ""
	for i, name := range species {
		if i > 0 {
			out += "  "
		}
		out += theme.SeriesColor(i).String() + "━━ " + asciigraph.Default.String() + name
	}
	return out
}
