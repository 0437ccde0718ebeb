// Package chart renders species trajectories as PNG line charts.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/san-kum/crnsim/internal/config"
	"github.com/san-kum/crnsim/internal/dynamo"
)

// Trajectory is one stored or freshly integrated run.
type Trajectory struct {
	Title   string
	Species []string
	Times   []float64
	States  []dynamo.State
}

func bounds(vals ...[]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, vs := range vals {
		for _, v := range vs {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 0) {
		return 0, 1
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

// Render draws one line per species, relative concentration against time.
func Render(w io.Writer, tr Trajectory, cfg config.ChartConfig) error {
	if len(tr.States) < 2 {
		return fmt.Errorf("chart: need at least two samples, got %d", len(tr.States))
	}

	series := make([]chart.Series, 0, len(tr.Species))
	ys := make([][]float64, 0, len(tr.Species))
	for i, name := range tr.Species {
		y := make([]float64, len(tr.States))
		for j, s := range tr.States {
			y[j] = s[i]
		}
		ys = append(ys, y)

		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: tr.Times,
			YValues: y,
			Style:   chart.Style{StrokeColor: chart.GetDefaultColor(i), StrokeWidth: 2.0},
		})
	}

	xMin, xMax := bounds(tr.Times)
	yMin, yMax := bounds(ys...)
	width, height := cfg.Pixels()

	graph := chart.Chart{
		Title:  tr.Title,
		Width:  width,
		Height: height,
		DPI:    cfg.DPI,
		XAxis: chart.XAxis{
			Name:  "time",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: chart.YAxis{
			Name:  "relative concentration",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// RenderFile writes the chart to path.
func RenderFile(path string, tr Trajectory, cfg config.ChartConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Render(f, tr, cfg); err != nil {
		return err
	}
	return f.Close()
}
