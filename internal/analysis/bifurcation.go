package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/crnsim/internal/crn"
	"github.com/san-kum/crnsim/internal/experiment"
)

// BifurcationPoint holds the distinct long-run values of one species for a
// given rate value. A single value means a steady state; several mean the
// network oscillates.
type BifurcationPoint struct {
	Param  float64
	Values []float64
}

// BifurcationScan sweeps rate over [from, to] in steps values. Each value
// builds a new model, integrates it with cfg and keeps the samples after the
// first transient fraction of the run. Values are quantized to resolution
// when collecting distinct ones.
func BifurcationScan(
	ctx context.Context,
	reg *experiment.Registry,
	model *crn.Model,
	cfg experiment.Config,
	rate string,
	from, to float64,
	steps int,
	species string,
	transient, resolution float64,
) ([]BifurcationPoint, error) {
	idx := model.Species().Index(species)
	if idx < 0 {
		return nil, fmt.Errorf("unknown species %q", species)
	}
	if steps < 2 {
		steps = 2
	}
	if resolution <= 0 {
		resolution = 1e-3
	}
	paramStep := (to - from) / float64(steps-1)

	results := make([]BifurcationPoint, 0, steps)
	for i := 0; i < steps; i++ {
		param := from + float64(i)*paramStep

		rates, err := model.Rates().With(rate, param)
		if err != nil {
			return nil, err
		}
		m, err := model.WithRates(rates)
		if err != nil {
			return nil, err
		}

		result, err := experiment.Integrate(ctx, reg, m, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", rate, param, err)
		}

		series := result.Series(idx)
		start := int(float64(len(series)) * transient)

		values := make([]float64, 0)
		seen := make(map[int64]bool)
		for _, v := range series[start:] {
			key := int64(math.Round(v / resolution))
			if !seen[key] {
				seen[key] = true
				values = append(values, v)
			}
		}

		results = append(results, BifurcationPoint{Param: param, Values: values})
	}

	return results, nil
}

// BifurcationToASCII converts bifurcation data to ASCII art
func BifurcationToASCII(data []BifurcationPoint, width, height int) string {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	var minVal, maxVal float64
	foundFirst := false
	for _, p := range data {
		for _, v := range p.Values {
			if !foundFirst {
				minVal, maxVal = v, v
				foundFirst = true
				continue
			}
			minVal, maxVal = min(minVal, v), max(maxVal, v)
		}
	}
	if !foundFirst {
		return ""
	}

	if maxVal == minVal {
		maxVal = minVal + 1
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for i, p := range data {
		col := min(i*width/len(data), width-1)

		for _, v := range p.Values {
			row := height - 1 - int((v-minVal)/(maxVal-minVal)*float64(height-1))
			if row >= 0 && row < height {
				canvas[row][col] = '•'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
