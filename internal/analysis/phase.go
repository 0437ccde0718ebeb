package analysis

import (
	"fmt"
	"strings"

	"github.com/san-kum/crnsim/internal/dynamo"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D holds the trajectory of one species against another.
type PhasePortrait2D struct {
	XIndex, YIndex int
	Points         []Point
}

// PhasePortrait projects recorded states onto two species.
func PhasePortrait(states []dynamo.State, xIdx, yIdx int) (*PhasePortrait2D, error) {
	if xIdx < 0 || yIdx < 0 {
		return nil, fmt.Errorf("negative species index")
	}

	portrait := &PhasePortrait2D{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: make([]Point, 0, len(states)),
	}

	for _, x := range states {
		if xIdx >= len(x) || yIdx >= len(x) {
			return nil, fmt.Errorf("species index out of range for %d-species state", len(x))
		}
		portrait.Points = append(portrait.Points, Point{X: x[xIdx], Y: x[yIdx]})
	}

	return portrait, nil
}

// PhasePortraitToASCII converts phase portrait to ASCII art
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	minX, maxX := portrait.Points[0].X, portrait.Points[0].X
	minY, maxY := portrait.Points[0].Y, portrait.Points[0].Y

	for _, p := range portrait.Points {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))

		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}

// Crossings records the (x, y) species pair every time species crossIdx rises
// through threshold. For oscillating networks this is a Poincaré section.
func Crossings(states []dynamo.State, crossIdx int, threshold float64, xIdx, yIdx int) []Point {
	var out []Point
	for i := 1; i < len(states); i++ {
		prev, curr := states[i-1], states[i]
		if crossIdx >= len(curr) || xIdx >= len(curr) || yIdx >= len(curr) {
			return nil
		}
		if prev[crossIdx] < threshold && curr[crossIdx] >= threshold {
			out = append(out, Point{X: curr[xIdx], Y: curr[yIdx]})
		}
	}
	return out
}
