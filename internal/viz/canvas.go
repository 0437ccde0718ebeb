package viz

import "strings"

// brailleBase is U+2800, the empty braille cell. Each cell holds a 2x4 dot
// matrix; dotBits[row][col] is the bit of that dot.
const brailleBase = 0x2800

var dotBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a dot raster rendered with braille characters, giving twice the
// horizontal and four times the vertical resolution of a text grid. The panel
// uses it for the two-species phase view.
type Canvas struct {
	cols, rows int
	cells      []uint8
}

// NewCanvas returns a blank canvas of cols x rows characters.
func NewCanvas(cols, rows int) *Canvas {
	return &Canvas{cols: cols, rows: rows, cells: make([]uint8, cols*rows)}
}

// Set lights dot (x, y); (0, 0) is the top-left dot. Dots outside the canvas
// are ignored.
func (c *Canvas) Set(x, y int) {
	col, row := x/2, y/4
	if x < 0 || y < 0 || col >= c.cols || row >= c.rows {
		return
	}
	c.cells[row*c.cols+col] |= dotBits[y%4][x%2]
}

// DrawLine lights the dots between two points, stepping along the longer axis.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := x1-x0, y1-y0
	n := max(abs(dx), abs(dy))
	if n == 0 {
		c.Set(x0, y0)
		return
	}
	for i := 0; i <= n; i++ {
		x := x0 + (dx*i+sign(dx)*n/2)/n
		y := y0 + (dy*i+sign(dy)*n/2)/n
		c.Set(x, y)
	}
}

// PlotPath scales the (xs[i], ys[i]) path into the canvas and connects
// consecutive points. y grows upwards.
func (c *Canvas) PlotPath(xs, ys []float64) {
	n := min(len(xs), len(ys))
	if n == 0 {
		return
	}

	x0, x1 := span(xs[:n])
	y0, y1 := span(ys[:n])
	w, h := float64(c.cols*2-1), float64(c.rows*4-1)
	project := func(i int) (int, int) {
		return int((xs[i] - x0) / (x1 - x0) * w), int(h - (ys[i]-y0)/(y1-y0)*h)
	}

	px, py := project(0)
	c.Set(px, py)
	for i := 1; i < n; i++ {
		qx, qy := project(i)
		c.DrawLine(px, py, qx, qy)
		px, py = qx, qy
	}
}

// span returns the range of vals, widened to 1 when flat.
func span(vals []float64) (float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo, hi = min(lo, v), max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

func (c *Canvas) String() string {
	var b strings.Builder
	for r := 0; r < c.rows; r++ {
		for _, cell := range c.cells[r*c.cols : (r+1)*c.cols] {
			b.WriteRune(rune(brailleBase) + rune(cell))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
