package graph

import (
	"math"
	"strings"
)

// Canvas rasterizes a path onto a grid of terminal cells using braille
// characters, two dots wide and four dots tall per cell.
type Canvas struct {
	cols, rows int
	cells      []rune
}

const brailleBase = 0x2800

// brailleBits maps a dot position inside a cell, [x][y], to its bit.
var brailleBits = [2][4]rune{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// NewCanvas creates an empty canvas of cols x rows cells.
func NewCanvas(cols, rows int) *Canvas {
	cols, rows = max(cols, 1), max(rows, 1)
	c := &Canvas{cols: cols, rows: rows, cells: make([]rune, cols*rows)}
	for i := range c.cells {
		c.cells[i] = brailleBase
	}
	return c
}

// Size returns the canvas size in dots, the space Layout should use so the
// path fits the canvas exactly.
func (c *Canvas) Size() Size {
	return Size{Width: float64(c.cols*2 - 1), Height: float64(c.rows*4 - 1)}
}

// Set turns on the dot at (x, y). Dots outside the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= c.cols*2 || y >= c.rows*4 {
		return
	}
	c.cells[(y/4)*c.cols+x/2] |= brailleBits[x%2][y%4]
}

// DrawPath draws p, laid out in c.Size(), clipped to the revealed width.
func (c *Canvas) DrawPath(p *Path, progress float64) {
	if p == nil || len(p.Points) == 0 {
		return
	}
	clip := ClipWidth(progress, c.Size().Width)
	if len(p.Points) == 1 {
		if p.Points[0].X <= clip {
			c.Set(round(p.Points[0].X), round(p.Points[0].Y))
		}
		return
	}
	for i := 1; i < len(p.Points); i++ {
		c.line(p.Points[i-1], p.Points[i], clip)
	}
}

// line draws a segment with Bresenham's algorithm, skipping dots right of
// clip.
func (c *Canvas) line(a, b Point, clip float64) {
	x0, y0, x1, y1 := round(a.X), round(a.Y), round(b.X), round(b.Y)
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if float64(x0) <= clip {
			c.Set(x0, y0)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Lines returns the canvas as one string per row.
func (c *Canvas) Lines() []string {
	out := make([]string, c.rows)
	for r := 0; r < c.rows; r++ {
		out[r] = string(c.cells[r*c.cols : (r+1)*c.cols])
	}
	return out
}

// String returns the rows joined by newlines.
func (c *Canvas) String() string {
	return strings.Join(c.Lines(), "\n")
}

func round(v float64) int { return int(math.Round(v)) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
