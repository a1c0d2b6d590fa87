// Package graph lays out a price series as a polyline with grid, axis
// labels and an animated left-to-right reveal, and renders it as SVG or
// as terminal braille art.
package graph

import (
	"errors"
	"math"
)

// ErrNoPoints is returned when laying out an empty series.
var ErrNoPoints = errors.New("graph: no points")

// Size is a drawing area. The origin is the top-left corner and y grows
// downwards.
type Size struct {
	Width  float64
	Height float64
}

// Point is a position inside a Size.
type Point struct {
	X float64
	Y float64
}

// Path is the laid-out series, one point per price, left to right.
type Path struct {
	Points []Point
	Min    float64 // lower bound of the vertical range
	Max    float64 // upper bound of the vertical range
}

// paddingRatio widens the vertical range by this fraction of the mean price
// above and below so the line never touches the edges.
const paddingRatio = 0.01

// Layout places points at equal horizontal spacing width/(n-1) and scales
// them into [min-pad, max+pad]. A single point is drawn as a flat line
// across the width, and a zero vertical range is treated as 1.
func Layout(points []float64, size Size) (*Path, error) {
	n := len(points)
	if n == 0 {
		return nil, ErrNoPoints
	}

	lo, hi, sum := points[0], points[0], 0.0
	for _, p := range points {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
		sum += p
	}
	pad := sum / float64(n) * paddingRatio
	lo -= pad
	hi += pad
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	y := func(p float64) float64 {
		return size.Height - (p-lo)/rng*size.Height
	}

	path := &Path{Min: lo, Max: hi}
	if n == 1 {
		path.Points = []Point{{X: 0, Y: y(points[0])}, {X: size.Width, Y: y(points[0])}}
		return path, nil
	}

	step := size.Width / float64(n-1)
	path.Points = make([]Point, n)
	for i, p := range points {
		path.Points[i] = Point{X: float64(i) * step, Y: y(p)}
	}
	return path, nil
}

// Fill returns the path closed down to the bottom edge, the outline of the
// area under the line.
func (p *Path) Fill(size Size) []Point {
	if len(p.Points) == 0 {
		return nil
	}
	out := make([]Point, 0, len(p.Points)+2)
	out = append(out, p.Points...)
	out = append(out,
		Point{X: p.Points[len(p.Points)-1].X, Y: size.Height},
		Point{X: p.Points[0].X, Y: size.Height},
	)
	return out
}

// Line is a straight segment.
type Line struct {
	From Point
	To   Point
}

// Grid returns vertical dividers at width/(vertical+1) intervals followed
// by horizontal dividers at height/(horizontal+1) intervals.
func Grid(vertical, horizontal int, size Size) []Line {
	var lines []Line
	for i := 1; i <= vertical; i++ {
		x := float64(i) * size.Width / float64(vertical+1)
		lines = append(lines, Line{From: Point{X: x}, To: Point{X: x, Y: size.Height}})
	}
	for i := 1; i <= horizontal; i++ {
		y := float64(i) * size.Height / float64(horizontal+1)
		lines = append(lines, Line{From: Point{Y: y}, To: Point{X: size.Width, Y: y}})
	}
	return lines
}

// Label is text centered on At.X with its baseline at At.Y.
type Label struct {
	Text string
	At   Point
}

// PlaceLabels centers one label under each vertical divider, on the bottom
// edge. Extra labels beyond the number of dividers are dropped.
func PlaceLabels(labels []string, vertical int, size Size) []Label {
	n := min(len(labels), vertical)
	out := make([]Label, 0, n)
	for i := 0; i < n; i++ {
		x := float64(i+1) * size.Width / float64(vertical+1)
		out = append(out, Label{Text: labels[i], At: Point{X: x, Y: size.Height}})
	}
	return out
}
