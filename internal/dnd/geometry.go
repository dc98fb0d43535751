// Package dnd turns pointer and touch gestures over a board into card move
// intents.
package dnd

import "math"

// Point is a position in board coordinates.
type Point struct {
	X, Y float64
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X, Y, Width, Height float64
}

// Corners returns top-left, top-right, bottom-left and bottom-right.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{r.X, r.Y},
		{r.X + r.Width, r.Y},
		{r.X, r.Y + r.Height},
		{r.X + r.Width, r.Y + r.Height},
	}
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{r.X + r.Width/2, r.Y + r.Height/2}
}

// Intersects reports whether r and o overlap with positive area.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Translate returns r shifted by dx, dy.
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Container is a stage column that accepts drops.
type Container struct {
	ID   string
	Rect Rect
}

const tieEpsilon = 1e-9

// ClosestCorners picks the drop target for a dragged preview. Among the
// containers the preview overlaps, it returns the one whose corners are on
// average nearest the preview's corners; ties go to the container whose
// centre is nearest the pointer. It reports false when the preview overlaps
// nothing.
func ClosestCorners(preview Rect, pointer Point, containers []Container) (string, bool) {
	pc := preview.Corners()
	best := -1
	var bestDist, bestCentre float64
	for i, c := range containers {
		if !preview.Intersects(c.Rect) {
			continue
		}
		cc := c.Rect.Corners()
		var sum float64
		for k := range pc {
			sum += pc[k].Dist(cc[k])
		}
		mean := sum / 4
		centre := pointer.Dist(c.Rect.Center())

		switch {
		case best < 0, mean < bestDist-tieEpsilon:
		case math.Abs(mean-bestDist) <= tieEpsilon && centre < bestCentre:
		default:
			continue
		}
		best, bestDist, bestCentre = i, mean, centre
	}
	if best < 0 {
		return "", false
	}
	return containers[best].ID, true
}
