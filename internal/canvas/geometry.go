package canvas

import (
	"math"

	"github.com/Benny93/rigweave/internal/graph"
)

// Point is a position in world or screen units.
type Point = graph.Point

const epsilon = 1e-9

func add(a, b Point) Point           { return Point{X: a.X + b.X, Y: a.Y + b.Y} }
func sub(a, b Point) Point           { return Point{X: a.X - b.X, Y: a.Y - b.Y} }
func scale(a Point, f float64) Point { return Point{X: a.X * f, Y: a.Y * f} }

// Rect is an axis-aligned rectangle with Min <= Max on both axes.
type Rect struct {
	Min, Max Point
}

// RectFromPoints returns the rectangle spanned by two corners in any order.
func RectFromPoints(a, b Point) Rect {
	return Rect{
		Min: Point{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: Point{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
}

// Contains reports whether p lies inside or on the border.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Intersects reports whether the rectangles overlap or touch.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X <= o.Max.X && o.Min.X <= r.Max.X && r.Min.Y <= o.Max.Y && o.Min.Y <= r.Max.Y
}

// Segment is a bounded line between A and B.
type Segment struct {
	A, B Point
}

// SegmentsIntersect reports whether two bounded segments share a point.
// Collinear segments intersect only when they overlap.
func SegmentsIntersect(s, t Segment) bool {
	o1 := orientation(s.A, s.B, t.A)
	o2 := orientation(s.A, s.B, t.B)
	o3 := orientation(t.A, t.B, s.A)
	o4 := orientation(t.A, t.B, s.B)

	if o1 != o2 && o3 != o4 {
		return true
	}

	switch {
	case o1 == 0 && onSegment(s.A, t.A, s.B):
		return true
	case o2 == 0 && onSegment(s.A, t.B, s.B):
		return true
	case o3 == 0 && onSegment(t.A, s.A, t.B):
		return true
	case o4 == 0 && onSegment(t.A, s.B, t.B):
		return true
	}
	return false
}

// orientation returns 0 for collinear points, 1 for clockwise and 2 for
// counter-clockwise.
func orientation(p, q, r Point) int {
	v := (q.Y-p.Y)*(r.X-q.X) - (q.X-p.X)*(r.Y-q.Y)
	switch {
	case v > epsilon:
		return 1
	case v < -epsilon:
		return 2
	}
	return 0
}

// onSegment reports whether q lies within the bounding box of p and r.
func onSegment(p, q, r Point) bool {
	return q.X <= math.Max(p.X, r.X)+epsilon && q.X >= math.Min(p.X, r.X)-epsilon &&
		q.Y <= math.Max(p.Y, r.Y)+epsilon && q.Y >= math.Min(p.Y, r.Y)-epsilon
}

// DistanceTo returns the shortest distance from p to the segment.
func (s Segment) DistanceTo(p Point) float64 {
	d := sub(s.B, s.A)
	lenSq := d.X*d.X + d.Y*d.Y
	if lenSq < epsilon {
		return distance(s.A, p)
	}
	t := ((p.X-s.A.X)*d.X + (p.Y-s.A.Y)*d.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	return distance(add(s.A, scale(d, t)), p)
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
