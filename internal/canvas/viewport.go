package canvas

import "math"

// Zoom limits and the factor applied per wheel notch.
const (
	ZoomStep = 1.1
	MinZoom  = 0.1
	MaxZoom  = 10
)

// Viewport maps world coordinates to screen coordinates:
// screen = (world - Offset) * Zoom.
type Viewport struct {
	Offset Point
	Zoom   float64
}

// NewViewport returns the identity view.
func NewViewport() Viewport {
	return Viewport{Zoom: 1}
}

// ToWorld converts a screen position to world units.
func (v Viewport) ToWorld(p Point) Point {
	return add(scale(p, 1/v.Zoom), v.Offset)
}

// ToScreen converts a world position to screen units.
func (v Viewport) ToScreen(p Point) Point {
	return scale(sub(p, v.Offset), v.Zoom)
}

// Pan moves the view so the content follows a pointer moved by delta
// screen units.
func (v *Viewport) Pan(delta Point) {
	v.Offset = sub(v.Offset, scale(delta, 1/v.Zoom))
}

// ZoomAt scales by ZoomStep per notch, positive notches zooming in, while
// keeping the world point under the screen position fixed.
func (v *Viewport) ZoomAt(p Point, notches int) {
	anchor := v.ToWorld(p)
	z := v.Zoom * math.Pow(ZoomStep, float64(notches))
	v.Zoom = math.Max(MinZoom, math.Min(MaxZoom, z))
	v.Offset = sub(anchor, scale(p, 1/v.Zoom))
}

// GridLine is one background line at a screen coordinate.
type GridLine struct {
	Pos   float64
	Major bool
}

// Grid returns the vertical (x) and horizontal (y) grid lines visible in a
// screen area of the given size. Every GridMajorEvery-th line is major.
func (v Viewport) Grid(style Style, width, height float64) (xs, ys []GridLine) {
	lines := func(offset, extent float64) []GridLine {
		var out []GridLine
		first := math.Floor(offset / style.GridSize)
		last := math.Ceil((offset + extent/v.Zoom) / style.GridSize)
		for i := first; i <= last; i++ {
			pos := (i*style.GridSize - offset) * v.Zoom
			if pos < 0 || pos > extent {
				continue
			}
			major := style.GridMajorEvery > 0 && int(math.Mod(math.Abs(i), float64(style.GridMajorEvery))) == 0
			out = append(out, GridLine{Pos: pos, Major: major})
		}
		return out
	}
	return lines(v.Offset.X, width), lines(v.Offset.Y, height)
}
