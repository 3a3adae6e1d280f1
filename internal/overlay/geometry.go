package overlay

// Point is a pointer location in page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box. For the container it is in page coordinates;
// for overlays it is container-relative.
type Rect struct {
	X      float64 `json:"left"`
	Y      float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Measurable reports whether the box has a usable area.
func (r Rect) Measurable() bool {
	return r.Width > 0 && r.Height > 0
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Local translates a page point into r-relative coordinates.
func (r Rect) Local(p Point) Point {
	return Point{X: p.X - r.X, Y: p.Y - r.Y}
}

// HandleSize is the edge length of the square resize handle at the bottom-right corner.
const HandleSize = 10

// OnHandle reports whether the container-relative point p hits the resize handle of r.
func (r Rect) OnHandle(p Point) bool {
	return p.X >= r.X+r.Width-HandleSize && p.X <= r.X+r.Width &&
		p.Y >= r.Y+r.Height-HandleSize && p.Y <= r.Y+r.Height
}

// clamp bounds v to [lo, hi]. When hi < lo the lower bound wins.
func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// ClampPosition keeps a box of the given size inside a container of the given size.
func ClampPosition(p Position, s Size, container Rect) Position {
	return Position{
		X: clamp(p.X, 0, container.Width-s.Width),
		Y: clamp(p.Y, 0, container.Height-s.Height),
	}
}

// FloorSize applies the minimum overlay dimensions.
func FloorSize(s Size) Size {
	if s.Width < MinWidth {
		s.Width = MinWidth
	}
	if s.Height < MinHeight {
		s.Height = MinHeight
	}
	return s
}
