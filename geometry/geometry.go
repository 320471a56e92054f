// Package geometry provides the rectangle and region math shared by the
// display engine. Regions are unions of rectangles with cheap extent
// queries, modeled after the pixman region operations the engine needs.
package geometry

// Rect is an axis-aligned rectangle. X/Y may be negative (client space
// places monitors left of or above the primary origin).
type Rect struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

func (r Rect) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// Right returns the first x coordinate beyond the rectangle.
func (r Rect) Right() int32 {
	return r.X + int32(r.Width)
}

// Bottom returns the first y coordinate beyond the rectangle.
func (r Rect) Bottom() int32 {
	return r.Y + int32(r.Height)
}

func (r Rect) ContainsPoint(x, y int32) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Box is a pair of corners, the extents form of a region.
type Box struct {
	X1, Y1 int32
	X2, Y2 int32
}

// Region is a union of rectangles. The engine only ever unions disjoint
// rectangles into it, so no coalescing is performed.
type Region struct {
	rects   []Rect
	extents Box
}

func (rg *Region) Clear() {
	rg.rects = rg.rects[:0]
	rg.extents = Box{}
}

func (rg *Region) NotEmpty() bool {
	return len(rg.rects) > 0
}

func (rg *Region) UnionRect(r Rect) {
	if r.Empty() {
		return
	}
	if len(rg.rects) == 0 {
		rg.extents = Box{X1: r.X, Y1: r.Y, X2: r.Right(), Y2: r.Bottom()}
	} else {
		if r.X < rg.extents.X1 {
			rg.extents.X1 = r.X
		}
		if r.Y < rg.extents.Y1 {
			rg.extents.Y1 = r.Y
		}
		if r.Right() > rg.extents.X2 {
			rg.extents.X2 = r.Right()
		}
		if r.Bottom() > rg.extents.Y2 {
			rg.extents.Y2 = r.Bottom()
		}
	}
	rg.rects = append(rg.rects, r)
}

func (rg *Region) ContainsPoint(x, y int32) bool {
	for _, r := range rg.rects {
		if r.ContainsPoint(x, y) {
			return true
		}
	}
	return false
}

// Extents returns the bounding box of the region. The zero Box is
// returned for an empty region.
func (rg *Region) Extents() Box {
	return rg.extents
}

// Rects returns the rectangles of the region in union order.
func (rg *Region) Rects() []Rect {
	return rg.rects
}

// Intersects reports whether any rectangle of rg overlaps any rectangle
// of other.
func (rg *Region) Intersects(other *Region) bool {
	for _, a := range rg.rects {
		for _, b := range other.rects {
			if rectsOverlap(a, b) {
				return true
			}
		}
	}
	return false
}

func rectsOverlap(a, b Rect) bool {
	return a.X < b.Right() && b.X < a.Right() &&
		a.Y < b.Bottom() && b.Y < a.Bottom()
}

// LinesIntersect reports whether the 1-D intervals [l1,l2) and [r1,r2)
// share at least one unit.
func LinesIntersect(l1, l2, r1, r2 int32) bool {
	l := l1
	if r1 > l {
		l = r1
	}
	r := l2
	if r2 < r {
		r = r2
	}
	return l < r
}
