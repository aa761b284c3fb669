package geom

import "image"

// Region is a set of pixels stored as disjoint, non-empty rectangles.
// The zero value is an empty region ready to use.
//
// Region is not thread-safe; callers must handle synchronization.
type Region struct {
	rects []image.Rectangle
}

// RegionOf returns a region covering r.
func RegionOf(r image.Rectangle) Region {
	var g Region
	g.Union(r)
	return g
}

// IsEmpty reports whether the region covers no pixels.
func (g *Region) IsEmpty() bool {
	return len(g.rects) == 0
}

// Rects returns the disjoint rectangles that make up the region.
// The returned slice must not be modified.
func (g *Region) Rects() []image.Rectangle {
	return g.rects
}

// Bounds returns the bounding box of the region.
func (g *Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, r := range g.rects {
		b = UnionRect(b, r)
	}
	return b
}

// Area returns the number of pixels in the region.
func (g *Region) Area() int {
	n := 0
	for _, r := range g.rects {
		n += Area(r)
	}
	return n
}

// Clear empties the region, keeping its storage.
func (g *Region) Clear() {
	g.rects = g.rects[:0]
}

// Clone returns an independent copy of the region.
func (g *Region) Clone() Region {
	out := Region{rects: make([]image.Rectangle, len(g.rects))}
	copy(out.rects, g.rects)
	return out
}

// Union adds r to the region.
func (g *Region) Union(r image.Rectangle) {
	if r.Empty() {
		return
	}
	pieces := []image.Rectangle{r}
	for _, existing := range g.rects {
		pieces = subtractAll(pieces, existing)
		if len(pieces) == 0 {
			return
		}
	}
	g.rects = append(g.rects, pieces...)
}

// UnionRegion adds every pixel of o to the region.
func (g *Region) UnionRegion(o *Region) {
	for _, r := range o.rects {
		g.Union(r)
	}
}

// Subtract removes r from the region.
func (g *Region) Subtract(r image.Rectangle) {
	if r.Empty() || len(g.rects) == 0 {
		return
	}
	g.rects = subtractAll(g.rects, r)
}

// SubtractRegion removes every pixel of o from the region.
func (g *Region) SubtractRegion(o *Region) {
	for _, r := range o.rects {
		g.Subtract(r)
	}
}

// Intersect returns the part of the region inside r.
func (g *Region) Intersect(r image.Rectangle) Region {
	var out Region
	for _, existing := range g.rects {
		if x := existing.Intersect(r); !x.Empty() {
			out.rects = append(out.rects, x)
		}
	}
	return out
}

// Intersects reports whether any pixel of r is in the region.
func (g *Region) Intersects(r image.Rectangle) bool {
	for _, existing := range g.rects {
		if existing.Overlaps(r) {
			return true
		}
	}
	return false
}

// Contains reports whether every pixel of r is in the region.
// An empty rectangle is always contained.
func (g *Region) Contains(r image.Rectangle) bool {
	if r.Empty() {
		return true
	}
	rest := []image.Rectangle{r}
	for _, existing := range g.rects {
		rest = subtractAll(rest, existing)
		if len(rest) == 0 {
			return true
		}
	}
	return false
}

// UnoccludedPart returns the part of r not covered by the region, as the
// bounding box of what remains.
func (g *Region) UnoccludedPart(r image.Rectangle) image.Rectangle {
	rest := []image.Rectangle{r}
	for _, existing := range g.rects {
		rest = subtractAll(rest, existing)
		if len(rest) == 0 {
			return image.Rectangle{}
		}
	}
	var b image.Rectangle
	for _, p := range rest {
		b = UnionRect(b, p)
	}
	return b
}

// subtractAll removes cut from every rectangle in rects.
func subtractAll(rects []image.Rectangle, cut image.Rectangle) []image.Rectangle {
	out := rects[:0:0]
	for _, r := range rects {
		out = appendDifference(out, r, cut)
	}
	return out
}

// appendDifference appends up to four rectangles covering r minus cut.
func appendDifference(dst []image.Rectangle, r, cut image.Rectangle) []image.Rectangle {
	x := r.Intersect(cut)
	if x.Empty() {
		return append(dst, r)
	}
	if x == r {
		return dst
	}
	// Top and bottom bands span the full width; left and right bands
	// fill the middle.
	if r.Min.Y < x.Min.Y {
		dst = append(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, x.Min.Y))
	}
	if x.Max.Y < r.Max.Y {
		dst = append(dst, image.Rect(r.Min.X, x.Max.Y, r.Max.X, r.Max.Y))
	}
	if r.Min.X < x.Min.X {
		dst = append(dst, image.Rect(r.Min.X, x.Min.Y, x.Min.X, x.Max.Y))
	}
	if x.Max.X < r.Max.X {
		dst = append(dst, image.Rect(x.Max.X, x.Min.Y, r.Max.X, x.Max.Y))
	}
	return dst
}
