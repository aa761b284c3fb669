package geom

import (
	"image"

	"github.com/chewxy/math32"
)

// RectF is an axis-aligned rectangle with float32 bounds.
// Min is inclusive and Max exclusive, as with image.Rectangle.
type RectF struct {
	Min, Max Point
}

// RF is a convenience function to create a RectF from an origin and size.
func RF(x, y, w, h float32) RectF {
	return RectF{Min: Point{X: x, Y: y}, Max: Point{X: x + w, Y: y + h}}
}

// RectFFromImage converts an integer rectangle.
func RectFFromImage(r image.Rectangle) RectF {
	return RectF{Min: PointFromImage(r.Min), Max: PointFromImage(r.Max)}
}

// Width returns the width of the rectangle.
func (r RectF) Width() float32 { return r.Max.X - r.Min.X }

// Height returns the height of the rectangle.
func (r RectF) Height() float32 { return r.Max.Y - r.Min.Y }

// Empty reports whether the rectangle has no area.
func (r RectF) Empty() bool {
	return r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y
}

// Contains reports whether p lies inside the rectangle.
func (r RectF) Contains(p Point) bool {
	return r.Min.X <= p.X && p.X < r.Max.X && r.Min.Y <= p.Y && p.Y < r.Max.Y
}

// Union returns the smallest rectangle containing both r and s.
func (r RectF) Union(s RectF) RectF {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	return RectF{
		Min: Point{X: math32.Min(r.Min.X, s.Min.X), Y: math32.Min(r.Min.Y, s.Min.Y)},
		Max: Point{X: math32.Max(r.Max.X, s.Max.X), Y: math32.Max(r.Max.Y, s.Max.Y)},
	}
}

// Intersect returns the largest rectangle contained by both r and s.
func (r RectF) Intersect(s RectF) RectF {
	out := RectF{
		Min: Point{X: math32.Max(r.Min.X, s.Min.X), Y: math32.Max(r.Min.Y, s.Min.Y)},
		Max: Point{X: math32.Min(r.Max.X, s.Max.X), Y: math32.Min(r.Max.Y, s.Max.Y)},
	}
	if out.Empty() {
		return RectF{}
	}
	return out
}

// Enclosing returns the smallest integer rectangle that contains r.
func (r RectF) Enclosing() image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math32.Floor(r.Min.X)), int(math32.Floor(r.Min.Y)),
		int(math32.Ceil(r.Max.X)), int(math32.Ceil(r.Max.Y)),
	)
}

// Enclosed returns the largest integer rectangle contained in r.
func (r RectF) Enclosed() image.Rectangle {
	// Built directly: image.Rect would swap an inverted sub-pixel span
	// into a one-pixel rect.
	out := image.Rectangle{
		Min: image.Pt(int(math32.Ceil(r.Min.X)), int(math32.Ceil(r.Min.Y))),
		Max: image.Pt(int(math32.Floor(r.Max.X)), int(math32.Floor(r.Max.Y))),
	}
	if out.Min.X >= out.Max.X || out.Min.Y >= out.Max.Y {
		return image.Rectangle{}
	}
	return out
}

// UnionRect returns the union bounding box of two integer rectangles,
// treating empty rectangles as absent.
func UnionRect(a, b image.Rectangle) image.Rectangle {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	return a.Union(b)
}

// ScaleRect scales an integer rectangle and returns the enclosing result.
func ScaleRect(r image.Rectangle, s float32) image.Rectangle {
	return RectF{
		Min: PointFromImage(r.Min).Scale(s),
		Max: PointFromImage(r.Max).Scale(s),
	}.Enclosing()
}

// Area returns the number of pixels covered by r.
func Area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}
