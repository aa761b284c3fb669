package geom

import (
	"image"

	"github.com/chewxy/math32"
)

// Vector is a 2D displacement such as a scroll delta.
type Vector struct {
	X, Y float32
}

// Vec is a convenience function to create a Vector.
func Vec(x, y float32) Vector {
	return Vector{X: x, Y: y}
}

// Add returns the sum of two vectors.
func (v Vector) Add(w Vector) Vector {
	return Vector{X: v.X + w.X, Y: v.Y + w.Y}
}

// Sub returns the difference of two vectors.
func (v Vector) Sub(w Vector) Vector {
	return Vector{X: v.X - w.X, Y: v.Y - w.Y}
}

// Scale returns the vector multiplied by s.
func (v Vector) Scale(s float32) Vector {
	return Vector{X: v.X * s, Y: v.Y * s}
}

// ScaleXY returns the vector with each axis multiplied separately.
func (v Vector) ScaleXY(sx, sy float32) Vector {
	return Vector{X: v.X * sx, Y: v.Y * sy}
}

// Dot returns the dot product of two vectors.
func (v Vector) Dot(w Vector) float32 {
	return v.X*w.X + v.Y*w.Y
}

// Length returns the length of the vector.
func (v Vector) Length() float32 {
	return math32.Hypot(v.X, v.Y)
}

// LengthSquared returns the squared length of the vector.
func (v Vector) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y
}

// IsZero reports whether both components are zero.
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Perpendicular returns the vector rotated by 90 degrees counter-clockwise.
func (v Vector) Perpendicular() Vector {
	return Vector{X: -v.Y, Y: v.X}
}

// Round returns the vector with each component rounded half away from zero.
func (v Vector) Round() Vector {
	return Vector{X: math32.Round(v.X), Y: math32.Round(v.Y)}
}

// Floor returns the vector with each component rounded down.
func (v Vector) Floor() Vector {
	return Vector{X: math32.Floor(v.X), Y: math32.Floor(v.Y)}
}

// ImagePoint converts a rounded vector to an integer point.
func (v Vector) ImagePoint() image.Point {
	r := v.Round()
	return image.Pt(int(r.X), int(r.Y))
}

// Project returns the component of v along axis.
// A zero axis yields a zero vector.
func (v Vector) Project(axis Vector) Vector {
	l2 := axis.LengthSquared()
	if l2 == 0 {
		return Vector{}
	}
	return axis.Scale(v.Dot(axis) / l2)
}

// SmallestAngleBetween returns the angle between two vectors in degrees,
// in the range [0, 180]. Zero-length vectors give 0.
func SmallestAngleBetween(a, b Vector) float32 {
	la, lb := a.Length(), b.Length()
	if la == 0 || lb == 0 {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math32.Acos(c) * 180 / math32.Pi
}

// Point is a location in a 2D coordinate space.
type Point struct {
	X, Y float32
}

// Pt is a convenience function to create a Point.
func Pt(x, y float32) Point {
	return Point{X: x, Y: y}
}

// PointFromImage converts an integer point.
func PointFromImage(p image.Point) Point {
	return Point{X: float32(p.X), Y: float32(p.Y)}
}

// Add offsets the point by a vector.
func (p Point) Add(v Vector) Point {
	return Point{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Vector {
	return Vector{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns the point with both coordinates multiplied by s.
func (p Point) Scale(s float32) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Floor returns the integer point containing p.
func (p Point) Floor() image.Point {
	return image.Pt(int(math32.Floor(p.X)), int(math32.Floor(p.Y)))
}
