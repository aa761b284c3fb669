package geom

import (
	"image"

	"github.com/chewxy/math32"
)

// invertEpsilon is the determinant magnitude below which a transform is
// treated as singular.
const invertEpsilon = 1e-6

// Transform is a 2D affine transform. See the package documentation for
// the matrix layout.
type Transform struct {
	A, B, C float32
	D, E, F float32
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		A: 1, B: 0, C: 0,
		D: 0, E: 1, F: 0,
	}
}

// Translate creates a translation transform.
func Translate(x, y float32) Transform {
	return Transform{
		A: 1, B: 0, C: x,
		D: 0, E: 1, F: y,
	}
}

// Scale creates a scaling transform.
func Scale(x, y float32) Transform {
	return Transform{
		A: x, B: 0, C: 0,
		D: 0, E: y, F: 0,
	}
}

// Rotate creates a rotation transform (angle in degrees).
func Rotate(degrees float32) Transform {
	rad := degrees * math32.Pi / 180
	sin, cos := math32.Sincos(rad)
	return Transform{
		A: cos, B: -sin, C: 0,
		D: sin, E: cos, F: 0,
	}
}

// Multiply returns t * u, which applies u first and then t.
func (t Transform) Multiply(u Transform) Transform {
	return Transform{
		A: t.A*u.A + t.B*u.D,
		B: t.A*u.B + t.B*u.E,
		C: t.A*u.C + t.B*u.F + t.C,
		D: t.D*u.A + t.E*u.D,
		E: t.D*u.B + t.E*u.E,
		F: t.D*u.C + t.E*u.F + t.F,
	}
}

// MapPoint applies the transform to a point.
func (t Transform) MapPoint(p Point) Point {
	return Point{
		X: t.A*p.X + t.B*p.Y + t.C,
		Y: t.D*p.X + t.E*p.Y + t.F,
	}
}

// MapVector applies the transform to a vector, ignoring translation.
func (t Transform) MapVector(v Vector) Vector {
	return Vector{
		X: t.A*v.X + t.B*v.Y,
		Y: t.D*v.X + t.E*v.Y,
	}
}

// MapRect returns the bounding box of the transformed rectangle.
func (t Transform) MapRect(r RectF) RectF {
	if r.Empty() {
		return RectF{}
	}
	p0 := t.MapPoint(r.Min)
	p1 := t.MapPoint(Point{X: r.Max.X, Y: r.Min.Y})
	p2 := t.MapPoint(r.Max)
	p3 := t.MapPoint(Point{X: r.Min.X, Y: r.Max.Y})
	return RectF{
		Min: Point{
			X: math32.Min(math32.Min(p0.X, p1.X), math32.Min(p2.X, p3.X)),
			Y: math32.Min(math32.Min(p0.Y, p1.Y), math32.Min(p2.Y, p3.Y)),
		},
		Max: Point{
			X: math32.Max(math32.Max(p0.X, p1.X), math32.Max(p2.X, p3.X)),
			Y: math32.Max(math32.Max(p0.Y, p1.Y), math32.Max(p2.Y, p3.Y)),
		},
	}
}

// MapEnclosingRect maps an integer rectangle and returns the smallest
// integer rectangle containing the result.
func (t Transform) MapEnclosingRect(r image.Rectangle) image.Rectangle {
	return t.MapRect(RectFFromImage(r)).Enclosing()
}

// MapEnclosedRect maps an integer rectangle and returns the largest
// integer rectangle contained in the result. Only meaningful when the
// transform preserves axis alignment.
func (t Transform) MapEnclosedRect(r image.Rectangle) image.Rectangle {
	return t.MapRect(RectFFromImage(r)).Enclosed()
}

// Determinant returns the determinant of the linear part.
func (t Transform) Determinant() float32 {
	return t.A*t.E - t.B*t.D
}

// IsInvertible reports whether the transform has an inverse.
func (t Transform) IsInvertible() bool {
	return math32.Abs(t.Determinant()) >= invertEpsilon
}

// Inverse returns the inverse transform. The second result is false
// and the identity is returned when the transform is singular.
func (t Transform) Inverse() (Transform, bool) {
	det := t.Determinant()
	if math32.Abs(det) < invertEpsilon {
		return Identity(), false
	}

	inv := 1 / det
	return Transform{
		A: t.E * inv,
		B: -t.B * inv,
		C: (t.B*t.F - t.C*t.E) * inv,
		D: -t.D * inv,
		E: t.A * inv,
		F: (t.C*t.D - t.A*t.F) * inv,
	}, true
}

// IsIdentity reports whether t is the identity transform.
func (t Transform) IsIdentity() bool {
	return t.A == 1 && t.B == 0 && t.C == 0 &&
		t.D == 0 && t.E == 1 && t.F == 0
}

// IsTranslation reports whether t only translates.
func (t Transform) IsTranslation() bool {
	return t.A == 1 && t.B == 0 && t.D == 0 && t.E == 1
}

// PreservesAxisAlignment reports whether axis-aligned rectangles stay
// axis-aligned under t (scales, translations and 90 degree rotations).
func (t Transform) PreservesAxisAlignment() bool {
	return (t.B == 0 && t.D == 0) || (t.A == 0 && t.E == 0)
}

// Translation returns the translation component.
func (t Transform) Translation() Vector {
	return Vector{X: t.C, Y: t.F}
}

// ScaleComponents returns the length of the transformed unit axes.
func (t Transform) ScaleComponents() (sx, sy float32) {
	return math32.Hypot(t.A, t.D), math32.Hypot(t.B, t.E)
}
