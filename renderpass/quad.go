package renderpass

import (
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/geom"
)

// Material identifies how a quad is drawn.
type Material int

const (
	MaterialSolidColor Material = iota
	MaterialTiledContent
	MaterialTexture
	MaterialRenderPass
	MaterialCheckerboard
)

func (m Material) String() string {
	switch m {
	case MaterialSolidColor:
		return "SolidColor"
	case MaterialTiledContent:
		return "TiledContent"
	case MaterialTexture:
		return "Texture"
	case MaterialRenderPass:
		return "RenderPass"
	case MaterialCheckerboard:
		return "Checkerboard"
	default:
		return "Unknown"
	}
}

// SharedQuadState holds the properties common to all quads emitted by one
// layer into one pass.
type SharedQuadState struct {
	ContentToTargetTransform geom.Transform
	ContentBounds            image.Point
	VisibleContentRect       image.Rectangle
	// ClipRect is in target space and only applies when IsClipped.
	ClipRect  image.Rectangle
	IsClipped bool
	Opacity   float32
}

// DrawQuad is one drawing primitive. Rect, OpaqueRect and VisibleRect are
// in the content space of the layer that produced it.
type DrawQuad struct {
	Material Material
	Shared   *SharedQuadState

	Rect        image.Rectangle
	OpaqueRect  image.Rectangle
	VisibleRect image.Rectangle

	Color gputypes.Color

	// ResourceID names the tile or UI resource sampled by tiled and
	// texture quads.
	ResourceID uint64
	// UV is the sampled region in normalized texture coordinates.
	UV geom.RectF

	// RenderPassID is the input pass of a render pass quad.
	RenderPassID ID
	IsReplica    bool
	// ContentsChangedSinceLastFrame is the damage of the input pass.
	ContentsChangedSinceLastFrame image.Rectangle
}

// TargetRect returns the visible rect mapped into target space and
// clipped by the shared clip.
func (q *DrawQuad) TargetRect() image.Rectangle {
	r := q.Shared.ContentToTargetTransform.MapEnclosingRect(q.VisibleRect)
	if q.Shared.IsClipped {
		r = r.Intersect(q.Shared.ClipRect)
	}
	return r
}

// IsOpaque reports whether the quad fully covers its opaque rect.
func (q *DrawQuad) IsOpaque() bool {
	return !q.OpaqueRect.Empty() && q.Shared.Opacity >= 1
}

// SolidColorQuad fills rect with c.
func SolidColorQuad(s *SharedQuadState, rect image.Rectangle, c gputypes.Color) *DrawQuad {
	q := &DrawQuad{Material: MaterialSolidColor, Shared: s, Rect: rect, VisibleRect: rect, Color: c}
	if c.A >= 1 {
		q.OpaqueRect = rect
	}
	return q
}

// CheckerboardQuad marks content whose tile is not ready yet.
func CheckerboardQuad(s *SharedQuadState, rect image.Rectangle, c gputypes.Color) *DrawQuad {
	return &DrawQuad{Material: MaterialCheckerboard, Shared: s, Rect: rect, VisibleRect: rect, Color: c}
}

// TileQuad samples a rastered tile resource.
func TileQuad(s *SharedQuadState, rect, opaque image.Rectangle, resource uint64, uv geom.RectF) *DrawQuad {
	return &DrawQuad{
		Material:    MaterialTiledContent,
		Shared:      s,
		Rect:        rect,
		OpaqueRect:  opaque,
		VisibleRect: rect,
		ResourceID:  resource,
		UV:          uv,
	}
}

// TextureQuad samples a UI resource.
func TextureQuad(s *SharedQuadState, rect, opaque image.Rectangle, resource uint64, uv geom.RectF) *DrawQuad {
	return &DrawQuad{
		Material:    MaterialTexture,
		Shared:      s,
		Rect:        rect,
		OpaqueRect:  opaque,
		VisibleRect: rect,
		ResourceID:  resource,
		UV:          uv,
	}
}

// RenderPassQuad draws the output of pass id.
func RenderPassQuad(s *SharedQuadState, rect image.Rectangle, id ID, replica bool, changed image.Rectangle) *DrawQuad {
	return &DrawQuad{
		Material:                      MaterialRenderPass,
		Shared:                        s,
		Rect:                          rect,
		VisibleRect:                   rect,
		RenderPassID:                  id,
		IsReplica:                     replica,
		ContentsChangedSinceLastFrame: changed,
	}
}
