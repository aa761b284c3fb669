package scene

import (
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/render"
	"github.com/gogpu/compositor/renderpass"
	"github.com/gogpu/compositor/tile"
)

// solidColorTileSize bounds the size of a single solid color quad so that
// occlusion can drop parts of large layers.
const solidColorTileSize = 256

// CheckerboardColor fills content whose tiles are not rastered yet.
var CheckerboardColor = gputypes.Color{R: 0.94, G: 0.94, B: 0.94, A: 1}

// WillDraw reports whether the layer can draw in the given mode. Layers
// returning false are skipped for the frame; layers returning true must
// be paired with a DidDraw.
func (l *Layer) WillDraw(mode render.DrawMode, res ResourceLookup) bool {
	switch l.content {
	case ContentNone:
		return false
	case ContentTexture:
		if mode == render.DrawModeResourcelessSoftware {
			return false
		}
		if res == nil || res.ResourceForUIResource(l.uiResource) == 0 {
			return false
		}
	case ContentDelegated:
		if mode == render.DrawModeResourcelessSoftware || len(l.delegatedPasses) == 0 {
			return false
		}
	case ContentTiled:
		if l.tiling == nil {
			return false
		}
	}
	l.drawing = true
	return true
}

// DidDraw ends the drawing started by a successful WillDraw.
func (l *Layer) DidDraw() {
	l.drawing = false
}

// IsDrawing reports whether WillDraw succeeded without a DidDraw yet.
func (l *Layer) IsDrawing() bool { return l.drawing }

// VisibleContentOpaqueRect returns the part of the visible content rect
// known to be fully opaque, in content space.
func (l *Layer) VisibleContentOpaqueRect() image.Rectangle {
	opaque := l.ContentsOpaque
	if l.content == ContentSolidColor && l.color.A >= 1 {
		opaque = true
	}
	if !opaque {
		return image.Rectangle{}
	}
	return l.draw.VisibleContentRect
}

// populateSharedQuadState fills s from the layer's draw properties.
func (l *Layer) populateSharedQuadState(s *renderpass.SharedQuadState) {
	s.ContentToTargetTransform = l.draw.ScreenSpaceTransform
	s.ContentBounds = l.bounds
	s.VisibleContentRect = l.draw.VisibleContentRect
	s.ClipRect = l.draw.ClipRect
	s.IsClipped = l.draw.IsClipped
	s.Opacity = l.draw.Opacity
}

// AppendQuads emits the layer's quads for its visible content rect.
func (l *Layer) AppendQuads(sink QuadSink, data *AppendQuadsData, res ResourceLookup) {
	visible := l.draw.VisibleContentRect
	if visible.Empty() {
		return
	}
	s := sink.CreateSharedQuadState()
	l.populateSharedQuadState(s)

	switch l.content {
	case ContentSolidColor:
		l.appendSolidColorQuads(sink, data, s, visible)
	case ContentTiled:
		l.appendTileQuads(sink, data, s, visible, res)
	case ContentTexture:
		l.appendTextureQuad(sink, data, s, visible, res)
	case ContentDelegated:
		l.appendDelegatedQuads(sink, data)
	}
}

func (l *Layer) appendSolidColorQuads(sink QuadSink, data *AppendQuadsData, s *renderpass.SharedQuadState, visible image.Rectangle) {
	for y := visible.Min.Y; y < visible.Max.Y; y += solidColorTileSize {
		for x := visible.Min.X; x < visible.Max.X; x += solidColorTileSize {
			r := image.Rect(x, y, x+solidColorTileSize, y+solidColorTileSize).Intersect(visible)
			sink.Append(renderpass.SolidColorQuad(s, r, l.color), data)
		}
	}
}

func (l *Layer) appendTileQuads(sink QuadSink, data *AppendQuadsData, s *renderpass.SharedQuadState,
	visible image.Rectangle, res ResourceLookup) {
	highRes := l.tiling.Resolution() == tile.HighResolution
	l.tiling.Covering(visible, func(tl *tile.Tile) {
		r := tl.Rect.Intersect(visible)
		if r.Empty() {
			return
		}
		id := tl.Resource()
		if id == 0 || res == nil || !res.Contains(id) {
			if sink.Append(renderpass.CheckerboardQuad(s, r, CheckerboardColor), data) {
				data.NumMissingTiles++
				data.HadIncompleteTile = true
			}
			return
		}
		var opaque image.Rectangle
		if tl.Opaque || l.ContentsOpaque {
			opaque = r
		}
		w, h := float32(tl.Rect.Dx()), float32(tl.Rect.Dy())
		uv := geom.RectF{
			Min: geom.Pt(float32(r.Min.X-tl.Rect.Min.X)/w, float32(r.Min.Y-tl.Rect.Min.Y)/h),
			Max: geom.Pt(float32(r.Max.X-tl.Rect.Min.X)/w, float32(r.Max.Y-tl.Rect.Min.Y)/h),
		}
		if sink.Append(renderpass.TileQuad(s, r, opaque, uint64(id), uv), data) && !highRes {
			data.HadIncompleteTile = true
		}
	})
}

func (l *Layer) appendTextureQuad(sink QuadSink, data *AppendQuadsData, s *renderpass.SharedQuadState,
	visible image.Rectangle, res ResourceLookup) {
	id := res.ResourceForUIResource(l.uiResource)
	if id == 0 {
		return
	}
	rect := l.ContentRect()
	var opaque image.Rectangle
	if l.ContentsOpaque {
		opaque = rect
	}
	q := renderpass.TextureQuad(s, rect, opaque, uint64(id), l.uv)
	q.VisibleRect = visible
	sink.Append(q, data)
}

// delegatedPassID returns the id a delegated input pass takes in this
// compositor's frame.
func (l *Layer) delegatedPassID(index int) renderpass.ID {
	return renderpass.ID{LayerID: l.id, Index: index + 1}
}

// AppendContributingPasses adds copies of the delegated input passes to
// list, leaf first, transformed into this compositor's screen space.
func (l *Layer) AppendContributingPasses(list *renderpass.List, passes renderpass.Map) {
	if l.content != ContentDelegated || len(l.delegatedPasses) < 2 {
		return
	}
	remap := l.delegatedIDs()
	screen := l.draw.ScreenSpaceTransform
	for i, src := range l.delegatedPasses[:len(l.delegatedPasses)-1] {
		p := src.Copy(l.delegatedPassID(i))
		p.TransformToRootTarget = screen.Multiply(src.TransformToRootTarget)
		copyQuads(p, src, geom.Identity(), remap)
		*list = append(*list, p)
		passes[p.ID] = p
	}
}

func (l *Layer) appendDelegatedQuads(sink QuadSink, data *AppendQuadsData) {
	root := l.delegatedPasses[len(l.delegatedPasses)-1]
	remap := l.delegatedIDs()
	shared := make(map[*renderpass.SharedQuadState]*renderpass.SharedQuadState)
	for _, src := range root.Quads {
		s, ok := shared[src.Shared]
		if !ok {
			s = sink.CreateSharedQuadState()
			*s = *src.Shared
			s.ContentToTargetTransform = l.draw.ScreenSpaceTransform.Multiply(src.Shared.ContentToTargetTransform)
			s.Opacity *= l.draw.Opacity
			if l.draw.IsClipped {
				if s.IsClipped {
					s.ClipRect = l.draw.ScreenSpaceTransform.MapEnclosingRect(s.ClipRect).Intersect(l.draw.ClipRect)
				} else {
					s.ClipRect = l.draw.ClipRect
				}
				s.IsClipped = true
			}
			shared[src.Shared] = s
		}
		q := *src
		q.Shared = s
		if q.Material == renderpass.MaterialRenderPass {
			q.RenderPassID = remap[q.RenderPassID]
		}
		sink.Append(&q, data)
	}
}

func (l *Layer) delegatedIDs() map[renderpass.ID]renderpass.ID {
	m := make(map[renderpass.ID]renderpass.ID, len(l.delegatedPasses))
	for i, p := range l.delegatedPasses {
		m[p.ID] = l.delegatedPassID(i)
	}
	return m
}

// copyQuads copies the quads of src into dst, prefixing every shared
// transform with t and remapping pass references.
func copyQuads(dst, src *renderpass.Pass, t geom.Transform, remap map[renderpass.ID]renderpass.ID) {
	shared := make(map[*renderpass.SharedQuadState]*renderpass.SharedQuadState, len(src.SharedQuadStates))
	for _, s := range src.SharedQuadStates {
		c := dst.CreateSharedQuadState()
		*c = *s
		c.ContentToTargetTransform = t.Multiply(s.ContentToTargetTransform)
		shared[s] = c
	}
	for _, q := range src.Quads {
		c := *q
		if s, ok := shared[q.Shared]; ok {
			c.Shared = s
		}
		if c.Material == renderpass.MaterialRenderPass {
			c.RenderPassID = remap[c.RenderPassID]
		}
		dst.Append(&c)
	}
}
