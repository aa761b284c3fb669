package scene

import (
	"image"

	"github.com/gogpu/compositor/damage"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/renderpass"
)

// RenderSurface is an offscreen target owned by a layer. Surfaces are
// screen aligned: their content rect is in device pixels and they draw
// into their target with the identity transform.
type RenderSurface struct {
	owner *Layer

	contentRect image.Rectangle
	clipRect    image.Rectangle
	isClipped   bool
	drawOpacity float32

	// layerList holds the layers and child surface owners drawing into
	// this surface, in paint order.
	layerList []*Layer

	contributesToDrawnSurface bool
	surfacePropertyChanged    bool
	lastContentRect           image.Rectangle
	lastDrawOpacity           float32

	damage *damage.Tracker
}

func newRenderSurface(owner *Layer) *RenderSurface {
	return &RenderSurface{owner: owner, damage: damage.NewTracker(), drawOpacity: 1}
}

// Owner returns the layer owning the surface.
func (s *RenderSurface) Owner() *Layer { return s.owner }

// ContentRect returns the surface extent in device pixels.
func (s *RenderSurface) ContentRect() image.Rectangle { return s.contentRect }

// ClipRect returns the clip applied when drawing the surface into its
// target, and whether it applies.
func (s *RenderSurface) ClipRect() (image.Rectangle, bool) { return s.clipRect, s.isClipped }

// DrawOpacity returns the opacity applied when drawing the surface.
func (s *RenderSurface) DrawOpacity() float32 { return s.drawOpacity }

// LayerList returns the contributors in paint order.
func (s *RenderSurface) LayerList() []*Layer { return s.layerList }

// ContributesToDrawnSurface reports whether the surface draws into a
// surface that is itself drawn.
func (s *RenderSurface) ContributesToDrawnSurface() bool { return s.contributesToDrawnSurface }

// SurfacePropertyChanged reports whether the surface moved, resized or
// changed opacity since it was last drawn.
func (s *RenderSurface) SurfacePropertyChanged() bool {
	return s.surfacePropertyChanged || s.owner.LayerPropertyChanged()
}

// DamageTracker returns the surface's damage tracker.
func (s *RenderSurface) DamageTracker() *damage.Tracker { return s.damage }

// RenderPassID returns the id of the pass drawing this surface.
func (s *RenderSurface) RenderPassID() renderpass.ID {
	return renderpass.ID{LayerID: s.owner.id}
}

// ReplicaRenderPassID returns the pass id used by the replica quad. The
// replica reads from the same pass as the surface.
func (s *RenderSurface) ReplicaRenderPassID() renderpass.ID {
	return s.RenderPassID()
}

// ReplicaTransform maps the surface content onto its replica position.
func (s *RenderSurface) ReplicaTransform() geom.Transform {
	r := s.owner.replica
	if r == nil {
		return geom.Identity()
	}
	screen := s.owner.draw.ScreenSpaceTransform
	inv, ok := screen.Inverse()
	if !ok {
		return geom.Identity()
	}
	return screen.Multiply(r.transform).Multiply(inv)
}

// UpdateDamage recomputes the surface damage from its contributors.
// Child surfaces must be updated first.
func (s *RenderSurface) UpdateDamage() {
	contributors := make([]damage.Contributor, 0, len(s.layerList)+1)
	for _, l := range s.layerList {
		if l != s.owner && l.surface != nil {
			cs := l.surface
			contributors = append(contributors, damage.Contributor{
				ID:           l.id,
				Rect:         cs.drawableRect(),
				Changed:      cs.SurfacePropertyChanged(),
				Invalidation: cs.damage.CurrentDamage(),
			})
			if l.replica != nil {
				t := cs.ReplicaTransform()
				contributors = append(contributors, damage.Contributor{
					ID:           -l.id,
					Rect:         t.MapEnclosingRect(cs.drawableRect()),
					Changed:      cs.SurfacePropertyChanged() || l.replica.LayerPropertyChanged(),
					Invalidation: t.MapEnclosingRect(cs.damage.CurrentDamage()),
				})
			}
			continue
		}
		contributors = append(contributors, damage.Contributor{
			ID:           l.id,
			Rect:         l.draw.DrawableContentRect,
			Changed:      l.LayerPropertyChanged(),
			Invalidation: l.draw.ScreenSpaceTransform.MapEnclosingRect(l.updateRect),
		})
	}
	maskChanged := s.owner.mask != nil && s.owner.mask.LayerPropertyChanged()
	fromAncestor := s.owner.ancestorChanged && !s.owner.propertyChanged
	s.damage.Update(contributors, fromAncestor, s.contentRect, maskChanged, s.owner.BackgroundFilterOutset)
}

// drawableRect returns the surface content rect clipped as drawn into
// its target.
func (s *RenderSurface) drawableRect() image.Rectangle {
	if s.isClipped {
		return s.contentRect.Intersect(s.clipRect)
	}
	return s.contentRect
}

// AppendQuads emits the quads drawing this surface, and its replica if
// any, into the target pass.
func (s *RenderSurface) AppendQuads(sink QuadSink, data *AppendQuadsData, forReplica bool) {
	shared := sink.CreateSharedQuadState()
	shared.ContentBounds = s.contentRect.Size()
	shared.VisibleContentRect = s.contentRect
	shared.ClipRect = s.clipRect
	shared.IsClipped = s.isClipped
	shared.Opacity = s.drawOpacity
	if forReplica {
		shared.ContentToTargetTransform = s.ReplicaTransform()
	}

	var changed image.Rectangle
	if !s.damage.CurrentDamage().Empty() {
		changed = s.contentRect
	}
	id := s.RenderPassID()
	if forReplica {
		id = s.ReplicaRenderPassID()
	}
	sink.Append(renderpass.RenderPassQuad(shared, s.contentRect, id, forReplica, changed), data)
}

// AppendRenderPasses adds the pass for this surface to list, taking the
// owner's pending copy requests.
func (s *RenderSurface) AppendRenderPasses(list *renderpass.List, passes renderpass.Map) *renderpass.Pass {
	p := renderpass.New(s.RenderPassID(), s.contentRect, s.damage.CurrentDamage(), geom.Identity())
	p.CopyRequests = s.owner.TakeCopyRequests()
	*list = append(*list, p)
	passes[p.ID] = p
	return p
}

func (s *RenderSurface) didDraw() {
	s.damage.DidDrawDamagedArea()
	s.lastContentRect = s.contentRect
	s.lastDrawOpacity = s.drawOpacity
	s.surfacePropertyChanged = false
}
