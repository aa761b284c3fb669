package scene

import (
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/renderpass"
	"github.com/gogpu/compositor/tile"
)

// ContentKind identifies what a layer draws.
type ContentKind uint8

// Content kind constants.
const (
	// ContentNone draws nothing; the layer only groups, clips or scrolls.
	ContentNone ContentKind = iota

	// ContentSolidColor fills the layer bounds with one color.
	ContentSolidColor

	// ContentTiled draws rastered tiles from a tile.Tiling.
	ContentTiled

	// ContentTexture draws a UI resource stretched over the bounds.
	ContentTexture

	// ContentDelegated draws render passes produced by another compositor.
	ContentDelegated
)

// String returns a human-readable name for the content kind.
func (k ContentKind) String() string {
	switch k {
	case ContentNone:
		return "None"
	case ContentSolidColor:
		return "SolidColor"
	case ContentTiled:
		return "Tiled"
	case ContentTexture:
		return "Texture"
	case ContentDelegated:
		return "Delegated"
	default:
		return "Unknown"
	}
}

// DrawProperties are derived by UpdateDrawProperties. They are only
// valid after the owning tree computed them for the current frame.
type DrawProperties struct {
	// ScreenSpaceTransform maps content space to device pixels. Render
	// surfaces are screen aligned, so it is also the draw transform.
	ScreenSpaceTransform geom.Transform

	// Opacity is the accumulated opacity relative to the render target.
	Opacity float32

	// VisibleContentRect is the part of the content that can be seen.
	VisibleContentRect image.Rectangle

	// DrawableContentRect is the clipped content rect in device pixels.
	DrawableContentRect image.Rectangle

	// ClipRect is in device pixels and only applies when IsClipped.
	ClipRect  image.Rectangle
	IsClipped bool

	// RenderTargetID is the layer owning the surface this layer draws into.
	RenderTargetID int

	// ScreenSpaceTransformIsAnimating is set when this layer or an
	// ancestor has an animating transform.
	ScreenSpaceTransformIsAnimating bool
}

// Layer is a node in a scene tree.
//
// Properties that move or repaint the layer are changed through setters
// so that damage tracking can see them. Behavioural flags are plain
// fields and are read when the next frame is built.
type Layer struct {
	id       int
	tree     *Tree
	parentID int
	children []*Layer
	mask     *Layer
	replica  *Layer

	// DrawsContent reports whether the layer emits quads.
	DrawsContent bool

	// ContentsOpaque promises every pixel of the content is opaque.
	ContentsOpaque bool

	// MasksToBounds clips descendants to the layer bounds.
	MasksToBounds bool

	// ForceRenderSurface gives the layer its own render surface.
	ForceRenderSurface bool

	// Scrollable allows impl-side scrolling of this layer.
	Scrollable bool

	// ScrollParentID overrides the parent when bubbling scrolls.
	ScrollParentID int

	// ShouldScrollOnMainThread diverts every scroll to the main thread.
	ShouldScrollOnMainThread bool

	// HaveWheelEventHandlers diverts wheel scrolls to the main thread.
	HaveWheelEventHandlers bool

	// NonFastScrollableRegion, in content space, diverts scrolls that
	// start inside it to the main thread.
	NonFastScrollableRegion geom.Region

	// TouchEventHandlerRegion, in content space, has touch handlers.
	TouchEventHandlerRegion geom.Region

	// TransformIsAnimating is set while a transform animation runs.
	TransformIsAnimating bool

	// BackgroundFilterOutset is how far background filters read beyond
	// the layer, in device pixels.
	BackgroundFilterOutset int

	// HorizontalScrollbarID and VerticalScrollbarID name the scrollbar
	// layers attached to a scrollable layer.
	HorizontalScrollbarID int
	VerticalScrollbarID   int

	// ScrollbarAnimator fades the scrollbars of a scrollable layer.
	ScrollbarAnimator *ScrollbarAnimator

	transform geom.Transform
	bounds    image.Point
	opacity   float32

	content         ContentKind
	color           gputypes.Color
	tiling          *tile.Tiling
	uiResource      UIResourceID
	uv              geom.RectF
	delegatedPasses []*renderpass.Pass

	scrollOffset    geom.Vector
	scrollDelta     geom.Vector
	sentScrollDelta geom.Vector
	maxScrollOffset geom.Vector

	copyRequests []*renderpass.CopyOutputRequest
	animations   []*Animation

	propertyChanged bool
	ancestorChanged bool
	updateRect      image.Rectangle

	draw    DrawProperties
	surface *RenderSurface
	drawing bool
}

// ID returns the layer id, unique within its tree.
func (l *Layer) ID() int { return l.id }

// Tree returns the owning tree.
func (l *Layer) Tree() *Tree { return l.tree }

// Parent returns the parent layer, or nil for the root.
func (l *Layer) Parent() *Layer {
	if l.parentID == 0 {
		return nil
	}
	return l.tree.LayerByID(l.parentID)
}

// ScrollParent returns the layer scrolls bubble to: the scroll parent if
// one is set, otherwise the parent.
func (l *Layer) ScrollParent() *Layer {
	if l.ScrollParentID != 0 {
		if p := l.tree.LayerByID(l.ScrollParentID); p != nil {
			return p
		}
	}
	return l.Parent()
}

// Children returns the child layers in paint order.
func (l *Layer) Children() []*Layer { return l.children }

// AddChild appends child, which must belong to the same tree and have no
// parent.
func (l *Layer) AddChild(child *Layer) {
	if child.tree != l.tree {
		panic("scene: AddChild across trees")
	}
	if child.parentID != 0 {
		panic("scene: AddChild of a layer that already has a parent")
	}
	child.parentID = l.id
	l.children = append(l.children, child)
	l.tree.needsFullTreeSync = true
	l.tree.SetNeedsUpdateDrawProperties()
	child.noteSubtreeChanged()
}

// RemoveFromParent detaches the layer and its subtree. The subtree
// stays registered with the tree until released.
func (l *Layer) RemoveFromParent() {
	p := l.Parent()
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == l {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	l.parentID = 0
	l.tree.needsFullTreeSync = true
	l.tree.SetNeedsUpdateDrawProperties()
	l.tree.releaseSubtree(l)
}

// Mask returns the mask layer, or nil.
func (l *Layer) Mask() *Layer { return l.mask }

// SetMask sets a mask layer owned by l.
func (l *Layer) SetMask(m *Layer) {
	l.mask = m
	if m != nil {
		m.parentID = l.id
	}
	l.tree.needsFullTreeSync = true
	l.notePropertyChanged()
}

// Replica returns the replica layer, or nil.
func (l *Layer) Replica() *Layer { return l.replica }

// SetReplica sets a replica layer owned by l. The replica transform is
// applied to l's surface, relative to l.
func (l *Layer) SetReplica(r *Layer) {
	l.replica = r
	if r != nil {
		r.parentID = l.id
	}
	l.tree.needsFullTreeSync = true
	l.notePropertyChanged()
}

// Transform returns the transform to the parent's space.
func (l *Layer) Transform() geom.Transform { return l.transform }

// SetTransform sets the transform to the parent's space.
func (l *Layer) SetTransform(t geom.Transform) {
	if l.transform == t {
		return
	}
	l.transform = t
	l.noteSubtreeChanged()
}

// Bounds returns the content size.
func (l *Layer) Bounds() image.Point { return l.bounds }

// SetBounds sets the content size.
func (l *Layer) SetBounds(b image.Point) {
	if l.bounds == b {
		return
	}
	l.bounds = b
	l.noteSubtreeChanged()
}

// ContentRect returns the layer's content rect in content space.
func (l *Layer) ContentRect() image.Rectangle {
	return image.Rectangle{Max: l.bounds}
}

// Opacity returns the layer's own opacity.
func (l *Layer) Opacity() float32 { return l.opacity }

// SetOpacity sets the layer's own opacity, clamped to [0, 1].
func (l *Layer) SetOpacity(o float32) {
	o = min(max(o, 0), 1)
	if l.opacity == o {
		return
	}
	l.opacity = o
	l.noteSubtreeChanged()
}

// Content returns what the layer draws.
func (l *Layer) Content() ContentKind { return l.content }

// Color returns the solid color of a ContentSolidColor layer.
func (l *Layer) Color() gputypes.Color { return l.color }

// SetSolidColor makes the layer draw c over its bounds.
func (l *Layer) SetSolidColor(c gputypes.Color) {
	l.content = ContentSolidColor
	l.color = c
	l.DrawsContent = true
	l.notePropertyChanged()
}

// Tiling returns the tiling of a ContentTiled layer.
func (l *Layer) Tiling() *tile.Tiling { return l.tiling }

// SetTiling makes the layer draw rastered tiles.
func (l *Layer) SetTiling(t *tile.Tiling) {
	l.content = ContentTiled
	l.tiling = t
	l.DrawsContent = t != nil
	l.notePropertyChanged()
}

// UIResource returns the UI resource of a ContentTexture layer.
func (l *Layer) UIResource() UIResourceID { return l.uiResource }

// SetUIResource makes the layer draw the uv part of a UI resource.
func (l *Layer) SetUIResource(uid UIResourceID, uv geom.RectF) {
	l.content = ContentTexture
	l.uiResource = uid
	l.uv = uv
	l.DrawsContent = true
	l.notePropertyChanged()
}

// DelegatedPasses returns the passes of a ContentDelegated layer.
func (l *Layer) DelegatedPasses() []*renderpass.Pass { return l.delegatedPasses }

// SetDelegatedPasses makes the layer draw passes produced elsewhere. The
// last pass is the root; the others are inputs it consumes.
func (l *Layer) SetDelegatedPasses(passes []*renderpass.Pass) {
	l.content = ContentDelegated
	l.delegatedPasses = passes
	l.DrawsContent = len(passes) > 0
	l.notePropertyChanged()
}

// InvalidateRect marks r, in content space, as repainted.
func (l *Layer) InvalidateRect(r image.Rectangle) {
	r = r.Intersect(l.ContentRect())
	if r.Empty() {
		return
	}
	l.updateRect = geom.UnionRect(l.updateRect, r)
	if l.tiling != nil {
		l.tiling.Invalidate(r)
	}
	l.tree.SetNeedsUpdateDrawProperties()
}

// UpdateRect returns the area repainted since the last draw.
func (l *Layer) UpdateRect() image.Rectangle { return l.updateRect }

// RequestCopyOfOutput asks for the pixels of this layer's surface after
// the next draw.
func (l *Layer) RequestCopyOfOutput(r *renderpass.CopyOutputRequest) {
	l.copyRequests = append(l.copyRequests, r)
	l.tree.SetNeedsUpdateDrawProperties()
}

// HasCopyRequest reports whether copy requests are pending.
func (l *Layer) HasCopyRequest() bool { return len(l.copyRequests) > 0 }

// TakeCopyRequests removes and returns the pending copy requests.
func (l *Layer) TakeCopyRequests() []*renderpass.CopyOutputRequest {
	r := l.copyRequests
	l.copyRequests = nil
	return r
}

// LayerPropertyChanged reports whether the layer moved or changed look
// since the last draw, directly or through an ancestor.
func (l *Layer) LayerPropertyChanged() bool {
	return l.propertyChanged || l.ancestorChanged
}

func (l *Layer) notePropertyChanged() {
	l.propertyChanged = true
	l.tree.SetNeedsUpdateDrawProperties()
}

// noteSubtreeChanged marks l changed and every descendant as moved with it.
func (l *Layer) noteSubtreeChanged() {
	l.notePropertyChanged()
	var mark func(*Layer)
	mark = func(n *Layer) {
		for _, c := range n.children {
			c.ancestorChanged = true
			mark(c)
		}
		if n.replica != nil {
			n.replica.ancestorChanged = true
		}
	}
	mark(l)
}

// ResetChangeTracking forgets property changes and repaints once they
// have been drawn.
func (l *Layer) ResetChangeTracking() {
	l.propertyChanged = false
	l.ancestorChanged = false
	l.updateRect = image.Rectangle{}
	if l.surface != nil {
		l.surface.surfacePropertyChanged = false
	}
}

// DrawProperties returns the derived per-frame properties.
func (l *Layer) DrawProperties() *DrawProperties { return &l.draw }

// ScreenSpaceTransform is shorthand for DrawProperties().ScreenSpaceTransform.
func (l *Layer) ScreenSpaceTransform() geom.Transform { return l.draw.ScreenSpaceTransform }

// VisibleContentRect is shorthand for DrawProperties().VisibleContentRect.
func (l *Layer) VisibleContentRect() image.Rectangle { return l.draw.VisibleContentRect }

// RenderSurface returns the surface owned by the layer, or nil.
func (l *Layer) RenderSurface() *RenderSurface { return l.surface }

// RenderTarget returns the layer owning the surface l draws into.
func (l *Layer) RenderTarget() *Layer { return l.tree.LayerByID(l.draw.RenderTargetID) }

// pushPropertiesTo copies producer-set state onto the matching layer of
// another tree.
func (l *Layer) pushPropertiesTo(dst *Layer) {
	dst.DrawsContent = l.DrawsContent
	dst.ContentsOpaque = l.ContentsOpaque
	dst.MasksToBounds = l.MasksToBounds
	dst.ForceRenderSurface = l.ForceRenderSurface
	dst.Scrollable = l.Scrollable
	dst.ScrollParentID = l.ScrollParentID
	dst.ShouldScrollOnMainThread = l.ShouldScrollOnMainThread
	dst.HaveWheelEventHandlers = l.HaveWheelEventHandlers
	dst.NonFastScrollableRegion = l.NonFastScrollableRegion.Clone()
	dst.TouchEventHandlerRegion = l.TouchEventHandlerRegion.Clone()
	dst.TransformIsAnimating = l.TransformIsAnimating || dst.hasTransformAnimation()
	dst.BackgroundFilterOutset = l.BackgroundFilterOutset
	dst.HorizontalScrollbarID = l.HorizontalScrollbarID
	dst.VerticalScrollbarID = l.VerticalScrollbarID
	if l.ScrollbarAnimator != nil && dst.ScrollbarAnimator == nil {
		dst.ScrollbarAnimator = l.ScrollbarAnimator.clone()
	}

	if dst.transform != l.transform || dst.bounds != l.bounds || dst.opacity != l.opacity {
		dst.transform = l.transform
		dst.bounds = l.bounds
		dst.opacity = l.opacity
		dst.noteSubtreeChanged()
	}
	if l.propertyChanged {
		dst.propertyChanged = true
	}

	dst.content = l.content
	dst.color = l.color
	dst.tiling = l.tiling
	dst.uiResource = l.uiResource
	dst.uv = l.uv
	dst.delegatedPasses = l.delegatedPasses
	dst.updateRect = geom.UnionRect(dst.updateRect, l.updateRect)

	// Impl-side scrolling since the commit was sent is kept on top of
	// the committed offset.
	dst.scrollOffset = l.scrollOffset
	dst.scrollDelta = dst.scrollDelta.Sub(dst.sentScrollDelta)
	dst.sentScrollDelta = geom.Vector{}
	dst.maxScrollOffset = l.maxScrollOffset

	dst.copyRequests = append(dst.copyRequests, l.TakeCopyRequests()...)
	l.pushAnimationsTo(dst)

	l.ResetChangeTracking()
}
