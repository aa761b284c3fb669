package scene

import (
	"image"

	"github.com/gogpu/compositor/geom"
)

// Viewport describes the device surface draw properties are computed for.
type Viewport struct {
	// DeviceSize is the viewport size in device pixels.
	DeviceSize image.Point
	// DeviceScaleFactor maps layout pixels to device pixels.
	DeviceScaleFactor float32
}

// Rect returns the viewport rectangle in device pixels.
func (v Viewport) Rect() image.Rectangle { return image.Rectangle{Max: v.DeviceSize} }

// scale returns the device scale, treating zero as one.
func (v Viewport) scale() float32 {
	if v.DeviceScaleFactor <= 0 {
		return 1
	}
	return v.DeviceScaleFactor
}

// UpdateDrawProperties computes screen transforms, visible rects, render
// surfaces and the render surface layer list. It does nothing when the
// properties are up to date for vp.
func (t *Tree) UpdateDrawProperties(vp Viewport) {
	if !t.needsUpdateDrawProperties && vp == t.viewport {
		return
	}
	t.viewport = vp
	t.renderSurfaceLayerList = t.renderSurfaceLayerList[:0]
	t.needsUpdateDrawProperties = false
	if t.root == nil {
		return
	}
	t.updateRootScrollMaxOffset(vp)

	ds := vp.scale()
	c := drawCalc{tree: t, viewport: vp.Rect()}
	c.visit(t.root, geom.Scale(ds, ds), nil, vp.Rect(), true, 1, false)
}

// updateRootScrollMaxOffset derives the page's scroll range from the
// viewport and page scale.
func (t *Tree) updateRootScrollMaxOffset(vp Viewport) {
	l := t.RootScrollLayer()
	if l == nil {
		return
	}
	scale := t.TotalPageScaleFactor() * vp.scale()
	if scale <= 0 {
		return
	}
	visible := geom.Vec(float32(vp.DeviceSize.X)/scale, float32(vp.DeviceSize.Y)/scale)
	l.maxScrollOffset = geom.Vector{
		X: max(float32(l.bounds.X)-visible.X, 0),
		Y: max(float32(l.bounds.Y)-visible.Y, 0),
	}
}

type drawCalc struct {
	tree     *Tree
	viewport image.Rectangle
}

// visit computes draw properties for l and its subtree. target is the
// surface l draws into (nil only for the root); clip is in device pixels.
func (c *drawCalc) visit(l *Layer, parentScreen geom.Transform, target *RenderSurface,
	clip image.Rectangle, clipped bool, opacity float32, animating bool) {
	screen := parentScreen.Multiply(l.transform)
	if l.id == c.tree.rootScrollLayerID {
		ps := c.tree.TotalPageScaleFactor()
		screen = screen.Multiply(geom.Scale(ps, ps))
	}
	if off := l.TotalScrollOffset(); !off.IsZero() {
		screen = screen.Multiply(geom.Translate(-off.X, -off.Y))
	}
	animating = animating || l.TransformIsAnimating
	opacity *= l.opacity

	d := &l.draw
	d.ScreenSpaceTransform = screen
	d.ScreenSpaceTransformIsAnimating = animating

	if l.opacity == 0 && !l.HasCopyRequest() && target != nil {
		c.clearSubtree(l)
		return
	}

	isRoot := target == nil
	if isRoot || c.needsSurface(l) {
		c.visitSurfaceOwner(l, target, clip, clipped, opacity, animating)
		return
	}

	l.surface = nil
	d.Opacity = opacity
	d.RenderTargetID = target.owner.id
	c.computeContentRects(l, clip, clipped)
	if l.DrawsContent && !d.DrawableContentRect.Empty() {
		target.layerList = append(target.layerList, l)
	}
	c.visitChildren(l, target, clip, clipped, opacity, animating)
}

func (c *drawCalc) visitSurfaceOwner(l *Layer, target *RenderSurface, clip image.Rectangle,
	clipped bool, opacity float32, animating bool) {
	isRoot := target == nil
	s := l.surface
	if s == nil {
		s = newRenderSurface(l)
		l.surface = s
		s.surfacePropertyChanged = true
	}
	s.layerList = s.layerList[:0]
	s.drawOpacity = opacity
	s.clipRect, s.isClipped = clip, clipped && !isRoot
	// Children read this flag from their target, so it is set first.
	s.contributesToDrawnSurface = isRoot || (target.contributesToDrawnSurface && opacity > 0)

	parentIndex := -1
	if target != nil {
		parentIndex = len(target.layerList)
		target.layerList = append(target.layerList, l)
	}
	rsllIndex := len(c.tree.renderSurfaceLayerList)
	c.tree.renderSurfaceLayerList = append(c.tree.renderSurfaceLayerList, l)

	d := &l.draw
	d.Opacity = 1
	d.RenderTargetID = l.id

	// Inside its own surface the owner is only clipped by the viewport.
	innerClip, innerClipped := image.Rectangle{}, false
	if isRoot {
		innerClip, innerClipped = c.viewport, true
	}
	c.computeContentRects(l, innerClip, innerClipped)
	if l.DrawsContent && !d.DrawableContentRect.Empty() {
		s.layerList = append(s.layerList, l)
	}
	c.visitChildren(l, s, innerClip, innerClipped, 1, animating)

	if l.replica != nil {
		l.replica.draw.ScreenSpaceTransform = d.ScreenSpaceTransform.Multiply(l.replica.transform)
		l.replica.draw.RenderTargetID = d.RenderTargetID
	}
	if l.mask != nil {
		l.mask.draw.ScreenSpaceTransform = d.ScreenSpaceTransform
		l.mask.draw.RenderTargetID = l.id
		l.mask.draw.VisibleContentRect = l.mask.ContentRect()
	}

	if isRoot {
		s.contentRect = c.viewport
	} else {
		var content image.Rectangle
		for _, e := range s.layerList {
			if e != l && e.surface != nil {
				content = geom.UnionRect(content, e.surface.drawableRect())
				if e.replica != nil {
					content = geom.UnionRect(content, e.surface.ReplicaTransform().MapEnclosingRect(e.surface.drawableRect()))
				}
				continue
			}
			content = geom.UnionRect(content, e.draw.DrawableContentRect)
		}
		if s.isClipped {
			content = content.Intersect(s.clipRect)
		}
		s.contentRect = content

		if content.Empty() && !l.HasCopyRequest() {
			// Nothing draws into the surface; drop it from the frame.
			target.layerList = append(target.layerList[:parentIndex], target.layerList[parentIndex+1:]...)
			rsll := c.tree.renderSurfaceLayerList
			c.tree.renderSurfaceLayerList = append(rsll[:rsllIndex], rsll[rsllIndex+1:]...)
			l.surface = nil
			return
		}
	}

	if s.contentRect != s.lastContentRect || s.drawOpacity != s.lastDrawOpacity {
		s.surfacePropertyChanged = true
	}
}

func (c *drawCalc) visitChildren(l *Layer, target *RenderSurface, clip image.Rectangle,
	clipped bool, opacity float32, animating bool) {
	if l.MasksToBounds {
		bounds := l.draw.ScreenSpaceTransform.MapEnclosingRect(l.ContentRect())
		if clipped {
			clip = clip.Intersect(bounds)
		} else {
			clip = bounds
		}
		clipped = true
	}
	for _, child := range l.children {
		c.visit(child, l.draw.ScreenSpaceTransform, target, clip, clipped, opacity, animating)
	}
}

// computeContentRects sets the clip, drawable and visible content rects.
func (c *drawCalc) computeContentRects(l *Layer, clip image.Rectangle, clipped bool) {
	d := &l.draw
	d.ClipRect, d.IsClipped = clip, clipped
	drawable := d.ScreenSpaceTransform.MapEnclosingRect(l.ContentRect())
	if clipped {
		drawable = drawable.Intersect(clip)
	}
	d.DrawableContentRect = drawable
	d.VisibleContentRect = image.Rectangle{}
	if drawable.Empty() {
		return
	}
	inv, ok := d.ScreenSpaceTransform.Inverse()
	if !ok {
		d.DrawableContentRect = image.Rectangle{}
		return
	}
	d.VisibleContentRect = inv.MapEnclosingRect(drawable).Intersect(l.ContentRect())
}

// needsSurface reports whether l must draw through its own surface.
func (c *drawCalc) needsSurface(l *Layer) bool {
	switch {
	case l.ForceRenderSurface, l.HasCopyRequest(), l.mask != nil, l.replica != nil:
		return true
	case l.opacity < 1:
		n := drawingDescendants(l)
		return n > 0 && (l.DrawsContent || n > 1)
	}
	return false
}

func drawingDescendants(l *Layer) int {
	n := 0
	for _, c := range l.children {
		if c.DrawsContent {
			n++
		}
		n += drawingDescendants(c)
	}
	return n
}

// clearSubtree marks an invisible subtree as drawing nothing.
func (c *drawCalc) clearSubtree(l *Layer) {
	walkAll(l, func(n *Layer) {
		n.surface = nil
		n.draw.VisibleContentRect = image.Rectangle{}
		n.draw.DrawableContentRect = image.Rectangle{}
	})
}
