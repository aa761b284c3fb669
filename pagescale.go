package compositor

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/gogpu/compositor/geom"
)

// cubicBezier is a CSS-style timing function through (0,0), (x1,y1),
// (x2,y2) and (1,1).
type cubicBezier struct {
	x1, y1, x2, y2 float32
}

// pageScaleEasing is ease-in-out with a long, soft tail.
var pageScaleEasing = cubicBezier{x1: 0.8, y1: 0, x2: 0.3, y2: 0.9}

func bezierAt(a, b, t float32) float32 {
	// B(t) for control values 0, a, b, 1.
	mt := 1 - t
	return 3*mt*mt*t*a + 3*mt*t*t*b + t*t*t
}

func bezierSlope(a, b, t float32) float32 {
	mt := 1 - t
	return 3*mt*mt*a + 6*mt*t*(b-a) + 3*t*t*(1-b)
}

// Solve returns the eased progress for linear progress x in [0, 1].
func (c cubicBezier) Solve(x float32) float32 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	const eps = 1e-6
	t := x
	for range 8 {
		err := bezierAt(c.x1, c.x2, t) - x
		if math32.Abs(err) < eps {
			return bezierAt(c.y1, c.y2, t)
		}
		d := bezierSlope(c.x1, c.x2, t)
		if math32.Abs(d) < eps {
			break
		}
		t -= err / d
	}
	lo, hi := float32(0), float32(1)
	t = x
	for range 32 {
		v := bezierAt(c.x1, c.x2, t)
		if math32.Abs(v-x) < eps {
			break
		}
		if v < x {
			lo = t
		} else {
			hi = t
		}
		t = (lo + hi) / 2
	}
	return bezierAt(c.y1, c.y2, t)
}

// PageScaleAnimation moves the root scroll offset and page scale
// together so that one content point, the anchor, stays at the same
// relative position in the viewport for the whole animation.
//
// Offsets and anchors are in content pixels; the viewport size is in
// layout pixels, so at page scale s the viewport covers viewport/s
// content pixels.
type PageScaleAnimation struct {
	startOffset geom.Vector
	startScale  float32
	viewport    geom.Vector
	rootSize    geom.Vector
	start       time.Time

	targetOffset geom.Vector
	targetScale  float32
	duration     time.Duration

	startAnchor  geom.Vector
	targetAnchor geom.Vector
	// relative anchors are fractions of the viewport.
	startRelAnchor  geom.Vector
	targetRelAnchor geom.Vector
}

// NewPageScaleAnimation starts from the current root scroll offset and
// page scale.
func NewPageScaleAnimation(startOffset geom.Vector, startScale float32, viewport, rootSize geom.Vector, start time.Time) *PageScaleAnimation {
	return &PageScaleAnimation{
		startOffset:  startOffset,
		startScale:   startScale,
		viewport:     viewport,
		rootSize:     rootSize,
		start:        start,
		targetOffset: startOffset,
		targetScale:  startScale,
	}
}

// ZoomTo animates to scale with targetOffset as the final scroll offset.
func (a *PageScaleAnimation) ZoomTo(targetOffset geom.Vector, scale float32, d time.Duration) {
	a.targetScale = scale
	a.duration = d
	a.targetOffset = a.clampOffset(targetOffset)
	if a.startScale == a.targetScale {
		a.startAnchor, a.targetAnchor = a.startOffset, a.targetOffset
		a.startRelAnchor, a.targetRelAnchor = geom.Vector{}, geom.Vector{}
		return
	}
	a.inferAnchor()
}

// ZoomWithAnchor animates to scale keeping anchor, in layout pixels
// from the viewport origin, fixed on screen where the scroll range
// allows it.
func (a *PageScaleAnimation) ZoomWithAnchor(anchor geom.Vector, scale float32, d time.Duration) {
	target := a.startOffset.Add(anchor.Scale(1 / a.startScale)).Sub(anchor.Scale(1 / scale))
	a.ZoomTo(target, scale, d)
}

// inferAnchor finds the content point at the same relative position in
// the start and target viewports.
func (a *PageScaleAnimation) inferAnchor() {
	sv := a.viewportAtScale(a.startScale)
	tv := a.viewportAtScale(a.targetScale)
	dv := sv.Sub(tv)
	var rel geom.Vector
	if dv.X != 0 {
		rel.X = (a.targetOffset.X - a.startOffset.X) / dv.X
	}
	if dv.Y != 0 {
		rel.Y = (a.targetOffset.Y - a.startOffset.Y) / dv.Y
	}
	a.startRelAnchor, a.targetRelAnchor = rel, rel
	a.startAnchor = a.startOffset.Add(rel.ScaleXY(sv.X, sv.Y))
	a.targetAnchor = a.targetOffset.Add(rel.ScaleXY(tv.X, tv.Y))
}

func (a *PageScaleAnimation) viewportAtScale(s float32) geom.Vector {
	return a.viewport.Scale(1 / s)
}

func (a *PageScaleAnimation) clampOffset(o geom.Vector) geom.Vector {
	maxOffset := a.rootSize.Sub(a.viewportAtScale(a.targetScale))
	return geom.Vector{
		X: max(min(o.X, maxOffset.X), 0),
		Y: max(min(o.Y, maxOffset.Y), 0),
	}
}

// TargetScale returns the final page scale.
func (a *PageScaleAnimation) TargetScale() float32 { return a.targetScale }

// TargetOffset returns the final scroll offset.
func (a *PageScaleAnimation) TargetOffset() geom.Vector { return a.targetOffset }

// IsCompleteAt reports whether the animation has finished at t.
func (a *PageScaleAnimation) IsCompleteAt(t time.Time) bool {
	return !t.Before(a.start.Add(a.duration))
}

func (a *PageScaleAnimation) progressAt(t time.Time) float32 {
	if a.duration <= 0 || a.IsCompleteAt(t) {
		return 1
	}
	x := float32(t.Sub(a.start)) / float32(a.duration)
	return pageScaleEasing.Solve(x)
}

// viewportAt interpolates the visible content size, which makes the
// zoom feel linear.
func (a *PageScaleAnimation) viewportAt(p float32) geom.Vector {
	sv := a.viewportAtScale(a.startScale)
	tv := a.viewportAtScale(a.targetScale)
	return sv.Add(tv.Sub(sv).Scale(p))
}

// ScaleAt returns the page scale at t.
func (a *PageScaleAnimation) ScaleAt(t time.Time) float32 {
	p := a.progressAt(t)
	if p >= 1 {
		return a.targetScale
	}
	v := a.viewportAt(p)
	if v.X > 0 {
		return a.viewport.X / v.X
	}
	return a.startScale + (a.targetScale-a.startScale)*p
}

// OffsetAt returns the root scroll offset at t.
func (a *PageScaleAnimation) OffsetAt(t time.Time) geom.Vector {
	p := a.progressAt(t)
	if p >= 1 {
		return a.targetOffset
	}
	anchor := a.startAnchor.Add(a.targetAnchor.Sub(a.startAnchor).Scale(p))
	rel := a.startRelAnchor.Add(a.targetRelAnchor.Sub(a.startRelAnchor).Scale(p))
	v := a.viewportAt(p)
	return anchor.Sub(rel.ScaleXY(v.X, v.Y))
}

// StartPageScaleAnimation zooms the page to scale over d. With
// anchorPoint set, target is a point in layout pixels from the viewport
// origin to keep fixed; otherwise it is the final root scroll offset.
func (h *Host) StartPageScaleAnimation(target geom.Vector, anchorPoint bool, scale float32, d time.Duration) {
	root := h.active.RootScrollLayer()
	if root == nil {
		return
	}
	scale = min(max(scale, h.active.MinPageScaleFactor()), h.active.MaxPageScaleFactor())
	b := root.Bounds()
	a := NewPageScaleAnimation(root.TotalScrollOffset(), h.active.TotalPageScaleFactor(),
		h.UnscaledScrollableViewportSize(), geom.Vec(float32(b.X), float32(b.Y)), h.now())
	if anchorPoint {
		a.ZoomWithAnchor(target, scale, d)
	} else {
		a.ZoomTo(target, scale, d)
	}
	h.pageScaleAni = a

	h.client.setNeedsRedraw()
	h.client.setNeedsCommit()
	h.client.renewTreePriority()
}

// PageScaleAnimation returns the running page scale animation, or nil.
func (h *Host) PageScaleAnimation() *PageScaleAnimation { return h.pageScaleAni }

func (h *Host) animatePageScale(now time.Time) {
	a := h.pageScaleAni
	root := h.active.RootScrollLayer()
	if a == nil || root == nil {
		return
	}
	total := root.TotalScrollOffset()
	h.active.SetPageScaleDelta(a.ScaleAt(now) / h.active.PageScaleFactor())
	next := a.OffsetAt(now)
	h.updateMaxScrollOffset()
	root.ScrollBy(next.Sub(total))
	h.client.setNeedsRedraw()

	if a.IsCompleteAt(now) {
		h.pageScaleAni = nil
		h.client.setNeedsCommit()
		h.client.renewTreePriority()
	}
}
