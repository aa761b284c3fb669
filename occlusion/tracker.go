// Package occlusion tracks which parts of each render target are already
// covered by opaque content during a front-to-back walk, and culls quads
// against it.
package occlusion

import (
	"image"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/scene"
)

// DefaultMinimumTrackingSize is the smallest opaque rect worth tracking.
var DefaultMinimumTrackingSize = image.Pt(160, 160)

type stackEntry struct {
	target *scene.Layer
	// outside is occlusion from content drawn over the target surface
	// by its ancestors' other contributors.
	outside geom.Region
	// inside is occlusion from contributors of the target itself.
	inside geom.Region
}

// Tracker accumulates occlusion while walking a tree with
// scene.Tree.FrontToBack. Every Position must be passed to EnterLayer
// before its quads are appended and to LeaveLayer afterwards.
type Tracker struct {
	screen  image.Rectangle
	minSize image.Point
	stack   []stackEntry

	// RecordRects keeps the rects that did and did not occlude, for
	// debug overlays.
	RecordRects bool

	OccludingScreenRects    []image.Rectangle
	NonOccludingScreenRects []image.Rectangle
}

// NewTracker returns a tracker for a frame whose root content rect is
// screen. Opaque rects smaller than minSize on either axis are ignored.
func NewTracker(screen image.Rectangle, minSize image.Point) *Tracker {
	return &Tracker{screen: screen, minSize: minSize}
}

// EnterLayer prepares the tracker for pos.
func (t *Tracker) EnterLayer(pos scene.Position) {
	switch pos.Role {
	case scene.RoleItself:
		t.enterTarget(pos.Target)
	case scene.RoleTargetSurface:
		t.finishedTarget(pos.Layer)
	}
}

// LeaveLayer records the occlusion added by pos.
func (t *Tracker) LeaveLayer(pos scene.Position) {
	switch pos.Role {
	case scene.RoleItself:
		t.markOccludedBehindLayer(pos.Layer)
	case scene.RoleContributingSurface:
		t.leaveToTarget()
	}
}

func (t *Tracker) markOccludedBehindLayer(l *scene.Layer) {
	d := l.DrawProperties()
	if d.Opacity < 1 || d.ScreenSpaceTransformIsAnimating {
		return
	}
	opaque := l.VisibleContentOpaqueRect()
	if opaque.Empty() {
		return
	}
	tr := d.ScreenSpaceTransform
	if !tr.PreservesAxisAlignment() {
		t.recordNonOccluding(tr.MapEnclosingRect(opaque))
		return
	}
	r := tr.MapEnclosedRect(opaque)
	if d.IsClipped {
		r = r.Intersect(d.ClipRect)
	}
	if r.Empty() {
		return
	}
	if r.Dx() < t.minSize.X || r.Dy() < t.minSize.Y {
		t.recordNonOccluding(r)
		return
	}
	top := &t.stack[len(t.stack)-1]
	top.inside.Union(r)
	if t.RecordRects {
		t.OccludingScreenRects = append(t.OccludingScreenRects, r)
	}
}

func (t *Tracker) recordNonOccluding(r image.Rectangle) {
	if t.RecordRects && !r.Empty() {
		t.NonOccludingScreenRects = append(t.NonOccludingScreenRects, r)
	}
}

// enterTarget makes target the top of the stack. A new surface is pushed
// with its ancestors' occlusion as outside occlusion.
func (t *Tracker) enterTarget(target *scene.Layer) {
	n := len(t.stack)
	if n > 0 && t.stack[n-1].target == target {
		return
	}
	if parent := parentTarget(target); parent != nil {
		if n == 0 || t.stack[n-1].target != parent {
			t.enterTarget(parent)
		}
	}
	var e stackEntry
	e.target = target
	if n := len(t.stack); n > 0 {
		top := &t.stack[n-1]
		e.outside = top.outside.Clone()
		e.outside.UnionRegion(&top.inside)
	}
	t.stack = append(t.stack, e)
}

// finishedTarget is called once every contributor of owner's surface was
// visited. Contents seen through opacity or a mask do not occlude what is
// behind the surface.
func (t *Tracker) finishedTarget(owner *scene.Layer) {
	t.enterTarget(owner)
	s := owner.RenderSurface()
	if s == nil || s.DrawOpacity() < 1 || owner.Mask() != nil || owner.BackgroundFilterOutset > 0 {
		t.stack[len(t.stack)-1].inside.Clear()
	}
}

// leaveToTarget pops the finished surface on top and adds the occlusion
// its contents provide to the surface it draws into.
func (t *Tracker) leaveToTarget() {
	n := len(t.stack)
	if n < 2 {
		return
	}
	child := t.stack[n-1]
	t.stack = t.stack[:n-1]
	parent := &t.stack[n-2]

	owner := child.target
	s := owner.RenderSurface()
	if s == nil {
		return
	}
	clip, clipped := s.ClipRect()
	for _, r := range child.inside.Rects() {
		if clipped {
			r = r.Intersect(clip)
		}
		parent.inside.Union(r)
	}
	if owner.Replica() != nil {
		rt := s.ReplicaTransform()
		if !rt.PreservesAxisAlignment() {
			return
		}
		for _, r := range child.inside.Rects() {
			r = rt.MapEnclosedRect(r)
			if clipped {
				r = r.Intersect(clip)
			}
			parent.inside.Union(r)
		}
	}
}

func parentTarget(owner *scene.Layer) *scene.Layer {
	p := owner.Parent()
	if p == nil {
		return nil
	}
	return p.RenderTarget()
}

// UnoccludedRect returns the bounding box of the part of r, in target
// space of target, that is not occluded. fromOutside reports whether
// occlusion from outside the target surface reduced it.
func (t *Tracker) UnoccludedRect(target *scene.Layer, r image.Rectangle) (unoccluded image.Rectangle, fromOutside bool) {
	r = r.Intersect(t.screen)
	if r.Empty() || len(t.stack) == 0 {
		return r, false
	}
	e := t.entryFor(target)
	if e == nil {
		return r, false
	}
	inside := e.inside.UnoccludedPart(r)
	if inside.Empty() {
		return inside, false
	}
	unoccluded = e.outside.UnoccludedPart(inside)
	return unoccluded, unoccluded != inside
}

// entryFor returns the stack entry of target. While a contributing
// surface is appended its own entry is still on top, so its parent is
// found one below.
func (t *Tracker) entryFor(target *scene.Layer) *stackEntry {
	n := len(t.stack)
	switch {
	case n > 0 && t.stack[n-1].target == target:
		return &t.stack[n-1]
	case n > 1 && t.stack[n-2].target == target:
		return &t.stack[n-2]
	}
	return nil
}

// Occluded reports whether r is hidden entirely.
func (t *Tracker) Occluded(target *scene.Layer, r image.Rectangle) bool {
	u, _ := t.UnoccludedRect(target, r)
	return u.Empty()
}

// OcclusionInTarget returns the occlusion from inside the current target.
func (t *Tracker) OcclusionInTarget() geom.Region {
	if len(t.stack) == 0 {
		return geom.Region{}
	}
	return t.stack[len(t.stack)-1].inside.Clone()
}

// OcclusionOutsideTarget returns the occlusion from outside the current
// target.
func (t *Tracker) OcclusionOutsideTarget() geom.Region {
	if len(t.stack) == 0 {
		return geom.Region{}
	}
	return t.stack[len(t.stack)-1].outside.Clone()
}
