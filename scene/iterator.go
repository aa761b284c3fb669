package scene

import (
	"image"
	"iter"

	"github.com/gogpu/compositor/geom"
)

// Role tells what a front-to-back Position stands for.
type Role int

const (
	// RoleItself is a layer drawing its own content into Target.
	RoleItself Role = iota
	// RoleContributingSurface is a child surface drawn into Target.
	// Its own contents have already been visited.
	RoleContributingSurface
	// RoleTargetSurface is reported once every contributor of the
	// surface owned by Layer has been visited.
	RoleTargetSurface
)

func (r Role) String() string {
	switch r {
	case RoleItself:
		return "Itself"
	case RoleContributingSurface:
		return "ContributingSurface"
	case RoleTargetSurface:
		return "TargetSurface"
	default:
		return "Unknown"
	}
}

// Position is one step of the front-to-back walk.
type Position struct {
	Role  Role
	Layer *Layer
	// Target owns the surface Layer draws into. For RoleTargetSurface it
	// is Layer itself.
	Target *Layer
}

// FrontToBack walks the render surface layer list from the topmost
// contributor to the bottom. A surface's contents are visited before the
// surface is reported as a contributor of its parent, and every surface
// is reported with RoleTargetSurface after its last contributor.
func (t *Tree) FrontToBack() iter.Seq[Position] {
	return func(yield func(Position) bool) {
		if len(t.renderSurfaceLayerList) == 0 {
			return
		}
		walkSurface(t.renderSurfaceLayerList[0], yield)
	}
}

func walkSurface(owner *Layer, yield func(Position) bool) bool {
	list := owner.surface.layerList
	for i := len(list) - 1; i >= 0; i-- {
		l := list[i]
		if l != owner && l.surface != nil {
			if !walkSurface(l, yield) {
				return false
			}
			if !yield(Position{Role: RoleContributingSurface, Layer: l, Target: owner}) {
				return false
			}
			continue
		}
		if !yield(Position{Role: RoleItself, Layer: l, Target: owner}) {
			return false
		}
	}
	return yield(Position{Role: RoleTargetSurface, Layer: owner, Target: owner})
}

// layerContainsScreenPoint reports whether p, in device pixels, falls on
// the layer's content and inside every clip applied to it.
func layerContainsScreenPoint(l *Layer, p geom.Point) bool {
	inv, ok := l.draw.ScreenSpaceTransform.Inverse()
	if !ok {
		return false
	}
	if !geom.RectFFromImage(l.ContentRect()).Contains(inv.MapPoint(p)) {
		return false
	}
	return !pointIsClipped(l, p)
}

// pointIsClipped walks up the render targets checking clip rects.
func pointIsClipped(l *Layer, p geom.Point) bool {
	pi := p.Floor()
	for l != nil {
		if l.draw.IsClipped && !pi.In(l.draw.ClipRect) {
			return true
		}
		if s := l.surface; s != nil && s.isClipped && !pi.In(s.clipRect) {
			return true
		}
		target := l.RenderTarget()
		if target == l {
			target = l.Parent()
			if target != nil {
				target = target.RenderTarget()
			}
		}
		l = target
	}
	return false
}

// FindLayerThatIsHitByPoint returns the topmost drawn layer under p, in
// device pixels, or nil.
func (t *Tree) FindLayerThatIsHitByPoint(p geom.Point) *Layer {
	for pos := range t.FrontToBack() {
		if pos.Role != RoleItself {
			continue
		}
		if layerContainsScreenPoint(pos.Layer, p) {
			return pos.Layer
		}
	}
	return nil
}

// regionContainsScreenPoint maps p into l's content space and checks r.
func regionContainsScreenPoint(l *Layer, r *geom.Region, p geom.Point) bool {
	if r.IsEmpty() {
		return false
	}
	inv, ok := l.draw.ScreenSpaceTransform.Inverse()
	if !ok {
		return false
	}
	q := inv.MapPoint(p).Floor()
	return r.Contains(image.Rectangle{Min: q, Max: q.Add(image.Pt(1, 1))})
}

// FindLayerWithTouchHandlerAt returns the layer whose touch handler region
// contains p, starting at the hit layer and walking up its ancestors.
func (t *Tree) FindLayerWithTouchHandlerAt(p geom.Point) *Layer {
	for l := t.FindLayerThatIsHitByPoint(p); l != nil; l = l.Parent() {
		if regionContainsScreenPoint(l, &l.TouchEventHandlerRegion, p) {
			return l
		}
	}
	return nil
}
