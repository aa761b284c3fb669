// Package damage accumulates, per render surface, the region of the
// surface that changed since it was last drawn.
package damage

import (
	"image"

	"github.com/gogpu/compositor/geom"
)

// Contributor describes one layer or child surface drawing into the
// tracked surface. All rects are in the target space of that surface.
type Contributor struct {
	// ID is unique among contributors of one surface. Child surfaces use
	// the owning layer id, replicas a distinct id.
	ID int
	// Rect is the area the contributor covers this frame.
	Rect image.Rectangle
	// Changed reports a property change (transform, opacity, bounds)
	// that invalidates the whole old and new area.
	Changed bool
	// Invalidation is the area whose contents changed without any
	// property change: a layer's update rect or a child surface's own
	// damage, mapped into this target.
	Invalidation image.Rectangle
}

// Tracker tracks damage for one render surface.
//
// Update must be called once per frame for every surface, children
// before their ancestors, so that a parent can fold in the damage of
// the surfaces drawing into it.
type Tracker struct {
	current map[int]image.Rectangle
	next    map[int]image.Rectangle

	damage           image.Rectangle
	damageNextUpdate image.Rectangle
}

// NewTracker returns a tracker with no history. The first Update reports
// every contributor as new.
func NewTracker() *Tracker {
	return &Tracker{
		current: make(map[int]image.Rectangle),
		next:    make(map[int]image.Rectangle),
	}
}

// AddDamageNextUpdate adds r to the damage reported by the next Update.
func (t *Tracker) AddDamageNextUpdate(r image.Rectangle) {
	t.damageNextUpdate = geom.UnionRect(t.damageNextUpdate, r)
}

// Update recomputes the surface damage.
//
// propertyChangedOnlyFromDescendant marks a surface whose own draw
// properties changed because an ancestor moved; its whole contentRect
// is damaged. maskChanged damages the whole content rect as well.
// filterOutset expands the damage by the reach of background filters.
func (t *Tracker) Update(contributors []Contributor, propertyChangedOnlyFromDescendant bool,
	contentRect image.Rectangle, maskChanged bool, filterOutset int) {
	var fromContributors image.Rectangle
	for _, c := range contributors {
		fromContributors = geom.UnionRect(fromContributors, t.extend(c))
	}

	// Contributors present last frame but not this one.
	var leftover image.Rectangle
	for id, r := range t.current {
		if _, ok := t.next[id]; !ok {
			leftover = geom.UnionRect(leftover, r)
		}
	}

	var d image.Rectangle
	if propertyChangedOnlyFromDescendant || maskChanged {
		d = contentRect
	} else {
		d = geom.UnionRect(fromContributors, leftover)
		d = geom.UnionRect(d, t.damageNextUpdate)
		if filterOutset > 0 && !d.Empty() {
			d = d.Inset(-filterOutset)
		}
	}

	// Damage accumulates until a draw consumes it.
	t.damage = geom.UnionRect(t.damage, d)
	t.damageNextUpdate = image.Rectangle{}

	t.current, t.next = t.next, t.current
	clear(t.next)
}

func (t *Tracker) extend(c Contributor) image.Rectangle {
	old, existed := t.current[c.ID]
	t.next[c.ID] = c.Rect
	if !existed || c.Changed {
		return geom.UnionRect(old, c.Rect)
	}
	return c.Invalidation.Intersect(c.Rect)
}

// CurrentDamage returns the damage accumulated since the last draw.
func (t *Tracker) CurrentDamage() image.Rectangle {
	return t.damage
}

// DidDrawDamagedArea clears the accumulated damage after a draw. History
// is kept so the next frame still diffs against this one.
func (t *Tracker) DidDrawDamagedArea() {
	t.damage = image.Rectangle{}
}

// HasHistory reports whether any contributor was recorded by a previous
// Update.
func (t *Tracker) HasHistory() bool {
	return len(t.current) > 0
}
