package compositor

import (
	"time"

	"github.com/gogpu/compositor/geom"
)

// TopControlsState constrains where the top controls may be.
type TopControlsState int

const (
	TopControlsBoth TopControlsState = iota
	TopControlsShown
	TopControlsHidden
)

// topControlsAnimationDuration is the time a full show or hide takes.
const topControlsAnimationDuration = 200 * time.Millisecond

// topControlsClient is what TopControls needs from its owner.
type topControlsClient interface {
	didChangeTopControlsPosition()
	haveRootScrollLayer() bool
	now() time.Time
}

// TopControls tracks a bar at the top of the viewport, such as a
// location bar, that scrolls away with the content and snaps fully shown
// or hidden when the gesture ends.
type TopControls struct {
	client        topControlsClient
	height        float32
	showThreshold float32
	hideThreshold float32
	permitted     TopControlsState

	// controlsTopOffset is in [-height, 0]; 0 is fully shown.
	controlsTopOffset float32
	scrollBeginOffset float32
	scrollDelta       float32
	pinchActive       bool

	anim *topControlsAnimation
}

type topControlsAnimation struct {
	from, to float32
	start    time.Time
	duration time.Duration
}

func (a *topControlsAnimation) valueAt(t time.Time) float32 {
	p := float32(t.Sub(a.start)) / float32(a.duration)
	p = min(max(p, 0), 1)
	return a.from + (a.to-a.from)*p
}

func (a *topControlsAnimation) doneAt(t time.Time) bool {
	return !t.Before(a.start.Add(a.duration))
}

// NewTopControls returns fully shown controls of the given height.
func NewTopControls(client topControlsClient, height, showThreshold, hideThreshold float32) *TopControls {
	return &TopControls{
		client:        client,
		height:        height,
		showThreshold: showThreshold,
		hideThreshold: hideThreshold,
	}
}

// Height returns the controls height in layout pixels.
func (c *TopControls) Height() float32 { return c.height }

// ControlsTopOffset returns the offset of the controls' top edge, from
// -Height (hidden) to 0 (shown).
func (c *TopControls) ControlsTopOffset() float32 { return c.controlsTopOffset }

// ContentTopOffset returns how far the content is pushed down.
func (c *TopControls) ContentTopOffset() float32 { return c.controlsTopOffset + c.height }

// IsAnimating reports whether the controls are snapping.
func (c *TopControls) IsAnimating() bool { return c.anim != nil }

// UpdateState sets the permitted state and moves the controls to
// current, animated or not.
func (c *TopControls) UpdateState(constraint, current TopControlsState, animate bool) {
	c.permitted = constraint
	if constraint == TopControlsHidden {
		current = TopControlsHidden
	} else if constraint == TopControlsShown {
		current = TopControlsShown
	}
	var target float32
	switch current {
	case TopControlsShown:
		target = 0
	case TopControlsHidden:
		target = -c.height
	default:
		return
	}
	if target == c.controlsTopOffset {
		return
	}
	if animate {
		c.setupAnimation(target)
		return
	}
	c.resetAnimation()
	c.setControlsTopOffset(target)
}

// ScrollBegin starts a gesture.
func (c *TopControls) ScrollBegin() {
	c.resetAnimation()
	c.scrollDelta = 0
	c.scrollBeginOffset = c.controlsTopOffset
}

// ScrollBy moves the controls by the vertical part of pending and
// returns what is left for the content.
func (c *TopControls) ScrollBy(pending geom.Vector) geom.Vector {
	if c.pinchActive {
		return pending
	}
	if c.permitted == TopControlsShown && pending.Y > 0 {
		return pending
	}
	if c.permitted == TopControlsHidden && pending.Y < 0 {
		return pending
	}
	c.scrollDelta += pending.Y
	old := c.controlsTopOffset
	c.setControlsTopOffset(c.scrollBeginOffset - c.scrollDelta)
	if c.controlsTopOffset == 0 {
		c.scrollBeginOffset = 0
		c.scrollDelta = 0
	}
	c.resetAnimation()
	return pending.Sub(geom.Vec(0, old-c.controlsTopOffset))
}

// ScrollEnd snaps partially shown controls.
func (c *TopControls) ScrollEnd() {
	c.startAnimationIfNecessary()
}

// PinchBegin stops the controls from consuming scroll during a pinch.
func (c *TopControls) PinchBegin() {
	c.resetAnimation()
	c.pinchActive = true
}

// PinchEnd ends the pinch.
func (c *TopControls) PinchEnd() {
	c.pinchActive = false
	c.ScrollBegin()
}

// Animate advances the snap animation and returns the scroll the
// content must apply to stay in place.
func (c *TopControls) Animate(now time.Time) geom.Vector {
	if c.anim == nil || !c.client.haveRootScrollLayer() {
		return geom.Vector{}
	}
	old := c.controlsTopOffset
	c.setControlsTopOffset(c.anim.valueAt(now))
	if c.anim.doneAt(now) {
		c.resetAnimation()
	}
	return geom.Vec(0, old-c.controlsTopOffset)
}

func (c *TopControls) startAnimationIfNecessary() {
	if c.controlsTopOffset == 0 || c.controlsTopOffset == -c.height {
		return
	}
	shown := c.ContentTopOffset() / c.height
	var target float32
	switch {
	case c.scrollDelta < 0 && shown >= 1-c.showThreshold:
		target = 0
	case c.scrollDelta > 0 && shown <= c.hideThreshold:
		target = -c.height
	case shown >= 0.5:
		target = 0
	default:
		target = -c.height
	}
	c.setupAnimation(target)
}

func (c *TopControls) setupAnimation(target float32) {
	dist := target - c.controlsTopOffset
	if dist < 0 {
		dist = -dist
	}
	d := time.Duration(float32(topControlsAnimationDuration) * dist / c.height)
	if d <= 0 {
		d = time.Millisecond
	}
	c.anim = &topControlsAnimation{
		from:     c.controlsTopOffset,
		to:       target,
		start:    c.client.now(),
		duration: d,
	}
	c.client.didChangeTopControlsPosition()
}

func (c *TopControls) resetAnimation() {
	c.anim = nil
}

func (c *TopControls) setControlsTopOffset(offset float32) {
	offset = min(max(offset, -c.height), 0)
	if offset == c.controlsTopOffset {
		return
	}
	c.controlsTopOffset = offset
	c.client.didChangeTopControlsPosition()
}

// Host side of TopControls.

func (h *Host) didChangeTopControlsPosition() {
	h.active.SetNeedsUpdateDrawProperties()
	h.client.setNeedsRedraw()
	h.SetFullRootLayerDamage()
}

func (h *Host) haveRootScrollLayer() bool {
	return h.active.RootScrollLayer() != nil
}

// TopControls returns the top controls, or nil when disabled.
func (h *Host) TopControls() *TopControls { return h.topControls }

func (h *Host) animateTopControls(now time.Time) {
	if h.topControls == nil {
		return
	}
	root := h.active.RootScrollLayer()
	if root == nil {
		return
	}
	scroll := h.topControls.Animate(now)
	h.updateMaxScrollOffset()
	if root.TotalScrollOffset().Y == 0 || scroll.IsZero() {
		return
	}
	root.ScrollBy(scroll.Scale(1 / h.active.TotalPageScaleFactor()))
}

func (h *Host) now() time.Time { return h.clock() }
