package scene

import (
	"image"

	"github.com/gogpu/compositor/geom"
)

// ScrollStatus is the outcome of starting a scroll on a layer.
type ScrollStatus int

const (
	// ScrollOnMainThread means the scroll must be handled by the producer.
	ScrollOnMainThread ScrollStatus = iota
	// ScrollStarted means the compositor handles the scroll.
	ScrollStarted
	// ScrollIgnored means no layer under the point can scroll.
	ScrollIgnored
)

func (s ScrollStatus) String() string {
	switch s {
	case ScrollOnMainThread:
		return "OnMainThread"
	case ScrollStarted:
		return "Started"
	case ScrollIgnored:
		return "Ignored"
	default:
		return "Unknown"
	}
}

// InputType distinguishes scroll sources.
type InputType int

const (
	// Wheel scrolls apply deltas directly in layer space.
	Wheel InputType = iota
	// Gesture scrolls follow the finger in viewport space and bubble.
	Gesture
	// NonBubblingGesture is a gesture scroll locked to one layer.
	NonBubblingGesture
)

func (t InputType) String() string {
	switch t {
	case Wheel:
		return "Wheel"
	case Gesture:
		return "Gesture"
	case NonBubblingGesture:
		return "NonBubblingGesture"
	default:
		return "Unknown"
	}
}

// ScrollOffset returns the committed scroll offset.
func (l *Layer) ScrollOffset() geom.Vector { return l.scrollOffset }

// SetScrollOffset sets the committed scroll offset.
func (l *Layer) SetScrollOffset(v geom.Vector) {
	if l.scrollOffset == v {
		return
	}
	l.scrollOffset = v
	l.noteSubtreeChanged()
}

// ScrollDelta returns the impl-side scroll not yet committed.
func (l *Layer) ScrollDelta() geom.Vector { return l.scrollDelta }

// SetScrollDelta sets the impl-side scroll.
func (l *Layer) SetScrollDelta(v geom.Vector) {
	if l.scrollDelta == v {
		return
	}
	l.scrollDelta = v
	l.noteSubtreeChanged()
	if l.tree.rootScrollLayerID == l.id {
		l.tree.notifyScrollDelegate()
	}
}

// SentScrollDelta returns the scroll delta sent with the last commit.
func (l *Layer) SentScrollDelta() geom.Vector { return l.sentScrollDelta }

// SetSentScrollDelta records the scroll delta sent with a commit.
func (l *Layer) SetSentScrollDelta(v geom.Vector) { l.sentScrollDelta = v }

// TotalScrollOffset returns the committed offset plus the delta.
func (l *Layer) TotalScrollOffset() geom.Vector { return l.scrollOffset.Add(l.scrollDelta) }

// MaxScrollOffset returns the largest valid scroll offset.
func (l *Layer) MaxScrollOffset() geom.Vector { return l.maxScrollOffset }

// SetMaxScrollOffset sets the largest valid scroll offset.
func (l *Layer) SetMaxScrollOffset(v geom.Vector) {
	if l.maxScrollOffset == v {
		return
	}
	l.maxScrollOffset = v
	l.tree.SetNeedsUpdateDrawProperties()
}

// ScrollBy scrolls by delta in layer space, clamped to [0, max] on each
// axis, and returns the part of delta that could not be applied.
func (l *Layer) ScrollBy(delta geom.Vector) geom.Vector {
	minDelta := l.scrollOffset.Scale(-1)
	maxDelta := l.maxScrollOffset.Sub(l.scrollOffset)
	want := l.scrollDelta.Add(delta)
	got := geom.Vector{
		X: min(max(want.X, minDelta.X), maxDelta.X),
		Y: min(max(want.Y, minDelta.Y), maxDelta.Y),
	}
	unused := want.Sub(got)
	l.SetScrollDelta(got)
	return unused
}

// TryScroll decides whether a scroll starting at screenPoint, in device
// pixels, can be handled by this layer.
func (l *Layer) TryScroll(screenPoint geom.Point, typ InputType) ScrollStatus {
	if l.ShouldScrollOnMainThread {
		return ScrollOnMainThread
	}
	inv, ok := l.draw.ScreenSpaceTransform.Inverse()
	if !ok {
		return ScrollIgnored
	}
	if !l.NonFastScrollableRegion.IsEmpty() {
		p := inv.MapPoint(screenPoint).Floor()
		if l.NonFastScrollableRegion.Contains(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))}) {
			return ScrollOnMainThread
		}
	}
	if typ == Wheel && l.HaveWheelEventHandlers {
		return ScrollOnMainThread
	}
	if !l.Scrollable {
		return ScrollIgnored
	}
	if l.maxScrollOffset.X <= 0 && l.maxScrollOffset.Y <= 0 {
		return ScrollIgnored
	}
	return ScrollStarted
}

// PullDeltaForMainThread moves the uncommitted scroll delta into the sent
// delta and returns it.
func (l *Layer) PullDeltaForMainThread() geom.Vector {
	l.sentScrollDelta = l.scrollDelta
	return l.scrollDelta
}
