package compositor

import (
	"math"

	"github.com/chewxy/math32"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/scene"
)

// scrollState is the input state carried between scroll and pinch calls.
type scrollState struct {
	shouldBubble          bool
	wheelScrolling        bool
	didLockScrollingLayer bool

	accumulatedRootOverscroll geom.Vector
	currentFlingVelocity      geom.Vector

	pinchActive         bool
	pinchEndShouldClear bool
	pinchAnchorValid    bool
	previousPinchAnchor geom.Point
}

// ScrollDirection is the direction of a page scroll.
type ScrollDirection int

const (
	ScrollBackward ScrollDirection = iota
	ScrollForward
)

// ScrollUpdate is the impl-side scroll of one layer handed to the
// producer.
type ScrollUpdate struct {
	LayerID int
	Delta   geom.Vector
}

// ScrollAndScaleSet is the impl-side scroll and zoom since the last
// commit.
type ScrollAndScaleSet struct {
	Scrolls        []ScrollUpdate
	PageScaleDelta float32
}

// ScrollBegin starts a scroll at viewportPoint, in layout pixels. It
// picks the innermost layer under the point that can scroll and reports
// ScrollOnMainThread if any layer on the way wants the producer to
// handle the gesture.
func (h *Host) ScrollBegin(viewportPoint geom.Point, typ scene.InputType) scene.ScrollStatus {
	span := h.startSpan("compositor.ScrollBegin", attribute.String("type", typ.String()))
	defer span.End()

	status := h.scrollBegin(viewportPoint, typ)
	span.SetAttributes(attribute.String("status", status.String()))
	return status
}

func (h *Host) scrollBegin(viewportPoint geom.Point, typ scene.InputType) scene.ScrollStatus {
	if h.topControls != nil {
		h.topControls.ScrollBegin()
	}
	h.ClearCurrentlyScrollingLayer()

	if !h.ensureRenderSurfaceLayerList() {
		return scene.ScrollIgnored
	}
	devicePoint := viewportPoint.Scale(h.deviceScaleFactor)
	layer, onMain := h.findScrollLayerForDevicePoint(devicePoint, typ)
	if onMain {
		return scene.ScrollOnMainThread
	}
	if layer == nil && h.settings.AlwaysOverscroll {
		layer = h.active.RootScrollLayer()
	}
	if layer == nil {
		return scene.ScrollIgnored
	}
	h.active.SetCurrentlyScrollingLayer(layer)
	h.scroll.shouldBubble = typ != scene.NonBubblingGesture
	h.scroll.wheelScrolling = typ == scene.Wheel
	h.client.renewTreePriority()
	if !h.scroll.wheelScrolling && layer.ScrollbarAnimator != nil {
		layer.ScrollbarAnimator.DidScrollGestureBegin()
	}
	return scene.ScrollStarted
}

// findScrollLayerForDevicePoint walks from the hit layer through scroll
// parents. onMain is set when any layer on the way diverts the gesture.
func (h *Host) findScrollLayerForDevicePoint(p geom.Point, typ scene.InputType) (layer *scene.Layer, onMain bool) {
	for l := h.active.FindLayerThatIsHitByPoint(p); l != nil; l = l.ScrollParent() {
		if l.TryScroll(p, typ) == scene.ScrollOnMainThread {
			return nil, true
		}
		sl := scrollLayerFor(l)
		if sl == nil {
			continue
		}
		switch sl.TryScroll(p, typ) {
		case scene.ScrollOnMainThread:
			return nil, true
		case scene.ScrollStarted:
			if layer == nil {
				layer = sl
			}
		}
	}
	// Partially hidden top controls can always be revealed.
	if layer == nil && h.topControls != nil &&
		h.topControls.ContentTopOffset() != h.topControls.Height() {
		layer = h.active.RootScrollLayer()
	}
	return layer, false
}

// scrollLayerFor returns l when it scrolls, or its scrollable parent
// when l is that parent's content.
func scrollLayerFor(l *scene.Layer) *scene.Layer {
	if l.Scrollable {
		return l
	}
	if p := l.Parent(); l.DrawsContent && p != nil && p.Scrollable {
		return p
	}
	return nil
}

// ScrollBy applies delta, in layout pixels, to the scrolling layer and
// bubbles what it cannot take to its ancestors. It reports whether any
// layer moved.
func (h *Host) ScrollBy(viewportPoint geom.Point, delta geom.Vector) bool {
	current := h.active.CurrentlyScrollingLayer()
	if current == nil {
		return false
	}
	if h.inScrollBy {
		panic("compositor: ScrollBy re-entered")
	}
	h.inScrollBy = true
	defer func() { h.inScrollBy = false }()

	root := h.active.RootScrollLayer()
	now := h.now()
	threshold := h.settings.ScrollMoveThreshold
	pending := delta
	var unusedRoot geom.Vector
	didScrollX, didScrollY := false, false
	consumeByTopControls := h.topControls != nil && (current == root || delta.Y < 0)

	for l := current; l != nil; l = l.Parent() {
		if !l.Scrollable {
			continue
		}
		if l == root {
			if consumeByTopControls {
				pending = h.topControls.ScrollBy(pending)
				h.updateMaxScrollOffset()
			}
			unusedRoot = pending
		}

		var applied geom.Vector
		if h.scroll.wheelScrolling {
			applied = scrollLayerWithLocalDelta(l, pending)
		} else {
			applied = h.scrollLayerWithViewportSpaceDelta(l, viewportPoint, pending)
		}

		movedX := math32.Abs(applied.X) > threshold
		movedY := math32.Abs(applied.Y) > threshold
		didScrollX = didScrollX || movedX
		didScrollY = didScrollY || movedY
		if !movedX && !movedY {
			if h.scroll.shouldBubble || !h.scroll.didLockScrollingLayer {
				continue
			}
			break
		}
		if l.ScrollbarAnimator != nil {
			l.ScrollbarAnimator.DidScrollUpdate(now)
		}
		if l == root {
			unusedRoot = unusedRoot.Sub(applied)
		}
		h.scroll.didLockScrollingLayer = true
		if !h.scroll.shouldBubble {
			h.active.SetCurrentlyScrollingLayer(l)
			break
		}
		// Close enough to the requested direction: this layer took it all.
		if geom.SmallestAngleBetween(applied, pending) < h.settings.ScrollAngleThreshold {
			pending = geom.Vector{}
			break
		}
		// Only movement perpendicular to what this layer took bubbles.
		pending = pending.Project(applied.Perpendicular())
		if pending.Floor().IsZero() {
			break
		}
	}

	didScroll := didScrollX || didScrollY
	if didScroll {
		h.client.setNeedsCommit()
		h.client.setNeedsRedraw()
		h.client.renewTreePriority()
	}
	// An axis that scrolled is not overscrolling.
	h.scroll.accumulatedRootOverscroll = h.scroll.accumulatedRootOverscroll.Add(unusedRoot)
	if didScrollX {
		h.scroll.accumulatedRootOverscroll.X = 0
	}
	if didScrollY {
		h.scroll.accumulatedRootOverscroll.Y = 0
	}
	if !unusedRoot.Round().IsZero() && h.input != nil {
		h.input.DidOverscroll(DidOverscrollParams{
			AccumulatedOverscroll: h.scroll.accumulatedRootOverscroll,
			LatestOverscrollDelta: unusedRoot,
			CurrentFlingVelocity:  h.scroll.currentFlingVelocity,
		})
	}
	return didScroll
}

// scrollLayerWithViewportSpaceDelta maps a viewport delta starting at
// viewportPoint into l's space, scrolls l and returns the movement seen
// in the viewport.
func (h *Host) scrollLayerWithViewportSpaceDelta(l *scene.Layer, viewportPoint geom.Point, viewportDelta geom.Vector) geom.Vector {
	screen := l.ScreenSpaceTransform()
	inv, ok := screen.Inverse()
	if !ok {
		return geom.Vector{}
	}
	scale := h.deviceScaleFactor
	screenPoint := viewportPoint.Scale(scale)
	screenDelta := viewportDelta.Scale(scale)

	localStart := inv.MapPoint(screenPoint)
	localEnd := inv.MapPoint(screenPoint.Add(screenDelta))

	previous := l.ScrollDelta()
	l.ScrollBy(localEnd.Sub(localStart))

	actualLocalEnd := localStart.Add(l.ScrollDelta().Sub(previous))
	actualScreenEnd := screen.MapPoint(actualLocalEnd)
	return actualScreenEnd.Scale(1 / scale).Sub(viewportPoint)
}

// scrollLayerWithLocalDelta scrolls l by delta in its own space and
// returns what was applied.
func scrollLayerWithLocalDelta(l *scene.Layer, delta geom.Vector) geom.Vector {
	previous := l.ScrollDelta()
	l.ScrollBy(delta)
	return l.ScrollDelta().Sub(previous)
}

// ScrollEnd finishes the gesture.
func (h *Host) ScrollEnd() {
	if h.topControls != nil {
		h.topControls.ScrollEnd()
	}
	now := h.now()
	if l := h.active.CurrentlyScrollingLayer(); l != nil && l.ScrollbarAnimator != nil {
		l.ScrollbarAnimator.DidScrollGestureEnd(now)
	}
	h.ClearCurrentlyScrollingLayer()
	h.startScrollbarAnimation(now)
}

// ClearCurrentlyScrollingLayer forgets the scrolling layer and the
// overscroll and fling state of the gesture.
func (h *Host) ClearCurrentlyScrollingLayer() {
	h.active.ClearCurrentlyScrollingLayer()
	h.scroll.didLockScrollingLayer = false
	h.scroll.accumulatedRootOverscroll = geom.Vector{}
	h.scroll.currentFlingVelocity = geom.Vector{}
}

// FlingScrollBegin turns the current scroll into a fling.
func (h *Host) FlingScrollBegin() scene.ScrollStatus {
	current := h.active.CurrentlyScrollingLayer()
	if current == nil {
		return scene.ScrollIgnored
	}
	if h.settings.IgnoreRootLayerFlings && current == h.active.RootScrollLayer() {
		h.ClearCurrentlyScrollingLayer()
		return scene.ScrollIgnored
	}
	if !h.scroll.wheelScrolling {
		// Lock to the first layer the fling moves.
		h.scroll.didLockScrollingLayer = false
		h.scroll.shouldBubble = false
	}
	return scene.ScrollStarted
}

// NotifyCurrentFlingVelocity records the fling velocity reported with
// overscroll.
func (h *Host) NotifyCurrentFlingVelocity(v geom.Vector) {
	h.scroll.currentFlingVelocity = v
}

// MainThreadHasStoppedFlinging forwards the producer's fling end to the
// input client.
func (h *Host) MainThreadHasStoppedFlinging() {
	if h.input != nil {
		h.input.MainThreadHasStoppedFlinging()
	}
}

// AccumulatedRootOverscroll returns the root overscroll of the current
// gesture.
func (h *Host) AccumulatedRootOverscroll() geom.Vector {
	return h.scroll.accumulatedRootOverscroll
}

// CurrentFlingVelocity returns the last reported fling velocity.
func (h *Host) CurrentFlingVelocity() geom.Vector {
	return h.scroll.currentFlingVelocity
}

// ScrollVerticallyByPage scrolls the first layer with a vertical
// scrollbar that can move by a page, a fraction of the scrollbar height.
func (h *Host) ScrollVerticallyByPage(viewportPoint geom.Point, dir ScrollDirection) bool {
	for l := h.active.CurrentlyScrollingLayer(); l != nil; l = l.Parent() {
		if !l.Scrollable {
			continue
		}
		bar := h.active.LayerByID(l.VerticalScrollbarID)
		if l.VerticalScrollbarID == 0 || bar == nil {
			continue
		}
		page := max(float32(bar.Bounds().Y)*h.settings.PageScrollFraction, 1)
		if dir == ScrollBackward {
			page = -page
		}
		applied := scrollLayerWithLocalDelta(l, geom.Vec(0, page))
		if !applied.IsZero() {
			h.client.setNeedsCommit()
			h.client.setNeedsRedraw()
			h.client.renewTreePriority()
			return true
		}
		h.active.SetCurrentlyScrollingLayer(l)
	}
	return false
}

// MouseMoveAt tells the scrollbar animator of the layer under
// viewportPoint how close the mouse is to its scrollbars.
func (h *Host) MouseMoveAt(viewportPoint geom.Point) {
	if !h.ensureRenderSurfaceLayerList() {
		return
	}
	devicePoint := viewportPoint.Scale(h.deviceScaleFactor)
	l, onMain := h.findScrollLayerForDevicePoint(devicePoint, scene.Gesture)
	if onMain || l == nil || l.ScrollbarAnimator == nil {
		return
	}
	dist := min(
		deviceDistanceToLayer(devicePoint, h.active.LayerByID(l.HorizontalScrollbarID)),
		deviceDistanceToLayer(devicePoint, h.active.LayerByID(l.VerticalScrollbarID)))
	now := h.now()
	if l.ScrollbarAnimator.DidMouseMoveNear(now, dist/h.deviceScaleFactor) {
		h.client.setNeedsRedraw()
		h.startScrollbarAnimation(now)
	}
}

// deviceDistanceToLayer returns the Manhattan distance from p to l's
// screen rect.
func deviceDistanceToLayer(p geom.Point, l *scene.Layer) float32 {
	if l == nil {
		return math.MaxFloat32
	}
	r := l.ScreenSpaceTransform().MapRect(geom.RectFFromImage(l.ContentRect()))
	dx := max(r.Min.X-p.X, 0, p.X-r.Max.X)
	dy := max(r.Min.Y-p.Y, 0, p.Y-r.Max.Y)
	return dx + dy
}

// PinchGestureBegin starts a pinch. The pinch scrolls the root layer; if
// no scroll was in progress the root is released when the pinch ends.
func (h *Host) PinchGestureBegin() {
	h.scroll.pinchActive = true
	h.scroll.pinchAnchorValid = false
	h.client.renewTreePriority()
	h.scroll.pinchEndShouldClear = h.active.CurrentlyScrollingLayer() == nil
	h.active.SetCurrentlyScrollingLayer(h.active.RootScrollLayer())
	if h.topControls != nil {
		h.topControls.PinchBegin()
	}
}

// PinchGestureUpdate scales the page by magnify around anchor, in layout
// pixels, and follows the anchor when it moves.
func (h *Host) PinchGestureUpdate(magnify float32, anchor geom.Point) {
	root := h.active.RootScrollLayer()
	if root == nil {
		return
	}
	previous := anchor
	if h.scroll.pinchAnchorValid {
		previous = h.scroll.previousPinchAnchor
	}
	oldDelta := h.active.PageScaleDelta()
	h.active.SetPageScaleDelta(oldDelta * magnify)
	newDelta := h.active.PageScaleDelta()

	// Keep the content under the previous anchor under the new one.
	move := previous.Scale(1 / oldDelta).Sub(anchor.Scale(1 / newDelta))
	move = move.Scale(1 / h.active.PageScaleFactor())
	h.scroll.previousPinchAnchor = anchor
	h.scroll.pinchAnchorValid = true

	h.updateMaxScrollOffset()
	root.ScrollBy(move)

	h.client.setNeedsCommit()
	h.client.setNeedsRedraw()
	h.client.renewTreePriority()
}

// PinchGestureEnd ends the pinch.
func (h *Host) PinchGestureEnd() {
	h.scroll.pinchActive = false
	if h.scroll.pinchEndShouldClear {
		h.scroll.pinchEndShouldClear = false
		h.ClearCurrentlyScrollingLayer()
	}
	if h.topControls != nil {
		h.topControls.PinchEnd()
	}
	h.client.setNeedsCommit()
}

// PinchGestureActive reports whether a pinch is in progress.
func (h *Host) PinchGestureActive() bool { return h.scroll.pinchActive }

// ProcessScrollDeltas collects the impl-side scroll and page scale for
// the next commit and marks them as sent.
func (h *Host) ProcessScrollDeltas() *ScrollAndScaleSet {
	set := &ScrollAndScaleSet{PageScaleDelta: h.active.PageScaleDelta()}
	h.active.ForEachLayer(func(l *scene.Layer) {
		d := l.ScrollDelta().Floor()
		if d.IsZero() {
			return
		}
		set.Scrolls = append(set.Scrolls, ScrollUpdate{LayerID: l.ID(), Delta: d})
		l.SetSentScrollDelta(d)
	})
	h.active.SetSentPageScaleDelta(set.PageScaleDelta)
	return set
}

// HaveTouchEventHandlersAt reports whether a layer under viewportPoint
// handles touch events.
func (h *Host) HaveTouchEventHandlersAt(viewportPoint geom.Point) bool {
	if !h.ensureRenderSurfaceLayerList() {
		return false
	}
	return h.active.FindLayerWithTouchHandlerAt(viewportPoint.Scale(h.deviceScaleFactor)) != nil
}
