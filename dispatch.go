package compositor

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/scene"
)

// DefaultLineHeight is the pixels one wheel line scrolls.
const DefaultLineHeight = 40

// InputDispatcher turns platform input events into Host scroll, pinch
// and mouse calls. Events must be delivered on the goroutine that drives
// the Host.
//
// Wheel events are discrete scrolls. A one-finger touch drag is a
// bubbling gesture scroll; two or more fingers pinch around their
// centroid and pan with it. Mouse moves feed scrollbar proximity.
type InputDispatcher struct {
	host *Host

	// LineHeight converts line-mode wheel deltas to pixels.
	LineHeight float32

	// OnMainThread, when set, receives scrolls the host cannot handle.
	OnMainThread func(point geom.Point, delta geom.Vector)

	dragPointer  int
	dragging     bool
	dragStatus   scene.ScrollStatus
	lastDrag     geom.Point
	pinching     bool
	pinchStarted scene.ScrollStatus
}

// NewInputDispatcher returns a dispatcher feeding h.
func NewInputDispatcher(h *Host) *InputDispatcher {
	return &InputDispatcher{host: h, LineHeight: DefaultLineHeight}
}

// Attach registers the dispatcher with every source that is not nil.
func (d *InputDispatcher) Attach(scroll gpucontext.ScrollEventSource, gestures gpucontext.GestureEventSource, pointers gpucontext.PointerEventSource) {
	if scroll != nil {
		scroll.OnScrollEvent(func(ev gpucontext.ScrollEvent) { d.HandleScroll(ev) })
	}
	if gestures != nil {
		gestures.OnGesture(d.HandleGesture)
	}
	if pointers != nil {
		pointers.OnPointer(d.HandlePointer)
	}
}

// HandleScroll performs one wheel scroll and returns how it started.
func (d *InputDispatcher) HandleScroll(ev gpucontext.ScrollEvent) scene.ScrollStatus {
	p := geom.Pt(float32(ev.X), float32(ev.Y))
	delta := d.wheelDelta(ev)
	if delta.IsZero() {
		return scene.ScrollIgnored
	}
	status := d.host.ScrollBegin(p, scene.Wheel)
	switch status {
	case scene.ScrollStarted:
		d.host.ScrollBy(p, delta)
		d.host.ScrollEnd()
	case scene.ScrollOnMainThread:
		d.toMainThread(p, delta)
	}
	d.host.logger().Debug("compositor: wheel scroll",
		"mode", ev.DeltaMode.String(), "dx", delta.X, "dy", delta.Y, "status", status.String())
	return status
}

func (d *InputDispatcher) wheelDelta(ev gpucontext.ScrollEvent) geom.Vector {
	v := geom.Vec(float32(ev.DeltaX), float32(ev.DeltaY))
	switch ev.DeltaMode {
	case gpucontext.ScrollDeltaLine:
		return v.Scale(d.LineHeight)
	case gpucontext.ScrollDeltaPage:
		page := d.host.UnscaledScrollableViewportSize()
		f := d.host.settings.PageScrollFraction
		return v.ScaleXY(page.X*f, page.Y*f)
	default:
		return v
	}
}

// HandleGesture handles a multi-finger gesture frame.
func (d *InputDispatcher) HandleGesture(ev gpucontext.GestureEvent) {
	if ev.NumPointers < 2 {
		d.endPinch()
		return
	}
	center := geom.Pt(float32(ev.Center.X), float32(ev.Center.Y))
	if !d.pinching {
		d.endDrag()
		d.pinching = true
		d.pinchStarted = d.host.ScrollBegin(center, scene.Gesture)
		d.host.PinchGestureBegin()
	}
	if ev.ZoomDelta > 0 && ev.ZoomDelta != 1 {
		d.host.PinchGestureUpdate(float32(ev.ZoomDelta), center)
	}
	pan := geom.Vec(float32(ev.TranslationDelta.X), float32(ev.TranslationDelta.Y))
	if !pan.IsZero() && d.pinchStarted == scene.ScrollStarted {
		// Content follows the fingers, so the scroll is the opposite.
		d.host.ScrollBy(center, pan.Scale(-1))
	}
}

func (d *InputDispatcher) endPinch() {
	if !d.pinching {
		return
	}
	d.pinching = false
	d.host.PinchGestureEnd()
	if d.pinchStarted == scene.ScrollStarted {
		d.host.ScrollEnd()
	}
}

// HandlePointer handles touch drags and mouse movement.
func (d *InputDispatcher) HandlePointer(ev gpucontext.PointerEvent) {
	p := geom.Pt(float32(ev.X), float32(ev.Y))
	switch ev.Type {
	case gpucontext.PointerDown:
		if ev.PointerType == gpucontext.PointerTypeTouch && ev.IsPrimary && !d.pinching {
			d.dragging = true
			d.dragPointer = ev.PointerID
			d.lastDrag = p
			d.dragStatus = d.host.ScrollBegin(p, scene.Gesture)
		}
	case gpucontext.PointerMove:
		if d.dragging && ev.PointerID == d.dragPointer {
			delta := d.lastDrag.Sub(p)
			d.lastDrag = p
			switch d.dragStatus {
			case scene.ScrollStarted:
				d.host.ScrollBy(p, delta)
			case scene.ScrollOnMainThread:
				d.toMainThread(p, delta)
			}
			return
		}
		if ev.PointerType == gpucontext.PointerTypeMouse {
			d.host.MouseMoveAt(p)
		}
	case gpucontext.PointerUp, gpucontext.PointerCancel:
		if d.dragging && ev.PointerID == d.dragPointer {
			d.endDrag()
		}
		if d.pinching {
			d.endPinch()
		}
	}
}

func (d *InputDispatcher) endDrag() {
	if !d.dragging {
		return
	}
	d.dragging = false
	if d.dragStatus == scene.ScrollStarted {
		d.host.ScrollEnd()
	}
}

func (d *InputDispatcher) toMainThread(p geom.Point, delta geom.Vector) {
	if d.OnMainThread != nil {
		d.OnMainThread(p, delta)
	}
}
