package scene

import "time"

// Default scrollbar fade timing.
const (
	DefaultScrollbarFadeDelay     = 300 * time.Millisecond
	DefaultScrollbarFadeDuration  = 300 * time.Millisecond
	DefaultScrollbarNearThreshold = 25
)

// ScrollbarAnimator fades the scrollbars of one scroll layer out after
// scrolling stops and back in when the mouse comes close.
type ScrollbarAnimator struct {
	// FadeDelay is the idle time before the fade starts.
	FadeDelay time.Duration
	// FadeDuration is how long the fade takes.
	FadeDuration time.Duration
	// NearThreshold is the distance in layout pixels at which a mouse
	// counts as near a scrollbar.
	NearThreshold float32

	opacity   float32
	fadeStart time.Time
	scrolling bool
	mouseNear bool
	animating bool
}

// NewScrollbarAnimator returns an animator with default timing and fully
// visible scrollbars.
func NewScrollbarAnimator() *ScrollbarAnimator {
	return &ScrollbarAnimator{
		FadeDelay:     DefaultScrollbarFadeDelay,
		FadeDuration:  DefaultScrollbarFadeDuration,
		NearThreshold: DefaultScrollbarNearThreshold,
		opacity:       1,
	}
}

func (a *ScrollbarAnimator) clone() *ScrollbarAnimator {
	c := *a
	return &c
}

// Opacity returns the current scrollbar opacity.
func (a *ScrollbarAnimator) Opacity() float32 { return a.opacity }

// IsAnimating reports whether a fade is scheduled or running.
func (a *ScrollbarAnimator) IsAnimating() bool { return a.animating }

// DelayBeforeStart returns how long until the scheduled fade begins, or
// zero once it is running.
func (a *ScrollbarAnimator) DelayBeforeStart(now time.Time) time.Duration {
	if !a.animating || !now.Before(a.fadeStart) {
		return 0
	}
	return a.fadeStart.Sub(now)
}

// Animate advances the fade to now and reports whether the opacity changed.
func (a *ScrollbarAnimator) Animate(now time.Time) bool {
	if !a.animating || now.Before(a.fadeStart) {
		return false
	}
	progress := float32(1)
	if a.FadeDuration > 0 {
		progress = min(float32(now.Sub(a.fadeStart))/float32(a.FadeDuration), 1)
	}
	o := 1 - progress
	if progress >= 1 {
		a.animating = false
	}
	if o == a.opacity {
		return false
	}
	a.opacity = o
	return true
}

// DidScrollGestureBegin shows the scrollbars for the length of a gesture.
func (a *ScrollbarAnimator) DidScrollGestureBegin() {
	a.scrolling = true
	a.animating = false
	a.opacity = 1
}

// DidScrollGestureEnd schedules the fade.
func (a *ScrollbarAnimator) DidScrollGestureEnd(now time.Time) {
	a.scrolling = false
	a.scheduleFade(now)
}

// DidScrollUpdate shows the scrollbars and, outside a gesture, schedules
// the fade.
func (a *ScrollbarAnimator) DidScrollUpdate(now time.Time) {
	a.opacity = 1
	a.animating = false
	if !a.scrolling {
		a.scheduleFade(now)
	}
}

// DidMouseMoveNear records the mouse distance to the nearest scrollbar
// and reports whether the animator needs a redraw.
func (a *ScrollbarAnimator) DidMouseMoveNear(now time.Time, distance float32) bool {
	near := distance <= a.NearThreshold
	if near == a.mouseNear {
		return false
	}
	a.mouseNear = near
	if near {
		a.animating = false
		changed := a.opacity != 1
		a.opacity = 1
		return changed
	}
	if !a.scrolling {
		a.scheduleFade(now)
	}
	return true
}

func (a *ScrollbarAnimator) scheduleFade(now time.Time) {
	if a.mouseNear {
		return
	}
	a.fadeStart = now.Add(a.FadeDelay)
	a.animating = true
}
