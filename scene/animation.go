package scene

import (
	"time"

	"github.com/gogpu/compositor/geom"
)

// AnimationProperty is the layer property an Animation drives.
type AnimationProperty int

const (
	AnimateOpacity AnimationProperty = iota
	AnimateTransform
)

func (p AnimationProperty) String() string {
	switch p {
	case AnimateOpacity:
		return "Opacity"
	case AnimateTransform:
		return "Transform"
	default:
		return "AnimationProperty(?)"
	}
}

// AnimationEventType tells what happened to an animation.
type AnimationEventType int

const (
	AnimationStarted AnimationEventType = iota
	AnimationFinished
)

func (t AnimationEventType) String() string {
	if t == AnimationStarted {
		return "Started"
	}
	return "Finished"
}

// AnimationEvent reports an animation starting or finishing on the
// compositor so the producer can keep its copy in step.
type AnimationEvent struct {
	Type        AnimationEventType
	LayerID     int
	AnimationID int
	Property    AnimationProperty
	// Time is the monotonic time the animation started or finished at.
	Time time.Time
}

// Animation runs a layer property from one value to another over a
// duration. It starts on the first Animate after it reaches the active
// tree.
//
// Only the fields of its Property are read: From/To for opacity,
// FromTransform/ToTransform for transforms.
type Animation struct {
	ID       int
	Property AnimationProperty
	Duration time.Duration
	// Iterations is how many times the curve plays. Zero plays it once;
	// negative repeats forever.
	Iterations int
	// Timing maps linear progress in [0, 1] to curve progress. Nil is
	// linear.
	Timing func(float32) float32

	From, To                   float32
	FromTransform, ToTransform geom.Transform

	started  bool
	start    time.Time
	finished bool
}

func (a *Animation) iterations() int {
	if a.Iterations == 0 {
		return 1
	}
	return a.Iterations
}

// IsFinished reports whether the animation has played out.
func (a *Animation) IsFinished() bool { return a.finished }

// progress returns the curve progress at now and whether the last
// iteration has ended.
func (a *Animation) progress(now time.Time) (float32, bool) {
	elapsed := now.Sub(a.start)
	if a.Duration <= 0 {
		return 1, a.iterations() > 0
	}
	iter := int(elapsed / a.Duration)
	if n := a.iterations(); n > 0 && iter >= n {
		return 1, true
	}
	p := float32(elapsed%a.Duration) / float32(a.Duration)
	if a.Timing != nil {
		p = a.Timing(p)
	}
	return p, false
}

func (a *Animation) apply(l *Layer, p float32) {
	switch a.Property {
	case AnimateOpacity:
		l.SetOpacity(a.From + (a.To-a.From)*p)
	case AnimateTransform:
		f, t := a.FromTransform, a.ToTransform
		lerp := func(x, y float32) float32 { return x + (y-x)*p }
		l.SetTransform(geom.Transform{
			A: lerp(f.A, t.A), B: lerp(f.B, t.B), C: lerp(f.C, t.C),
			D: lerp(f.D, t.D), E: lerp(f.E, t.E), F: lerp(f.F, t.F),
		})
	}
}

// AddAnimation attaches a to the layer. An animation with the same ID
// is replaced.
func (l *Layer) AddAnimation(a *Animation) {
	l.RemoveAnimation(a.ID)
	l.animations = append(l.animations, a)
	if a.Property == AnimateTransform {
		l.TransformIsAnimating = true
	}
}

// RemoveAnimation drops the animation with the given ID, leaving the
// property where it is.
func (l *Layer) RemoveAnimation(id int) {
	for i, a := range l.animations {
		if a.ID == id {
			l.animations = append(l.animations[:i], l.animations[i+1:]...)
			if a.Property == AnimateTransform {
				l.TransformIsAnimating = l.hasTransformAnimation()
			}
			return
		}
	}
}

// Animations returns the animations still attached to the layer.
func (l *Layer) Animations() []*Animation { return l.animations }

func (l *Layer) hasTransformAnimation() bool {
	for _, a := range l.animations {
		if a.Property == AnimateTransform {
			return true
		}
	}
	return false
}

// tickAnimations advances the layer's animations to now, appending start
// and finish events to events.
func (l *Layer) tickAnimations(now time.Time, events []AnimationEvent) []AnimationEvent {
	hadTransform := l.hasTransformAnimation()
	live := l.animations[:0]
	for _, a := range l.animations {
		if !a.started {
			a.started, a.start = true, now
			events = append(events, AnimationEvent{Type: AnimationStarted, LayerID: l.id, AnimationID: a.ID, Property: a.Property, Time: now})
		}
		p, done := a.progress(now)
		a.apply(l, p)
		if done {
			a.finished = true
			events = append(events, AnimationEvent{Type: AnimationFinished, LayerID: l.id, AnimationID: a.ID, Property: a.Property, Time: now})
			continue
		}
		live = append(live, a)
	}
	clear(l.animations[len(live):])
	l.animations = live
	if hadTransform {
		l.TransformIsAnimating = l.hasTransformAnimation()
	}
	return events
}

// pushAnimationsTo hands animations added on the producer side to the
// matching layer of another tree. Animations with other IDs keep running
// there.
func (l *Layer) pushAnimationsTo(dst *Layer) {
	if len(l.animations) == 0 {
		return
	}
	for _, a := range l.animations {
		dst.AddAnimation(a)
	}
	l.animations = nil
}

// HasActiveAnimations reports whether any layer of the tree animates.
func (t *Tree) HasActiveAnimations() bool {
	active := false
	t.ForEachLayer(func(l *Layer) {
		active = active || len(l.animations) > 0
	})
	return active
}

// AnimateLayers advances every layer animation to now and returns the
// start and finish events it produced.
func (t *Tree) AnimateLayers(now time.Time) []AnimationEvent {
	var events []AnimationEvent
	t.ForEachLayer(func(l *Layer) {
		if len(l.animations) > 0 {
			events = l.tickAnimations(now, events)
		}
	})
	return events
}
