package compositor

import (
	"image"
	"time"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/scene"
	"github.com/gogpu/compositor/tile"
)

// Client receives requests and notifications from a Host, usually the
// scheduler that drives it. Every field is optional; nil funcs are
// skipped.
type Client struct {
	SetNeedsRedraw        func()
	SetNeedsRedrawRect    func(damage image.Rectangle)
	SetNeedsCommit        func()
	SetNeedsManageTiles   func()
	OnCanDrawStateChanged func(canDraw bool)
	RenewTreePriority     func()
	DidLoseOutputSurface  func()

	// NotifyReadyToActivate is called once every tile the pending tree
	// needs is rasterized.
	NotifyReadyToActivate  func()
	DidActivatePendingTree func()

	// ReduceWastedContentsTextureMemory runs after activation so the
	// producer can drop resources of the replaced tree.
	ReduceWastedContentsTextureMemory func()

	// SendManagedMemoryStats reports the memory the compositor wants
	// and holds, rounded up.
	SendManagedMemoryStats func(stats MemoryStats)

	// RequestScrollbarAnimation asks for an Animate call after delay.
	RequestScrollbarAnimation func(delay time.Duration)

	DidInitializeVisibleTile func()

	// AnimationEvents receives the layer animations that started or
	// finished during Animate, with the wall clock time of that call.
	AnimationEvents func(events []scene.AnimationEvent, wallClock time.Time)

	// IsInsideDraw reports whether the client is currently drawing.
	IsInsideDraw func() bool
}

// MemoryStats is the memory report sent to the embedder.
type MemoryStats struct {
	RequiredBytes   int64
	NiceToHaveBytes int64
	UsedBytes       int64
}

func (c *Client) setNeedsRedraw() {
	if c.SetNeedsRedraw != nil {
		c.SetNeedsRedraw()
	}
}

func (c *Client) setNeedsRedrawRect(r image.Rectangle) {
	if c.SetNeedsRedrawRect != nil {
		c.SetNeedsRedrawRect(r)
	}
}

func (c *Client) setNeedsCommit() {
	if c.SetNeedsCommit != nil {
		c.SetNeedsCommit()
	}
}

func (c *Client) setNeedsManageTiles() {
	if c.SetNeedsManageTiles != nil {
		c.SetNeedsManageTiles()
	}
}

func (c *Client) onCanDrawStateChanged(canDraw bool) {
	if c.OnCanDrawStateChanged != nil {
		c.OnCanDrawStateChanged(canDraw)
	}
}

func (c *Client) renewTreePriority() {
	if c.RenewTreePriority != nil {
		c.RenewTreePriority()
	}
}

func (c *Client) didLoseOutputSurface() {
	if c.DidLoseOutputSurface != nil {
		c.DidLoseOutputSurface()
	}
}

func (c *Client) notifyReadyToActivate() {
	if c.NotifyReadyToActivate != nil {
		c.NotifyReadyToActivate()
	}
}

func (c *Client) didActivatePendingTree() {
	if c.DidActivatePendingTree != nil {
		c.DidActivatePendingTree()
	}
}

func (c *Client) reduceWastedContentsTextureMemory() {
	if c.ReduceWastedContentsTextureMemory != nil {
		c.ReduceWastedContentsTextureMemory()
	}
}

func (c *Client) sendManagedMemoryStats(s MemoryStats) {
	if c.SendManagedMemoryStats != nil {
		c.SendManagedMemoryStats(s)
	}
}

func (c *Client) requestScrollbarAnimation(delay time.Duration) {
	if c.RequestScrollbarAnimation != nil {
		c.RequestScrollbarAnimation(delay)
	}
}

func (c *Client) didInitializeVisibleTile() {
	if c.DidInitializeVisibleTile != nil {
		c.DidInitializeVisibleTile()
	}
}

func (c *Client) isInsideDraw() bool {
	return c.IsInsideDraw != nil && c.IsInsideDraw()
}

// DidOverscrollParams describes scroll input the root layer could not
// consume.
type DidOverscrollParams struct {
	// AccumulatedOverscroll is the overscroll of the current gesture,
	// reset per axis whenever that axis scrolls.
	AccumulatedOverscroll geom.Vector
	// LatestOverscrollDelta is the overscroll of the last ScrollBy.
	LatestOverscrollDelta geom.Vector
	// CurrentFlingVelocity is the last velocity passed to
	// NotifyCurrentFlingVelocity.
	CurrentFlingVelocity geom.Vector
}

// InputClient is the input handler bound to a Host.
type InputClient interface {
	// Animate runs before the host's own animations each frame.
	Animate(now time.Time)
	DidOverscroll(params DidOverscrollParams)
	MainThreadHasStoppedFlinging()
}

// ResourceOwner holds the content resources the memory policy applies
// to. tile.ResourcePool implements it.
type ResourceOwner interface {
	// ReduceMemory evicts resources down to limit bytes, dropping those
	// the cutoff does not allow, and reports whether anything in use was
	// evicted.
	ReduceMemory(limit int64, cutoff tile.PriorityCutoff) bool
}

// wastedMemoryReducer is implemented by owners that can drop resources
// nothing refers to anymore.
type wastedMemoryReducer interface {
	ReduceWastedMemory()
}

var _ ResourceOwner = (*tile.ResourcePool)(nil)

func (c *Client) animationEvents(events []scene.AnimationEvent, wallClock time.Time) {
	if c.AnimationEvents != nil {
		c.AnimationEvents(events, wallClock)
	}
}
