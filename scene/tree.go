package scene

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/geom"
)

// Generation names the role a tree currently plays.
type Generation int

const (
	Active Generation = iota
	Pending
	Recycle
)

func (g Generation) String() string {
	switch g {
	case Active:
		return "active"
	case Pending:
		return "pending"
	case Recycle:
		return "recycle"
	default:
		return "unknown"
	}
}

// RootScrollOffsetDelegate observes the root scroll offset, e.g. an
// embedder that owns the page scroll position.
type RootScrollOffsetDelegate interface {
	SetTotalScrollOffset(offset geom.Vector)
}

// UIResourceRequestKind tells whether a UI resource request creates or
// deletes a resource.
type UIResourceRequestKind int

const (
	UIResourceCreate UIResourceRequestKind = iota
	UIResourceDelete
)

// UIResourceRequest is a UI resource change queued on a pending tree and
// applied when the tree activates.
type UIResourceRequest struct {
	Kind   UIResourceRequestKind
	ID     UIResourceID
	Bitmap *image.RGBA
}

// UIResourceHandler applies queued UI resource requests.
type UIResourceHandler interface {
	CreateUIResource(uid UIResourceID, bitmap *image.RGBA) error
	DeleteUIResource(uid UIResourceID)
}

// Tree is one generation of the layer tree. Layers are owned through an
// id-keyed arena; parent and scroll parent links are ids into it.
type Tree struct {
	generation Generation
	layers     map[int]*Layer
	root       *Layer

	pageScaleFactor      float32
	pageScaleDelta       float32
	sentPageScaleDelta   float32
	minPageScaleFactor   float32
	maxPageScaleFactor   float32
	rootScrollLayerID    int
	currentlyScrollingID int

	// BackgroundColor fills the viewport outside all layers.
	BackgroundColor gputypes.Color

	// HasTransparentBackground leaves uncovered pixels transparent.
	HasTransparentBackground bool

	// ViewportSizeInvalid is set while the producer lays out for a new
	// viewport size; tile management waits for it to clear.
	ViewportSizeInvalid bool

	// ContentsTexturesPurged is set after memory pressure evicted
	// content resources; the tree cannot draw until recommitted.
	ContentsTexturesPurged bool

	// SourceFrameNumber is the producer frame this tree was committed from.
	SourceFrameNumber int

	needsFullTreeSync         bool
	needsUpdateDrawProperties bool

	renderSurfaceLayerList []*Layer
	uiRequests             []UIResourceRequest
	scrollDelegate         RootScrollOffsetDelegate
	viewport               Viewport
}

// NewTree returns an empty tree of the given generation.
func NewTree(g Generation) *Tree {
	return &Tree{
		generation:                g,
		layers:                    make(map[int]*Layer),
		pageScaleFactor:           1,
		pageScaleDelta:            1,
		sentPageScaleDelta:        1,
		minPageScaleFactor:        1,
		maxPageScaleFactor:        1,
		BackgroundColor:           gputypes.ColorWhite,
		needsUpdateDrawProperties: true,
	}
}

// Generation returns the tree's current role.
func (t *Tree) Generation() Generation { return t.generation }

// SetGeneration changes the tree's role. Only the host swaps trees.
func (t *Tree) SetGeneration(g Generation) { t.generation = g }

// IsActive reports whether the tree is drawn.
func (t *Tree) IsActive() bool { return t.generation == Active }

// NewLayer registers a detached layer with the given id. The id must be
// positive and unused in this tree.
func (t *Tree) NewLayer(id int) *Layer {
	if id <= 0 {
		panic(fmt.Sprintf("scene: invalid layer id %d", id))
	}
	if _, ok := t.layers[id]; ok {
		panic(fmt.Sprintf("scene: duplicate layer id %d", id))
	}
	l := newLayer(t, id)
	t.layers[id] = l
	return l
}

func newLayer(t *Tree, id int) *Layer {
	return &Layer{
		id:        id,
		tree:      t,
		transform: geom.Identity(),
		opacity:   1,
		draw:      DrawProperties{ScreenSpaceTransform: geom.Identity(), Opacity: 1},
	}
}

// LayerByID returns the layer with the given id, or nil.
func (t *Tree) LayerByID(id int) *Layer {
	if id == 0 {
		return nil
	}
	return t.layers[id]
}

// NumLayers returns the number of registered layers.
func (t *Tree) NumLayers() int { return len(t.layers) }

// RootLayer returns the root layer, or nil.
func (t *Tree) RootLayer() *Layer { return t.root }

// SetRootLayer replaces the layer structure. Layers outside the new root's
// subtree are released.
func (t *Tree) SetRootLayer(l *Layer) {
	if l != nil && l.tree != t {
		panic("scene: SetRootLayer with a layer of another tree")
	}
	old := t.root
	t.root = l
	if old != nil && old != l {
		t.releaseSubtree(old)
	}
	t.needsFullTreeSync = true
	t.SetNeedsUpdateDrawProperties()
}

// ClearRootLayer drops every layer.
func (t *Tree) ClearRootLayer() {
	t.root = nil
	t.layers = make(map[int]*Layer)
	t.rootScrollLayerID = 0
	t.currentlyScrollingID = 0
	t.renderSurfaceLayerList = nil
	t.needsFullTreeSync = true
}

func (t *Tree) releaseSubtree(l *Layer) {
	if l == t.root {
		return
	}
	walkAll(l, func(n *Layer) {
		if t.layers[n.id] == n {
			delete(t.layers, n.id)
		}
		if n.id == t.currentlyScrollingID {
			t.currentlyScrollingID = 0
		}
		if n.id == t.rootScrollLayerID {
			t.rootScrollLayerID = 0
		}
	})
}

// walkAll visits l and its subtree, including mask and replica layers,
// in paint order.
func walkAll(l *Layer, fn func(*Layer)) {
	fn(l)
	if l.mask != nil {
		walkAll(l.mask, fn)
	}
	if l.replica != nil {
		walkAll(l.replica, fn)
	}
	for _, c := range l.children {
		walkAll(c, fn)
	}
}

// ForEachLayer visits every layer reachable from the root in paint order.
func (t *Tree) ForEachLayer(fn func(*Layer)) {
	if t.root != nil {
		walkAll(t.root, fn)
	}
}

// RootScrollLayer returns the layer scrolled by the page, or nil.
func (t *Tree) RootScrollLayer() *Layer { return t.LayerByID(t.rootScrollLayerID) }

// SetRootScrollLayer designates the page's scroll layer.
func (t *Tree) SetRootScrollLayer(id int) {
	t.rootScrollLayerID = id
	t.SetNeedsUpdateDrawProperties()
	t.notifyScrollDelegate()
}

// CurrentlyScrollingLayer returns the layer receiving the ongoing
// scroll, or nil.
func (t *Tree) CurrentlyScrollingLayer() *Layer { return t.LayerByID(t.currentlyScrollingID) }

// SetCurrentlyScrollingLayer latches a scroll onto l.
func (t *Tree) SetCurrentlyScrollingLayer(l *Layer) {
	if l == nil {
		t.currentlyScrollingID = 0
		return
	}
	t.currentlyScrollingID = l.id
}

// ClearCurrentlyScrollingLayer ends the scroll latch.
func (t *Tree) ClearCurrentlyScrollingLayer() { t.currentlyScrollingID = 0 }

// SetRootScrollOffsetDelegate installs d, or detaches with nil. A newly
// attached delegate is told the current offset.
func (t *Tree) SetRootScrollOffsetDelegate(d RootScrollOffsetDelegate) {
	t.scrollDelegate = d
	t.notifyScrollDelegate()
}

// RootScrollOffsetDelegate returns the installed delegate, or nil.
func (t *Tree) RootScrollOffsetDelegate() RootScrollOffsetDelegate { return t.scrollDelegate }

func (t *Tree) notifyScrollDelegate() {
	if t.scrollDelegate == nil {
		return
	}
	if l := t.RootScrollLayer(); l != nil {
		t.scrollDelegate.SetTotalScrollOffset(l.TotalScrollOffset())
	}
}

// PageScaleFactor returns the committed page scale.
func (t *Tree) PageScaleFactor() float32 { return t.pageScaleFactor }

// PageScaleDelta returns the impl-side page scale change not yet committed.
func (t *Tree) PageScaleDelta() float32 { return t.pageScaleDelta }

// SentPageScaleDelta returns the page scale delta sent in the last commit.
func (t *Tree) SentPageScaleDelta() float32 { return t.sentPageScaleDelta }

// SetSentPageScaleDelta records the delta sent with a commit.
func (t *Tree) SetSentPageScaleDelta(d float32) { t.sentPageScaleDelta = d }

// MinPageScaleFactor returns the lower page scale limit.
func (t *Tree) MinPageScaleFactor() float32 { return t.minPageScaleFactor }

// MaxPageScaleFactor returns the upper page scale limit.
func (t *Tree) MaxPageScaleFactor() float32 { return t.maxPageScaleFactor }

// TotalPageScaleFactor returns the committed scale times the delta.
func (t *Tree) TotalPageScaleFactor() float32 { return t.pageScaleFactor * t.pageScaleDelta }

// SetPageScaleFactorAndLimits sets the committed page scale and limits.
func (t *Tree) SetPageScaleFactorAndLimits(factor, minFactor, maxFactor float32) {
	if factor <= 0 {
		return
	}
	if minFactor <= 0 {
		minFactor = factor
	}
	if maxFactor < minFactor {
		maxFactor = minFactor
	}
	if t.pageScaleFactor == factor && t.minPageScaleFactor == minFactor && t.maxPageScaleFactor == maxFactor {
		return
	}
	t.pageScaleFactor = factor
	t.minPageScaleFactor = minFactor
	t.maxPageScaleFactor = maxFactor
	t.SetNeedsUpdateDrawProperties()
}

// SetPageScaleDelta sets the impl-side scale change, clamped so that the
// total page scale stays within the limits.
func (t *Tree) SetPageScaleDelta(delta float32) {
	total := t.pageScaleFactor * delta
	switch {
	case total < t.minPageScaleFactor:
		delta = t.minPageScaleFactor / t.pageScaleFactor
	case total > t.maxPageScaleFactor:
		delta = t.maxPageScaleFactor / t.pageScaleFactor
	}
	if delta == t.pageScaleDelta {
		return
	}
	t.pageScaleDelta = delta
	t.SetNeedsUpdateDrawProperties()
}

// NeedsFullTreeSync reports whether the layer structure changed since the
// last synchronisation.
func (t *Tree) NeedsFullTreeSync() bool { return t.needsFullTreeSync }

// SetNeedsFullTreeSync flags the tree for structural synchronisation.
func (t *Tree) SetNeedsFullTreeSync(v bool) { t.needsFullTreeSync = v }

// NeedsUpdateDrawProperties reports whether draw properties are stale.
func (t *Tree) NeedsUpdateDrawProperties() bool { return t.needsUpdateDrawProperties }

// SetNeedsUpdateDrawProperties marks draw properties stale.
func (t *Tree) SetNeedsUpdateDrawProperties() { t.needsUpdateDrawProperties = true }

// RenderSurfaceLayerList returns the surface owners in preorder, root
// first. It is valid after UpdateDrawProperties.
func (t *Tree) RenderSurfaceLayerList() []*Layer { return t.renderSurfaceLayerList }

// Viewport returns the viewport of the last draw properties update.
func (t *Tree) Viewport() Viewport { return t.viewport }

// QueueUIResourceRequest queues a UI resource change for activation.
func (t *Tree) QueueUIResourceRequest(r UIResourceRequest) {
	t.uiRequests = append(t.uiRequests, r)
}

// UIResourceRequestQueueLen returns the number of queued requests.
func (t *Tree) UIResourceRequestQueueLen() int { return len(t.uiRequests) }

// ProcessUIResourceRequestQueue applies and clears the queued requests in
// order. Failed creations are joined into the returned error.
func (t *Tree) ProcessUIResourceRequestQueue(h UIResourceHandler) error {
	queue := t.uiRequests
	t.uiRequests = nil
	var errs []error
	for _, r := range queue {
		switch r.Kind {
		case UIResourceCreate:
			if err := h.CreateUIResource(r.ID, r.Bitmap); err != nil {
				errs = append(errs, fmt.Errorf("ui resource %d: %w", r.ID, err))
			}
		case UIResourceDelete:
			h.DeleteUIResource(r.ID)
		}
	}
	return errors.Join(errs...)
}

// PushPersistedState hands impl-side state that outlives a commit to the
// tree replacing this one.
func (t *Tree) PushPersistedState(pending *Tree) {
	pending.currentlyScrollingID = 0
	if l := t.CurrentlyScrollingLayer(); l != nil && pending.LayerByID(l.id) != nil {
		pending.currentlyScrollingID = l.id
	}
}

// SynchronizeTrees makes dst's layer structure mirror src. Layers are
// reused by id; layers new in src are created and layers gone from src
// are released.
func SynchronizeTrees(src, dst *Tree) {
	old := dst.layers
	dst.layers = make(map[int]*Layer, len(src.layers))
	dst.root = nil
	if src.root != nil {
		dst.root = syncLayer(src.root, dst, old, 0)
	}
	if dst.LayerByID(dst.currentlyScrollingID) == nil {
		dst.currentlyScrollingID = 0
	}
	dst.rootScrollLayerID = src.rootScrollLayerID
	src.needsFullTreeSync = false
	dst.SetNeedsUpdateDrawProperties()
}

func syncLayer(s *Layer, dst *Tree, old map[int]*Layer, parentID int) *Layer {
	d, ok := old[s.id]
	if !ok {
		d = newLayer(dst, s.id)
		d.propertyChanged = true
	}
	dst.layers[s.id] = d
	d.parentID = parentID
	d.children = d.children[:0]
	for _, c := range s.children {
		d.children = append(d.children, syncLayer(c, dst, old, d.id))
	}
	d.mask, d.replica = nil, nil
	if s.mask != nil {
		d.mask = syncLayer(s.mask, dst, old, d.id)
	}
	if s.replica != nil {
		d.replica = syncLayer(s.replica, dst, old, d.id)
	}
	return d
}

// PushPropertiesTo copies per-layer and per-tree properties to dst. Layers
// missing from dst are skipped; run SynchronizeTrees first when the
// structure changed.
func (t *Tree) PushPropertiesTo(dst *Tree) {
	t.ForEachLayer(func(l *Layer) {
		if d := dst.LayerByID(l.id); d != nil {
			l.pushPropertiesTo(d)
		}
	})

	dst.SetPageScaleFactorAndLimits(t.pageScaleFactor, t.minPageScaleFactor, t.maxPageScaleFactor)
	dst.SetPageScaleDelta(dst.pageScaleDelta / dst.sentPageScaleDelta)
	dst.sentPageScaleDelta = 1

	dst.SourceFrameNumber = t.SourceFrameNumber
	dst.BackgroundColor = t.BackgroundColor
	dst.HasTransparentBackground = t.HasTransparentBackground
	dst.ContentsTexturesPurged = t.ContentsTexturesPurged
	dst.ViewportSizeInvalid = t.ViewportSizeInvalid
	dst.rootScrollLayerID = t.rootScrollLayerID
	dst.SetNeedsUpdateDrawProperties()
}

// ResetAllChangeTracking clears layer change tracking and surface damage
// after a successful draw.
func (t *Tree) ResetAllChangeTracking() {
	for _, l := range t.renderSurfaceLayerList {
		if l.surface != nil {
			l.surface.didDraw()
		}
	}
	t.ForEachLayer((*Layer).ResetChangeTracking)
}

// ResetTransientState prepares a tree for reuse as the pending tree.
// The layer structure is kept.
func (t *Tree) ResetTransientState() {
	t.uiRequests = nil
	t.scrollDelegate = nil
	t.currentlyScrollingID = 0
	t.ContentsTexturesPurged = false
	t.ViewportSizeInvalid = false
	t.renderSurfaceLayerList = nil
	t.SetNeedsUpdateDrawProperties()
}

// AnimateScrollbars advances every scrollbar animator and reports whether
// any opacity changed.
func (t *Tree) AnimateScrollbars(now time.Time) bool {
	changed := false
	t.ForEachLayer(func(l *Layer) {
		if l.ScrollbarAnimator != nil && l.ScrollbarAnimator.Animate(now) {
			t.applyScrollbarOpacity(l)
			changed = true
		}
	})
	return changed
}

// applyScrollbarOpacity copies the animator opacity onto the scrollbar
// layers of scroll layer l.
func (t *Tree) applyScrollbarOpacity(l *Layer) {
	o := l.ScrollbarAnimator.Opacity()
	for _, id := range []int{l.HorizontalScrollbarID, l.VerticalScrollbarID} {
		if sb := t.LayerByID(id); sb != nil {
			sb.SetOpacity(o)
		}
	}
}

// ReleaseResources drops references to rastered content and surfaces.
func (t *Tree) ReleaseResources() {
	t.ForEachLayer(func(l *Layer) {
		l.surface = nil
		l.drawing = false
	})
	t.renderSurfaceLayerList = nil
	t.SetNeedsUpdateDrawProperties()
}
