package scene

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/compositor/geom"
)

var testViewport = Viewport{DeviceSize: image.Pt(200, 200), DeviceScaleFactor: 1}

// solidLayer adds a drawing child of size w x h at (x, y).
func solidLayer(t *Tree, parent *Layer, id, x, y, w, h int) *Layer {
	l := t.NewLayer(id)
	l.SetBounds(image.Pt(w, h))
	l.SetTransform(geom.Translate(float32(x), float32(y)))
	l.SetSolidColor(gputypes.ColorBlue)
	if parent != nil {
		parent.AddChild(l)
	}
	return l
}

// surfaceTree builds R{A{a1}, B} where A owns a render surface.
func surfaceTree() *Tree {
	t := NewTree(Active)
	r := solidLayer(t, nil, 1, 0, 0, 200, 200)
	t.SetRootLayer(r)
	a := solidLayer(t, r, 2, 10, 10, 100, 100)
	a.ForceRenderSurface = true
	solidLayer(t, a, 3, 10, 10, 50, 50)
	solidLayer(t, r, 4, 120, 120, 50, 50)
	return t
}

type step struct {
	Role   Role
	Layer  int
	Target int
}

func TestFrontToBackOrder(t *testing.T) {
	tree := surfaceTree()
	tree.UpdateDrawProperties(testViewport)

	var got []step
	for pos := range tree.FrontToBack() {
		got = append(got, step{pos.Role, pos.Layer.ID(), pos.Target.ID()})
	}
	want := []step{
		{RoleItself, 4, 1},
		{RoleItself, 3, 2},
		{RoleItself, 2, 2},
		{RoleTargetSurface, 2, 2},
		{RoleContributingSurface, 2, 1},
		{RoleItself, 1, 1},
		{RoleTargetSurface, 1, 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FrontToBack() mismatch (-want +got):\n%s", diff)
	}
}

func TestFrontToBackStopsEarly(t *testing.T) {
	tree := surfaceTree()
	tree.UpdateDrawProperties(testViewport)
	n := 0
	for range tree.FrontToBack() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("visited %d positions, want 2", n)
	}
}

func TestUpdateDrawProperties_RenderSurfaceLayerList(t *testing.T) {
	tree := surfaceTree()
	tree.UpdateDrawProperties(testViewport)

	var ids []int
	for _, l := range tree.RenderSurfaceLayerList() {
		ids = append(ids, l.ID())
	}
	if diff := cmp.Diff([]int{1, 2}, ids); diff != "" {
		t.Errorf("RenderSurfaceLayerList() mismatch (-want +got):\n%s", diff)
	}

	a := tree.LayerByID(2)
	if got, want := a.RenderSurface().ContentRect(), image.Rect(10, 10, 110, 110); got != want {
		t.Errorf("surface ContentRect() = %v, want %v", got, want)
	}
	if got := tree.LayerByID(3).RenderTarget(); got != a {
		t.Errorf("a1 RenderTarget() = %v, want layer 2", got.ID())
	}
	if got := tree.RootLayer().RenderSurface().ContentRect(); got != testViewport.Rect() {
		t.Errorf("root ContentRect() = %v, want viewport", got)
	}
}

func TestUpdateDrawProperties_OpacitySurface(t *testing.T) {
	tests := []struct {
		name        string
		children    int
		wantSurface bool
	}{
		{"single drawing layer", 0, false},
		{"one drawing child", 1, true},
		{"two drawing children", 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewTree(Active)
			root := tree.NewLayer(1)
			root.SetBounds(image.Pt(200, 200))
			tree.SetRootLayer(root)
			l := solidLayer(tree, root, 2, 0, 0, 100, 100)
			l.SetOpacity(0.5)
			for i := range tt.children {
				solidLayer(tree, l, 10+i, 0, 0, 10, 10)
			}
			tree.UpdateDrawProperties(testViewport)
			if got := l.RenderSurface() != nil; got != tt.wantSurface {
				t.Errorf("has surface = %v, want %v", got, tt.wantSurface)
			}
		})
	}
}

func TestUpdateDrawProperties_ZeroOpacitySkipsSubtree(t *testing.T) {
	tree := NewTree(Active)
	root := solidLayer(tree, nil, 1, 0, 0, 200, 200)
	tree.SetRootLayer(root)
	hidden := solidLayer(tree, root, 2, 0, 0, 100, 100)
	hidden.SetOpacity(0)
	solidLayer(tree, hidden, 3, 0, 0, 10, 10)
	tree.UpdateDrawProperties(testViewport)

	for pos := range tree.FrontToBack() {
		if id := pos.Layer.ID(); id == 2 || id == 3 {
			t.Errorf("invisible layer %d visited as %v", id, pos.Role)
		}
	}
}

func TestUpdateDrawProperties_Clipping(t *testing.T) {
	tree := NewTree(Active)
	root := tree.NewLayer(1)
	root.SetBounds(image.Pt(200, 200))
	tree.SetRootLayer(root)
	clip := tree.NewLayer(2)
	clip.SetBounds(image.Pt(50, 50))
	clip.SetTransform(geom.Translate(20, 20))
	clip.MasksToBounds = true
	root.AddChild(clip)
	child := solidLayer(tree, clip, 3, 10, 10, 100, 100)

	tree.UpdateDrawProperties(testViewport)
	d := child.DrawProperties()
	if want := image.Rect(30, 30, 70, 70); d.DrawableContentRect != want {
		t.Errorf("DrawableContentRect = %v, want %v", d.DrawableContentRect, want)
	}
	if want := image.Rect(0, 0, 40, 40); d.VisibleContentRect != want {
		t.Errorf("VisibleContentRect = %v, want %v", d.VisibleContentRect, want)
	}
}

func TestUpdateDrawProperties_ScrollAndPageScale(t *testing.T) {
	tree := NewTree(Active)
	root := tree.NewLayer(1)
	root.SetBounds(image.Pt(200, 200))
	tree.SetRootLayer(root)
	scroll := solidLayer(tree, root, 2, 0, 0, 400, 400)
	scroll.Scrollable = true
	tree.SetRootScrollLayer(2)
	tree.SetPageScaleFactorAndLimits(2, 1, 4)
	scroll.SetScrollOffset(geom.Vec(10, 0))
	scroll.SetScrollDelta(geom.Vec(0, 5))

	tree.UpdateDrawProperties(testViewport)
	p := scroll.ScreenSpaceTransform().MapPoint(geom.Pt(10, 5))
	if p != (geom.Point{}) {
		t.Errorf("scrolled origin maps to %v, want (0,0)", p)
	}
	if want := geom.Vec(300, 300); scroll.MaxScrollOffset() != want {
		t.Errorf("MaxScrollOffset() = %v, want %v", scroll.MaxScrollOffset(), want)
	}
}

func TestUpdateDrawProperties_UpToDate(t *testing.T) {
	tree := surfaceTree()
	tree.UpdateDrawProperties(testViewport)
	if tree.NeedsUpdateDrawProperties() {
		t.Fatal("NeedsUpdateDrawProperties() = true after update")
	}
	tree.LayerByID(4).SetOpacity(0.5)
	if !tree.NeedsUpdateDrawProperties() {
		t.Error("SetOpacity did not mark draw properties stale")
	}
}

func TestSynchronizeTrees(t *testing.T) {
	pending := surfaceTree()
	active := NewTree(Active)
	SynchronizeTrees(pending, active)
	pending.PushPropertiesTo(active)

	if got := active.NumLayers(); got != 4 {
		t.Fatalf("NumLayers() = %d, want 4", got)
	}
	kept := active.LayerByID(3)
	if kept.Parent().ID() != 2 {
		t.Errorf("layer 3 parent = %d, want 2", kept.Parent().ID())
	}

	pending.LayerByID(4).RemoveFromParent()
	solidLayer(pending, pending.LayerByID(2), 5, 0, 0, 10, 10)
	if !pending.NeedsFullTreeSync() {
		t.Fatal("structure change did not request a full tree sync")
	}
	SynchronizeTrees(pending, active)

	if active.LayerByID(4) != nil {
		t.Error("removed layer 4 still registered")
	}
	if active.LayerByID(5) == nil {
		t.Error("added layer 5 missing")
	}
	if active.LayerByID(3) != kept {
		t.Error("layer 3 was not reused by id")
	}
	if pending.NeedsFullTreeSync() {
		t.Error("NeedsFullTreeSync() still set after sync")
	}
}

func TestPushPropertiesTo_ScrollDelta(t *testing.T) {
	pending := surfaceTree()
	active := NewTree(Active)
	SynchronizeTrees(pending, active)

	a := active.LayerByID(2)
	a.SetScrollDelta(geom.Vec(0, 10))
	a.SetSentScrollDelta(geom.Vec(0, 4))
	pending.LayerByID(2).SetScrollOffset(geom.Vec(0, 4))
	pending.PushPropertiesTo(active)

	if got, want := a.ScrollOffset(), geom.Vec(0, 4); got != want {
		t.Errorf("ScrollOffset() = %v, want %v", got, want)
	}
	if got, want := a.ScrollDelta(), geom.Vec(0, 6); got != want {
		t.Errorf("ScrollDelta() = %v, want %v", got, want)
	}
	if !a.SentScrollDelta().IsZero() {
		t.Errorf("SentScrollDelta() = %v, want zero", a.SentScrollDelta())
	}
}

func TestPushPropertiesTo_PageScale(t *testing.T) {
	pending := NewTree(Pending)
	pending.SetPageScaleFactorAndLimits(2, 1, 4)
	active := NewTree(Active)
	active.SetPageScaleFactorAndLimits(1, 1, 4)
	active.SetPageScaleDelta(3)
	active.SetSentPageScaleDelta(2)

	pending.PushPropertiesTo(active)
	if got := active.PageScaleDelta(); got != 1.5 {
		t.Errorf("PageScaleDelta() = %v, want 1.5", got)
	}
	if got := active.SentPageScaleDelta(); got != 1 {
		t.Errorf("SentPageScaleDelta() = %v, want 1", got)
	}
	if got := active.TotalPageScaleFactor(); got != 3 {
		t.Errorf("TotalPageScaleFactor() = %v, want 3", got)
	}
}

func TestPushPersistedState(t *testing.T) {
	active := surfaceTree()
	pending := NewTree(Pending)
	SynchronizeTrees(active, pending)
	active.SetCurrentlyScrollingLayer(active.LayerByID(2))

	active.PushPersistedState(pending)
	if l := pending.CurrentlyScrollingLayer(); l == nil || l.ID() != 2 {
		t.Errorf("pending CurrentlyScrollingLayer() = %v, want layer 2", l)
	}
}

type recordingHandler struct {
	log  []string
	fail UIResourceID
}

var errCreate = errors.New("create failed")

func (h *recordingHandler) CreateUIResource(uid UIResourceID, _ *image.RGBA) error {
	h.log = append(h.log, "create")
	if uid == h.fail {
		return errCreate
	}
	return nil
}

func (h *recordingHandler) DeleteUIResource(UIResourceID) {
	h.log = append(h.log, "delete")
}

func TestProcessUIResourceRequestQueue(t *testing.T) {
	tree := NewTree(Pending)
	tree.QueueUIResourceRequest(UIResourceRequest{Kind: UIResourceCreate, ID: 1})
	tree.QueueUIResourceRequest(UIResourceRequest{Kind: UIResourceDelete, ID: 1})
	tree.QueueUIResourceRequest(UIResourceRequest{Kind: UIResourceCreate, ID: 2})

	h := &recordingHandler{fail: 2}
	err := tree.ProcessUIResourceRequestQueue(h)
	if !errors.Is(err, errCreate) {
		t.Errorf("ProcessUIResourceRequestQueue() error = %v, want errCreate", err)
	}
	if diff := cmp.Diff([]string{"create", "delete", "create"}, h.log); diff != "" {
		t.Errorf("request order mismatch (-want +got):\n%s", diff)
	}
	if tree.UIResourceRequestQueueLen() != 0 {
		t.Error("queue not cleared")
	}
}

func TestSurfaceDamage(t *testing.T) {
	tree := surfaceTree()
	update := func() {
		tree.UpdateDrawProperties(testViewport)
		rsll := tree.RenderSurfaceLayerList()
		for i := len(rsll) - 1; i >= 0; i-- {
			rsll[i].RenderSurface().UpdateDamage()
		}
	}
	root := tree.RootLayer().RenderSurface

	update()
	if got := root().DamageTracker().CurrentDamage(); got != image.Rect(0, 0, 200, 200) {
		t.Errorf("first frame damage = %v, want full root", got)
	}
	tree.ResetAllChangeTracking()

	update()
	if got := root().DamageTracker().CurrentDamage(); !got.Empty() {
		t.Errorf("unchanged frame damage = %v, want empty", got)
	}
	tree.ResetAllChangeTracking()

	tree.LayerByID(4).InvalidateRect(image.Rect(0, 0, 10, 10))
	update()
	if got, want := root().DamageTracker().CurrentDamage(), image.Rect(120, 120, 130, 130); got != want {
		t.Errorf("invalidation damage = %v, want %v", got, want)
	}
	tree.ResetAllChangeTracking()

	tree.LayerByID(3).SetOpacity(0.5)
	update()
	if got, want := root().DamageTracker().CurrentDamage(), image.Rect(20, 20, 70, 70); got != want {
		t.Errorf("child surface damage = %v, want %v", got, want)
	}
}
