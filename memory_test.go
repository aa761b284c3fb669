package compositor

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/tile"
)

func TestRoundUp(t *testing.T) {
	tests := []struct {
		n, multiple, want int64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{5, 0, 5},
		{5, -1, 5},
	}
	for _, tt := range tests {
		if got := roundUp(tt.n, tt.multiple); got != tt.want {
			t.Errorf("roundUp(%d, %d) = %d, want %d", tt.n, tt.multiple, got, tt.want)
		}
	}
}

func TestZeroBudgetEvictsContentInUse(t *testing.T) {
	h, rec := newTestHost(t, DefaultSettings())
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	if _, err := h.ResourcePool().Acquire(image.Pt(64, 64), tile.ClassRequired, false); err != nil {
		t.Fatal(err)
	}
	rec.canDraw = nil
	commits := rec.commits

	h.SetManagedMemoryPolicy(h.Settings().MemoryPolicy, true)

	if got := h.ResourcePool().Len(); got != 0 {
		t.Errorf("pool holds %d resources, want 0", got)
	}
	if !h.ActiveTree().ContentsTexturesPurged {
		t.Error("ContentsTexturesPurged = false after evicting content in use")
	}
	if len(rec.canDraw) == 0 || rec.canDraw[len(rec.canDraw)-1] {
		t.Errorf("canDraw notifications = %v, want a trailing false", rec.canDraw)
	}
	if rec.commits <= commits {
		t.Error("eviction did not request a commit")
	}
	if h.CanDraw() {
		t.Error("CanDraw() = true with purged contents")
	}
}

func TestZeroBudgetWithNothingToEvict(t *testing.T) {
	h, rec := newTestHost(t, DefaultSettings())
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	rec.canDraw = nil

	h.SetManagedMemoryPolicy(h.Settings().MemoryPolicy, true)

	for _, v := range rec.canDraw {
		if !v {
			t.Fatalf("canDraw notifications = %v, want no false", rec.canDraw)
		}
	}
	if h.ActiveTree().ContentsTexturesPurged {
		t.Error("ContentsTexturesPurged = true without eviction")
	}
	if got := h.MemoryAllocationLimit(); got != 0 {
		t.Errorf("MemoryAllocationLimit() = %d, want 0", got)
	}
}

func TestZeroBudgetSparesPinnedResources(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	if err := h.CreateUIResource(1, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatal(err)
	}
	h.SetManagedMemoryPolicy(h.Settings().MemoryPolicy, true)
	if h.ResourceForUIResource(1) == 0 || !h.Contains(h.ResourceForUIResource(1)) {
		t.Error("memory policy evicted a UI resource")
	}
}

func TestActualManagedMemoryPolicy(t *testing.T) {
	base := tile.DefaultManagedMemoryPolicy(32 << 20)
	tests := []struct {
		name       string
		onlyVisble bool
		zero       bool
		want       tile.ManagedMemoryPolicy
	}{
		{"unchanged", false, false, base},
		{"zero budget", false, true, func() tile.ManagedMemoryPolicy {
			p := base
			p.BytesLimitWhenVisible = 0
			p.BytesLimitWhenNotVisible = 0
			return p
		}()},
		{"rasterize only visible content", true, false, func() tile.ManagedMemoryPolicy {
			p := base
			p.PriorityCutoffWhenVisible = tile.CutoffAllowRequiredOnly
			p.PriorityCutoffWhenNotVisible = tile.CutoffAllowNothing
			return p
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.RasterizeOnlyVisibleContent = tt.onlyVisble
			h, _ := newTestHost(t, s)
			h.SetManagedMemoryPolicy(base, tt.zero)
			if got := h.ActualManagedMemoryPolicy(); got != tt.want {
				t.Errorf("ActualManagedMemoryPolicy() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPolicyChangeCommitsOnlyWhenNeeded(t *testing.T) {
	h, rec := newTestHost(t, DefaultSettings())
	h.SetMaxMemoryNeededBytes(1 << 20)

	commits := rec.commits
	h.SetMemoryPolicy(tile.DefaultManagedMemoryPolicy(128 << 20))
	if rec.commits != commits {
		t.Errorf("growing a budget that already fit requested %d commits", rec.commits-commits)
	}

	h.SetMemoryPolicy(tile.DefaultManagedMemoryPolicy(512 << 10))
	if rec.commits != commits+1 {
		t.Errorf("shrinking below the needed memory requested %d commits, want 1", rec.commits-commits)
	}

	// Same policy again is a no-op.
	h.SetMemoryPolicy(tile.DefaultManagedMemoryPolicy(512 << 10))
	if rec.commits != commits+1 {
		t.Error("repeating the policy requested a commit")
	}
}

func TestHiddenBudgetApplies(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	if _, err := h.ResourcePool().Acquire(image.Pt(32, 32), tile.ClassNiceToHave, false); err != nil {
		t.Fatal(err)
	}
	h.SetVisible(false)
	if got := h.ResourcePool().Len(); got != 0 {
		t.Errorf("pool holds %d resources while hidden, want 0", got)
	}
}

func TestManagedMemoryStatsAreRoundedAndDeduplicated(t *testing.T) {
	h, rec := newTestHost(t, DefaultSettings())
	if _, err := h.ResourcePool().Acquire(image.Pt(1024, 1024), tile.ClassRequired, false); err != nil {
		t.Fatal(err)
	}
	rec.stats = nil

	h.CommitComplete()
	h.CommitComplete()

	if len(rec.stats) != 1 {
		t.Fatalf("sent %d stats, want 1", len(rec.stats))
	}
	rounding := h.Settings().MemoryStatsRounding
	want := MemoryStats{RequiredBytes: rounding, NiceToHaveBytes: rounding, UsedBytes: rounding}
	if rec.stats[0] != want {
		t.Errorf("stats = %+v, want %+v", rec.stats[0], want)
	}
}

func TestNoStatsBeforeRenderer(t *testing.T) {
	rec := &recorder{}
	h := NewHost(DefaultSettings(), rec.client())
	defer h.Close()
	h.CommitComplete()
	if len(rec.stats) != 0 {
		t.Errorf("sent %d stats without a renderer", len(rec.stats))
	}
}

func TestTreePriority(t *testing.T) {
	s := DefaultSettings()
	s.ImplSidePainting = true
	h, rec := newTestHost(t, s)
	rec.manageTiles = 0

	h.SetTreePriority(tile.SmoothnessTakesPriority)
	h.SetTreePriority(tile.SmoothnessTakesPriority)

	if got := h.TreePriority(); got != tile.SmoothnessTakesPriority {
		t.Errorf("TreePriority() = %v, want %v", got, tile.SmoothnessTakesPriority)
	}
	if rec.manageTiles != 1 {
		t.Errorf("manageTiles = %d, want 1", rec.manageTiles)
	}

	h.ManageTiles()
	if got := h.TileManager().GlobalState().TreePriority; got != tile.SmoothnessTakesPriority {
		t.Errorf("tile manager TreePriority = %v, want %v", got, tile.SmoothnessTakesPriority)
	}
}

// countingOwner records memory policy enforcement.
type countingOwner struct {
	calls  int
	limit  int64
	cutoff tile.PriorityCutoff
	evict  bool
}

func (o *countingOwner) ReduceMemory(limit int64, cutoff tile.PriorityCutoff) bool {
	o.calls++
	o.limit, o.cutoff = limit, cutoff
	return o.evict
}

func TestWithResourceOwner(t *testing.T) {
	owner := &countingOwner{evict: true}
	h, _ := newTestHost(t, DefaultSettings(), WithResourceOwner(owner))
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)

	h.SetMemoryPolicy(tile.DefaultManagedMemoryPolicy(1 << 20))

	if owner.calls != 1 {
		t.Fatalf("ReduceMemory called %d times, want 1", owner.calls)
	}
	if owner.limit != 1<<20 || owner.cutoff != tile.CutoffAllowEverything {
		t.Errorf("ReduceMemory(%d, %v), want (%d, %v)", owner.limit, owner.cutoff, 1<<20, tile.CutoffAllowEverything)
	}
	if !h.ActiveTree().ContentsTexturesPurged {
		t.Error("owner eviction did not purge the tree")
	}
}
