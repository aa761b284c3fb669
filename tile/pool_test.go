package tile

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestResourcePool_AcquireReuse(t *testing.T) {
	p := NewResourcePool()
	a, err := p.Acquire(image.Pt(16, 16), ClassRequired, false)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := p.TotalBytes(); got != 16*16*4 {
		t.Errorf("TotalBytes() = %d, want %d", got, 16*16*4)
	}

	p.Release(a.ID)
	if p.Contains(a.ID) {
		t.Error("released resource should not be Contained")
	}
	if got := p.UnusedBytes(); got != 16*16*4 {
		t.Errorf("UnusedBytes() = %d, want %d", got, 16*16*4)
	}

	b, _ := p.Acquire(image.Pt(16, 16), ClassNiceToHave, false)
	if b.ID != a.ID {
		t.Errorf("Acquire reused %d, want %d", b.ID, a.ID)
	}
	if p.UnusedBytes() != 0 || p.Len() != 1 {
		t.Errorf("after reuse: UnusedBytes() = %d, Len() = %d", p.UnusedBytes(), p.Len())
	}
}

func TestResourcePool_HardLimit(t *testing.T) {
	// One 16x16 RGBA resource is 1024 bytes; two do not fit.
	p := NewResourcePool(WithHardLimit(1500))
	if _, err := p.Acquire(image.Pt(16, 16), ClassRequired, false); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if got := p.TotalBytes(); got != 1024 {
		t.Errorf("TotalBytes() = %d, want 1024", got)
	}
	_, err := p.Acquire(image.Pt(16, 16), ClassRequired, false)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Acquire() error = %v, want ErrBudgetExceeded", err)
	}
}

func TestResourcePool_NarrowFormatChargesStorage(t *testing.T) {
	p := NewResourcePool(WithFormat(gputypes.TextureFormatR8Unorm))
	r, err := p.Acquire(image.Pt(16, 16), ClassRequired, false)
	if err != nil {
		t.Fatal(err)
	}
	if r.Format != p.Format() || p.Format() != gputypes.TextureFormatR8Unorm {
		t.Errorf("Format = %v, pool Format() = %v, want R8Unorm", r.Format, p.Format())
	}
	if got, want := p.TotalBytes(), int64(len(r.Image.Pix)); got != want {
		t.Errorf("TotalBytes() = %d, want the %d bytes allocated", got, want)
	}
}

func TestResourcePool_ReduceMemory(t *testing.T) {
	tests := []struct {
		name        string
		limit       int64
		cutoff      PriorityCutoff
		wantEvicted bool
		wantLen     int
	}{
		{"generous budget", 1 << 20, CutoffAllowEverything, false, 3},
		{"required only", 1 << 20, CutoffAllowRequiredOnly, true, 2},
		{"zero limit keeps pinned", 0, CutoffAllowEverything, true, 1},
		{"allow nothing keeps pinned", 1 << 20, CutoffAllowNothing, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewResourcePool()
			p.Acquire(image.Pt(8, 8), ClassRequired, false)
			p.Acquire(image.Pt(8, 8), ClassNiceToHave, false)
			p.Acquire(image.Pt(8, 8), ClassRequired, true)

			if got := p.ReduceMemory(tt.limit, tt.cutoff); got != tt.wantEvicted {
				t.Errorf("ReduceMemory() = %v, want %v", got, tt.wantEvicted)
			}
			if p.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", p.Len(), tt.wantLen)
			}
		})
	}
}

func TestResourcePool_ReduceMemoryEmpty(t *testing.T) {
	p := NewResourcePool()
	if p.ReduceMemory(0, CutoffAllowNothing) {
		t.Error("ReduceMemory on an empty pool reported eviction")
	}
}

func TestResourcePool_ReduceWasted(t *testing.T) {
	p := NewResourcePool()
	a, _ := p.Acquire(image.Pt(4, 4), ClassRequired, false)
	p.Acquire(image.Pt(4, 4), ClassRequired, false)
	p.Release(a.ID)

	p.ReduceWastedMemory()
	if p.Len() != 1 || p.UnusedBytes() != 0 {
		t.Errorf("Len() = %d, UnusedBytes() = %d; want 1, 0", p.Len(), p.UnusedBytes())
	}
}

func TestPriorityCutoff_Text(t *testing.T) {
	var c PriorityCutoff
	if err := c.UnmarshalText([]byte("AllowNiceToHave")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if c != CutoffAllowNiceToHave {
		t.Errorf("UnmarshalText() = %v, want AllowNiceToHave", c)
	}
	if c.LimitPolicy() != AllowPrepaintOnly {
		t.Errorf("LimitPolicy() = %v, want AllowPrepaintOnly", c.LimitPolicy())
	}
	if err := c.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText(bogus) error = nil")
	}
}
