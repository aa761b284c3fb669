package compositor

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/compositor/tile"
)

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	newTestHost(t, DefaultSettings(), WithLogger(l))

	if !strings.Contains(buf.String(), "compositor: renderer initialized") {
		t.Errorf("host logger output = %q, want the renderer initialization", buf.String())
	}
}

func TestWithLoggerLeavesPackageLoggerAlone(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	h := NewHost(DefaultSettings(), Client{}, WithLogger(l))
	defer h.Close()

	if h.logger() != l {
		t.Error("host does not use the injected logger")
	}
	if Logger() == l {
		t.Error("WithLogger replaced the package logger")
	}
}

func TestWithClock(t *testing.T) {
	clock := newFakeClock()
	h := NewHost(DefaultSettings(), Client{}, WithClock(clock.Now))
	defer h.Close()
	if got := h.now(); !got.Equal(clock.Now()) {
		t.Errorf("now() = %v, want %v", got, clock.Now())
	}

	d := NewHost(DefaultSettings(), Client{}, WithClock(nil))
	defer d.Close()
	if got := d.now(); time.Since(got) > time.Minute {
		t.Errorf("WithClock(nil) now() = %v, want the wall clock", got)
	}
}

func TestWithResourcePoolOwnsMemory(t *testing.T) {
	pool := tile.NewResourcePool()
	h := NewHost(DefaultSettings(), Client{}, WithResourcePool(pool))
	defer h.Close()
	if h.ResourcePool() != pool {
		t.Fatal("ResourcePool() is not the injected pool")
	}
	if h.owner != ResourceOwner(pool) {
		t.Error("injected pool is not the resource owner")
	}
}

func TestWithTileManager(t *testing.T) {
	pool := tile.NewResourcePool()
	m := tile.NewManager(pool)
	defer m.Close()

	s := DefaultSettings()
	s.ImplSidePainting = true
	h := NewHost(s, Client{}, WithTileManager(m))
	h.Close()

	if h.TileManager() != m {
		t.Fatal("TileManager() is not the injected manager")
	}
	if h.ResourcePool() != pool {
		t.Error("host does not share the injected manager's pool")
	}
	if h.ownsTiles {
		t.Error("host owns an injected tile manager")
	}
}
