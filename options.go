package compositor

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/gogpu/compositor/tile"
)

// Option configures a Host during creation.
//
// Example:
//
//	// Default: own resource pool, global logger, no-op tracing.
//	h := compositor.NewHost(compositor.DefaultSettings(), client)
//
//	// Share a pool and trace frames.
//	h := compositor.NewHost(settings, client,
//	    compositor.WithResourcePool(pool),
//	    compositor.WithTracer(tp.Tracer("compositor")))
type Option func(*Host)

// WithLogger makes the host log to l instead of the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.log = l
	}
}

// WithTracer sets the tracer host operations are recorded with.
func WithTracer(t trace.Tracer) Option {
	return func(h *Host) {
		if t != nil {
			h.tracer = t
		}
	}
}

// WithResourcePool sets the pool tile and UI resources are allocated
// from. It is also the default resource owner.
func WithResourcePool(p *tile.ResourcePool) Option {
	return func(h *Host) {
		h.pool = p
	}
}

// WithResourceOwner sets who evicts content when the memory policy
// shrinks. Defaults to the resource pool.
func WithResourceOwner(o ResourceOwner) Option {
	return func(h *Host) {
		h.owner = o
	}
}

// WithTileManager injects the tile manager used with impl-side
// painting. Its pool replaces the host's.
func WithTileManager(m *tile.Manager) Option {
	return func(h *Host) {
		h.tiles = m
	}
}

// WithRasterWorkers sets the number of raster workers of the tile
// manager the host creates.
func WithRasterWorkers(n int) Option {
	return func(h *Host) {
		h.rasterWorkers = n
	}
}

// WithClock sets the time source used for scrollbar and top controls
// animations. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Host) {
		if now != nil {
			h.clock = now
		}
	}
}
