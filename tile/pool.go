package tile

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/internal/cache"
)

// ErrBudgetExceeded is returned when an allocation would grow the pool
// beyond its hard limit.
var ErrBudgetExceeded = errors.New("tile: memory budget exceeded")

// ResourceID names a pooled texture. Zero is never a valid id.
type ResourceID uint64

// Class is the importance a resource was allocated for.
type Class int

const (
	// ClassRequired resources back the current view.
	ClassRequired Class = iota
	// ClassNiceToHave resources back prepaint.
	ClassNiceToHave
)

// Resource is one pooled texture with CPU-side pixels.
type Resource struct {
	ID     ResourceID
	Size   image.Point
	Format gputypes.TextureFormat
	Image  *image.RGBA
	Class  Class
	// Pinned resources are UI resources; ReduceMemory never evicts them.
	Pinned bool

	inUse bool
	node  *cache.Node[ResourceID]
}

// Bytes returns the memory held by r.
func (r *Resource) Bytes() int64 {
	return BytesForSize(r.Size)
}

// BytesForSize returns the memory a pool resource of the given size
// holds. Every format is backed by an 8-bit RGBA image, so narrower
// formats are charged the same four bytes per pixel.
func BytesForSize(size image.Point) int64 {
	return int64(size.X) * int64(size.Y) * 4
}

// ResourcePool owns every tile and UI texture and evicts them under a
// byte budget. It is the default resource owner of the compositor.
//
// ResourcePool is safe for concurrent use.
type ResourcePool struct {
	mu        sync.Mutex
	resources map[ResourceID]*Resource
	lru       *cache.List[ResourceID]
	nextID    ResourceID
	format    gputypes.TextureFormat

	totalBytes  int64
	unusedBytes int64
	hardLimit   int64
}

// PoolOption configures a ResourcePool.
type PoolOption func(*ResourcePool)

// WithFormat sets the texture format of new resources.
func WithFormat(f gputypes.TextureFormat) PoolOption {
	return func(p *ResourcePool) { p.format = f }
}

// WithHardLimit rejects allocations beyond limit bytes. Zero disables it.
func WithHardLimit(limit int64) PoolOption {
	return func(p *ResourcePool) { p.hardLimit = limit }
}

// NewResourcePool creates an empty pool of RGBA8 textures.
func NewResourcePool(opts ...PoolOption) *ResourcePool {
	p := &ResourcePool{
		resources: make(map[ResourceID]*Resource),
		lru:       cache.NewList[ResourceID](),
		format:    gputypes.TextureFormatRGBA8Unorm,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns a resource of the given size, reusing an unused one of
// the same size when possible.
func (p *ResourcePool) Acquire(size image.Point, class Class, pinned bool) (*Resource, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("tile: invalid resource size %v", size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var reuse *Resource
	p.lru.OldestFirst(func(n *cache.Node[ResourceID]) bool {
		r := p.resources[n.Key]
		if !r.inUse && r.Size == size {
			reuse = r
			return false
		}
		return true
	})
	if reuse != nil {
		reuse.inUse = true
		reuse.Class = class
		reuse.Pinned = pinned
		p.unusedBytes -= reuse.Bytes()
		p.lru.MoveToFront(reuse.node)
		clear(reuse.Image.Pix)
		return reuse, nil
	}

	bytes := BytesForSize(size)
	if p.hardLimit > 0 && p.totalBytes+bytes > p.hardLimit {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrBudgetExceeded, bytes, p.totalBytes, p.hardLimit)
	}
	p.nextID++
	r := &Resource{
		ID:     p.nextID,
		Size:   size,
		Format: p.format,
		Image:  image.NewRGBA(image.Rectangle{Max: size}),
		Class:  class,
		Pinned: pinned,
		inUse:  true,
	}
	r.node = p.lru.PushFront(r.ID)
	p.resources[r.ID] = r
	p.totalBytes += bytes
	return r, nil
}

// Release returns a resource to the pool for reuse. The memory stays
// allocated until ReduceWastedMemory or ReduceMemory drops it.
func (p *ResourcePool) Release(id ResourceID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[id]
	if !ok || !r.inUse {
		return
	}
	r.inUse = false
	r.Pinned = false
	p.unusedBytes += r.Bytes()
}

// Delete frees a resource immediately.
func (p *ResourcePool) Delete(id ResourceID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.resources[id]; ok {
		p.deleteLocked(r)
	}
}

// Touch marks a resource as recently drawn.
func (p *ResourcePool) Touch(id ResourceID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.resources[id]; ok {
		p.lru.MoveToFront(r.node)
	}
}

// Contains reports whether id names a live, in-use resource.
func (p *ResourcePool) Contains(id ResourceID) bool {
	if id == 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[id]
	return ok && r.inUse
}

// ResourceImage returns the pixels of an in-use resource.
func (p *ResourcePool) ResourceImage(id uint64) (*image.RGBA, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[ResourceID(id)]
	if !ok || !r.inUse {
		return nil, false
	}
	return r.Image, true
}

// ReduceMemory evicts resources until at most limit bytes remain, first
// every unpinned resource whose class falls below cutoff, then the least
// recently used. Pinned resources are never evicted. Reports whether
// anything in use was evicted.
func (p *ResourcePool) ReduceMemory(limit int64, cutoff PriorityCutoff) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	evicted := false
	p.lru.OldestFirst(func(n *cache.Node[ResourceID]) bool {
		r := p.resources[n.Key]
		if !r.Pinned && (!r.inUse || !cutoff.allows(r.Class)) {
			evicted = evicted || r.inUse
			p.deleteLocked(r)
		}
		return true
	})
	p.lru.OldestFirst(func(n *cache.Node[ResourceID]) bool {
		if p.totalBytes <= limit {
			return false
		}
		r := p.resources[n.Key]
		if !r.Pinned {
			evicted = evicted || r.inUse
			p.deleteLocked(r)
		}
		return true
	})
	return evicted
}

// ReduceWastedMemory frees every released resource.
func (p *ResourcePool) ReduceWastedMemory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lru.OldestFirst(func(n *cache.Node[ResourceID]) bool {
		if r := p.resources[n.Key]; !r.inUse {
			p.deleteLocked(r)
		}
		return true
	})
}

// TrimUnused frees the oldest released resources until at most limit
// bytes of released memory remain.
func (p *ResourcePool) TrimUnused(limit int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lru.OldestFirst(func(n *cache.Node[ResourceID]) bool {
		if p.unusedBytes <= limit {
			return false
		}
		if r := p.resources[n.Key]; !r.inUse {
			p.deleteLocked(r)
		}
		return true
	})
}

// TotalBytes returns the memory held by all resources.
func (p *ResourcePool) TotalBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalBytes
}

// UnusedBytes returns the memory held by released resources.
func (p *ResourcePool) UnusedBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unusedBytes
}

// Len returns the number of resources, in use or not.
func (p *ResourcePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}

// Format returns the texture format of new resources.
func (p *ResourcePool) Format() gputypes.TextureFormat {
	return p.format
}

func (p *ResourcePool) deleteLocked(r *Resource) {
	p.lru.Remove(r.node)
	delete(p.resources, r.ID)
	p.totalBytes -= r.Bytes()
	if !r.inUse {
		p.unusedBytes -= r.Bytes()
	}
}
