package tile

import (
	"image"
	"log/slog"
	"sort"
	"sync"

	"github.com/gogpu/compositor/internal/parallel"
)

// Request asks the manager to keep one tiling's tiles around the given
// visible rect.
type Request struct {
	Tiling *Tiling
	// Visible is the visible content rect of the owning layer.
	Visible image.Rectangle
	// RequiredForActivation marks pending-tree tilings whose visible
	// tiles must be ready before the pending tree may activate.
	RequiredForActivation bool
}

type rasterResult struct {
	tiling   *Tiling
	tile     *Tile
	resource ResourceID
}

// Manager assigns memory to tiles by priority and rasters them on a
// worker pool. Apart from the raster tasks, a Manager is used from a
// single goroutine.
type Manager struct {
	pool        *ResourcePool
	workers     *parallel.WorkerPool
	ownsWorkers bool
	prepaint    int

	state GlobalState
	stats MemoryStats
	live  map[*Tiling]Request

	onReadyToActivate func()
	checkActivation   bool

	mu        sync.Mutex
	completed []rasterResult
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithWorkers sets the number of raster goroutines.
func WithWorkers(n int) ManagerOption {
	return func(m *Manager) {
		m.workers = parallel.NewWorkerPool(n)
		m.ownsWorkers = true
	}
}

// WithPrepaintDistance sets how far outside the visible rect, in content
// pixels, tiles are considered BinSoon.
func WithPrepaintDistance(px int) ManagerOption {
	return func(m *Manager) { m.prepaint = px }
}

// WithReadyToActivate registers fn, called once all tiles required for
// activation are ready after a ManageTiles.
func WithReadyToActivate(fn func()) ManagerOption {
	return func(m *Manager) { m.onReadyToActivate = fn }
}

// DefaultPrepaintDistance is the default prepaint reach in pixels.
const DefaultPrepaintDistance = 512

// NewManager creates a manager drawing resources from pool.
func NewManager(pool *ResourcePool, opts ...ManagerOption) *Manager {
	m := &Manager{
		pool:     pool,
		prepaint: DefaultPrepaintDistance,
		live:     make(map[*Tiling]Request),
		state: GlobalState{
			MemoryLimitBytes:  DefaultMemoryLimitBytes,
			MemoryLimitPolicy: AllowAnything,
			NumResourcesLimit: DefaultNumResourcesLimit,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers == nil {
		m.workers = parallel.NewWorkerPool(0)
		m.ownsWorkers = true
	}
	return m
}

// SetLogger sets the logger for the tile package.
func (m *Manager) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// SetReadyToActivate replaces the activation callback.
func (m *Manager) SetReadyToActivate(fn func()) {
	m.onReadyToActivate = fn
}

// SetGlobalState changes the budget. It takes effect on the next
// ManageTiles.
func (m *Manager) SetGlobalState(s GlobalState) {
	m.state = s
}

// GlobalState returns the current budget.
func (m *Manager) GlobalState() GlobalState {
	return m.state
}

// Pool returns the resource pool tiles are allocated from.
func (m *Manager) Pool() *ResourcePool {
	return m.pool
}

type tileRef struct {
	tiling *Tiling
	tile   *Tile
}

// ManageTiles recomputes tile priorities for reqs, assigns memory within
// the global state and schedules raster for tiles that gained memory or
// were invalidated. Tilings from the previous call that are missing from
// reqs give their memory back.
func (m *Manager) ManageTiles(reqs []Request) {
	next := make(map[*Tiling]Request, len(reqs))
	for _, r := range reqs {
		next[r.Tiling] = r
	}
	for t := range m.live {
		if _, ok := next[t]; !ok {
			m.releaseTiling(t)
		}
	}
	m.live = next

	var refs []tileRef
	for _, r := range reqs {
		r.Tiling.applyInvalidation()
		r.Tiling.UpdatePriorities(r.Visible, m.prepaint)
		for _, tl := range r.Tiling.tiles {
			refs = append(refs, tileRef{r.Tiling, tl})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].tile.Priority.Less(refs[j].tile.Priority)
	})

	stats := MemoryStats{}
	count := 0
	scheduled := 0
	for _, ref := range refs {
		tl := ref.tile
		bytes := BytesForSize(tl.Rect.Size())
		if tl.Priority.Bin == BinNow {
			stats.RequiredBytes += bytes
		}
		if tl.Priority.Bin != BinNever {
			stats.NiceToHaveBytes += bytes
		}

		fits := stats.AllocatedBytes+bytes <= m.state.MemoryLimitBytes &&
			(m.state.NumResourcesLimit <= 0 || count < m.state.NumResourcesLimit)
		if !m.eligible(tl.Priority.Bin) || !fits {
			m.freeTile(tl)
			continue
		}
		stats.AllocatedBytes += bytes
		count++
		if m.schedule(ref.tiling, tl) {
			scheduled++
		}
	}

	m.pool.TrimUnused(m.state.UnusedMemoryLimitBytes)
	stats.UsedBytes = m.pool.TotalBytes()
	m.stats = stats
	m.checkActivation = true

	slogger().Debug("tile: managed tiles",
		"tiles", len(refs),
		"scheduled", scheduled,
		"allocated", stats.AllocatedBytes,
		"policy", m.state.MemoryLimitPolicy.String())

	m.notifyIfReadyToActivate()
}

func (m *Manager) eligible(bin Bin) bool {
	switch m.state.MemoryLimitPolicy {
	case AllowAbsoluteMinimum:
		return bin == BinNow
	case AllowPrepaintOnly:
		return bin <= BinSoon
	case AllowAnything:
		return bin != BinNever
	default:
		return false
	}
}

// schedule queues raster for tl if it has no live content or was
// invalidated. Reports whether a task was queued.
func (m *Manager) schedule(t *Tiling, tl *Tile) bool {
	if tl.rasterizing {
		return false
	}
	if !tl.needsRaster && m.pool.Contains(tl.resource) {
		return false
	}
	res, err := m.pool.Acquire(tl.Rect.Size(), tl.Priority.Class(), false)
	if err != nil {
		slogger().Warn("tile: raster skipped", "tile", [2]int{tl.X, tl.Y}, "err", err)
		return false
	}
	tl.rasterizing = true
	tl.needsRaster = false

	rect := tl.Rect
	scale := t.contentsScale
	src := t.source
	img := res.Image
	id := res.ID
	ok := m.workers.Submit(func() {
		if src != nil {
			dst := &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: rect}
			src.Raster(dst, rect, scale)
		}
		m.mu.Lock()
		m.completed = append(m.completed, rasterResult{tiling: t, tile: tl, resource: id})
		m.mu.Unlock()
	})
	if !ok {
		tl.rasterizing = false
		tl.needsRaster = true
		m.pool.Release(id)
	}
	return ok
}

func (m *Manager) freeTile(tl *Tile) {
	if tl.resource == 0 {
		return
	}
	m.pool.Release(tl.resource)
	tl.resource = 0
	tl.needsRaster = true
}

func (m *Manager) releaseTiling(t *Tiling) {
	for _, tl := range t.tiles {
		m.freeTile(tl)
	}
}

// UpdateVisibleTiles installs finished raster results. It reports whether
// a tile in the visible bin received content, which means the visible
// output changed.
func (m *Manager) UpdateVisibleTiles() bool {
	m.mu.Lock()
	done := m.completed
	m.completed = nil
	m.mu.Unlock()

	didInitializeVisible := false
	for _, r := range done {
		r.tile.rasterizing = false
		if _, live := m.live[r.tiling]; !live {
			m.pool.Release(r.resource)
			continue
		}
		if r.tile.resource != 0 {
			m.pool.Release(r.tile.resource)
		}
		r.tile.resource = r.resource
		if r.tile.Priority.Bin == BinNow {
			didInitializeVisible = true
		}
	}
	if len(done) > 0 {
		m.notifyIfReadyToActivate()
	}
	return didInitializeVisible
}

func (m *Manager) notifyIfReadyToActivate() {
	if !m.checkActivation || m.onReadyToActivate == nil {
		return
	}
	for t, r := range m.live {
		if r.RequiredForActivation && !t.Ready(r.Visible, m.pool) {
			return
		}
	}
	m.checkActivation = false
	m.onReadyToActivate()
}

// AreVisibleTilesReady reports whether every visible tile of every
// managed tiling holds current content.
func (m *Manager) AreVisibleTilesReady() bool {
	for t, r := range m.live {
		if !t.Ready(r.Visible, m.pool) {
			return false
		}
	}
	return true
}

// Flush waits for all scheduled raster tasks to finish. Results still
// need UpdateVisibleTiles to be installed.
func (m *Manager) Flush() {
	m.workers.Wait()
}

// MemoryStats returns the figures computed by the last ManageTiles.
func (m *Manager) MemoryStats() MemoryStats {
	return m.stats
}

// Close stops the raster workers if the manager created them.
func (m *Manager) Close() {
	if m.ownsWorkers {
		m.workers.Close()
	}
}
