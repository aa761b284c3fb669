package tile

import (
	"image"
	"sync/atomic"

	"github.com/chewxy/math32"

	"github.com/gogpu/compositor/internal/parallel"
)

// Bin groups tiles by how soon they are needed.
type Bin int

const (
	// BinNow holds tiles intersecting the visible rect.
	BinNow Bin = iota
	// BinSoon holds tiles within the prepaint distance.
	BinSoon
	BinEventually
	BinNever
)

// Resolution ranks a tiling against the ideal contents scale.
type Resolution int

const (
	HighResolution Resolution = iota
	LowResolution
	NonIdealResolution
)

// Priority orders tiles for memory assignment. Lower sorts first.
type Priority struct {
	Bin               Bin
	Resolution        Resolution
	DistanceToVisible float32
}

// Less reports whether p is more important than q.
func (p Priority) Less(q Priority) bool {
	if p.Bin != q.Bin {
		return p.Bin < q.Bin
	}
	if p.Resolution != q.Resolution {
		return p.Resolution < q.Resolution
	}
	return p.DistanceToVisible < q.DistanceToVisible
}

// Class returns the resource class a tile of this priority is charged to.
func (p Priority) Class() Class {
	if p.Bin == BinNow && p.Resolution == HighResolution {
		return ClassRequired
	}
	return ClassNiceToHave
}

// Rasterizer paints layer content. Raster is called from raster worker
// goroutines and must not touch compositor state.
type Rasterizer interface {
	// Raster paints the content rect r, scaled by contentsScale, into
	// dst whose bounds equal r.
	Raster(dst *image.RGBA, r image.Rectangle, contentsScale float32)
}

// RasterFunc adapts a function to Rasterizer.
type RasterFunc func(dst *image.RGBA, r image.Rectangle, contentsScale float32)

// Raster calls f.
func (f RasterFunc) Raster(dst *image.RGBA, r image.Rectangle, contentsScale float32) {
	f(dst, r, contentsScale)
}

// Tile is one square of a tiling.
type Tile struct {
	X, Y int
	// Rect is the tile area in content space, clipped to the tiling.
	Rect image.Rectangle

	Priority Priority
	Opaque   bool

	resource    ResourceID
	needsRaster bool
	rasterizing bool
}

// Resource returns the resource holding the last raster, or 0.
func (t *Tile) Resource() ResourceID { return t.resource }

// NeedsRaster reports whether the content changed since the last raster.
func (t *Tile) NeedsRaster() bool { return t.needsRaster }

var nextTilingID atomic.Int64

// Tiling covers one layer's content at one contents scale.
type Tiling struct {
	id            int
	size          image.Point
	tileSize      int
	contentsScale float32
	resolution    Resolution
	opaque        bool
	source        Rasterizer

	tilesX, tilesY int
	tiles          []*Tile
	invalidated    *parallel.DirtyBitmap
}

// NewTiling creates a tiling for content of the given size. Every tile
// starts out needing raster.
func NewTiling(size image.Point, tileSize int, contentsScale float32, src Rasterizer) *Tiling {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	tx := max((size.X+tileSize-1)/tileSize, 1)
	ty := max((size.Y+tileSize-1)/tileSize, 1)
	t := &Tiling{
		id:            int(nextTilingID.Add(1)),
		size:          size,
		tileSize:      tileSize,
		contentsScale: contentsScale,
		source:        src,
		tilesX:        tx,
		tilesY:        ty,
		tiles:         make([]*Tile, tx*ty),
		invalidated:   parallel.NewDirtyBitmap(tx, ty, tileSize),
	}
	bounds := image.Rectangle{Max: size}
	for y := 0; y < ty; y++ {
		for x := 0; x < tx; x++ {
			r := image.Rect(x*tileSize, y*tileSize, (x+1)*tileSize, (y+1)*tileSize).Intersect(bounds)
			t.tiles[y*tx+x] = &Tile{X: x, Y: y, Rect: r, needsRaster: true, Priority: Priority{Bin: BinNever}}
		}
	}
	return t
}

// DefaultTileSize is the tile edge in content pixels.
const DefaultTileSize = 256

// ID returns the tiling's process-unique id.
func (t *Tiling) ID() int { return t.id }

// Size returns the content size covered.
func (t *Tiling) Size() image.Point { return t.size }

// TileSize returns the tile edge in pixels.
func (t *Tiling) TileSize() int { return t.tileSize }

// ContentsScale returns the scale content is rastered at.
func (t *Tiling) ContentsScale() float32 { return t.contentsScale }

// Resolution returns the tiling's rank.
func (t *Tiling) Resolution() Resolution { return t.resolution }

// SetResolution changes the rank used for tile priorities.
func (t *Tiling) SetResolution(r Resolution) { t.resolution = r }

// SetOpaque marks tile contents as fully opaque.
func (t *Tiling) SetOpaque(opaque bool) { t.opaque = opaque }

// Source returns the content rasterizer.
func (t *Tiling) Source() Rasterizer { return t.source }

// Tile returns the tile at grid position (x, y), or nil.
func (t *Tiling) Tile(x, y int) *Tile {
	if x < 0 || y < 0 || x >= t.tilesX || y >= t.tilesY {
		return nil
	}
	return t.tiles[y*t.tilesX+x]
}

// Tiles returns all tiles in row-major order.
func (t *Tiling) Tiles() []*Tile { return t.tiles }

// Covering calls fn for every tile intersecting r, in row-major order.
func (t *Tiling) Covering(r image.Rectangle, fn func(*Tile)) {
	r = r.Intersect(image.Rectangle{Max: t.size})
	if r.Empty() {
		return
	}
	x2 := (r.Max.X - 1) / t.tileSize
	y2 := (r.Max.Y - 1) / t.tileSize
	for y := r.Min.Y / t.tileSize; y <= y2; y++ {
		for x := r.Min.X / t.tileSize; x <= x2; x++ {
			fn(t.tiles[y*t.tilesX+x])
		}
	}
}

// Invalidate records that content inside r changed. Safe to call from
// any goroutine; the tiles pick it up on the next ManageTiles.
func (t *Tiling) Invalidate(r image.Rectangle) {
	t.invalidated.MarkRect(r)
}

// applyInvalidation moves pending invalidations onto the tiles.
func (t *Tiling) applyInvalidation() {
	t.invalidated.Drain(func(x, y int) {
		t.tiles[y*t.tilesX+x].needsRaster = true
	})
}

// UpdatePriorities bins every tile by its distance to visible, in
// content pixels. Tiles within prepaint of the visible rect are BinSoon.
func (t *Tiling) UpdatePriorities(visible image.Rectangle, prepaint int) {
	for _, tl := range t.tiles {
		d := distance(tl.Rect, visible)
		bin := BinEventually
		switch {
		case visible.Empty():
			bin = BinNever
		case d == 0 && tl.Rect.Overlaps(visible):
			bin = BinNow
		case d <= float32(prepaint):
			bin = BinSoon
		}
		tl.Priority = Priority{Bin: bin, Resolution: t.resolution, DistanceToVisible: d}
		tl.Opaque = t.opaque
	}
}

// distance returns the Euclidean gap between two rectangles, 0 when they
// touch or overlap.
func distance(a, b image.Rectangle) float32 {
	dx := max(b.Min.X-a.Max.X, a.Min.X-b.Max.X, 0)
	dy := max(b.Min.Y-a.Max.Y, a.Min.Y-b.Max.Y, 0)
	return math32.Hypot(float32(dx), float32(dy))
}

// Ready reports whether every tile intersecting r holds a live resource
// and needs no raster.
func (t *Tiling) Ready(r image.Rectangle, pool *ResourcePool) bool {
	ready := true
	t.Covering(r, func(tl *Tile) {
		if tl.needsRaster || !pool.Contains(tl.resource) {
			ready = false
		}
	})
	return ready
}
