// Package tile manages rastered layer content under a memory budget.
//
// A Tiling splits one layer's content into square tiles. Each frame the
// compositor hands the Manager the tilings it wants kept, together with
// their visible rects. The Manager bins tiles by distance to visible
// (now, soon, eventually, never) and assigns memory in priority order
// within a GlobalState. It then rasters the tiles that gained memory
// on a worker pool.
//
// Memory comes from a ResourcePool, which also backs UI resources and is
// the compositor's default resource owner: ReduceMemory evicts down to a
// byte limit at a PriorityCutoff.
//
//	pool := tile.NewResourcePool()
//	m := tile.NewManager(pool, tile.WithWorkers(4))
//	defer m.Close()
//	m.ManageTiles([]tile.Request{{Tiling: t, Visible: visible}})
//	m.Flush()
//	m.UpdateVisibleTiles()
package tile
