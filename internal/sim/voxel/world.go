package voxel

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/sim/catalogs"
	"clothcraft.ai/internal/sim/cloth"
	"clothcraft.ai/internal/sim/mathx"
	"clothcraft.ai/internal/sim/tuning"
)

// entityFriction is the fraction of entity velocity lost per second.
const entityFriction = 4.0

// Drop is an item left in the world.
type Drop struct {
	Pos  mgl64.Vec3
	Item string
}

type ChunkListener func(ChunkKey)

// World is the in-process voxel world: loaded chunks, entities, wind and item drops.
// It is driven from the server loop goroutine only.
type World struct {
	seed  int64
	cfg   tuning.World
	cat   *catalogs.BlockCatalog
	store *ChunkStore

	time float64

	nextEntity int
	entities   map[int]*Entity
	// Entities whose chunk is unloaded, keyed by id.
	parked map[int]*Entity

	drops []Drop

	onLoad   []ChunkListener
	onUnload []ChunkListener
}

func New(seed int64, height int, cfg tuning.World, cat *catalogs.BlockCatalog) *World {
	gen := Gen{
		Seed:             seed,
		GroundLevel:      cfg.GroundLevel,
		SpawnClearRadius: cfg.SpawnClearRadius,
		PostPermille:     cfg.PostPermille,
		PondPermille:     cfg.PondPermille,
		PostHeight:       3,
		Air:              cat.ID("AIR"),
		Grass:            cat.ID("GRASS"),
		Dirt:             cat.ID("DIRT"),
		Stone:            cat.ID("STONE"),
		Sand:             cat.ID("SAND"),
		Water:            cat.ID("WATER"),
		Post:             cat.ID("FENCE_POST"),
	}
	return &World{
		seed:       seed,
		cfg:        cfg,
		cat:        cat,
		store:      NewChunkStore(gen, height),
		nextEntity: 1,
		entities:   map[int]*Entity{},
		parked:     map[int]*Entity{},
	}
}

func (w *World) Store() *ChunkStore              { return w.store }
func (w *World) Catalog() *catalogs.BlockCatalog { return w.cat }
func (w *World) GroundLevel() int                { return w.cfg.GroundLevel }

func (w *World) OnChunkLoad(fn ChunkListener)   { w.onLoad = append(w.onLoad, fn) }
func (w *World) OnChunkUnload(fn ChunkListener) { w.onUnload = append(w.onUnload, fn) }

// LoadChunk generates a chunk, brings back the entities parked in it and then notifies
// listeners.
func (w *World) LoadChunk(k ChunkKey) {
	if !w.store.Load(k) {
		return
	}
	for _, id := range sortedIDs(w.parked) {
		e := w.parked[id]
		if !k.Contains(e.pos) {
			continue
		}
		e.removal = cloth.NotRemoved
		w.entities[id] = e
		delete(w.parked, id)
	}
	for _, fn := range w.onLoad {
		fn(k)
	}
}

// UnloadChunk notifies listeners while the chunk is still readable, then parks its
// entities and drops it.
func (w *World) UnloadChunk(k ChunkKey) {
	if !w.store.Loaded(k) {
		return
	}
	for _, fn := range w.onUnload {
		fn(k)
	}
	for _, id := range sortedIDs(w.entities) {
		e := w.entities[id]
		if !k.Contains(e.pos) {
			continue
		}
		e.removal = cloth.Unloaded
		w.parked[id] = e
		delete(w.entities, id)
	}
	w.store.Unload(k)
}

// LoadArea loads every chunk within radius chunks of center.
func (w *World) LoadArea(center ChunkKey, radius int) {
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			w.LoadChunk(ChunkKey{CX: center.CX + dx, CZ: center.CZ + dz})
		}
	}
}

func (w *World) LoadedChunks() []ChunkKey { return w.store.LoadedChunkKeys() }

func (w *World) IsLoaded(pos mgl64.Vec3) bool {
	return w.store.Loaded(ChunkOf(pos))
}

func (w *World) Block(p cloth.BlockPos) catalogs.BlockDef {
	return w.cat.Def(w.store.GetBlock(p.X, p.Y, p.Z))
}

func (w *World) SetBlock(p cloth.BlockPos, name string) bool {
	id, ok := w.cat.Index[name]
	if !ok {
		return false
	}
	return w.store.SetBlock(p.X, p.Y, p.Z, id)
}

func (w *World) CanTie(p cloth.BlockPos) bool { return w.Block(p).RopeTieable }

func (w *World) solid(p cloth.BlockPos) bool  { return w.Block(p).Solid }
func (w *World) liquid(p cloth.BlockPos) bool { return w.Block(p).Liquid }

// Wind is a horizontal field whose heading turns slowly with world time and whose
// strength grows with height above ground.
func (w *World) Wind(pos mgl64.Vec3) mgl64.Vec3 {
	heading := mathx.Unit(mathx.Hash2(w.seed, 0, 0)) * 2 * math.Pi
	if w.cfg.WindTurnSeconds > 0 {
		heading += w.time / w.cfg.WindTurnSeconds * 2 * math.Pi
	}
	above := math.Max(0, pos[1]-float64(w.cfg.GroundLevel))
	strength := w.cfg.WindStrength * (1 + 0.05*above)
	return mgl64.Vec3{math.Cos(heading), 0, -math.Sin(heading)}.Mul(strength)
}

func (w *World) Time() float64 { return w.time }
func (w *World) Seed() int64   { return w.seed }

// Advance moves world time forward and integrates entity motion.
func (w *World) Advance(dt float64) {
	w.time += dt
	for _, id := range sortedIDs(w.entities) {
		w.entities[id].advance(dt, entityFriction)
	}
}

// Spawn adds an entity and returns its id.
func (w *World) Spawn(e *Entity) int {
	e.id = w.nextEntity
	w.nextEntity++
	e.removal = cloth.NotRemoved
	w.entities[e.id] = e
	return e.id
}

// Remove takes an entity out of the world for good.
func (w *World) Remove(id int, reason cloth.RemovalReason) {
	e, ok := w.entities[id]
	if !ok {
		e, ok = w.parked[id]
	}
	if !ok {
		return
	}
	e.removal = reason
	delete(w.entities, id)
	delete(w.parked, id)
}

func (w *World) Entity(id int) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

func (w *World) EntityByID(id int) (cloth.Body, bool) {
	e, ok := w.entities[id]
	if !ok {
		return nil, false
	}
	return e, true
}

func (w *World) PlayerByUID(uid string) (cloth.Body, bool) {
	if uid == "" {
		return nil, false
	}
	for _, id := range sortedIDs(w.entities) {
		if e := w.entities[id]; e.uid == uid {
			return e, true
		}
	}
	return nil, false
}

// DropItem leaves an item in the world.
func (w *World) DropItem(pos mgl64.Vec3, item string) {
	w.drops = append(w.drops, Drop{Pos: pos, Item: item})
}

func (w *World) Drops() []Drop { return append([]Drop(nil), w.drops...) }

func (w *World) Physics() Physics { return Physics{w: w} }

// Env bundles the world as the collaborators of a cloth step.
func (w *World) Env() cloth.Env {
	return cloth.Env{World: w, Physics: w.Physics()}
}

// FindTieable returns the top tieable block in the column at (x,z), if any.
func (w *World) FindTieable(x, z int) (cloth.BlockPos, bool) {
	for y := w.store.Height() - 1; y >= 0; y-- {
		p := cloth.BlockPos{X: x, Y: y, Z: z}
		if w.CanTie(p) {
			return p, true
		}
	}
	return cloth.BlockPos{}, false
}

func sortedIDs(m map[int]*Entity) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
