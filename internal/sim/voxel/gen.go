package voxel

import "clothcraft.ai/internal/sim/mathx"

// Gen is the terrain generator: flat ground with ponds and scattered fence posts.
type Gen struct {
	Seed             int64
	GroundLevel      int
	SpawnClearRadius int
	PostPermille     int
	PondPermille     int
	PostHeight       int

	// Palette ids.
	Air   uint16
	Grass uint16
	Dirt  uint16
	Stone uint16
	Sand  uint16
	Water uint16
	Post  uint16
}

func (g Gen) generate(ch *Chunk) {
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			wx := ch.CX*ChunkSize + x
			wz := ch.CZ*ChunkSize + z
			g.column(ch, x, z, wx, wz)
		}
	}
}

func (g Gen) column(ch *Chunk, x, z, wx, wz int) {
	top := g.GroundLevel - 1
	pond := !withinSpawnClear(wx, wz, g.SpawnClearRadius) &&
		inCluster(g.Seed+501, wx, wz, 48, 3, uint64(clampPermille(g.PondPermille)))

	for y := 0; y < ch.Height && y <= top; y++ {
		b := g.Stone
		switch {
		case pond && y >= top-1:
			b = g.Water
		case pond && y == top-2:
			b = g.Sand
		case y == top:
			b = g.Grass
		case y >= top-2:
			b = g.Dirt
		}
		ch.Blocks[ch.index(x, y, z)] = b
	}
	if pond || withinSpawnClear(wx, wz, g.SpawnClearRadius) {
		return
	}
	if mathx.Hash2(g.Seed+999, wx, wz)%1000 < uint64(clampPermille(g.PostPermille)) {
		for y := top + 1; y <= top+g.PostHeight && y < ch.Height; y++ {
			ch.Blocks[ch.index(x, y, z)] = g.Post
		}
	}
}

func withinSpawnClear(x, z, radius int) bool {
	if radius <= 0 {
		return false
	}
	r := int64(radius)
	dx := int64(x)
	dz := int64(z)
	return dx*dx+dz*dz <= r*r
}

func clampPermille(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}

func inCluster(seed int64, x, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gz := mathx.FloorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgz := gz + dz
			h := mathx.Hash2(seed, cgx, cgz)
			if h%1000 >= probPermille {
				continue
			}

			ox := int((h >> 10) % uint64(grid))
			oz := int((h >> 20) % uint64(grid))
			cx := cgx*grid + ox
			cz := cgz*grid + oz

			ddx := x - cx
			ddz := z - cz
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}
