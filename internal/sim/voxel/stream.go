package voxel

import "sort"

// StreamAround keeps loaded exactly the chunks within radius of center or of any player.
// Unloads run before loads so a chunk's listeners always see the old state leave first.
func (w *World) StreamAround(center ChunkKey, radius int) (loaded, unloaded int) {
	want := map[ChunkKey]struct{}{}
	add := func(c ChunkKey) {
		for dz := -radius; dz <= radius; dz++ {
			for dx := -radius; dx <= radius; dx++ {
				want[ChunkKey{CX: c.CX + dx, CZ: c.CZ + dz}] = struct{}{}
			}
		}
	}
	add(center)
	for _, id := range sortedIDs(w.entities) {
		if e := w.entities[id]; e.uid != "" {
			add(ChunkOf(e.pos))
		}
	}

	for _, k := range w.store.LoadedChunkKeys() {
		if _, ok := want[k]; !ok {
			w.UnloadChunk(k)
			unloaded++
		}
	}
	keys := make([]ChunkKey, 0, len(want))
	for k := range want {
		if !w.store.Loaded(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	for _, k := range keys {
		w.LoadChunk(k)
		loaded++
	}
	return loaded, unloaded
}
