package voxel

import (
	"sort"

	"clothcraft.ai/internal/sim/encoding"
	"clothcraft.ai/internal/sim/mathx"
)

// ChunkStore holds the loaded chunk columns. Unlike an infinite lazily generated world,
// reads outside loaded chunks see air; chunks enter and leave only through Load and
// Unload. Edited chunks are kept in memory while unloaded so they come back unchanged.
type ChunkStore struct {
	gen    Gen
	height int
	// Accessed only from the world loop goroutine.
	chunks map[ChunkKey]*Chunk
	// Packed blocks of edited chunks while they are unloaded.
	edited map[ChunkKey][]byte
}

func NewChunkStore(gen Gen, height int) *ChunkStore {
	return &ChunkStore{
		gen:    gen,
		height: height,
		chunks: map[ChunkKey]*Chunk{},
		edited: map[ChunkKey][]byte{},
	}
}

func (s *ChunkStore) Height() int { return s.height }

// Load generates the chunk if it is not loaded yet. It reports whether it was newly loaded.
func (s *ChunkStore) Load(k ChunkKey) bool {
	if _, ok := s.chunks[k]; ok {
		return false
	}
	ch := newChunk(k.CX, k.CZ, s.height)
	if raw, ok := s.edited[k]; ok {
		delete(s.edited, k)
		blocks, err := encoding.UnpackBlocks(raw, len(ch.Blocks))
		if err == nil {
			ch.Blocks = blocks
			ch.edited = true
		} else {
			s.gen.generate(ch)
		}
	} else {
		s.gen.generate(ch)
	}
	ch.dirty = true
	_ = ch.Digest()
	s.chunks[k] = ch
	return true
}

// Unload drops the chunk. It reports whether it was loaded.
func (s *ChunkStore) Unload(k ChunkKey) bool {
	ch, ok := s.chunks[k]
	if !ok {
		return false
	}
	if ch.edited {
		s.edited[k] = encoding.PackBlocks(ch.Blocks)
	}
	delete(s.chunks, k)
	return true
}

func (s *ChunkStore) Loaded(k ChunkKey) bool {
	_, ok := s.chunks[k]
	return ok
}

func (s *ChunkStore) Chunk(k ChunkKey) (*Chunk, bool) {
	ch, ok := s.chunks[k]
	return ch, ok
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) locate(x, y, z int) (*Chunk, int, int, bool) {
	if y < 0 || y >= s.height {
		return nil, 0, 0, false
	}
	k := ChunkKey{CX: mathx.FloorDiv(x, ChunkSize), CZ: mathx.FloorDiv(z, ChunkSize)}
	ch, ok := s.chunks[k]
	if !ok {
		return nil, 0, 0, false
	}
	return ch, mathx.Mod(x, ChunkSize), mathx.Mod(z, ChunkSize), true
}

func (s *ChunkStore) GetBlock(x, y, z int) uint16 {
	ch, lx, lz, ok := s.locate(x, y, z)
	if !ok {
		return s.gen.Air
	}
	return ch.Get(lx, y, lz)
}

// SetBlock writes into a loaded chunk; writes elsewhere are dropped.
func (s *ChunkStore) SetBlock(x, y, z int, b uint16) bool {
	ch, lx, lz, ok := s.locate(x, y, z)
	if !ok {
		return false
	}
	if ch.Get(lx, y, lz) != b {
		ch.Set(lx, y, lz, b)
		ch.edited = true
	}
	return true
}
