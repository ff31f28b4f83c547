package voxel

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/sim/mathx"
)

const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

// ChunkOf returns the chunk column containing a world position.
func ChunkOf(pos mgl64.Vec3) ChunkKey {
	return ChunkKey{
		CX: mathx.FloorDiv(int(math.Floor(pos[0])), ChunkSize),
		CZ: mathx.FloorDiv(int(math.Floor(pos[2])), ChunkSize),
	}
}

// Contains reports whether a world position falls inside the chunk column.
func (k ChunkKey) Contains(pos mgl64.Vec3) bool {
	return ChunkOf(pos) == k
}

type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height

	dirty bool
	hash  [32]byte
	// edited marks chunks changed after generation; the store keeps them across unloads.
	edited bool
}

func newChunk(cx, cz, height int) *Chunk {
	return &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: height,
		Blocks: make([]uint16, ChunkSize*ChunkSize*height),
	}
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}
