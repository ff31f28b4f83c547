// Package encoding packs block columns for chunks kept in memory while unloaded.
package encoding

import (
	"encoding/binary"
	"fmt"
)

// PackBlocks run-length encodes block ids as uvarint (id, run) pairs.
func PackBlocks(ids []uint16) []byte {
	out := make([]byte, 0, 64)
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(ids); {
		b := ids[i]
		run := 1
		for i+run < len(ids) && ids[i+run] == b {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(b))
		out = append(out, tmp[:n]...)
		n = binary.PutUvarint(tmp[:], uint64(run))
		out = append(out, tmp[:n]...)
		i += run
	}
	return out
}

// UnpackBlocks decodes exactly want ids.
func UnpackBlocks(raw []byte, want int) ([]uint16, error) {
	out := make([]uint16, 0, want)
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("block id too large: %d", b)
		}
		if run == 0 || uint64(len(out))+run > uint64(want) {
			return nil, fmt.Errorf("run of %d overflows %d blocks", run, want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(b))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("decoded %d blocks, want %d", len(out), want)
	}
	return out, nil
}
