package encoding

import "testing"

func TestPackBlocks_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 1, 1, 1, 2, 2, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 7)
	}
	in = append(in, 9, 10, 10, 10, 300)

	raw := PackBlocks(in)
	if len(raw) >= len(in) {
		t.Fatalf("packed %d ids into %d bytes", len(in), len(raw))
	}
	out, err := UnpackBlocks(raw, len(in))
	if err != nil {
		t.Fatalf("UnpackBlocks: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestUnpackBlocks_RejectsWrongSize(t *testing.T) {
	raw := PackBlocks([]uint16{4, 4, 4, 4})
	if _, err := UnpackBlocks(raw, 3); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := UnpackBlocks(raw, 5); err == nil {
		t.Fatalf("expected short error")
	}
	if _, err := UnpackBlocks([]byte{0x80}, 1); err == nil {
		t.Fatalf("expected varint error")
	}
}
