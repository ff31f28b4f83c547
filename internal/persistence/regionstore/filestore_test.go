package regionstore

import (
	"os"
	"testing"

	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/voxel"
)

func rope(id int) protocol.SystemV1 {
	return protocol.SystemV1{
		ID:     id,
		Type:   protocol.SystemRope,
		Width:  1,
		Length: 2,
		Points: []protocol.PointV1{
			{Index: 0, Pos: [3]float64{1, 2, 3}, Pin: &protocol.PinV1{Kind: protocol.PinBlock, Block: [3]int{1, 1, 3}}},
			{Index: 1, Pos: [3]float64{1.1, 2, 3}},
		},
		Constraints: []protocol.ConstraintV1{{A: 0, B: 1, Rest: 0.1}},
	}
}

func TestFileStore_SaveLoadDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	k := voxel.ChunkKey{CX: -3, CZ: 4}

	got, err := s.LoadRegion(k)
	if err != nil || got != nil {
		t.Fatalf("empty region: %v %v", got, err)
	}

	if err := s.SaveRegion(k, []protocol.SystemV1{rope(1), rope(5)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = s.LoadRegion(k)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[1].ID != 5 || got[0].Points[0].Pin.Block != [3]int{1, 1, 3} {
		t.Fatalf("loaded %+v", got)
	}
	keys, err := s.Regions()
	if err != nil || len(keys) != 1 || keys[0] != k {
		t.Fatalf("regions=%v err=%v", keys, err)
	}

	if err := s.SaveRegion(k, nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	if _, err := os.Stat(s.RegionPath(k)); !os.IsNotExist(err) {
		t.Fatalf("empty save should remove the file")
	}
	if err := s.SaveRegion(k, nil); err != nil {
		t.Fatalf("removing twice should be fine: %v", err)
	}
}

func TestFileStore_RejectsMisplacedFile(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a, b := voxel.ChunkKey{CX: 1}, voxel.ChunkKey{CX: 2}
	if err := s.SaveRegion(a, []protocol.SystemV1{rope(1)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Rename(s.RegionPath(a), s.RegionPath(b)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadRegion(b); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestFileStore_Counter(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n, err := s.LoadCounter(); err != nil || n != 0 {
		t.Fatalf("fresh counter=%d err=%v", n, err)
	}
	if err := s.SaveCounter(42); err != nil {
		t.Fatalf("save: %v", err)
	}
	reopened, _ := NewFileStore(dir)
	if n, err := reopened.LoadCounter(); err != nil || n != 42 {
		t.Fatalf("counter=%d err=%v", n, err)
	}
}
