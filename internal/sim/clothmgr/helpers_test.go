package clothmgr

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/catalogs"
	"clothcraft.ai/internal/sim/cloth"
	"clothcraft.ai/internal/sim/tuning"
	"clothcraft.ai/internal/sim/voxel"
)

type recorder struct{ msgs []protocol.Message }

func (r *recorder) Broadcast(m protocol.Message) { r.msgs = append(r.msgs, m) }

func (r *recorder) count(typ string) int {
	n := 0
	for _, m := range r.msgs {
		if m.MessageType() == typ {
			n++
		}
	}
	return n
}

func (r *recorder) reset() { r.msgs = nil }

type memStore struct {
	regions map[voxel.ChunkKey][]protocol.SystemV1
	next    int
	failing bool
}

func newMemStore() *memStore {
	return &memStore{regions: map[voxel.ChunkKey][]protocol.SystemV1{}}
}

func (s *memStore) SaveRegion(k voxel.ChunkKey, recs []protocol.SystemV1) error {
	if s.failing {
		return errors.New("disk full")
	}
	if len(recs) == 0 {
		delete(s.regions, k)
		return nil
	}
	s.regions[k] = recs
	return nil
}

func (s *memStore) LoadRegion(k voxel.ChunkKey) ([]protocol.SystemV1, error) {
	return s.regions[k], nil
}

func (s *memStore) SaveCounter(next int) error { s.next = next; return nil }
func (s *memStore) LoadCounter() (int, error)  { return s.next, nil }

type auditRecorder struct{ entries []AuditEntry }

func (a *auditRecorder) WriteAudit(e AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

type fixture struct {
	world *voxel.World
	out   *recorder
	store *memStore
	audit *auditRecorder
	mgr   *Manager
	tun   tuning.Tuning
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tun := tuning.Defaults()
	wcfg := tun.World
	wcfg.PondPermille = 0
	wcfg.PostPermille = 0
	w := voxel.New(1, 32, wcfg, catalogs.Default())
	f := &fixture{world: w, out: &recorder{}, store: newMemStore(), audit: &auditRecorder{}, tun: tun}
	f.mgr = New(Options{
		Side:        Server,
		Tuning:      tun,
		Env:         w.Env(),
		Broadcaster: f.out,
		Store:       f.store,
		Drops:       w,
		Audit:       f.audit,
	})
	w.OnChunkLoad(f.mgr.OnRegionLoad)
	w.OnChunkUnload(f.mgr.OnRegionUnload)
	w.LoadArea(voxel.ChunkKey{}, 1)
	return f
}

// post places a tieable column at (x,z) and returns its top block.
func (f *fixture) post(x, z int) cloth.BlockPos {
	g := f.world.GroundLevel()
	top := cloth.BlockPos{X: x, Y: g + 2, Z: z}
	for y := g; y <= top.Y; y++ {
		f.world.SetBlock(cloth.BlockPos{X: x, Y: y, Z: z}, "FENCE_POST")
	}
	return top
}

// tiedRope hangs a rope from the top of a new post at (x,z).
func (f *fixture) tiedRope(t *testing.T, x, z int) *cloth.System {
	t.Helper()
	top := f.post(x, z)
	offset := mgl64.Vec3{0.5, 1, 0.5}
	s, err := cloth.NewRope(top.Vec().Add(offset), mgl64.Vec3{1, 0, 0}, 1, f.tun.Cloth, int64(x*31+z))
	if err != nil {
		t.Fatalf("new rope: %v", err)
	}
	s.First().PinToBlock(top, offset)
	return s
}

func (f *fixture) freeRope(t *testing.T, origin mgl64.Vec3) *cloth.System {
	t.Helper()
	s, err := cloth.NewRope(origin, mgl64.Vec3{1, 0, 0}, 1, f.tun.Cloth, 5)
	if err != nil {
		t.Fatalf("new rope: %v", err)
	}
	return s
}
