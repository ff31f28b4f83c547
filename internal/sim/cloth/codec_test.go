package cloth

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/protocol"
)

func TestRecord_RestoresSystem(t *testing.T) {
	w := newTestWorld()
	body := &testBody{id: 5, pos: mgl64.Vec3{0, 9, 0}, yaw: 0.3, weight: 60}
	w.bodies[5] = body

	s, err := NewCloth(mgl64.Vec3{0, 10, 0}, mgl64.Vec3{1, 0, 0}, 0.3, 0.4, testCfg(), 2)
	if err != nil {
		t.Fatalf("new cloth: %v", err)
	}
	s.SetID(12)
	s.First().PinToBlock(BlockPos{0, 9, 0}, mgl64.Vec3{0.5, 1, 0.5})
	s.Last().PinToEntity(body, "hand")
	env := testEnv(w)
	for i := 0; i < 10; i++ {
		s.TickNow(s.cfg.FixedStep, env)
	}

	rec := s.Record()
	got, err := FromRecord(rec, testCfg())
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if got.ID() != 12 || got.Kind() != Cloth || got.Active() {
		t.Fatalf("id=%d kind=%v active=%v", got.ID(), got.Kind(), got.Active())
	}
	for i, p := range got.Points() {
		want := s.Points()[i]
		if p.Position() != want.Position() || p.Velocity() != want.Velocity() {
			t.Fatalf("point %d state mismatch", i)
		}
		if p.Dirty() {
			t.Fatalf("decoded point %d should start clean", i)
		}
	}
	for i, c := range got.Constraints() {
		want := s.Constraints()[i]
		if c.A() != want.A() || c.B() != want.B() || c.RestLength() != want.RestLength() {
			t.Fatalf("constraint %d mismatch", i)
		}
	}
	if _, ok := got.First().Pin().(*BlockPin); !ok {
		t.Fatalf("block pin lost")
	}
	ep, ok := got.Last().Pin().(*EntityPin)
	if !ok || ep.EntityID != 5 || ep.Pose != "hand" || ep.Body() != nil {
		t.Fatalf("entity pin not decoded unresolved: %+v", got.Last().Pin())
	}

	if !got.RefreshActive(w) {
		t.Fatalf("expected activation")
	}
	if ep.Body() != Body(body) {
		t.Fatalf("entity pin should be rebound on activation")
	}
	got.TickNow(got.cfg.FixedStep, env)
	if got.Constraints()[0].Length() == 0 {
		t.Fatalf("relinked constraint should measure live points")
	}
}

func TestFromRecord_RejectsBadShape(t *testing.T) {
	cases := []protocol.SystemV1{
		{ID: 1, Type: "KITE", Width: 1, Length: 1, Points: []protocol.PointV1{{}}},
		{ID: 1, Type: protocol.SystemRope, Width: 1, Length: 3, Points: []protocol.PointV1{{Index: 0}, {Index: 1}}},
		{ID: 1, Type: protocol.SystemRope, Width: 1, Length: 2, Points: []protocol.PointV1{{Index: 0}, {Index: 0}}},
		{ID: 1, Type: protocol.SystemRope, Width: 1, Length: 2, Points: []protocol.PointV1{{Index: 0}, {Index: 1}},
			Constraints: []protocol.ConstraintV1{{A: 0, B: 2, Rest: 0.1}}},
		{ID: 1, Type: protocol.SystemRope, Width: 1, Length: 2, Points: []protocol.PointV1{{Index: 0, Pin: &protocol.PinV1{Kind: "GLUE"}}, {Index: 1}}},
	}
	for i, rec := range cases {
		if _, err := FromRecord(rec, testCfg()); !errors.Is(err, ErrBadRecord) {
			t.Fatalf("case %d: expected ErrBadRecord, got %v", i, err)
		}
	}
}

func TestApplyPoint(t *testing.T) {
	s := newTestRope(t, mgl64.Vec3{0, 10, 0}, 1)
	rec := protocol.PointV1{
		Index: 3,
		Pos:   [3]float64{7, 8, 9},
		Pin:   &protocol.PinV1{Kind: protocol.PinBlock, Block: [3]int{7, 7, 9}, Offset: [3]float64{0, 1, 0}},
	}
	if err := s.ApplyPoint(0, 3, rec); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p, _ := s.Point(0, 3)
	if p.Position() != (mgl64.Vec3{7, 8, 9}) {
		t.Fatalf("pos=%v", p.Position())
	}
	bp, ok := p.Pin().(*BlockPin)
	if !ok || bp.Block != (BlockPos{7, 7, 9}) {
		t.Fatalf("pin=%+v", p.Pin())
	}
	if err := s.ApplyPoint(1, 0, rec); !errors.Is(err, ErrBadRecord) {
		t.Fatalf("expected out of range error, got %v", err)
	}
}
