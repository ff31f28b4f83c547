package cloth

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/tuning"
)

var ErrBadRecord = errors.New("cloth: bad record")

func vec(a [3]float64) mgl64.Vec3 { return mgl64.Vec3{a[0], a[1], a[2]} }
func arr(v mgl64.Vec3) [3]float64 { return [3]float64{v[0], v[1], v[2]} }

func (s *System) Record() protocol.SystemV1 {
	rec := protocol.SystemV1{
		ID:          s.id,
		Type:        s.kind.String(),
		Width:       s.width,
		Length:      s.length,
		Wind:        arr(s.windTarget),
		Points:      make([]protocol.PointV1, 0, len(s.points)),
		Constraints: make([]protocol.ConstraintV1, 0, len(s.constraints)),
	}
	for _, p := range s.points {
		rec.Points = append(rec.Points, p.Record())
	}
	for _, c := range s.constraints {
		rec.Constraints = append(rec.Constraints, protocol.ConstraintV1{A: c.a, B: c.b, Rest: c.rest})
	}
	return rec
}

func (p *Point) Record() protocol.PointV1 {
	rec := protocol.PointV1{Index: p.index, Pos: arr(p.pos), Vel: arr(p.vel)}
	switch pin := p.pin.(type) {
	case *BlockPin:
		rec.Pin = &protocol.PinV1{
			Kind:   protocol.PinBlock,
			Block:  [3]int{pin.Block.X, pin.Block.Y, pin.Block.Z},
			Offset: arr(pin.Offset),
		}
	case *EntityPin:
		rec.Pin = &protocol.PinV1{
			Kind:      protocol.PinEntity,
			Offset:    arr(pin.Offset),
			EntityID:  pin.EntityID,
			PlayerUID: pin.PlayerUID,
			Yaw:       pin.Yaw,
			Pose:      pin.Pose,
		}
	}
	return rec
}

func pinFromRecord(rec *protocol.PinV1) (Pin, error) {
	if rec == nil {
		return nil, nil
	}
	switch rec.Kind {
	case protocol.PinNone, "":
		return nil, nil
	case protocol.PinBlock:
		return &BlockPin{
			Block:  BlockPos{X: rec.Block[0], Y: rec.Block[1], Z: rec.Block[2]},
			Offset: vec(rec.Offset),
		}, nil
	case protocol.PinEntity:
		return &EntityPin{
			EntityID:  rec.EntityID,
			PlayerUID: rec.PlayerUID,
			Offset:    vec(rec.Offset),
			Yaw:       rec.Yaw,
			Pose:      rec.Pose,
		}, nil
	}
	return nil, fmt.Errorf("%w: pin kind %q", ErrBadRecord, rec.Kind)
}

// FromRecord decodes a system. The result is inactive; RefreshActive restores its
// references once the chunks it spans are loaded.
func FromRecord(rec protocol.SystemV1, cfg tuning.Cloth) (*System, error) {
	var kind Kind
	switch rec.Type {
	case protocol.SystemRope:
		kind = Rope
	case protocol.SystemCloth:
		kind = Cloth
	default:
		return nil, fmt.Errorf("%w: type %q", ErrBadRecord, rec.Type)
	}
	if rec.Width <= 0 || rec.Length <= 0 || len(rec.Points) != rec.Width*rec.Length {
		return nil, fmt.Errorf("%w: %dx%d with %d points", ErrBadRecord, rec.Width, rec.Length, len(rec.Points))
	}

	s := newSystem(kind, rec.Width, rec.Length, cfg, int64(rec.ID))
	s.id = rec.ID
	s.active = false
	s.windTarget = vec(rec.Wind)
	s.wind = s.windTarget
	s.slowTimer = 0

	lookup := make([]*Point, len(rec.Points))
	for _, pr := range rec.Points {
		if pr.Index < 0 || pr.Index >= len(lookup) || lookup[pr.Index] != nil {
			return nil, fmt.Errorf("%w: point index %d", ErrBadRecord, pr.Index)
		}
		p := newPoint(pr.Index, pr.Index/rec.Length, pr.Index%rec.Length, vec(pr.Pos), cfg.PointMass)
		if err := p.applyRecord(pr); err != nil {
			return nil, err
		}
		p.dirty = false
		lookup[pr.Index] = p
	}
	for _, p := range lookup {
		s.addPoint(p)
	}
	for _, cr := range rec.Constraints {
		if cr.A < 0 || cr.A >= len(lookup) || cr.B < 0 || cr.B >= len(lookup) || cr.A == cr.B {
			return nil, fmt.Errorf("%w: constraint %d-%d", ErrBadRecord, cr.A, cr.B)
		}
		s.constraints = append(s.constraints, restoreConstraint(lookup[cr.A], lookup[cr.B], cr.Rest))
	}
	return s, nil
}

func (p *Point) applyRecord(rec protocol.PointV1) error {
	pin, err := pinFromRecord(rec.Pin)
	if err != nil {
		return err
	}
	p.pos = vec(rec.Pos)
	p.vel = vec(rec.Vel)
	p.synced = p.pos
	if !samePin(p.pin, pin) {
		p.pin = pin
		p.anchorTimer = 0
	}
	return nil
}

func samePin(a, b Pin) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case *BlockPin:
		y, ok := b.(*BlockPin)
		return ok && *x == *y
	case *EntityPin:
		y, ok := b.(*EntityPin)
		return ok && x.EntityID == y.EntityID && x.PlayerUID == y.PlayerUID &&
			x.Offset == y.Offset && x.Yaw == y.Yaw && x.Pose == y.Pose
	}
	return false
}

// ApplyPoint overwrites one point from a replicated record.
func (s *System) ApplyPoint(row, col int, rec protocol.PointV1) error {
	p, ok := s.Point(row, col)
	if !ok {
		return fmt.Errorf("%w: point %d,%d outside %dx%d", ErrBadRecord, row, col, s.width, s.length)
	}
	return p.applyRecord(rec)
}
