package main

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/sim/cloth"
	"clothcraft.ai/internal/sim/clothmgr"
	"clothcraft.ai/internal/sim/tuning"
	"clothcraft.ai/internal/sim/voxel"
)

var knotOffset = mgl64.Vec3{0.5, 1, 0.5}

// placePost stacks a tieable column on the ground at (x,z) and returns its top block.
func placePost(w *voxel.World, x, z, height int) (cloth.BlockPos, error) {
	g := w.GroundLevel()
	top := cloth.BlockPos{X: x, Y: g + height - 1, Z: z}
	for y := g; y <= top.Y; y++ {
		if !w.SetBlock(cloth.BlockPos{X: x, Y: y, Z: z}, "FENCE_POST") {
			return cloth.BlockPos{}, fmt.Errorf("post at %d,%d: chunk not loaded", x, z)
		}
	}
	return top, nil
}

// spawnDemo strings a sagging rope and a hanging sheet between two pairs of posts.
func spawnDemo(w *voxel.World, mgr *clothmgr.Manager, tune tuning.Tuning) error {
	a, err := placePost(w, 6, 2, 4)
	if err != nil {
		return err
	}
	b, err := placePost(w, 12, 2, 4)
	if err != nil {
		return err
	}
	from, to := a.Vec().Add(knotOffset), b.Vec().Add(knotOffset)
	rope, err := cloth.NewRope(from, to.Sub(from), to.Sub(from).Len()*1.2, tune.Cloth, w.Seed())
	if err != nil {
		return err
	}
	rope.First().PinToBlock(a, knotOffset)
	rope.Last().PinToBlock(b, knotOffset)
	mgr.RegisterCloth(rope)

	c, err := placePost(w, 6, 8, 5)
	if err != nil {
		return err
	}
	d, err := placePost(w, 10, 8, 5)
	if err != nil {
		return err
	}
	from, to = c.Vec().Add(knotOffset), d.Vec().Add(knotOffset)
	sheet, err := cloth.NewCloth(from, to.Sub(from), 1.5, to.Sub(from).Len(), tune.Cloth, w.Seed()+1)
	if err != nil {
		return err
	}
	_, cols := sheet.Dimensions()
	left, _ := sheet.Point(0, 0)
	right, _ := sheet.Point(0, cols-1)
	left.PinToBlock(c, knotOffset)
	right.PinToBlock(d, knotOffset)
	mgr.RegisterCloth(sheet)
	return nil
}

type walkerState struct {
	body  *voxel.Entity
	home  mgl64.Vec3
	speed float64
	reach float64

	ropeID   int
	carrying bool
	outbound bool
}

// spawnWalker adds a player holding a rope. It shuttles between home and a spot past the
// loaded area, tying the rope to a post at one end and picking it up on the next visit, so
// the rope's region is saved on the way back and restored on the way out.
func spawnWalker(w *voxel.World, mgr *clothmgr.Manager, tune tuning.Tuning) (*walkerState, error) {
	home := mgl64.Vec3{-4.5, float64(w.GroundLevel() + 1), -4.5}
	p := voxel.NewPlayer("walker", home)
	w.Spawn(p)
	hand, ok := p.AttachmentPose("hand")
	if !ok {
		return nil, fmt.Errorf("walker has no hand socket")
	}
	origin := hand.Mul4x1(mgl64.Vec4{0, 0, 0, 1}).Vec3()
	rope, err := cloth.NewRope(origin, mgl64.Vec3{0, 0, 1}, 2, tune.Cloth, w.Seed()+2)
	if err != nil {
		return nil, err
	}
	rope.First().PinToEntity(p, "hand")
	id := mgr.RegisterCloth(rope)

	return &walkerState{
		body:     p,
		home:     home,
		speed:    4,
		reach:    float64((tune.World.LoadRadius + 3) * voxel.ChunkSize),
		ropeID:   id,
		carrying: true,
		outbound: true,
	}, nil
}

// update steers the walker. It runs on the loop goroutine before the world advances.
func (wk *walkerState) update(w *voxel.World, mgr *clothmgr.Manager) error {
	if wk == nil {
		return nil
	}
	dx := wk.body.Position()[0] - wk.home[0]
	arrived := (wk.outbound && dx >= wk.reach) || (!wk.outbound && dx <= 0)
	if arrived {
		wk.outbound = !wk.outbound
		if err := wk.swapRope(w, mgr); err != nil {
			return err
		}
	}
	dir := 1.0
	if !wk.outbound {
		dir = -1
	}
	wk.body.SetVelocity(mgl64.Vec3{dir * wk.speed, 0, 0})
	wk.body.SetYaw(math.Atan2(0, dir))
	return nil
}

// swapRope ties a carried rope to a new post next to the walker, or picks a tied rope up.
func (wk *walkerState) swapRope(w *voxel.World, mgr *clothmgr.Manager) error {
	pos := wk.body.Position()
	if wk.carrying {
		top, err := placePost(w, int(math.Floor(pos[0]))+1, int(math.Floor(pos[2])), 2)
		if err != nil {
			return err
		}
		err = mgr.Update(wk.ropeID, func(s *cloth.System) {
			s.First().SetPosition(top.Vec().Add(knotOffset))
			s.First().PinToBlock(top, knotOffset)
		})
		if err != nil {
			return err
		}
		wk.carrying = false
		return nil
	}
	err := mgr.Update(wk.ropeID, func(s *cloth.System) {
		if s.First().Position().Sub(pos).Len() < 4 {
			s.First().PinToEntity(wk.body, "hand")
			wk.carrying = true
		}
	})
	return err
}
