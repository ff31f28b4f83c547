package voxel

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/sim/cloth"
)

// liquidDrag is the fraction of velocity a submerged point loses per second.
const liquidDrag = 2.0

// Physics answers collision and buoyancy queries against the loaded blocks.
type Physics struct {
	w *World
}

// Collide sweeps the cube one axis at a time, Y first so resting points slide instead of
// sticking to the ground.
func (p Physics) Collide(pos, vel mgl64.Vec3, dt, size float64) (mgl64.Vec3, cloth.Axes) {
	half := size / 2
	var axes cloth.Axes
	cur := pos
	for _, i := range [3]int{1, 0, 2} {
		d := vel[i] * dt
		if d == 0 {
			continue
		}
		probe := cur
		probe[i] += d + math.Copysign(half, d)
		if p.w.solid(cloth.BlockAt(probe)) {
			vel[i] = 0
			axes |= cloth.Axes(1) << uint(i)
			continue
		}
		cur[i] += d
	}
	return vel, axes
}

// Buoyancy lifts points submerged in a liquid block and drags them.
func (p Physics) Buoyancy(pos, vel mgl64.Vec3, dt, buoyancy, gravity float64) mgl64.Vec3 {
	if !p.w.liquid(cloth.BlockAt(pos)) {
		return vel
	}
	vel[1] += buoyancy * gravity * dt
	return vel.Mul(1 - math.Min(1, liquidDrag*dt))
}
