package cloth

import (
	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/sim/mathx"
	"clothcraft.ai/internal/sim/tuning"
)

// Point is one mass particle of a rope or cloth.
type Point struct {
	index    int
	row, col int

	mass    float64
	invMass float64

	pos     mgl64.Vec3
	vel     mgl64.Vec3
	tension mgl64.Vec3

	// Written by the last constraint solve that touched this point.
	tensionDir mgl64.Vec3
	extension  float64

	pin         Pin
	anchorTimer float64
	colliding   bool

	dirty  bool
	synced mgl64.Vec3
}

func newPoint(index, row, col int, pos mgl64.Vec3, mass float64) *Point {
	return &Point{
		index:   index,
		row:     row,
		col:     col,
		mass:    mass,
		invMass: 1 / mass,
		pos:     pos,
		synced:  pos,
	}
}

func (p *Point) Index() int               { return p.index }
func (p *Point) Row() int                 { return p.row }
func (p *Point) Col() int                 { return p.col }
func (p *Point) Position() mgl64.Vec3     { return p.pos }
func (p *Point) Velocity() mgl64.Vec3     { return p.vel }
func (p *Point) Tension() mgl64.Vec3      { return p.tension }
func (p *Point) TensionDir() mgl64.Vec3   { return p.tensionDir }
func (p *Point) Extension() float64       { return p.extension }
func (p *Point) Pin() Pin                 { return p.pin }
func (p *Point) Pinned() bool             { return p.pin != nil }
func (p *Point) Dirty() bool              { return p.dirty }
func (p *Point) SetVelocity(v mgl64.Vec3) { p.vel = v }

// SetPosition teleports the point and marks it for replication.
func (p *Point) SetPosition(v mgl64.Vec3) {
	p.pos = v
	p.dirty = true
}

// MarkCollected clears the dirty flag once the point has been replicated.
func (p *Point) MarkCollected() {
	p.dirty = false
	p.synced = p.pos
}

func (p *Point) PinToBlock(block BlockPos, offset mgl64.Vec3) {
	if bp, ok := p.pin.(*BlockPin); ok && bp.Block == block && bp.Offset == offset {
		return
	}
	p.pin = &BlockPin{Block: block, Offset: offset}
	p.anchorTimer = 0
	p.dirty = true
}

// PinToEntity attaches the point to a body keeping its current offset from the body.
// pose names an attachment socket to prefer when the body exposes one.
func (p *Point) PinToEntity(b Body, pose string) {
	if ep, ok := p.pin.(*EntityPin); ok && ep.body == b && ep.EntityID == b.ID() && ep.Pose == pose {
		return
	}
	p.pin = &EntityPin{
		EntityID:  b.ID(),
		PlayerUID: b.PlayerUID(),
		Offset:    p.pos.Sub(b.Position()),
		Yaw:       b.Yaw(),
		Pose:      pose,
		body:      b,
	}
	p.dirty = true
}

func (p *Point) Unpin() {
	if p.pin == nil {
		return
	}
	p.pin = nil
	p.anchorTimer = 0
	p.dirty = true
}

type stepCtx struct {
	env  Env
	cfg  *tuning.Cloth
	wind mgl64.Vec3
}

func (p *Point) update(dt float64, ctx *stepCtx) {
	switch pin := p.pin.(type) {
	case *EntityPin:
		p.updateEntityPin(dt, pin, ctx)
	case *BlockPin:
		p.updateBlockPin(dt, pin, ctx)
	default:
		p.integrate(dt, ctx)
	}
	p.tension = mgl64.Vec3{}
	if p.pos.Sub(p.synced).Len() > ctx.cfg.DirtyThreshold {
		p.dirty = true
	}
}

func (p *Point) updateEntityPin(dt float64, pin *EntityPin, ctx *stepCtx) {
	if pin.body != nil {
		switch pin.body.Removal() {
		case NotRemoved:
		case Unloaded:
			// Keep the pin; the body is looked up again once it is back.
			pin.body = nil
		default:
			p.Unpin()
			return
		}
	}
	b := pin.resolve(ctx.env.World)
	if b == nil {
		p.vel = mgl64.Vec3{}
		return
	}
	p.pos = pin.target(b)
	if p.extension > 0 {
		p.pull(dt, b, ctx.cfg.Pull)
	}
	p.vel = mgl64.Vec3{}
}

// pull drags the body along the rope. Heavier or bracing bodies resist more.
func (p *Point) pull(dt float64, b Body, cfg tuning.Pull) {
	resistance := mathx.Clamp(b.Weight()*cfg.ResistancePerKg, cfg.MinResistance, cfg.MaxResistance)
	switch b.Posture() {
	case Sneaking:
		resistance *= cfg.SneakMultiplier
	case Sitting:
		resistance *= cfg.SitMultiplier
	}
	if resistance <= 0 {
		return
	}
	dv := p.tension.Mul(cfg.Strength * dt / resistance)
	if l := dv.Len(); l > cfg.MaxVelocityChange {
		dv = dv.Mul(cfg.MaxVelocityChange / l)
	}
	b.Push(dv)
}

func (p *Point) updateBlockPin(dt float64, pin *BlockPin, ctx *stepCtx) {
	p.pos = pin.Block.Vec().Add(pin.Offset)
	p.vel = mgl64.Vec3{}
	p.anchorTimer += dt
	if p.anchorTimer < ctx.cfg.AnchorCheckSeconds {
		return
	}
	p.anchorTimer = 0
	if !ctx.env.World.CanTie(pin.Block) {
		p.Unpin()
	}
}

func (p *Point) integrate(dt float64, ctx *stepCtx) {
	cfg := ctx.cfg
	gravity := cfg.GravityStrength * cfg.GravityConstant

	force := p.tension.Sub(mgl64.Vec3{0, gravity, 0})
	acc := force.Mul(p.invMass)
	if !p.colliding {
		acc = acc.Add(ctx.wind)
	}
	p.vel = p.vel.Add(acc.Mul(dt)).Mul(cfg.Damping)

	phys := ctx.env.Physics
	p.vel = phys.Buoyancy(p.pos, p.vel, dt, cfg.Buoyancy, gravity)
	var axes Axes
	p.vel, axes = phys.Collide(p.pos, p.vel, dt, cfg.CollisionSize)
	p.colliding = axes.Any()

	p.pos = p.pos.Add(p.vel.Mul(dt * cfg.DtDeflation))
}
