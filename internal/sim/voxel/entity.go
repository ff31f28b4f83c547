package voxel

import (
	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/sim/cloth"
)

const PlayerWeight = 70

// Entity is a body in the world: a player, an animal or a boat.
type Entity struct {
	id   int
	uid  string
	Kind string

	pos     mgl64.Vec3
	vel     mgl64.Vec3
	yaw     float64
	weight  float64
	posture cloth.Posture
	removal cloth.RemovalReason

	// Named attachment sockets in body space.
	sockets map[string]mgl64.Vec3
}

func NewEntity(kind string, pos mgl64.Vec3, weight float64) *Entity {
	return &Entity{Kind: kind, pos: pos, weight: weight}
}

func NewPlayer(uid string, pos mgl64.Vec3) *Entity {
	e := NewEntity("PLAYER", pos, PlayerWeight)
	e.uid = uid
	e.sockets = map[string]mgl64.Vec3{"hand": {0.35, 1.1, 0.2}}
	return e
}

func (e *Entity) ID() int                      { return e.id }
func (e *Entity) PlayerUID() string            { return e.uid }
func (e *Entity) Position() mgl64.Vec3         { return e.pos }
func (e *Entity) Velocity() mgl64.Vec3         { return e.vel }
func (e *Entity) Yaw() float64                 { return e.yaw }
func (e *Entity) Weight() float64              { return e.weight }
func (e *Entity) Posture() cloth.Posture       { return e.posture }
func (e *Entity) Removal() cloth.RemovalReason { return e.removal }

func (e *Entity) SetPosition(p mgl64.Vec3)   { e.pos = p }
func (e *Entity) SetVelocity(v mgl64.Vec3)   { e.vel = v }
func (e *Entity) SetYaw(yaw float64)         { e.yaw = yaw }
func (e *Entity) SetPosture(p cloth.Posture) { e.posture = p }

func (e *Entity) SetSocket(name string, local mgl64.Vec3) {
	if e.sockets == nil {
		e.sockets = map[string]mgl64.Vec3{}
	}
	e.sockets[name] = local
}

// Push adds an impulse; Advance integrates it.
func (e *Entity) Push(dv mgl64.Vec3) { e.vel = e.vel.Add(dv) }

// AttachmentPose returns the world transform of a named socket.
func (e *Entity) AttachmentPose(name string) (mgl64.Mat4, bool) {
	local, ok := e.sockets[name]
	if !ok {
		return mgl64.Mat4{}, false
	}
	m := mgl64.Translate3D(e.pos[0], e.pos[1], e.pos[2]).
		Mul4(mgl64.HomogRotate3DY(e.yaw)).
		Mul4(mgl64.Translate3D(local[0], local[1], local[2]))
	return m, true
}

func (e *Entity) advance(dt, friction float64) {
	if e.vel == (mgl64.Vec3{}) {
		return
	}
	e.pos = e.pos.Add(e.vel.Mul(dt))
	k := 1 - friction*dt
	if k < 0 {
		k = 0
	}
	e.vel = e.vel.Mul(k)
}
