package cloth

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var up = mgl64.Vec3{0, 1, 0}

// BlockPos is an integer voxel coordinate.
type BlockPos struct{ X, Y, Z int }

func (b BlockPos) Vec() mgl64.Vec3 {
	return mgl64.Vec3{float64(b.X), float64(b.Y), float64(b.Z)}
}

func BlockAt(v mgl64.Vec3) BlockPos {
	return BlockPos{X: int(math.Floor(v[0])), Y: int(math.Floor(v[1])), Z: int(math.Floor(v[2]))}
}

// World is the read side of the voxel world the simulation runs in.
type World interface {
	// IsLoaded reports whether the chunk containing pos is currently loaded.
	IsLoaded(pos mgl64.Vec3) bool
	// CanTie reports whether the block at pos can hold a rope knot.
	CanTie(pos BlockPos) bool
	Wind(pos mgl64.Vec3) mgl64.Vec3
	// Time is world time in seconds.
	Time() float64
	Seed() int64
	EntityByID(id int) (Body, bool)
	PlayerByUID(uid string) (Body, bool)
}

// Axes is a bitmask of the axes a collision query clipped.
type Axes uint8

const (
	AxisX Axes = 1 << iota
	AxisY
	AxisZ
)

func (a Axes) Any() bool { return a != 0 }

// Physics resolves point motion against the voxel world.
type Physics interface {
	// Collide returns vel adjusted so that a cube of the given size at pos does not enter
	// solid blocks within dt, plus the axes that were clipped.
	Collide(pos, vel mgl64.Vec3, dt, size float64) (mgl64.Vec3, Axes)
	// Buoyancy returns vel adjusted for a submerged point.
	Buoyancy(pos, vel mgl64.Vec3, dt, buoyancy, gravity float64) mgl64.Vec3
}

type Posture uint8

const (
	Standing Posture = iota
	Sneaking
	Sitting
)

type RemovalReason uint8

const (
	NotRemoved RemovalReason = iota
	// Unloaded bodies may come back when their region reloads.
	Unloaded
	Killed
	Discarded
)

// Body is anything a point can be pinned to.
type Body interface {
	ID() int
	// PlayerUID is the stable identifier of a player body, "" for other entities.
	PlayerUID() string
	Position() mgl64.Vec3
	// Yaw is the facing in radians, counterclockwise about +Y.
	Yaw() float64
	Weight() float64
	Posture() Posture
	Removal() RemovalReason
	Push(dv mgl64.Vec3)
}

// PoseProvider is implemented by bodies with an animated skeleton that expose named
// attachment sockets, such as a hand.
type PoseProvider interface {
	AttachmentPose(name string) (mgl64.Mat4, bool)
}

// Env bundles the collaborators a step needs.
type Env struct {
	World   World
	Physics Physics
}
