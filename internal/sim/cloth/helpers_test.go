package cloth

import (
	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/sim/tuning"
)

type testWorld struct {
	unloaded  bool
	untieable bool
	wind      mgl64.Vec3
	time      float64
	bodies    map[int]*testBody
}

func newTestWorld() *testWorld { return &testWorld{bodies: map[int]*testBody{}} }

func (w *testWorld) IsLoaded(mgl64.Vec3) bool     { return !w.unloaded }
func (w *testWorld) CanTie(BlockPos) bool         { return !w.untieable }
func (w *testWorld) Wind(mgl64.Vec3) mgl64.Vec3   { return w.wind }
func (w *testWorld) Time() float64                { return w.time }
func (w *testWorld) Seed() int64                  { return 42 }
func (w *testWorld) EntityByID(id int) (Body, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return nil, false
	}
	return b, true
}
func (w *testWorld) PlayerByUID(uid string) (Body, bool) {
	for _, b := range w.bodies {
		if b.uid == uid {
			return b, true
		}
	}
	return nil, false
}

type nopPhysics struct{}

func (nopPhysics) Collide(_, vel mgl64.Vec3, _, _ float64) (mgl64.Vec3, Axes) { return vel, 0 }
func (nopPhysics) Buoyancy(_, vel mgl64.Vec3, _, _, _ float64) mgl64.Vec3      { return vel }

type testBody struct {
	id      int
	uid     string
	pos     mgl64.Vec3
	yaw     float64
	weight  float64
	posture Posture
	removal RemovalReason
	pushed  mgl64.Vec3
}

func (b *testBody) ID() int                { return b.id }
func (b *testBody) PlayerUID() string      { return b.uid }
func (b *testBody) Position() mgl64.Vec3   { return b.pos }
func (b *testBody) Yaw() float64           { return b.yaw }
func (b *testBody) Weight() float64        { return b.weight }
func (b *testBody) Posture() Posture       { return b.posture }
func (b *testBody) Removal() RemovalReason { return b.removal }
func (b *testBody) Push(dv mgl64.Vec3)     { b.pushed = b.pushed.Add(dv) }

type posedBody struct {
	testBody
	socket mgl64.Vec3
}

func (b *posedBody) AttachmentPose(name string) (mgl64.Mat4, bool) {
	if name != "hand" {
		return mgl64.Mat4{}, false
	}
	return mgl64.Translate3D(b.socket[0], b.socket[1], b.socket[2]), true
}

func testEnv(w *testWorld) Env { return Env{World: w, Physics: nopPhysics{}} }

func testCfg() tuning.Cloth { return tuning.DefaultCloth() }

func near(a, b mgl64.Vec3, eps float64) bool { return a.Sub(b).Len() <= eps }
