package client

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/cloth"
	"clothcraft.ai/internal/sim/voxel"
)

// ghost stands in for a body the client cannot see. Its pose is inferred from the last
// replicated position of a point pinned to it, so prediction keeps that point in place.
type ghost struct {
	id  int
	uid string
	pos mgl64.Vec3
	yaw float64
}

func (g *ghost) ID() int                      { return g.id }
func (g *ghost) PlayerUID() string            { return g.uid }
func (g *ghost) Position() mgl64.Vec3         { return g.pos }
func (g *ghost) Yaw() float64                 { return g.yaw }
func (g *ghost) Weight() float64              { return 0 }
func (g *ghost) Posture() cloth.Posture       { return cloth.Standing }
func (g *ghost) Removal() cloth.RemovalReason { return cloth.NotRemoved }
func (g *ghost) Push(mgl64.Vec3)              {}

// mirrorWorld regenerates terrain from the server seed and loads chunks on first touch,
// so every replicated system counts as loaded.
type mirrorWorld struct {
	*voxel.World
	ghosts map[string]*ghost
}

func newMirrorWorld(w *voxel.World) *mirrorWorld {
	return &mirrorWorld{World: w, ghosts: map[string]*ghost{}}
}

func (w *mirrorWorld) IsLoaded(pos mgl64.Vec3) bool {
	if k := voxel.ChunkOf(pos); !w.Store().Loaded(k) {
		w.LoadChunk(k)
	}
	return true
}

// CanTie trusts every replicated block pin. Posts are server-side edits the mirror never
// sees, and a real unpin arrives as a point delta.
func (w *mirrorWorld) CanTie(cloth.BlockPos) bool { return true }

func (w *mirrorWorld) EntityByID(id int) (cloth.Body, bool) {
	return w.ghostFor(fmt.Sprintf("e:%d", id), id, ""), true
}

func (w *mirrorWorld) PlayerByUID(uid string) (cloth.Body, bool) {
	return w.ghostFor("p:"+uid, 0, uid), true
}

func (w *mirrorWorld) ghostFor(key string, id int, uid string) *ghost {
	g, ok := w.ghosts[key]
	if !ok {
		g = &ghost{id: id, uid: uid}
		w.ghosts[key] = g
	}
	return g
}

// observe moves the ghost behind an entity pin so that the pinned point sits at rec.Pos.
func (w *mirrorWorld) observe(rec protocol.PointV1) {
	pin := rec.Pin
	if pin == nil || pin.Kind != protocol.PinEntity {
		return
	}
	var g *ghost
	if pin.PlayerUID != "" {
		g = w.ghostFor("p:"+pin.PlayerUID, 0, pin.PlayerUID)
	} else {
		g = w.ghostFor(fmt.Sprintf("e:%d", pin.EntityID), pin.EntityID, "")
	}
	off := mgl64.Vec3{pin.Offset[0], pin.Offset[1], pin.Offset[2]}
	g.pos = mgl64.Vec3{rec.Pos[0], rec.Pos[1], rec.Pos[2]}.Sub(off)
	g.yaw = pin.Yaw
}
