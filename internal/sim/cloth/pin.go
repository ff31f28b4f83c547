package cloth

import "github.com/go-gl/mathgl/mgl64"

// Pin is the anchor of a pinned point: *BlockPin or *EntityPin. A nil Pin means the
// point hangs free.
type Pin interface {
	pinKind() string
}

type BlockPin struct {
	Block  BlockPos
	Offset mgl64.Vec3
}

type EntityPin struct {
	EntityID  int
	PlayerUID string
	// Offset is in world space as of the moment of pinning, when the body faced Yaw.
	Offset mgl64.Vec3
	Yaw    float64
	Pose   string

	body Body
}

func (*BlockPin) pinKind() string  { return "block" }
func (*EntityPin) pinKind() string { return "entity" }

// Body returns the resolved body, or nil while it is unresolved.
func (e *EntityPin) Body() Body { return e.body }

func (e *EntityPin) resolve(w World) Body {
	if e.body != nil {
		return e.body
	}
	var (
		b  Body
		ok bool
	)
	if e.PlayerUID != "" {
		b, ok = w.PlayerByUID(e.PlayerUID)
	} else {
		b, ok = w.EntityByID(e.EntityID)
	}
	if !ok || b == nil || b.Removal() != NotRemoved {
		return nil
	}
	e.body = b
	return b
}

// target is where the pinned point has to be this step.
func (e *EntityPin) target(b Body) mgl64.Vec3 {
	if e.Pose != "" {
		if pp, ok := b.(PoseProvider); ok {
			if m, ok := pp.AttachmentPose(e.Pose); ok {
				return m.Mul4x1(mgl64.Vec4{0, 0, 0, 1}).Vec3()
			}
		}
	}
	rot := mgl64.QuatRotate(b.Yaw()-e.Yaw, up)
	return b.Position().Add(rot.Rotate(e.Offset))
}
