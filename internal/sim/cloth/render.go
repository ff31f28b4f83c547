package cloth

import "github.com/go-gl/mathgl/mgl64"

// Instance is the transform of one segment mesh. The unit mesh spans y in [-0.5, 0.5].
type Instance struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
	Model    mgl64.Mat4
}

// RenderInstances projects every constraint onto a segment transform. It has no effect
// on the simulation.
func (s *System) RenderInstances(thickness float64) []Instance {
	out := make([]Instance, 0, len(s.constraints))
	for _, c := range s.constraints {
		dir := c.p2.pos.Sub(c.p1.pos)
		length := dir.Len()
		rot := mgl64.QuatIdent()
		if length > 1e-9 {
			rot = mgl64.QuatBetweenVectors(up, dir.Mul(1/length))
		}
		scale := mgl64.Vec3{thickness, length, thickness}
		pos := c.renderCenter
		model := mgl64.Translate3D(pos[0], pos[1], pos[2]).
			Mul4(rot.Mat4()).
			Mul4(mgl64.Scale3D(scale[0], scale[1], scale[2]))
		out = append(out, Instance{Position: pos, Rotation: rot, Scale: scale, Model: model})
	}
	return out
}
