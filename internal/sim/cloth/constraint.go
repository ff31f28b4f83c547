package cloth

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// minRestLength keeps the Hookean ratio finite for links created between coincident points.
const minRestLength = 1e-3

// Constraint is a stretch spring between two points of the same system, referenced by index.
type Constraint struct {
	a, b   int
	p1, p2 *Point

	rest      float64
	length    float64
	extension float64

	renderCenter mgl64.Vec3
}

func newConstraint(p1, p2 *Point) *Constraint {
	return restoreConstraint(p1, p2, p1.pos.Sub(p2.pos).Len())
}

func restoreConstraint(p1, p2 *Point, rest float64) *Constraint {
	return &Constraint{
		a:            p1.index,
		b:            p2.index,
		p1:           p1,
		p2:           p2,
		rest:         rest,
		length:       rest,
		renderCenter: p1.pos.Add(p2.pos).Mul(0.5),
	}
}

func (c *Constraint) A() int                   { return c.a }
func (c *Constraint) B() int                   { return c.b }
func (c *Constraint) RestLength() float64      { return c.rest }
func (c *Constraint) Length() float64          { return c.length }
func (c *Constraint) Extension() float64       { return c.extension }
func (c *Constraint) RenderCenter() mgl64.Vec3 { return c.renderCenter }

// relink points the constraint back at live points after a decode.
func (c *Constraint) relink(lookup []*Point) {
	c.p1 = lookup[c.a]
	c.p2 = lookup[c.b]
}

func (c *Constraint) satisfy(dt, stiffness, smoothing, nudge float64, rng *rand.Rand) {
	delta := c.p1.pos.Sub(c.p2.pos)
	length := delta.Len()
	if length == 0 {
		delta = randomDirection(rng).Mul(nudge)
		length = delta.Len()
	}

	c.length = length
	c.extension = length - c.rest
	tension := stiffness * c.extension / math.Max(c.rest, minRestLength)

	f := delta.Mul(tension / length)
	c.p2.tension = c.p2.tension.Add(f)
	c.p1.tension = c.p1.tension.Sub(f)

	c.p2.tensionDir = f
	c.p1.tensionDir = f.Mul(-1)
	c.p1.extension = c.extension
	c.p2.extension = c.extension

	mid := c.p1.pos.Add(c.p2.pos).Mul(0.5)
	t := math.Min(1, smoothing*dt)
	c.renderCenter = c.renderCenter.Add(mid.Sub(c.renderCenter).Mul(t))
}

func randomDirection(rng *rand.Rand) mgl64.Vec3 {
	for i := 0; i < 8; i++ {
		v := mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		if l := v.Len(); l > 1e-6 {
			return v.Mul(1 / l)
		}
	}
	return mgl64.Vec3{1, 0, 0}
}
