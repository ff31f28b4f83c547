package cloth

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func satisfyOnce(c *Constraint) {
	cfg := testCfg()
	c.satisfy(cfg.FixedStep, cfg.Stiffness, cfg.RenderSmoothing, cfg.DegenerateNudge, rand.New(rand.NewSource(1)))
}

func TestConstraint_ExtensionZeroAtRest(t *testing.T) {
	p1 := newPoint(0, 0, 0, mgl64.Vec3{0.3, 10.0001, -2}, 1)
	p2 := newPoint(1, 0, 1, mgl64.Vec3{0.4, 10, -2.0003}, 1)
	c := newConstraint(p1, p2)

	satisfyOnce(c)

	if c.Extension() != 0 {
		t.Fatalf("extension=%v want exactly 0", c.Extension())
	}
	if p1.Tension() != (mgl64.Vec3{}) || p2.Tension() != (mgl64.Vec3{}) {
		t.Fatalf("unexpected tension at rest: %v %v", p1.Tension(), p2.Tension())
	}
}

func TestConstraint_OppositeReaction(t *testing.T) {
	p1 := newPoint(0, 0, 0, mgl64.Vec3{0, 0, 0}, 1)
	p2 := newPoint(1, 0, 1, mgl64.Vec3{0.1, 0, 0}, 1)
	c := newConstraint(p1, p2)
	p2.pos = mgl64.Vec3{0.15, 0.02, 0}

	satisfyOnce(c)

	if c.Extension() <= 0 {
		t.Fatalf("expected stretched constraint, extension=%v", c.Extension())
	}
	if p1.Tension() != p2.Tension().Mul(-1) {
		t.Fatalf("tension not opposite: p1=%v p2=%v", p1.Tension(), p2.Tension())
	}
	if p1.TensionDir() != p2.TensionDir().Mul(-1) {
		t.Fatalf("tension dir not opposite: p1=%v p2=%v", p1.TensionDir(), p2.TensionDir())
	}
	// A stretched spring pulls point 2 back towards point 1.
	if p2.Tension().Dot(p1.Position().Sub(p2.Position())) <= 0 {
		t.Fatalf("p2 tension %v does not point at p1", p2.Tension())
	}
	if p1.Extension() != c.Extension() || p2.Extension() != c.Extension() {
		t.Fatalf("endpoint extension not stored")
	}
}

func TestConstraint_CompressedPushesApart(t *testing.T) {
	p1 := newPoint(0, 0, 0, mgl64.Vec3{0, 0, 0}, 1)
	p2 := newPoint(1, 0, 1, mgl64.Vec3{0.1, 0, 0}, 1)
	c := newConstraint(p1, p2)
	p2.pos = mgl64.Vec3{0.05, 0, 0}

	satisfyOnce(c)

	if c.Extension() >= 0 {
		t.Fatalf("expected compression, extension=%v", c.Extension())
	}
	if p2.Tension()[0] <= 0 {
		t.Fatalf("compressed spring should push p2 away, tension=%v", p2.Tension())
	}
}

func TestConstraint_CoincidentEndpointsStayFinite(t *testing.T) {
	p1 := newPoint(0, 0, 0, mgl64.Vec3{1, 2, 3}, 1)
	p2 := newPoint(1, 0, 1, mgl64.Vec3{1, 2, 3}, 1)
	c := newConstraint(p1, p2)

	satisfyOnce(c)

	for _, v := range []mgl64.Vec3{p1.Tension(), p2.Tension(), c.RenderCenter()} {
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				t.Fatalf("non-finite value %v", v)
			}
		}
	}
	if c.Length() <= 0 {
		t.Fatalf("degenerate link should get a separation direction, length=%v", c.Length())
	}
	if p1.Tension().Len() == 0 {
		t.Fatalf("expected a push apart after jitter")
	}
}

func TestConstraint_RenderCenterIsSmoothed(t *testing.T) {
	p1 := newPoint(0, 0, 0, mgl64.Vec3{0, 0, 0}, 1)
	p2 := newPoint(1, 0, 1, mgl64.Vec3{1, 0, 0}, 1)
	c := newConstraint(p1, p2)
	p1.pos = mgl64.Vec3{0, 1, 0}
	p2.pos = mgl64.Vec3{1, 1, 0}

	satisfyOnce(c)

	y := c.RenderCenter()[1]
	if y <= 0 || y >= 1 {
		t.Fatalf("render center y=%v should move part of the way to 1", y)
	}
	for i := 0; i < 300; i++ {
		satisfyOnce(c)
	}
	if !near(c.RenderCenter(), mgl64.Vec3{0.5, 1, 0}, 1e-6) {
		t.Fatalf("render center did not converge: %v", c.RenderCenter())
	}
}
