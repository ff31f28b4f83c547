package cloth

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/charmbracelet/harmonica"
	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/sim/mathx"
	"clothcraft.ai/internal/sim/tuning"
)

var ErrBadDimensions = errors.New("cloth: bad dimensions")

type Kind uint8

const (
	Rope Kind = iota + 1
	Cloth
)

func (k Kind) String() string {
	switch k {
	case Rope:
		return "ROPE"
	case Cloth:
		return "CLOTH"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// System is one rope or cloth: a row-major grid of points and the springs between them.
// It is not safe for concurrent use.
type System struct {
	id     int
	kind   Kind
	width  int
	length int

	points      []*Point
	grid        [][]*Point
	constraints []*Constraint

	cfg tuning.Cloth
	rng *rand.Rand

	active      bool
	accumulator float64
	slowTimer   float64

	wind       mgl64.Vec3
	windTarget mgl64.Vec3
	windVel    mgl64.Vec3
	windSpring harmonica.Spring
}

func newSystem(kind Kind, width, length int, cfg tuning.Cloth, seed int64) *System {
	s := &System{
		kind:       kind,
		width:      width,
		length:     length,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(seed)),
		active:     true,
		slowTimer:  cfg.SlowTickSeconds,
		windSpring: harmonica.NewSpring(cfg.FixedStep, cfg.WindFrequency, cfg.WindDamping),
	}
	s.points = make([]*Point, 0, width*length)
	s.grid = make([][]*Point, width)
	return s
}

// NewRope lays out a rope of the given length from origin along dir.
func NewRope(origin, dir mgl64.Vec3, length float64, cfg tuning.Cloth, seed int64) (*System, error) {
	n := int(math.Round(length * cfg.Resolution))
	if n < 2 || dir.Len() == 0 {
		return nil, fmt.Errorf("%w: rope length=%v resolution=%v", ErrBadDimensions, length, cfg.Resolution)
	}
	dir = dir.Normalize()
	normal := dir.Cross(up)
	if normal.Len() < 1e-9 {
		normal = mgl64.Vec3{1, 0, 0}
	}
	return build(Rope, 1, n, origin, dir, up.Mul(-1), normal.Normalize(), cfg, seed), nil
}

// NewCloth lays out a sheet hanging down from origin, width rows deep and length columns
// wide along right.
func NewCloth(origin, right mgl64.Vec3, width, length float64, cfg tuning.Cloth, seed int64) (*System, error) {
	rows := int(math.Round(width * cfg.Resolution))
	cols := int(math.Round(length * cfg.Resolution))
	right = mgl64.Vec3{right[0], 0, right[2]}
	if rows < 2 || cols < 2 || right.Len() == 0 {
		return nil, fmt.Errorf("%w: cloth %vx%v resolution=%v", ErrBadDimensions, width, length, cfg.Resolution)
	}
	right = right.Normalize()
	normal := right.Cross(up).Normalize()
	return build(Cloth, rows, cols, origin, right, up.Mul(-1), normal, cfg, seed), nil
}

func build(kind Kind, rows, cols int, origin, colDir, rowDir, normal mgl64.Vec3, cfg tuning.Cloth, seed int64) *System {
	s := newSystem(kind, rows, cols, cfg, seed)
	spacing := 1 / cfg.Resolution
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			jitter := (s.rng.Float64()*2 - 1) * cfg.Jitter
			pos := origin.
				Add(colDir.Mul(float64(c) * spacing)).
				Add(rowDir.Mul(float64(r) * spacing)).
				Add(normal.Mul(jitter))
			s.addPoint(newPoint(r*cols+c, r, c, pos, cfg.PointMass))
			p := s.points[len(s.points)-1]
			if r > 0 {
				s.constraints = append(s.constraints, newConstraint(s.grid[r-1][c], p))
			}
			if c > 0 {
				s.constraints = append(s.constraints, newConstraint(s.grid[r][c-1], p))
			}
		}
	}
	return s
}

func (s *System) addPoint(p *Point) {
	s.points = append(s.points, p)
	s.grid[p.row] = append(s.grid[p.row], p)
}

func (s *System) ID() int                    { return s.id }
func (s *System) SetID(id int)               { s.id = id }
func (s *System) Kind() Kind                 { return s.kind }
func (s *System) Dimensions() (int, int)     { return s.width, s.length }
func (s *System) Points() []*Point           { return s.points }
func (s *System) Constraints() []*Constraint { return s.constraints }
func (s *System) Active() bool               { return s.active }
func (s *System) Wind() mgl64.Vec3           { return s.wind }

func (s *System) Point(row, col int) (*Point, bool) {
	if row < 0 || row >= s.width || col < 0 || col >= s.length {
		return nil, false
	}
	return s.grid[row][col], true
}

func (s *System) First() *Point { return s.points[0] }
func (s *System) Last() *Point  { return s.points[len(s.points)-1] }

// Ends returns both ends of a rope, or the four corners of a cloth.
func (s *System) Ends() []*Point {
	top := s.grid[0]
	if s.kind == Rope {
		return []*Point{top[0], top[len(top)-1]}
	}
	bottom := s.grid[s.width-1]
	return []*Point{top[0], top[len(top)-1], bottom[0], bottom[len(bottom)-1]}
}

func (s *System) PinnedAnywhere() bool {
	for _, p := range s.points {
		if p.pin != nil {
			return true
		}
	}
	return false
}

// CenterOfMass is the mean point position, refined by a second pass over the residuals.
// A system without points reports the origin.
func (s *System) CenterOfMass() mgl64.Vec3 {
	if len(s.points) == 0 {
		return mgl64.Vec3{}
	}
	n := float64(len(s.points))
	var sum mgl64.Vec3
	for _, p := range s.points {
		sum = sum.Add(p.pos)
	}
	mean := sum.Mul(1 / n)
	var resid mgl64.Vec3
	for _, p := range s.points {
		resid = resid.Add(p.pos.Sub(mean))
	}
	return mean.Add(resid.Mul(1 / n))
}

// RefreshActive recomputes the active flag from the loaded chunks. On an inactive to active
// transition references that do not survive serialization are restored. It reports whether
// the flag changed.
func (s *System) RefreshActive(w World) bool {
	active := true
	for _, p := range s.points {
		if !w.IsLoaded(p.pos) {
			active = false
			break
		}
	}
	if active == s.active {
		return false
	}
	if active {
		s.RestoreReferences(w)
	}
	s.active = active
	return true
}

func (s *System) Deactivate() { s.active = false }

// RestoreReferences relinks constraints by point index and rebinds entity pins. Pins to
// entities that no longer exist are dropped; player pins stay and resolve lazily.
func (s *System) RestoreReferences(w World) {
	for _, c := range s.constraints {
		c.relink(s.points)
	}
	for _, p := range s.points {
		ep, ok := p.pin.(*EntityPin)
		if !ok {
			continue
		}
		ep.body = nil
		if ep.resolve(w) == nil && ep.PlayerUID == "" {
			p.Unpin()
		}
	}
}

// UpdateFixedStep feeds frame time into the accumulator and runs the physics steps that
// fit. It returns the number of steps run.
func (s *System) UpdateFixedStep(dt float64, env Env) int {
	if !s.active {
		return 0
	}
	step := s.cfg.FixedStep
	s.accumulator = math.Min(s.accumulator+dt, s.cfg.MaxAccumulated)
	n := 0
	for s.accumulator >= step {
		s.accumulator -= step
		s.TickNow(step, env)
		n++
	}
	return n
}

// TickNow runs one physics step: every constraint, then every point.
func (s *System) TickNow(dt float64, env Env) {
	s.slowTimer += dt
	if s.slowTimer >= s.cfg.SlowTickSeconds {
		s.slowTimer = 0
		s.slowTick(env.World)
	}
	s.easeWind()

	for _, c := range s.constraints {
		c.satisfy(dt, s.cfg.Stiffness, s.cfg.RenderSmoothing, s.cfg.DegenerateNudge, s.rng)
	}
	ctx := stepCtx{env: env, cfg: &s.cfg, wind: s.wind.Mul(s.cfg.WindFactor)}
	for _, p := range s.points {
		p.update(dt, &ctx)
	}
}

// slowTick samples the wind field and perturbs it with temporal noise so the sway is
// not periodic.
func (s *System) slowTick(w World) {
	base := w.Wind(s.CenterOfMass())
	n := mathx.Noise1(w.Seed()+int64(s.id), w.Time()/s.cfg.SlowTickSeconds)
	s.windTarget = mgl64.Vec3{base[0], 0, base[2]}.Mul(1 + s.cfg.WindNoise*n)
}

func (s *System) easeWind() {
	s.wind[0], s.windVel[0] = s.windSpring.Update(s.wind[0], s.windVel[0], s.windTarget[0])
	s.wind[2], s.windVel[2] = s.windSpring.Update(s.wind[2], s.windVel[2], s.windTarget[2])
}
