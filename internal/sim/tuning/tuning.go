package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz  int `yaml:"tick_rate_hz"`
	ChunkHeight int `yaml:"chunk_height"`

	Cloth Cloth `yaml:"cloth"`
	Sync  Sync  `yaml:"sync"`
	World World `yaml:"world"`
}

// Cloth holds the constants shared by server and client integration. Both sides must
// run with identical values or the client prediction drifts.
type Cloth struct {
	FixedStep      float64 `yaml:"fixed_step"`
	MaxAccumulated float64 `yaml:"max_accumulated"`
	Resolution     float64 `yaml:"resolution"`

	Stiffness       float64 `yaml:"stiffness"`
	Damping         float64 `yaml:"damping"`
	GravityConstant float64 `yaml:"gravity_constant"`
	GravityStrength float64 `yaml:"gravity_strength"`
	PointMass       float64 `yaml:"point_mass"`
	DtDeflation     float64 `yaml:"dt_deflation"`
	Buoyancy        float64 `yaml:"buoyancy"`
	CollisionSize   float64 `yaml:"collision_size"`
	Jitter          float64 `yaml:"jitter"`
	DegenerateNudge float64 `yaml:"degenerate_nudge"`

	WindFactor    float64 `yaml:"wind_factor"`
	WindNoise     float64 `yaml:"wind_noise"`
	WindFrequency float64 `yaml:"wind_frequency"`
	WindDamping   float64 `yaml:"wind_damping"`

	RenderSmoothing float64 `yaml:"render_smoothing"`
	DirtyThreshold  float64 `yaml:"dirty_threshold"`

	AnchorCheckSeconds float64 `yaml:"anchor_check_seconds"`
	SlowTickSeconds    float64 `yaml:"slow_tick_seconds"`

	Pull Pull `yaml:"pull"`
}

// Pull tunes the counter-force a taut rope applies to the body it is pinned to.
type Pull struct {
	Strength          float64 `yaml:"strength"`
	ResistancePerKg   float64 `yaml:"resistance_per_kg"`
	MinResistance     float64 `yaml:"min_resistance"`
	MaxResistance     float64 `yaml:"max_resistance"`
	SneakMultiplier   float64 `yaml:"sneak_multiplier"`
	SitMultiplier     float64 `yaml:"sit_multiplier"`
	MaxVelocityChange float64 `yaml:"max_velocity_change"`
}

type Sync struct {
	IntervalMs   int     `yaml:"interval_ms"`
	SweepSeconds float64 `yaml:"sweep_seconds"`
	OutboxSize   int     `yaml:"outbox_size"`
}

// World tunes terrain generation and the wind field.
type World struct {
	GroundLevel      int     `yaml:"ground_level"`
	SpawnClearRadius int     `yaml:"spawn_clear_radius"`
	PostPermille     int     `yaml:"post_permille"`
	PondPermille     int     `yaml:"pond_permille"`
	LoadRadius       int     `yaml:"load_radius"` // chunks around spawn
	WindStrength     float64 `yaml:"wind_strength"`
	WindTurnSeconds  float64 `yaml:"wind_turn_seconds"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		ChunkHeight:     64,
		Cloth:           DefaultCloth(),
		Sync: Sync{
			IntervalMs:   100,
			SweepSeconds: 3,
			OutboxSize:   4096,
		},
		World: World{
			GroundLevel:      4,
			SpawnClearRadius: 4,
			PostPermille:     6,
			PondPermille:     250,
			LoadRadius:       2,
			WindStrength:     2,
			WindTurnSeconds:  600,
		},
	}
}

// DefaultCloth keeps a 5 unit rope at 10 points per unit within a few percent of its rest
// length when it hangs. A single spring pass is only stable while 2*sqrt(k/(rest*mass))*step
// stays below 2, so stiffness and step move together.
func DefaultCloth() Cloth {
	return Cloth{
		FixedStep:      1.0 / 120.0,
		MaxAccumulated: 1.0,
		Resolution:     10,

		Stiffness:       1000,
		Damping:         0.995,
		GravityConstant: 1.0,
		GravityStrength: 1.0,
		PointMass:       1.0,
		DtDeflation:     0.999,
		Buoyancy:        0.6,
		CollisionSize:   0.05,
		Jitter:          0.001,
		DegenerateNudge: 1e-4,

		WindFactor:    0.05,
		WindNoise:     0.3,
		WindFrequency: 2.0,
		WindDamping:   1.0,

		RenderSmoothing: 20,
		DirtyThreshold:  0.01,

		AnchorCheckSeconds: 1,
		SlowTickSeconds:    3,

		Pull: Pull{
			Strength:          0.1,
			ResistancePerKg:   0.02,
			MinResistance:     0.5,
			MaxResistance:     8,
			SneakMultiplier:   2,
			SitMultiplier:     4,
			MaxVelocityChange: 0.2,
		},
	}
}

// Load reads a tuning file on top of Defaults, so a partial file only overrides the keys it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	c := t.Cloth
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0")
	case c.FixedStep <= 0:
		return fmt.Errorf("cloth.fixed_step must be > 0")
	case c.MaxAccumulated < c.FixedStep:
		return fmt.Errorf("cloth.max_accumulated must be >= fixed_step")
	case c.Resolution <= 0:
		return fmt.Errorf("cloth.resolution must be > 0")
	case c.PointMass <= 0:
		return fmt.Errorf("cloth.point_mass must be > 0")
	case c.Damping <= 0 || c.Damping > 1:
		return fmt.Errorf("cloth.damping must be in (0,1]")
	case t.Sync.IntervalMs <= 0:
		return fmt.Errorf("sync.interval_ms must be > 0")
	case t.World.GroundLevel <= 0 || t.World.GroundLevel >= t.ChunkHeight:
		return fmt.Errorf("world.ground_level must be in (0,chunk_height)")
	}
	return nil
}

// Digest identifies the physics constants. Clients compare it with their own to detect
// a prediction mismatch.
func (t Tuning) Digest() string {
	b, err := yaml.Marshal(t.Cloth)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
