// Package client mirrors the server's cloth systems from the replication stream and
// predicts their motion between updates.
package client

import (
	"math"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"clothcraft.ai/internal/logging"
	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/catalogs"
	"clothcraft.ai/internal/sim/cloth"
	"clothcraft.ai/internal/sim/clothmgr"
	"clothcraft.ai/internal/sim/tuning"
	"clothcraft.ai/internal/sim/voxel"
)

type Mirror struct {
	mu deadlock.Mutex

	cfg   tuning.Tuning
	world *mirrorWorld
	mgr   *clothmgr.Manager
	log   logrus.FieldLogger

	applied int
	ignored int
}

// NewMirror builds a client mirror for a world with the given seed. Terrain is generated
// locally, so seed and tuning must match the server.
func NewMirror(seed int64, cfg tuning.Tuning, cat *catalogs.BlockCatalog, log logrus.FieldLogger) *Mirror {
	if cat == nil {
		cat = catalogs.Default()
	}
	if log == nil {
		log = logging.Discard()
	}
	w := newMirrorWorld(voxel.New(seed, cfg.ChunkHeight, cfg.World, cat))
	env := cloth.Env{World: w, Physics: w.Physics()}
	return &Mirror{
		cfg:   cfg,
		world: w,
		mgr: clothmgr.New(clothmgr.Options{
			Side:   clothmgr.Client,
			Tuning: cfg,
			Env:    env,
			Log:    log,
		}),
		log: log.WithField("component", "mirror"),
	}
}

func (m *Mirror) Manager() *clothmgr.Manager { return m.mgr }

// Apply folds one replication message into the mirror. Every case is idempotent and
// messages about unknown systems or points are ignored.
func (m *Mirror) Apply(msg protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch msg := msg.(type) {
	case *protocol.FullSnapshotMsg:
		for _, rec := range msg.Systems {
			s, err := cloth.FromRecord(rec, m.cfg.Cloth)
			if err != nil {
				m.log.WithError(err).WithField("cloth_id", rec.ID).Warn("bad system in snapshot")
				m.ignored++
				continue
			}
			for _, pr := range rec.Points {
				m.world.observe(pr)
			}
			s.RefreshActive(m.world)
			m.mgr.Adopt(s)
			m.applied++
		}
	case *protocol.RemovalNoticeMsg:
		for _, id := range msg.IDs {
			if m.mgr.Remove(id) {
				m.applied++
			} else {
				m.ignored++
			}
		}
	case *protocol.PointDeltaMsg:
		s, ok := m.mgr.Get(msg.SystemID)
		if !ok {
			m.ignored++
			return
		}
		if err := s.ApplyPoint(msg.Row, msg.Col, msg.Point); err != nil {
			m.log.WithError(err).WithField("cloth_id", msg.SystemID).Debug("ignored point delta")
			m.ignored++
			return
		}
		m.world.observe(msg.Point)
		m.applied++
	}
}

// Tick advances world time and predicts every mirrored system by dt.
func (m *Mirror) Tick(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.world.Advance(dt)
	m.mgr.Tick(dt)
}

type Stats struct {
	Systems int
	Points  int
	// LowestY is the lowest point height, +Inf without points.
	LowestY float64
	Applied int
	Ignored int
}

func (m *Mirror) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{LowestY: math.Inf(1), Applied: m.applied, Ignored: m.ignored}
	for _, s := range m.mgr.Systems() {
		st.Systems++
		for _, p := range s.Points() {
			st.Points++
			st.LowestY = math.Min(st.LowestY, p.Position()[1])
		}
	}
	return st
}
