package clothmgr

import (
	"github.com/sirupsen/logrus"

	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/cloth"
)

// Tick advances every system by a frame of dt seconds. On the server it also replicates
// dirty points every sync interval and dissolves unpinned systems every sweep interval.
func (m *Manager) Tick(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick++

	for _, s := range m.sortedLocked() {
		if _, ok := m.staged[s.ID()]; ok {
			continue
		}
		m.stepLocked(s, dt)
	}
	if m.side != Server {
		return
	}

	m.syncTimer += dt
	if interval := float64(m.sync.IntervalMs) / 1000; m.syncTimer >= interval {
		m.syncTimer = 0
		for _, msg := range m.collectDirtyLocked() {
			m.broadcastLocked(msg)
		}
	}

	m.sweepTimer += dt
	if m.sweepTimer >= m.sync.SweepSeconds {
		m.sweepTimer = 0
		m.sweepLocked()
	}
}

// stepLocked runs one system, skipping it for this frame if it panics. A system that
// turns active is announced again, since join snapshots leave inactive systems out.
func (m *Manager) stepLocked(s *cloth.System, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithFields(logrus.Fields{"cloth_id": s.ID(), "panic": r}).Error("cloth step failed, skipping this frame")
		}
	}()
	if m.env.World != nil && s.RefreshActive(m.env.World) && s.Active() {
		m.broadcastLocked(protocol.NewFullSnapshot([]protocol.SystemV1{s.Record()}))
	}
	s.UpdateFixedStep(dt, m.env)
}

// CollectDirty packages every dirty point as a delta and clears the flags.
func (m *Manager) CollectDirty() []protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectDirtyLocked()
}

func (m *Manager) collectDirtyLocked() []protocol.Message {
	var out []protocol.Message
	for _, s := range m.sortedLocked() {
		for _, p := range s.Points() {
			if !p.Dirty() {
				continue
			}
			out = append(out, protocol.NewPointDelta(s.ID(), p.Row(), p.Col(), p.Record()))
			p.MarkCollected()
		}
	}
	return out
}

// sweepLocked unregisters systems with nothing left holding them and drops them as items.
func (m *Manager) sweepLocked() {
	for _, s := range m.sortedLocked() {
		if !s.Active() || s.PinnedAnywhere() {
			continue
		}
		pos := s.CenterOfMass()
		m.unregisterLocked(s.ID(), "unpinned")
		if m.drops != nil {
			m.drops.DropItem(pos, s.Kind().String())
		}
		m.log.WithField("cloth_id", s.ID()).Debug("dissolved unpinned system")
	}
}
