package clothmgr

import (
	"github.com/sirupsen/logrus"

	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/cloth"
	"clothcraft.ai/internal/sim/voxel"
)

// OnRegionUnload persists every system whose first point lies in the chunk and drops
// them from the registry. If the store fails the systems stay registered; they go
// inactive once their chunk is gone.
func (m *Manager) OnRegionUnload(k voxel.ChunkKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.regions, k)

	var (
		ids  []int
		recs []protocol.SystemV1
	)
	for _, s := range m.sortedLocked() {
		if !k.Contains(s.First().Position()) {
			continue
		}
		ids = append(ids, s.ID())
		recs = append(recs, s.Record())
	}
	if m.store != nil {
		if err := m.store.SaveRegion(k, recs); err != nil {
			m.log.WithError(err).WithField("chunk", k).Error("region save failed")
			return
		}
	}
	for _, id := range ids {
		delete(m.systems, id)
		delete(m.staged, id)
	}
	if len(ids) == 0 {
		return
	}
	m.auditLocked(AuditEntry{Action: AuditRegionSave, Region: [2]int{k.CX, k.CZ}, Count: len(ids)})
	m.broadcastLocked(protocol.NewRemovalNotice(ids))
	m.log.WithFields(logrus.Fields{"chunk": k, "systems": len(ids)}).Debug("region saved")
}

// OnRegionLoad restores the systems stored for a chunk. Before the server is running they
// are only staged; SetPhase(Running) finishes the restore.
func (m *Manager) OnRegionLoad(k voxel.ChunkKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions[k] = struct{}{}
	if m.store == nil {
		return
	}
	recs, err := m.store.LoadRegion(k)
	if err != nil {
		m.log.WithError(err).WithField("chunk", k).Error("region load failed")
		return
	}
	if len(recs) == 0 {
		return
	}

	var restored []protocol.SystemV1
	for _, rec := range recs {
		s, err := cloth.FromRecord(rec, m.cfg)
		if err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{"chunk": k, "cloth_id": rec.ID}).Warn("dropping unreadable system")
			continue
		}
		if _, taken := m.systems[s.ID()]; taken || s.ID() <= 0 {
			old := s.ID()
			s.SetID(m.nextID)
			m.log.WithFields(logrus.Fields{"from": old, "to": s.ID()}).Warn("restored system id collides, reassigned")
		}
		m.adoptLocked(s)
		if m.phase != Running {
			m.staged[s.ID()] = struct{}{}
			continue
		}
		if m.env.World != nil {
			s.RefreshActive(m.env.World)
		}
		restored = append(restored, s.Record())
	}
	m.auditLocked(AuditEntry{Action: AuditRegionRestore, Region: [2]int{k.CX, k.CZ}, Count: len(recs)})
	if len(restored) > 0 {
		m.broadcastLocked(protocol.NewFullSnapshot(restored))
	}
}

// RestoreCounter loads the persisted id counter. Ids never go backwards.
func (m *Manager) RestoreCounter() error {
	if m.store == nil {
		return nil
	}
	next, err := m.store.LoadCounter()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if next > m.nextID {
		m.nextID = next
	}
	return nil
}

func (m *Manager) SaveCounter() error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveCounter(m.NextID())
}

// Shutdown persists every live system into the region of its first point, plus every
// restored region that is now empty, then the id counter. Nothing is sent to clients.
func (m *Manager) Shutdown() error {
	m.SetPhase(Stopping)

	m.mu.Lock()
	byRegion := map[voxel.ChunkKey][]protocol.SystemV1{}
	for k := range m.regions {
		byRegion[k] = nil
	}
	for _, s := range m.sortedLocked() {
		k := voxel.ChunkOf(s.First().Position())
		byRegion[k] = append(byRegion[k], s.Record())
	}
	store := m.store
	next := m.nextID
	m.mu.Unlock()

	if store == nil {
		return nil
	}
	var firstErr error
	for k, recs := range byRegion {
		if err := store.SaveRegion(k, recs); err != nil {
			m.log.WithError(err).WithField("chunk", k).Error("region save failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := store.SaveCounter(next); err != nil && firstErr == nil {
		firstErr = err
	}

	m.mu.Lock()
	m.systems = map[int]*cloth.System{}
	m.staged = map[int]struct{}{}
	m.mu.Unlock()
	return firstErr
}
