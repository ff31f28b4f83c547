package clothmgr

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"clothcraft.ai/internal/logging"
	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/cloth"
	"clothcraft.ai/internal/sim/tuning"
	"clothcraft.ai/internal/sim/voxel"
)

var ErrUnknownSystem = errors.New("clothmgr: unknown system")

type Side uint8

const (
	// Server is authoritative: it replicates dirty points and dissolves unpinned systems.
	Server Side = iota
	// Client only predicts between updates.
	Client
)

type Phase uint8

const (
	Starting Phase = iota
	Running
	Stopping
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

type Options struct {
	Side   Side
	Tuning tuning.Tuning
	Env    cloth.Env

	// Optional collaborators.
	Broadcaster Broadcaster
	Store       RegionStore
	Drops       ItemDropper
	Audit       Auditor
	Log         logrus.FieldLogger
}

// Manager owns every live System. The server loop drives Tick; region callbacks and
// network joins may arrive from other goroutines, so all access goes through mu.
type Manager struct {
	mu deadlock.Mutex

	side  Side
	phase Phase
	cfg   tuning.Cloth
	sync  tuning.Sync
	env   cloth.Env

	out   Broadcaster
	store RegionStore
	drops ItemDropper
	audit Auditor
	log   logrus.FieldLogger

	systems map[int]*cloth.System
	nextID  int
	// Restored before Running; not simulated until SetPhase(Running).
	staged  map[int]struct{}
	// Regions restored through OnRegionLoad and not unloaded since.
	regions map[voxel.ChunkKey]struct{}

	tick       uint64
	syncTimer  float64
	sweepTimer float64
}

func New(opts Options) *Manager {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Manager{
		side:    opts.Side,
		phase:   Starting,
		cfg:     opts.Tuning.Cloth,
		sync:    opts.Tuning.Sync,
		env:     opts.Env,
		out:     opts.Broadcaster,
		store:   opts.Store,
		drops:   opts.Drops,
		audit:   opts.Audit,
		log:     log.WithField("component", "clothmgr"),
		systems: map[int]*cloth.System{},
		nextID:  1,
		staged:  map[int]struct{}{},
		regions: map[voxel.ChunkKey]struct{}{},
	}
}

func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// SetPhase moves the server lifecycle forward. Entering Running restores the systems
// staged while the world was still starting and announces them.
func (m *Manager) SetPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == p {
		return
	}
	m.log.WithFields(logrus.Fields{"from": m.phase, "to": p}).Info("phase change")
	m.phase = p
	if p != Running || len(m.staged) == 0 {
		return
	}
	restored := make([]protocol.SystemV1, 0, len(m.staged))
	for _, s := range m.sortedLocked() {
		if _, ok := m.staged[s.ID()]; !ok {
			continue
		}
		if m.env.World != nil {
			s.RefreshActive(m.env.World)
		}
		restored = append(restored, s.Record())
	}
	m.staged = map[int]struct{}{}
	m.broadcastLocked(protocol.NewFullSnapshot(restored))
}

// RegisterCloth assigns the next id to a new system and announces it. The system is
// simulated only once every point lies in a loaded chunk.
func (m *Manager) RegisterCloth(s *cloth.System) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	s.SetID(id)
	if m.env.World != nil {
		s.RefreshActive(m.env.World)
	}
	m.systems[id] = s
	m.auditLocked(AuditEntry{Action: AuditRegister, ClothID: id, Kind: s.Kind().String(), Region: regionOf(s)})
	m.broadcastLocked(protocol.NewFullSnapshot([]protocol.SystemV1{s.Record()}))
	m.log.WithFields(logrus.Fields{"cloth_id": id, "kind": s.Kind()}).Debug("registered")
	return id
}

// UnregisterCloth discards a system and tells clients to drop it.
func (m *Manager) UnregisterCloth(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.systems[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSystem, id)
	}
	m.unregisterLocked(id, "")
	return nil
}

// Update runs fn on a registered system while holding the registry lock. Callers outside
// the simulation loop must mutate systems only through it.
func (m *Manager) Update(id int, fn func(s *cloth.System)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSystem, id)
	}
	fn(s)
	return nil
}

func (m *Manager) unregisterLocked(id int, reason string) *cloth.System {
	s := m.systems[id]
	delete(m.systems, id)
	delete(m.staged, id)
	m.auditLocked(AuditEntry{Action: AuditUnregister, ClothID: id, Kind: s.Kind().String(), Region: regionOf(s), Reason: reason})
	m.broadcastLocked(protocol.NewRemovalNotice([]int{id}))
	return s
}

// Adopt inserts a system under the id it already carries, replacing any system with that
// id. Clients use it to mirror server state.
func (m *Manager) Adopt(s *cloth.System) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adoptLocked(s)
}

func (m *Manager) adoptLocked(s *cloth.System) {
	m.systems[s.ID()] = s
	if s.ID() >= m.nextID {
		m.nextID = s.ID() + 1
	}
}

// Remove drops a system without any announcement. It reports whether it existed.
func (m *Manager) Remove(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.systems[id]
	delete(m.systems, id)
	delete(m.staged, id)
	return ok
}

func (m *Manager) Get(id int) (*cloth.System, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[id]
	return s, ok
}

// Systems lists every registered system ordered by id.
func (m *Manager) Systems() []*cloth.System {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.systems)
}

func (m *Manager) NextID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID
}

func (m *Manager) sortedLocked() []*cloth.System {
	ids := make([]int, 0, len(m.systems))
	for id := range m.systems {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*cloth.System, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.systems[id])
	}
	return out
}

// Snapshot returns a full snapshot of every active system, as sent to a joining client.
func (m *Manager) Snapshot() *protocol.FullSnapshotMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := make([]protocol.SystemV1, 0, len(m.systems))
	for _, s := range m.sortedLocked() {
		if s.Active() {
			recs = append(recs, s.Record())
		}
	}
	return protocol.NewFullSnapshot(recs)
}

func (m *Manager) broadcastLocked(msg protocol.Message) {
	if m.out == nil || m.side != Server || m.phase == Stopping {
		return
	}
	m.out.Broadcast(msg)
}

func (m *Manager) auditLocked(e AuditEntry) {
	if m.audit == nil {
		return
	}
	e.Tick = m.tick
	if err := m.audit.WriteAudit(e); err != nil {
		m.log.WithError(err).Warn("audit write failed")
	}
}

func regionOf(s *cloth.System) [2]int {
	k := voxel.ChunkOf(s.First().Position())
	return [2]int{k.CX, k.CZ}
}
