package clothmgr

import (
	"github.com/go-gl/mathgl/mgl64"

	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/voxel"
)

// Broadcaster sends a message to every connected client. It must not block.
type Broadcaster interface {
	Broadcast(m protocol.Message)
}

// RegionStore persists the systems anchored in each chunk column plus the id counter.
type RegionStore interface {
	SaveRegion(k voxel.ChunkKey, systems []protocol.SystemV1) error
	// LoadRegion returns nil without error when the region has nothing stored.
	LoadRegion(k voxel.ChunkKey) ([]protocol.SystemV1, error)
	SaveCounter(next int) error
	// LoadCounter returns 0 when no counter was saved yet.
	LoadCounter() (int, error)
}

// ItemDropper receives the item a dissolved rope or cloth turns back into.
type ItemDropper interface {
	DropItem(pos mgl64.Vec3, item string)
}

// Auditor records lifecycle events.
type Auditor interface {
	WriteAudit(e AuditEntry) error
}

type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	Action  string `json:"action"` // e.g. "REGISTER"
	ClothID int    `json:"cloth_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Region  [2]int `json:"region"`
	Count   int    `json:"count,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

const (
	AuditRegister      = "REGISTER"
	AuditUnregister    = "UNREGISTER"
	AuditRegionSave    = "REGION_SAVE"
	AuditRegionRestore = "REGION_RESTORE"
)

// MultiAudit fans an entry out to every auditor and returns the first error.
func MultiAudit(auditors ...Auditor) Auditor { return multiAudit(auditors) }

type multiAudit []Auditor

func (m multiAudit) WriteAudit(e AuditEntry) error {
	var first error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.WriteAudit(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
