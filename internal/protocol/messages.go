package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerUID       string `json:"player_uid,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	Seed         int64   `json:"seed"`
	ChunkSize    [3]int  `json:"chunk_size"`
	FixedStep    float64 `json:"fixed_step"`
	TuningDigest string  `json:"tuning_digest,omitempty"`
}

// CLOTH_SNAPSHOT (server -> client): complete systems, inserted or replaced by id.
type FullSnapshotMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Systems         []SystemV1 `json:"systems"`
}

// CLOTH_REMOVE (server -> client): systems to discard.
type RemovalNoticeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IDs             []int  `json:"ids"`
}

// CLOTH_POINT (server -> client): one point addressed by grid coordinate.
type PointDeltaMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	SystemID        int     `json:"system_id"`
	Row             int     `json:"row"`
	Col             int     `json:"col"`
	Point           PointV1 `json:"point"`
}
