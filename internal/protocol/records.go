package protocol

// Records shared by the wire protocol and the region stores.

const (
	SystemRope  = "ROPE"
	SystemCloth = "CLOTH"

	PinNone   = "NONE"
	PinBlock  = "BLOCK"
	PinEntity = "ENTITY"
)

type SystemV1 struct {
	ID          int            `json:"id"`
	Type        string         `json:"type"`
	Width       int            `json:"width"`
	Length      int            `json:"length"`
	Wind        [3]float64     `json:"wind"`
	Points      []PointV1      `json:"points"`
	Constraints []ConstraintV1 `json:"constraints"`
}

type PointV1 struct {
	Index int        `json:"index"`
	Pos   [3]float64 `json:"pos"`
	Vel   [3]float64 `json:"vel"`
	Pin   *PinV1     `json:"pin,omitempty"`
}

type PinV1 struct {
	Kind   string     `json:"kind"`
	Block  [3]int     `json:"block"`
	Offset [3]float64 `json:"offset"`

	EntityID  int     `json:"entity_id,omitempty"`
	PlayerUID string  `json:"player_uid,omitempty"`
	Yaw       float64 `json:"yaw,omitempty"`
	Pose      string  `json:"pose,omitempty"`
}

type ConstraintV1 struct {
	A    int     `json:"a"`
	B    int     `json:"b"`
	Rest float64 `json:"rest"`
}
