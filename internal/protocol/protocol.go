package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const Version = "1.0"

// Message types.
const (
	TypeHello        = "HELLO"
	TypeWelcome      = "WELCOME"
	TypeFullSnapshot = "CLOTH_SNAPSHOT"
	TypeRemoval      = "CLOTH_REMOVE"
	TypePointDelta   = "CLOTH_POINT"
)

var ErrUnknownType = errors.New("unknown message type")

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Message is one of the three replication messages: *FullSnapshotMsg, *RemovalNoticeMsg
// or *PointDeltaMsg. The set is closed.
type Message interface {
	MessageType() string
	sealed()
}

func (*FullSnapshotMsg) MessageType() string  { return TypeFullSnapshot }
func (*RemovalNoticeMsg) MessageType() string { return TypeRemoval }
func (*PointDeltaMsg) MessageType() string    { return TypePointDelta }

func (*FullSnapshotMsg) sealed()  {}
func (*RemovalNoticeMsg) sealed() {}
func (*PointDeltaMsg) sealed()    {}

func NewFullSnapshot(systems []SystemV1) *FullSnapshotMsg {
	return &FullSnapshotMsg{Type: TypeFullSnapshot, ProtocolVersion: Version, Systems: systems}
}

func NewRemovalNotice(ids []int) *RemovalNoticeMsg {
	return &RemovalNoticeMsg{Type: TypeRemoval, ProtocolVersion: Version, IDs: ids}
}

func NewPointDelta(systemID, row, col int, p PointV1) *PointDeltaMsg {
	return &PointDeltaMsg{
		Type:            TypePointDelta,
		ProtocolVersion: Version,
		SystemID:        systemID,
		Row:             row,
		Col:             col,
		Point:           p,
	}
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses one replication message. Handshake messages are rejected with ErrUnknownType.
func Decode(b []byte) (Message, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return nil, err
	}
	var m Message
	switch base.Type {
	case TypeFullSnapshot:
		m = &FullSnapshotMsg{}
	case TypeRemoval:
		m = &RemovalNoticeMsg{}
	case TypePointDelta:
		m = &PointDeltaMsg{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", base.Type, err)
	}
	return m, nil
}
