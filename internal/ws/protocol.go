package ws

import (
	"encoding/json"
	"fmt"
)

// FrameKind tags a wire frame. The literal values are the contract
// existing clients depend on and must not change.
type FrameKind string

const (
	FrameKindPrivateChat   FrameKind = "PRIVATE_CHAT"
	FrameKindHeartbeatPing FrameKind = "HEARTBEAT_PING"
	FrameKindHeartbeatPong FrameKind = "HEARTBEAT_PONG"
	FrameKindError         FrameKind = "ERROR"
)

// InboundEnvelope is a single frame received from a client. ReceiverID,
// MessageType and Content are required only for PRIVATE_CHAT frames.
type InboundEnvelope struct {
	Type       FrameKind `json:"type"`
	ReceiverID int64     `json:"receiverId,omitempty"`
	// MessageType tags the payload: "TEXT", "IMAGE", "FILE", "VIDEO", ...
	MessageType string `json:"messageType,omitempty"`
	Content     string `json:"content,omitempty"`
}

// controlEnvelope is a server-to-client frame carrying no chat payload.
// Persisted chat messages are sent to clients as-is (models.Message),
// without a type tag.
type controlEnvelope struct {
	Type    FrameKind `json:"type"`
	Content string    `json:"content,omitempty"`
}

func pongEnvelope() controlEnvelope {
	return controlEnvelope{Type: FrameKindHeartbeatPong}
}

func errorEnvelope(reason string) controlEnvelope {
	return controlEnvelope{Type: FrameKindError, Content: reason}
}

func decodeInbound(data []byte) (InboundEnvelope, error) {
	var env InboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return InboundEnvelope{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return env, nil
}
