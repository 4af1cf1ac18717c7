// Package protocol defines the JSON websocket envelope exchanged between
// controller devices, the arm model server, and pose viewers.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-armmodel/pkg/armmodel"
)

// MessageType names the payload carried in Message.Data.
type MessageType string

const (
	TypeSample MessageType = "sample" // device -> server: one frame of sensor input
	TypePose   MessageType = "pose"   // server -> viewers and devices: model output
	TypeConfig MessageType = "config" // device or viewer -> server: partial tuning update
	TypePing   MessageType = "ping"
	TypePong   MessageType = "pong"
	TypeError  MessageType = "error" // server -> sender: message rejected
)

var errNoType = errors.New("missing type")

// Message is the envelope for every websocket frame. Data stays raw until
// the receiver knows which payload type to decode.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // unix ms, set by the sender
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage stamps a message with the current time. A nil data leaves
// the payload empty.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	msg := &Message{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	msg.Data = raw
	return msg, nil
}

// ParseData decodes the payload into v.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s message has no data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Bytes encodes the whole envelope.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes an envelope without touching its payload.
func ParseMessage(data []byte) (*Message, error) {
	msg := new(Message)
	err := json.Unmarshal(data, msg)
	if err == nil && msg.Type == "" {
		err = errNoType
	}
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return msg, nil
}

// SampleData is one frame of controller input for the named hand.
type SampleData struct {
	Hand string `json:"hand,omitempty"`
	armmodel.UpdateData
}

// PoseData is one frame of arm model output.
type PoseData struct {
	Hand string `json:"hand"`
	Tick uint64 `json:"tick"`
	armmodel.Pose
}

// ConfigData updates a hand's configuration. Only set fields change.
type ConfigData struct {
	Hand string `json:"hand,omitempty"`
	armmodel.TuningParams
}

// PingData starts a latency probe.
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData answers a ping, echoing its ID and timestamp.
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}

// ErrorData reports a rejected message back to its sender.
type ErrorData struct {
	Message string `json:"message"`
}
