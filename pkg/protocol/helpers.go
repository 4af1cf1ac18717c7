package protocol

import (
	"github.com/teslashibe/go-armmodel/pkg/armmodel"
)

// NewSampleMessage creates a sample message
func NewSampleMessage(hand string, data armmodel.UpdateData) (*Message, error) {
	return NewMessage(TypeSample, SampleData{Hand: hand, UpdateData: data})
}

// NewPoseMessage creates a pose message
func NewPoseMessage(hand string, tick uint64, pose armmodel.Pose) (*Message, error) {
	return NewMessage(TypePose, PoseData{Hand: hand, Tick: tick, Pose: pose})
}

// NewConfigMessage creates a configuration update message
func NewConfigMessage(hand string, params armmodel.TuningParams) (*Message, error) {
	return NewMessage(TypeConfig, ConfigData{Hand: hand, TuningParams: params})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: ts})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// NewErrorMessage creates an error message
func NewErrorMessage(msg string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: msg})
}

// GetSampleData extracts sample data from a message
func (m *Message) GetSampleData() (*SampleData, error) {
	// fields missing from a partial sample fall back to a level,
	// connected controller
	data := SampleData{UpdateData: armmodel.RestingSample(0)}
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPoseData extracts pose data from a message
func (m *Message) GetPoseData() (*PoseData, error) {
	var data PoseData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetConfigData extracts configuration data from a message
func (m *Message) GetConfigData() (*ConfigData, error) {
	var data ConfigData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
