// Package hub fans pose updates out to websocket viewers using a single
// goroutine that owns the client set.
package hub

// Message is one pre-encoded frame queued for viewers.
type Message struct {
	// Topic is the hand name the frame belongs to. Viewers subscribed to
	// a topic only receive its frames.
	Topic string
	Data  []byte
}

// NewMessage creates a message from pre-encoded JSON bytes.
func NewMessage(topic string, data []byte) Message {
	return Message{Topic: topic, Data: data}
}
