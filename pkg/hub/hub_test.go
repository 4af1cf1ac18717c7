package hub

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func join(h *Hub, topic string, buf int) *Client {
	c := &Client{hub: h, topic: topic, send: make(chan Message, buf), reply: make(chan []byte, 1)}
	h.register <- c
	return c
}

func recv(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_TopicFilter(t *testing.T) {
	h, _ := startHub(t)
	all := join(h, "", 8)
	left := join(h, "left", 8)

	if err := h.BroadcastJSON("right", map[string]int{"tick": 1}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	h.BroadcastJSON("left", map[string]int{"tick": 2})

	m, _ := recv(t, all)
	if m.Topic != "right" || string(m.Data) != `{"tick":1}` {
		t.Errorf("first = %q %s", m.Topic, m.Data)
	}
	m, _ = recv(t, all)
	if m.Topic != "left" {
		t.Errorf("second topic = %q", m.Topic)
	}

	m, _ = recv(t, left)
	if m.Topic != "left" || string(m.Data) != `{"tick":2}` {
		t.Errorf("left viewer got %q %s", m.Topic, m.Data)
	}
	select {
	case m := <-left.send:
		t.Errorf("left viewer got extra %q", m.Topic)
	default:
	}

	waitFor(t, func() bool { return h.Stats().Delivered == 3 })
	if s := h.Stats(); s.Clients != 2 || s.Published != 2 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestHub_EvictsSlowViewer(t *testing.T) {
	h, _ := startHub(t)
	slow := join(h, "", 1)

	h.Broadcast(NewMessage("right", []byte("1")))
	h.Broadcast(NewMessage("right", []byte("2")))
	waitFor(t, func() bool { return h.Stats().Evicted == 1 })

	if m, ok := recv(t, slow); !ok || string(m.Data) != "1" {
		t.Fatalf("first = %s, %v", m.Data, ok)
	}
	if _, ok := recv(t, slow); ok {
		t.Error("queue should be closed after eviction")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", h.ClientCount())
	}
}

func TestHub_Unregister(t *testing.T) {
	h, _ := startHub(t)
	c := join(h, "", 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	c.leave()
	if _, ok := recv(t, c); ok {
		t.Error("queue should be closed after leaving")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", h.ClientCount())
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	c := join(h, "", 1)
	waitFor(t, h.IsRunning)

	cancel()
	if _, ok := recv(t, c); ok {
		t.Error("queue should be closed when the hub stops")
	}
	<-h.done
	if h.IsRunning() {
		t.Error("IsRunning after stop")
	}

	// late joiners and leavers must not block
	late := NewClient(h, nil, "left")
	if _, ok := <-late.send; ok {
		t.Error("late client queue should be closed")
	}
	late.leave()
}

func TestHub_BroadcastDropsWhenFull(t *testing.T) {
	h := New("idle") // not running, so nothing drains the queue
	for i := 0; i < cap(h.broadcast)+5; i++ {
		h.Broadcast(NewMessage("", nil))
	}
	if s := h.Stats(); s.Dropped != 5 || s.Published != uint64(cap(h.broadcast)+5) {
		t.Errorf("Stats = %+v", s)
	}
}
