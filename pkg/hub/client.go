package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-armmodel/pkg/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

// Client is one viewer connection.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	topic string
	send  chan Message // closed by the hub
	reply chan []byte  // direct answers, owned by the client
}

// NewClient creates a client subscribed to topic ("" for every hand) and
// registers it with the hub. If the hub has stopped the client's queue is
// closed immediately and Run returns at once.
func NewClient(h *Hub, conn *websocket.Conn, topic string) *Client {
	c := &Client{
		hub:   h,
		conn:  conn,
		topic: topic,
		send:  make(chan Message, sendBuffer),
		reply: make(chan []byte, 4),
	}
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
	return c
}

// Run starts the write pump and blocks reading until the connection
// closes. Call it from the websocket handler.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump detects disconnection and answers protocol pings.
func (c *Client) readPump() {
	defer func() {
		c.leave()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := protocol.ParseMessage(data)
		if err != nil || msg.Type != protocol.TypePing {
			continue
		}
		ping, err := msg.GetPingData()
		if err != nil {
			continue
		}
		pong, err := protocol.NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli())
		if err != nil {
			continue
		}
		b, err := pong.Bytes()
		if err != nil {
			continue
		}
		select {
		case c.reply <- b:
		default:
		}
	}
}

// writePump is the only goroutine writing to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				return
			}

		case b := <-c.reply:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
