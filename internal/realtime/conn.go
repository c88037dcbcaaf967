package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxFrameSize   = 64 * 1024
	sendBufferSize = 64
)

// conn is one joined socket.
type conn struct {
	id       string
	identity string
	room     string
	ws       *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func newConn(id, identity string, ws *websocket.Conn) *conn {
	return &conn{
		id:       id,
		identity: identity,
		room:     RoomFor(identity),
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// enqueue never blocks; it reports false when the queue is full or the
// connection is gone.
func (c *conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close tears the socket down once. code is sent as a close frame when
// non-zero.
func (c *conn) close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		if code != 0 {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		}
		_ = c.ws.Close()
	})
}

// writePump is the only writer after the handshake.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close(0, "")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close(0, "")
				return
			}
		}
	}
}

// readPump drains inbound frames until the peer goes away. Clients have
// nothing to say after connect; frames are read only to process control
// messages and detect disconnects.
func (c *conn) readPump() {
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}
