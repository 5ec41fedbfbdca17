package transport

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/timzifer/microdash/render"
)

const (
	sendBacklog  = 64
	writeTimeout = 10 * time.Second
)

// wsConn adapts one websocket connection to the session transport. Frames
// are marshalled on the tick goroutine and handed to a per-connection writer,
// so a slow client never stalls the tick.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn: conn,
		send: make(chan []byte, sendBacklog),
	}
	go c.writePump()
	return c
}

func (c *wsConn) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *wsConn) SendBootstrap(doc string) error {
	return c.push(Frame{Type: FrameBootstrap, Markup: doc})
}

func (c *wsConn) SendPatch(p render.Patch) error {
	widget := int(p.Widget)
	return c.push(Frame{Type: FramePatch, Widget: &widget, Markup: p.Fragment})
}

func (c *wsConn) push(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("client send queue full")
	}
}

// Close stops the writer; the pump closes the underlying connection.
func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.send) })
	return nil
}
