package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mchat/logger"
)

// Client is one authenticated connection. The user identity is set once at
// handshake and never changes. All writes go through the Send queue and a
// single writer goroutine: gorilla's WriteMessage must not be called
// concurrently.
type Client struct {
	ConnID string
	UserID string

	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connID, userID string, ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Client{
		ConnID: connID,
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue hands a frame to the writer queue without blocking. Returns false
// if the client is closed (broadcast to a closed connection is a no-op) or
// the queue is full (caller decides the slow-consumer policy).
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close is idempotent. Closing the socket unblocks the read loop; closing
// done stops the writer.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Client) Done() <-chan struct{} { return c.done }

// WritePump drains the send queue onto the socket and keeps the connection
// alive with pings. Runs as the connection's only writer; exits on Close or
// on the first write error.
func (c *Client) WritePump(writeWait, pingPeriod time.Duration) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debugf("[conn] write failed conn=%s user=%s err=%v", c.ConnID, c.UserID, err)
				return
			}
		case <-t.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debugf("[conn] ping failed conn=%s user=%s err=%v", c.ConnID, c.UserID, err)
				return
			}
		}
	}
}
