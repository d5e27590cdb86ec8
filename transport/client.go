package transport

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// client is one upgraded socket. Frames queued on send are written by writePump only,
// gorilla connections supporting a single concurrent writer.
type client struct {
	handle    domain.Handle
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter

	// Sent in the close frame. Set before writePump starts.
	closeCode int
	closeText string
}

func newClient(handle domain.Handle, conn *websocket.Conn, cfg Config) *client {
	return &client{
		handle:    handle,
		conn:      conn,
		send:      make(chan []byte, max(cfg.SendBufferSize, 1)),
		done:      make(chan struct{}),
		limiter:   rate.NewLimiter(rate.Every(cfg.RateInterval), cfg.RateBurst),
		closeCode: websocket.CloseNormalClosure,
	}
}

// enqueue never blocks: a full buffer means the peer cannot keep up.
func (c *client) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
		return errors.ErrSendBufferFull
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump drains the send queue to the socket and keeps the peer alive with pings.
// Once closed, it flushes what is already queued, sends a close frame and closes the
// socket, which in turn ends the read loop.
func (c *client) writePump(cfg Config) {
	ticker := time.NewTicker(cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.write(cfg, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.flush(cfg)
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeText))
			return
		}
	}
}

func (c *client) flush(cfg Config) {
	for {
		select {
		case payload := <-c.send:
			if err := c.write(cfg, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(cfg Config, payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
