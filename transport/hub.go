// Package transport carries event frames over WebSocket connections.
package transport

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxCloseReason = 120

type Config struct {
	SendBufferSize int
	MaxFrameSize   int64
	WriteWait      time.Duration
	PongWait       time.Duration
	RateBurst      int
	RateInterval   time.Duration
	AllowedOrigins []string
}

// PingPeriod must stay below PongWait so a healthy peer never times out.
func (c Config) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// Hub owns every open socket and implements contract.Transport over them.
// The connection handler is bound after construction since it needs the hub itself.
type Hub struct {
	log      *slog.Logger
	cfg      Config
	upgrader websocket.Upgrader
	handler  contract.ConnectionHandler

	mu      sync.RWMutex
	clients map[domain.Handle]*client
	wg      sync.WaitGroup
}

var _ contract.Transport = (*Hub)(nil)

func NewHub(log *slog.Logger, cfg Config) *Hub {
	h := &Hub{
		log:     log,
		cfg:     cfg,
		clients: make(map[domain.Handle]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) Bind(handler contract.ConnectionHandler) {
	h.handler = handler
}

// Send queues payload for the handle without blocking.
func (h *Hub) Send(handle domain.Handle, payload []byte) error {
	c, ok := h.client(handle)
	if !ok {
		return errors.ErrUnknownHandle
	}
	return c.enqueue(payload)
}

// Close starts the shutdown of a socket. Frames already queued are still written.
func (h *Hub) Close(handle domain.Handle) error {
	c, ok := h.client(handle)
	if !ok {
		return errors.ErrUnknownHandle
	}
	c.close()
	return nil
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every socket and waits for their loops to end, or for ctx.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	for _, c := range h.clients {
		c.close()
	}
	h.mu.RUnlock()

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the request and runs the connection until either side closes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied with an HTTP error
		h.log.Debug("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	handle := domain.Handle(uuid.NewString())
	c := newClient(handle, conn, h.cfg)
	h.mu.Lock()
	h.clients[handle] = c
	h.mu.Unlock()
	h.wg.Add(1)
	defer h.wg.Done()

	// The request context ends with the handler, the connection outlives nothing else
	ctx := context.WithoutCancel(r.Context())
	hs := contract.Handshake{Header: r.Header, Query: r.URL.Query()}

	// Frames queued by Connect wait in the buffer until the write pump starts
	if err := h.handler.Connect(ctx, handle, hs); err != nil {
		h.log.Debug("Connection refused", "handle", handle, "error", err)
		c.closeCode = websocket.ClosePolicyViolation
		c.closeText = closeReason(err)
		c.close()
		go c.writePump(h.cfg)
		h.readUntilClosed(c)
		h.remove(handle)
		return
	}

	go c.writePump(h.cfg)
	h.readPump(ctx, c)
	h.handler.Disconnect(ctx, handle)
	h.remove(handle)
}

// readPump decodes inbound frames and hands them to the handler in arrival order.
func (h *Hub) readPump(ctx context.Context, c *client) {
	c.conn.SetReadLimit(h.cfg.MaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.closed() {
				h.log.Debug("Connection lost", "handle", c.handle, "error", err)
			}
			c.close()
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))

		if !c.limiter.Allow() {
			h.reply(c.handle, errors.ErrRateLimited)
			continue
		}
		if kind != websocket.TextMessage {
			h.reply(c.handle, errors.ErrMalformedEvent)
			continue
		}
		env, err := event.Decode(frame)
		if err != nil {
			h.reply(c.handle, err)
			continue
		}
		h.handler.HandleEvent(ctx, c.handle, env.Event, env.Data)
	}
}

// readUntilClosed lets the write side finish its close handshake.
func (h *Hub) readUntilClosed(c *client) {
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.WriteWait))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// reply sends a framing error straight to the peer; those never reach the handler.
func (h *Hub) reply(handle domain.Handle, err error) {
	frame, encErr := event.Encode(event.Error, event.FromError(err))
	if encErr != nil {
		return
	}
	if sendErr := h.Send(handle, frame); sendErr != nil {
		h.log.Debug("Unable to report error", "handle", handle, "error", sendErr)
	}
}

// closeReason fits the error in a close frame, whose payload is capped at 125 bytes.
func closeReason(err error) string {
	payload := event.FromError(err)
	reason := payload.Code + ": " + payload.Message
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	return reason
}

func (h *Hub) client(handle domain.Handle) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[handle]
	return c, ok
}

func (h *Hub) remove(handle domain.Handle) {
	h.mu.Lock()
	delete(h.clients, handle)
	h.mu.Unlock()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Non-browser clients send no Origin
	if origin == "" || slices.Contains(h.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.ContainsFunc(h.cfg.AllowedOrigins, func(allowed string) bool {
		return strings.EqualFold(strings.TrimRight(allowed, "/"), origin)
	})
}
