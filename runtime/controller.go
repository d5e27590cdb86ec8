package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
)

// Policy holds the tunable behavior of the controller.
type Policy struct {
	// ExcludeSenderOnSend keeps new_message away from its own sender.
	// Off by default: the sender receives the persisted copy like everyone else.
	ExcludeSenderOnSend bool
	MaxContentLength    int
}

type handlerFunc func(ctx context.Context, handle domain.Handle, data json.RawMessage) error

// Controller drives every connection through its lifecycle and translates socket
// events into registry, membership and persistence operations.
type Controller struct {
	log         *slog.Logger
	sessions    *SessionRegistry
	membership  *Membership
	broadcaster *Broadcaster
	transport   contract.Transport
	auth        contract.Authenticator
	store       contract.ChatStore
	censor      contract.Censor
	indexer     contract.MessageIndexer
	clock       clockwork.Clock
	metrics     *observability.Metrics
	policy      Policy
	handlers    map[string]handlerFunc
}

var _ contract.ConnectionHandler = (*Controller)(nil)

// NewController wires the controller and installs its eviction hook on the broadcaster.
// censor and indexer may be nil.
func NewController(log *slog.Logger, sessions *SessionRegistry, membership *Membership,
	broadcaster *Broadcaster, transport contract.Transport, auth contract.Authenticator,
	store contract.ChatStore, censor contract.Censor, indexer contract.MessageIndexer,
	clock clockwork.Clock, metrics *observability.Metrics, policy Policy) *Controller {
	c := &Controller{
		log:         log,
		sessions:    sessions,
		membership:  membership,
		broadcaster: broadcaster,
		transport:   transport,
		auth:        auth,
		store:       store,
		censor:      censor,
		indexer:     indexer,
		clock:       clock,
		metrics:     metrics,
		policy:      policy,
	}
	c.handlers = map[string]handlerFunc{
		event.JoinRoom:    c.handleJoin,
		event.LeaveRoom:   c.handleLeave,
		event.SendMessage: c.handleSend,
		event.Typing:      c.handleTyping,
		event.Ping:        c.handlePing,
	}
	broadcaster.OnEvict(c.announceLeft)
	return c
}

// Connect authenticates the handshake credential and registers the session.
// On failure the transport handle is closed and nothing is registered.
func (c *Controller) Connect(ctx context.Context, handle domain.Handle, hs contract.Handshake) error {
	token := hs.Token()
	if token == "" {
		c.reject(handle)
		return errors.ErrMissingCredential
	}
	userID, err := c.auth.Verify(ctx, token)
	if err != nil {
		c.reject(handle)
		if errors.Is(err, errors.ErrAuthentication) {
			return err
		}
		return fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	c.sessions.Register(handle, userID)
	c.metrics.Connections.Inc()
	c.log.Debug("Connection authenticated", "handle", handle, "user_id", userID)

	return c.unicast(ctx, handle, event.Connected, event.ConnectedPayload{UserID: userID})
}

// HandleEvent dispatches one inbound event. Any error goes back to the originating
// handle as an "error" event.
func (c *Controller) HandleEvent(ctx context.Context, handle domain.Handle, name string, data json.RawMessage) {
	handler, ok := c.handlers[name]
	var err error
	if !ok {
		err = fmt.Errorf("%w: %q", errors.ErrUnknownEvent, name)
	} else {
		err = handler(ctx, handle, data)
	}
	if err == nil {
		c.metrics.Events.WithLabelValues(name, "ok").Inc()
		return
	}
	if !ok {
		name = "unknown"
	}
	c.metrics.Events.WithLabelValues(name, errors.Code(err)).Inc()
	c.log.Debug("Event rejected", "handle", handle, "event", name, "error", err)
	_ = c.unicast(ctx, handle, event.Error, event.FromError(err))
}

// Join admits an authenticated connection into an existing room.
func (c *Controller) Join(ctx context.Context, handle domain.Handle, roomID domain.RoomID) error {
	conn, err := c.session(handle)
	if err != nil {
		return err
	}
	if !roomID.Valid() {
		return errors.ErrInvalidRoomID
	}
	userID := conn.UserID()
	if err := c.store.CanJoin(ctx, roomID, userID); err != nil {
		if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrAuthorization) {
			return err
		}
		return persistence(err)
	}

	joined := c.membership.Join(roomID, handle)
	// A disconnect may have closed the connection while the room was checked.
	if err := conn.Transition(domain.Joined); err != nil {
		if joined {
			c.membership.Leave(roomID, handle)
		}
		return errors.ErrConnectionClosed
	}

	roomName, err := c.store.GetRoomName(ctx, roomID)
	if err != nil {
		c.log.Debug("Room name unavailable", "room_id", roomID, "error", err)
	}
	if err := c.unicast(ctx, handle, event.JoinedRoom, event.RoomPresence{
		RoomID: roomID, UserID: userID, RoomName: roomName,
	}); err != nil {
		return nil
	}
	online := c.OnlineUsers(roomID)
	if err := c.unicast(ctx, handle, event.UsersOnline, event.UsersOnlinePayload{
		RoomID: roomID, UserIDs: online, Count: len(online),
	}); err != nil {
		return nil
	}
	if !joined {
		return nil
	}
	return c.broadcast(ctx, roomID, event.JoinedRoom, event.RoomPresence{RoomID: roomID, UserID: userID}, handle)
}

// Leave removes the connection from a room. The room does not need to exist anymore.
func (c *Controller) Leave(ctx context.Context, handle domain.Handle, roomID domain.RoomID) error {
	conn, err := c.session(handle)
	if err != nil {
		return err
	}
	if !roomID.Valid() {
		return errors.ErrInvalidRoomID
	}

	wasMember := c.membership.Leave(roomID, handle)
	if len(c.membership.RoomsOf(handle)) == 0 && conn.State() == domain.Joined {
		_ = conn.Transition(domain.Authenticated)
	}

	presence := event.RoomPresence{RoomID: roomID, UserID: conn.UserID()}
	if err := c.unicast(ctx, handle, event.LeftRoom, presence); err != nil {
		return nil
	}
	if !wasMember {
		return nil
	}
	return c.broadcast(ctx, roomID, event.LeftRoom, presence, handle)
}

// Submit persists a message exactly once and broadcasts the stored copy to the room.
func (c *Controller) Submit(ctx context.Context, handle domain.Handle, req event.SendMessageRequest) error {
	conn, err := c.session(handle)
	if err != nil {
		return err
	}
	if !req.RoomID.Valid() {
		return errors.ErrInvalidRoomID
	}
	if !c.membership.IsMember(req.RoomID, handle) {
		return fmt.Errorf("%w: room %d", errors.ErrNotMember, req.RoomID)
	}

	content := strings.TrimSpace(req.Content)
	attachment := strings.TrimSpace(req.AttachmentRef)
	if content == "" && attachment == "" {
		return errors.ErrEmptyMessage
	}
	if c.policy.MaxContentLength > 0 && utf8.RuneCountInString(content) > c.policy.MaxContentLength {
		return fmt.Errorf("%w: limit is %d characters", errors.ErrMessageTooLong, c.policy.MaxContentLength)
	}
	if c.censor != nil && content != "" {
		censored, found := c.censor.Censor(content)
		if len(found) > 0 {
			c.log.Info("Message censored", "room_id", req.RoomID, "user_id", conn.UserID(), "words", found)
		}
		content = censored
	}

	msg, err := c.store.CreateMessage(ctx, domain.NewMessage{
		RoomID:        req.RoomID,
		UserID:        conn.UserID(),
		Content:       content,
		AttachmentRef: attachment,
	})
	if err != nil {
		return persistence(err)
	}
	c.metrics.Messages.Inc()

	if c.indexer != nil {
		if err := c.indexer.Index(msg); err != nil {
			c.log.Warn("Message not indexed", "message_id", msg.ID, "error", err)
		}
	}

	exclude := domain.NoHandle
	if c.policy.ExcludeSenderOnSend {
		exclude = handle
	}
	return c.broadcast(ctx, msg.RoomID, event.NewMessage, event.FromMessage(msg), exclude)
}

// Typing relays a typing indicator to the other members of the room.
func (c *Controller) Typing(ctx context.Context, handle domain.Handle, req event.TypingRequest) error {
	conn, err := c.session(handle)
	if err != nil {
		return err
	}
	if !req.RoomID.Valid() {
		return errors.ErrInvalidRoomID
	}
	if !c.membership.IsMember(req.RoomID, handle) {
		return fmt.Errorf("%w: room %d", errors.ErrNotMember, req.RoomID)
	}
	return c.broadcast(ctx, req.RoomID, event.Typing, event.TypingPayload{
		RoomID: req.RoomID, UserID: conn.UserID(), Typing: req.Typing,
	}, handle)
}

func (c *Controller) Ping(ctx context.Context, handle domain.Handle) error {
	conn, err := c.session(handle)
	if err != nil {
		return err
	}
	_ = c.unicast(ctx, handle, event.Pong, event.PongPayload{
		UserID: conn.UserID(), ServerTimestamp: c.clock.Now().UTC(),
	})
	return nil
}

// Disconnect deregisters the handle and tells each of its rooms that it left.
// Calling it again for the same handle does nothing.
func (c *Controller) Disconnect(ctx context.Context, handle domain.Handle) {
	conn, registered := c.sessions.Remove(handle)
	rooms := c.membership.RemoveEverywhere(handle)
	if !registered && len(rooms) == 0 {
		return
	}

	var userID domain.UserID
	if registered {
		userID = conn.UserID()
		c.metrics.Connections.Dec()
	}
	c.log.Debug("Connection closed", "handle", handle, "user_id", userID, "rooms", len(rooms))
	c.announceLeft(ctx, handle, userID, rooms)
}

// OnlineUsers returns the distinct users with a live connection in the room, sorted.
func (c *Controller) OnlineUsers(roomID domain.RoomID) []domain.UserID {
	users := lo.FilterMap(c.membership.MembersOf(roomID), func(h domain.Handle, _ int) (domain.UserID, bool) {
		return c.sessions.Lookup(h)
	})
	users = lo.Uniq(users)
	slices.Sort(users)
	return users
}

func (c *Controller) announceLeft(ctx context.Context, handle domain.Handle, userID domain.UserID, rooms []domain.RoomID) {
	for _, roomID := range rooms {
		_ = c.broadcast(ctx, roomID, event.LeftRoom, event.RoomPresence{RoomID: roomID, UserID: userID}, handle)
	}
}

func (c *Controller) handleJoin(ctx context.Context, handle domain.Handle, data json.RawMessage) error {
	var req event.RoomRequest
	if err := event.Bind(data, &req); err != nil {
		return err
	}
	return c.Join(ctx, handle, req.RoomID)
}

func (c *Controller) handleLeave(ctx context.Context, handle domain.Handle, data json.RawMessage) error {
	var req event.RoomRequest
	if err := event.Bind(data, &req); err != nil {
		return err
	}
	return c.Leave(ctx, handle, req.RoomID)
}

func (c *Controller) handleSend(ctx context.Context, handle domain.Handle, data json.RawMessage) error {
	var req event.SendMessageRequest
	if err := event.Bind(data, &req); err != nil {
		return err
	}
	return c.Submit(ctx, handle, req)
}

func (c *Controller) handleTyping(ctx context.Context, handle domain.Handle, data json.RawMessage) error {
	var req event.TypingRequest
	if err := event.Bind(data, &req); err != nil {
		return err
	}
	return c.Typing(ctx, handle, req)
}

func (c *Controller) handlePing(ctx context.Context, handle domain.Handle, _ json.RawMessage) error {
	return c.Ping(ctx, handle)
}

// session returns the live connection of an authenticated handle.
func (c *Controller) session(handle domain.Handle) (*domain.Connection, error) {
	conn, ok := c.sessions.Connection(handle)
	if !ok || conn.State() == domain.Closed {
		return nil, errors.ErrNotAuthenticated
	}
	return conn, nil
}

func (c *Controller) reject(handle domain.Handle) {
	if err := c.transport.Close(handle); err != nil {
		c.log.Debug("Closing rejected handle", "handle", handle, "error", err)
	}
}

func (c *Controller) unicast(ctx context.Context, handle domain.Handle, name string, data any) error {
	frame, err := event.Encode(name, data)
	if err != nil {
		return err
	}
	return c.broadcaster.Unicast(ctx, handle, frame)
}

func (c *Controller) broadcast(ctx context.Context, roomID domain.RoomID, name string, data any, exclude domain.Handle) error {
	frame, err := event.Encode(name, data)
	if err != nil {
		return err
	}
	return c.broadcaster.Broadcast(ctx, roomID, frame, exclude)
}

func persistence(err error) error {
	if errors.Is(err, errors.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
}
