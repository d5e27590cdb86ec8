package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"log/slog"
)

// EvictHook is told about a handle evicted after a failed delivery,
// with the rooms it was removed from.
type EvictHook func(ctx context.Context, handle domain.Handle, userID domain.UserID, rooms []domain.RoomID)

// Broadcaster fans a payload out to the live members of a room.
// Members are snapshotted under the membership lock and sent to outside of it.
type Broadcaster struct {
	log        *slog.Logger
	sessions   *SessionRegistry
	membership *Membership
	transport  contract.Transport
	metrics    *observability.Metrics
	onEvict    EvictHook
}

func NewBroadcaster(
	log *slog.Logger,
	sessions *SessionRegistry,
	membership *Membership,
	transport contract.Transport,
	metrics *observability.Metrics,
) *Broadcaster {
	return &Broadcaster{
		log:        log,
		sessions:   sessions,
		membership: membership,
		transport:  transport,
		metrics:    metrics,
	}
}

// OnEvict installs the hook called after each eviction. Not safe to call once broadcasting started.
func (b *Broadcaster) OnEvict(hook EvictHook) {
	b.onEvict = hook
}

// Broadcast sends payload to every member of the room except exclude.
// A failing member is evicted and never stops the loop; delivery errors are not returned.
func (b *Broadcaster) Broadcast(ctx context.Context, roomID domain.RoomID, payload []byte, exclude domain.Handle) error {
	if !roomID.Valid() {
		return errors.ErrInvalidRoomID
	}
	for _, handle := range b.membership.MembersOf(roomID) {
		if handle == exclude {
			continue
		}
		b.deliver(ctx, handle, payload)
	}
	return nil
}

// Unicast sends payload to a single handle. On failure the handle is evicted and the error returned.
func (b *Broadcaster) Unicast(ctx context.Context, handle domain.Handle, payload []byte) error {
	return b.deliver(ctx, handle, payload)
}

func (b *Broadcaster) deliver(ctx context.Context, handle domain.Handle, payload []byte) error {
	if err := b.transport.Send(handle, payload); err != nil {
		b.metrics.Deliveries.WithLabelValues("failed").Inc()
		b.log.Debug("Delivery failed, evicting handle", "handle", handle, "error", err)
		b.Evict(ctx, handle)
		return err
	}
	b.metrics.Deliveries.WithLabelValues("ok").Inc()
	return nil
}

// Evict removes the handle from the session registry and from every room, then closes it.
// The session goes first: once its connection is Closed a concurrent join undoes itself.
// Evicting an unknown handle only closes the transport side.
func (b *Broadcaster) Evict(ctx context.Context, handle domain.Handle) {
	conn, registered := b.sessions.Remove(handle)
	rooms := b.membership.RemoveEverywhere(handle)
	if err := b.transport.Close(handle); err != nil {
		b.log.Debug("Closing evicted handle", "handle", handle, "error", err)
	}
	if !registered && len(rooms) == 0 {
		return
	}

	var userID domain.UserID
	if registered {
		userID = conn.UserID()
		b.metrics.Connections.Dec()
	}
	b.metrics.Evictions.Inc()
	b.log.Info("Handle evicted", "handle", handle, "user_id", userID, "rooms", len(rooms))

	if b.onEvict != nil {
		b.onEvict(ctx, handle, userID, rooms)
	}
}
