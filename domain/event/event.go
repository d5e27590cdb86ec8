package event

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Inbound event names.
const (
	JoinRoom    = "join_room"
	LeaveRoom   = "leave_room"
	SendMessage = "send_message"
	Typing      = "typing"
	Ping        = "ping"
)

// Outbound event names. "typing" is shared with the inbound side.
const (
	Connected   = "connected"
	JoinedRoom  = "joined_room"
	LeftRoom    = "left_room"
	UsersOnline = "users_online"
	NewMessage  = "new_message"
	Pong        = "pong"
	Error       = "error"
)

// Envelope is one JSON text frame on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode parses a raw frame into its envelope. The payload is left raw for the handler.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", errors.ErrMalformedEvent)
	}
	return env, nil
}

// Encode wraps data into an envelope frame.
func Encode(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: raw})
}

// Bind unmarshals an event payload into dst. An absent payload leaves dst untouched.
func Bind(data json.RawMessage, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	return nil
}

type RoomRequest struct {
	RoomID domain.RoomID `json:"roomId"`
}

type SendMessageRequest struct {
	RoomID        domain.RoomID `json:"roomId"`
	Content       string        `json:"content"`
	AttachmentRef string        `json:"attachmentRef,omitempty"`
}

type TypingRequest struct {
	RoomID domain.RoomID `json:"roomId"`
	Typing bool          `json:"typing"`
}

type ConnectedPayload struct {
	UserID domain.UserID `json:"userId"`
}

type RoomPresence struct {
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	RoomName string        `json:"roomName,omitempty"`
}

type UsersOnlinePayload struct {
	RoomID  domain.RoomID   `json:"roomId"`
	UserIDs []domain.UserID `json:"userIds"`
	Count   int             `json:"count"`
}

type MessagePayload struct {
	ID              uuid.UUID     `json:"id"`
	RoomID          domain.RoomID `json:"roomId"`
	UserID          domain.UserID `json:"userId"`
	Content         string        `json:"content"`
	ServerTimestamp time.Time     `json:"serverTimestamp"`
	AttachmentRef   string        `json:"attachmentRef,omitempty"`
}

func FromMessage(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:              m.ID,
		RoomID:          m.RoomID,
		UserID:          m.UserID,
		Content:         m.Content,
		ServerTimestamp: m.CreatedAt,
		AttachmentRef:   m.AttachmentRef,
	}
}

type TypingPayload struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
	Typing bool          `json:"typing"`
}

type PongPayload struct {
	UserID          domain.UserID `json:"userId"`
	ServerTimestamp time.Time     `json:"serverTimestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FromError builds the payload of an "error" event. Internal errors are not described to clients.
func FromError(err error) ErrorPayload {
	code := errors.Code(err)
	if code == "internal" {
		return ErrorPayload{Code: code, Message: "internal error"}
	}
	return ErrorPayload{Code: code, Message: err.Error()}
}
