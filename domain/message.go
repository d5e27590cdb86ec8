// Package domain contains core concepts of the chat system.
// This file defines persisted chat messages.
// Messages are immutable once persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a persisted chat message, carrying the server-assigned id and timestamp.
type Message struct {
	ID            uuid.UUID
	RoomID        RoomID
	UserID        UserID
	Content       string
	AttachmentRef string
	CreatedAt     time.Time
}

// NewMessage is a submission accepted by the controller, not yet persisted.
type NewMessage struct {
	RoomID        RoomID
	UserID        UserID
	Content       string
	AttachmentRef string
}

// HasAttachment reports whether the message references an uploaded file.
func (m Message) HasAttachment() bool {
	return m.AttachmentRef != ""
}
