//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type IMessageRepository interface {
	StoreMessage(message domain.NewMessage) (domain.Message, error)
	GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	GetMessage(id uuid.UUID) (domain.Message, error)
	LastMessage(roomID domain.RoomID) (domain.Message, bool, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	clock         clockwork.Clock
	limitMessages int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, clock clockwork.Clock, limitMessages int) MessageRepository {
	return MessageRepository{db: db, log: log, clock: clock, limitMessages: limitMessages}
}

type diskMessage struct {
	ID            uuid.UUID `json:"id"`
	RoomID        int64     `json:"room_id"`
	UserID        int64     `json:"user_id"`
	Content       string    `json:"content"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
	At            time.Time `json:"at"`
}

func messagePrefix(roomID domain.RoomID) string {
	return fmt.Sprintf("msg:%d:", roomID)
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messagePrefix(m.RoomID), m.CreatedAt.UnixNano(), m.ID))
}

func messageIDKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

// StoreMessage assigns the id and server timestamp, then persists the message.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" so that a prefix scan
// returns a room's messages in chronological order, the uuid breaking ties.
// "msgid:{uuid}" points back to that key.
func (m MessageRepository) StoreMessage(message domain.NewMessage) (domain.Message, error) {
	stored := domain.Message{
		ID:            uuid.New(),
		RoomID:        message.RoomID,
		UserID:        message.UserID,
		Content:       message.Content,
		AttachmentRef: message.AttachmentRef,
		CreatedAt:     m.clock.Now().UTC(),
	}
	key := messageKey(stored)
	err := m.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, key, fromMessage(stored)); err != nil {
			return err
		}
		return txn.Set(messageIDKey(stored.ID), key)
	})
	if err != nil {
		return domain.Message{}, translate(err, errors.ErrRoomNotFound)
	}
	return stored, nil
}

// GetMessages pages through a room's history, newest first.
// The returned cursor is the key suffix of the last message read; it is nil once
// the history is exhausted.
func (m MessageRepository) GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	messages := make([]domain.Message, 0)
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := messagePrefix(roomID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seeking past the largest possible timestamp starts from the newest message
		seekKey := append([]byte(prefixStr), []byte("9999999999999999999")...)
		if cursor != nil {
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages > 0 && len(messages) == m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", m.limitMessages))
				return nil
			}
			item := it.Item()
			var dm diskMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			}); err != nil {
				return err
			}
			lastKey = string(item.Key()[len(prefixStr):])
			messages = append(messages, toMessage(dm))
		}
		// Reached the oldest message
		lastKey = ""
		return nil
	})
	if err != nil {
		return nil, nil, translate(err, errors.ErrRoomNotFound)
	}
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

func (m MessageRepository) GetMessage(id uuid.UUID) (domain.Message, error) {
	var dm diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIDKey(id))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, key, &dm)
	})
	if err != nil {
		return domain.Message{}, translate(err, fmt.Errorf("%w: message %s", errors.ErrNotFound, id))
	}
	return toMessage(dm), nil
}

// LastMessage returns the newest message of the room, if there is one.
func (m MessageRepository) LastMessage(roomID domain.RoomID) (domain.Message, bool, error) {
	var dm diskMessage
	var found bool
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix(roomID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchSize = 1
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append([]byte(messagePrefix(roomID)), []byte("9999999999999999999")...))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &dm)
		})
	})
	if err != nil {
		return domain.Message{}, false, translate(err, errors.ErrRoomNotFound)
	}
	return toMessage(dm), found, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:            message.ID,
		RoomID:        int64(message.RoomID),
		UserID:        int64(message.UserID),
		Content:       message.Content,
		AttachmentRef: message.AttachmentRef,
		At:            message.CreatedAt,
	}
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:            dm.ID,
		RoomID:        domain.RoomID(dm.RoomID),
		UserID:        domain.UserID(dm.UserID),
		Content:       dm.Content,
		AttachmentRef: dm.AttachmentRef,
		CreatedAt:     dm.At.UTC(),
	}
}
