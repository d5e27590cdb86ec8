package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
)

// ChatStore is the persistence surface of the connection controller, backed by the
// room and message repositories.
type ChatStore struct {
	rooms    IRoomRepository
	messages IMessageRepository
}

var _ contract.ChatStore = ChatStore{}

func NewChatStore(rooms IRoomRepository, messages IMessageRepository) ChatStore {
	return ChatStore{rooms: rooms, messages: messages}
}

func (s ChatStore) CanJoin(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	room, err := s.rooms.GetRoom(roomID)
	if err != nil {
		return err
	}
	if !room.IsPrivate {
		return nil
	}
	member, err := s.rooms.IsMember(roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrAccessDenied
	}
	return nil
}

func (s ChatStore) CreateMessage(ctx context.Context, msg domain.NewMessage) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	return s.messages.StoreMessage(msg)
}

func (s ChatStore) GetRoomName(ctx context.Context, roomID domain.RoomID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	room, err := s.rooms.GetRoom(roomID)
	if err != nil {
		return "", err
	}
	return room.Name, nil
}
