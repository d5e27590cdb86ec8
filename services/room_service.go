//go:generate go run go.uber.org/mock/mockgen -source=room_service.go -destination=../mocks/mock_room_service.go -package=mocks
package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Presence reports who is connected to a room right now.
type Presence interface {
	OnlineUsers(roomID domain.RoomID) []domain.UserID
}

// MessageSearcher is the full-text index over messages.
type MessageSearcher interface {
	Search(ctx context.Context, roomID domain.RoomID, query string, page int) ([]uuid.UUID, uint64, error)
}

type CreateRoomRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsPrivate   bool   `json:"isPrivate"`
}

type RoomView struct {
	ID          domain.RoomID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	IsPrivate   bool          `json:"isPrivate"`
	OwnerID     domain.UserID `json:"ownerId"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func toRoomView(r domain.Room) RoomView {
	return RoomView{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsPrivate:   r.IsPrivate,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt,
	}
}

// HistoryPage is one page of a room's history, newest first.
// NextCursor is absent once the oldest message has been returned.
type HistoryPage struct {
	Messages   []event.MessagePayload `json:"messages"`
	NextCursor *string                `json:"nextCursor,omitempty"`
}

type SearchPage struct {
	Messages []event.MessagePayload `json:"messages"`
	Total    uint64                 `json:"total"`
	Page     int                    `json:"page"`
}

// RoomService serves the REST side of rooms. Private rooms are only visible
// to their persistent members.
type RoomService struct {
	rooms    repositories.IRoomRepository
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
	searcher MessageSearcher
	presence Presence
	log      *slog.Logger
}

func NewRoomService(
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	searcher MessageSearcher,
	presence Presence,
	log *slog.Logger,
) *RoomService {
	return &RoomService{
		rooms:    rooms,
		messages: messages,
		users:    users,
		searcher: searcher,
		presence: presence,
		log:      log,
	}
}

// CreateRoom persists the room with its owner as first member.
func (s *RoomService) CreateRoom(owner domain.UserID, req CreateRoomRequest) (RoomView, error) {
	if err := auth.Validate(req); err != nil {
		return RoomView{}, err
	}
	room, err := s.rooms.CreateRoom(domain.NewRoom{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		OwnerID:     owner,
	}, owner)
	if err != nil {
		return RoomView{}, err
	}
	s.log.Info("Room created", "room_id", room.ID, "owner", owner, "private", room.IsPrivate)
	return toRoomView(room), nil
}

func (s *RoomService) ListPublicRooms() ([]RoomView, error) {
	rooms, err := s.rooms.ListPublicRooms()
	if err != nil {
		return nil, err
	}
	return lo.Map(rooms, func(r domain.Room, _ int) RoomView { return toRoomView(r) }), nil
}

func (s *RoomService) GetRoom(userID domain.UserID, roomID domain.RoomID) (RoomView, error) {
	room, err := s.readable(userID, roomID)
	if err != nil {
		return RoomView{}, err
	}
	return toRoomView(room), nil
}

// Members returns the public profiles of the room's persistent members.
func (s *RoomService) Members(userID domain.UserID, roomID domain.RoomID) ([]domain.Profile, error) {
	if _, err := s.readable(userID, roomID); err != nil {
		return nil, err
	}
	ids, err := s.rooms.Members(roomID)
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.Profile, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.GetUserByID(id)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p := user.Profile()
		p.Email = ""
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// JoinRoom makes the user a persistent member. Private rooms cannot be joined this way.
func (s *RoomService) JoinRoom(userID domain.UserID, roomID domain.RoomID) error {
	room, err := s.readable(userID, roomID)
	if err != nil {
		return err
	}
	if room.IsPrivate {
		// Already a member, readable() let us through
		return nil
	}
	return s.rooms.AddMember(roomID, userID)
}

func (s *RoomService) LeaveRoom(userID domain.UserID, roomID domain.RoomID) error {
	if !roomID.Valid() {
		return errors.ErrInvalidRoomID
	}
	if _, err := s.rooms.GetRoom(roomID); err != nil {
		return err
	}
	return s.rooms.RemoveMember(roomID, userID)
}

func (s *RoomService) History(userID domain.UserID, roomID domain.RoomID, cursor *string) (HistoryPage, error) {
	if _, err := s.readable(userID, roomID); err != nil {
		return HistoryPage{}, err
	}
	messages, next, err := s.messages.GetMessages(roomID, cursor)
	if err != nil {
		return HistoryPage{}, err
	}
	return HistoryPage{Messages: lo.Map(messages, toPayload), NextCursor: next}, nil
}

// Search runs a full-text query in one room. Hits whose message vanished are skipped.
func (s *RoomService) Search(ctx context.Context, userID domain.UserID, roomID domain.RoomID, query string, page int) (SearchPage, error) {
	if _, err := s.readable(userID, roomID); err != nil {
		return SearchPage{}, err
	}
	ids, total, err := s.searcher.Search(ctx, roomID, query, page)
	if err != nil {
		return SearchPage{}, err
	}
	messages := make([]event.MessagePayload, 0, len(ids))
	for _, id := range ids {
		msg, err := s.messages.GetMessage(id)
		if errors.Is(err, errors.ErrNotFound) {
			s.log.Debug("Indexed message not found", "message_id", id)
			continue
		}
		if err != nil {
			return SearchPage{}, err
		}
		messages = append(messages, event.FromMessage(msg))
	}
	return SearchPage{Messages: messages, Total: total, Page: page}, nil
}

func (s *RoomService) Online(userID domain.UserID, roomID domain.RoomID) (event.UsersOnlinePayload, error) {
	if _, err := s.readable(userID, roomID); err != nil {
		return event.UsersOnlinePayload{}, err
	}
	online := s.presence.OnlineUsers(roomID)
	return event.UsersOnlinePayload{RoomID: roomID, UserIDs: online, Count: len(online)}, nil
}

func (s *RoomService) readable(userID domain.UserID, roomID domain.RoomID) (domain.Room, error) {
	if !roomID.Valid() {
		return domain.Room{}, errors.ErrInvalidRoomID
	}
	room, err := s.rooms.GetRoom(roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !room.IsPrivate {
		return room, nil
	}
	member, err := s.rooms.IsMember(roomID, userID)
	if err != nil {
		return domain.Room{}, err
	}
	if !member {
		return domain.Room{}, errors.ErrAccessDenied
	}
	return room, nil
}

func toPayload(m domain.Message, _ int) event.MessagePayload {
	return event.FromMessage(m)
}
