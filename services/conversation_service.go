package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

const (
	StatusExisting = "existing"
	StatusCreated  = "created"
)

type InitiateRequest struct {
	RecipientID domain.UserID `json:"recipientId"`
}

type InitiateResult struct {
	RoomID domain.RoomID `json:"roomId"`
	Status string        `json:"status"`
}

type LastMessageView struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type ConversationView struct {
	RoomID      domain.RoomID    `json:"roomId"`
	OtherUser   domain.Profile   `json:"otherUser"`
	LastMessage *LastMessageView `json:"lastMessage,omitempty"`
}

// ConversationService manages private two-person rooms.
type ConversationService struct {
	rooms    repositories.IRoomRepository
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
	log      *slog.Logger
}

func NewConversationService(
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	log *slog.Logger,
) *ConversationService {
	return &ConversationService{rooms: rooms, messages: messages, users: users, log: log}
}

// Initiate returns the conversation between caller and recipient, creating it when needed.
func (s *ConversationService) Initiate(caller domain.UserID, req InitiateRequest) (InitiateResult, error) {
	if req.RecipientID <= 0 {
		return InitiateResult{}, fmt.Errorf("%w: recipientId is required", errors.ErrValidation)
	}
	if req.RecipientID == caller {
		return InitiateResult{}, fmt.Errorf("%w: cannot start a conversation with yourself", errors.ErrValidation)
	}

	room, found, err := s.rooms.FindConversation(caller, req.RecipientID)
	if err != nil {
		return InitiateResult{}, err
	}
	if found {
		return InitiateResult{RoomID: room.ID, Status: StatusExisting}, nil
	}

	me, err := s.users.GetUserByID(caller)
	if err != nil {
		return InitiateResult{}, err
	}
	recipient, err := s.users.GetUserByID(req.RecipientID)
	if err != nil {
		return InitiateResult{}, err
	}

	room, err = s.rooms.CreateConversation(caller, req.RecipientID,
		fmt.Sprintf("Chat between %s and %s", me.Username, recipient.Username))
	if err != nil {
		return InitiateResult{}, err
	}
	s.log.Info("Conversation created", "room_id", room.ID, "user_id", caller, "recipient_id", req.RecipientID)
	return InitiateResult{RoomID: room.ID, Status: StatusCreated}, nil
}

// List returns the caller's conversations, most recent activity first.
// Conversations without messages come last.
func (s *ConversationService) List(caller domain.UserID) ([]ConversationView, error) {
	roomIDs, err := s.rooms.RoomsOf(caller)
	if err != nil {
		return nil, err
	}

	conversations := make([]ConversationView, 0)
	for _, roomID := range roomIDs {
		view, ok, err := s.conversation(caller, roomID)
		if err != nil {
			return nil, err
		}
		if ok {
			conversations = append(conversations, view)
		}
	}

	slices.SortStableFunc(conversations, func(a, b ConversationView) int {
		switch {
		case a.LastMessage == nil && b.LastMessage == nil:
			return 0
		case a.LastMessage == nil:
			return 1
		case b.LastMessage == nil:
			return -1
		default:
			return b.LastMessage.CreatedAt.Compare(a.LastMessage.CreatedAt)
		}
	})
	return conversations, nil
}

func (s *ConversationService) conversation(caller domain.UserID, roomID domain.RoomID) (ConversationView, bool, error) {
	members, err := s.rooms.Members(roomID)
	if err != nil {
		return ConversationView{}, false, err
	}
	if len(members) != 2 || !slices.Contains(members, caller) {
		return ConversationView{}, false, nil
	}
	other := members[0]
	if other == caller {
		other = members[1]
	}

	// Only rooms registered as the pair's conversation count, not any private room of two
	room, found, err := s.rooms.FindConversation(caller, other)
	if err != nil || !found || room.ID != roomID {
		return ConversationView{}, false, err
	}

	user, err := s.users.GetUserByID(other)
	if errors.Is(err, errors.ErrNotFound) {
		return ConversationView{}, false, nil
	}
	if err != nil {
		return ConversationView{}, false, err
	}
	profile := user.Profile()
	profile.Email = ""

	view := ConversationView{RoomID: roomID, OtherUser: profile}
	last, ok, err := s.messages.LastMessage(roomID)
	if err != nil {
		return ConversationView{}, false, err
	}
	if ok {
		view.LastMessage = &LastMessageView{Content: last.Content, CreatedAt: last.CreatedAt}
	}
	return view, true, nil
}
