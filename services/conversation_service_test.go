package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type conversationFixture struct {
	clock    *clockwork.FakeClock
	users    *repositories.UserRepository
	rooms    *repositories.RoomRepository
	messages repositories.MessageRepository
	svc      *ConversationService
}

func newConversationFixture(t *testing.T) conversationFixture {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	users, err := repositories.NewUserRepository(db, clock)
	req.NoError(err)
	rooms, err := repositories.NewRoomRepository(db, clock)
	req.NoError(err)
	t.Cleanup(func() {
		_ = users.Close()
		_ = rooms.Close()
		_ = db.Close()
	})

	messages := repositories.NewMessageRepository(db, log, clock, 50)
	return conversationFixture{
		clock:    clock,
		users:    users,
		rooms:    rooms,
		messages: messages,
		svc:      NewConversationService(rooms, messages, users, log),
	}
}

func (f conversationFixture) user(t *testing.T, name string) domain.User {
	user, err := f.users.CreateUser(domain.NewUser{Username: name, Email: name + "@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	return user
}

func TestConversationService_Initiate(t *testing.T) {
	req := require.New(t)
	f := newConversationFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	created, err := f.svc.Initiate(alice.ID, InitiateRequest{RecipientID: bob.ID})
	req.NoError(err)
	req.Equal(StatusCreated, created.Status)

	existing, err := f.svc.Initiate(bob.ID, InitiateRequest{RecipientID: alice.ID})
	req.NoError(err)
	req.Equal(StatusExisting, existing.Status)
	req.Equal(created.RoomID, existing.RoomID)

	room, err := f.rooms.GetRoom(created.RoomID)
	req.NoError(err)
	req.True(room.IsPrivate)
	req.Equal("Chat between alice and bob", room.Name)

	_, err = f.svc.Initiate(alice.ID, InitiateRequest{RecipientID: alice.ID})
	req.ErrorIs(err, errors.ErrValidation)
	_, err = f.svc.Initiate(alice.ID, InitiateRequest{})
	req.ErrorIs(err, errors.ErrValidation)
	_, err = f.svc.Initiate(alice.ID, InitiateRequest{RecipientID: 999})
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestConversationService_List_Sorted_By_Last_Message(t *testing.T) {
	req := require.New(t)
	f := newConversationFixture(t)
	alice, bob, carol, dave := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol"), f.user(t, "dave")

	withBob, err := f.svc.Initiate(alice.ID, InitiateRequest{RecipientID: bob.ID})
	req.NoError(err)
	withCarol, err := f.svc.Initiate(alice.ID, InitiateRequest{RecipientID: carol.ID})
	req.NoError(err)
	withDave, err := f.svc.Initiate(alice.ID, InitiateRequest{RecipientID: dave.ID})
	req.NoError(err)

	// A public room alice belongs to is not a conversation
	_, err = f.rooms.CreateRoom(domain.NewRoom{Name: "general", OwnerID: alice.ID}, alice.ID, bob.ID)
	req.NoError(err)

	_, err = f.messages.StoreMessage(domain.NewMessage{RoomID: withBob.RoomID, UserID: bob.ID, Content: "old"})
	req.NoError(err)
	f.clock.Advance(time.Minute)
	_, err = f.messages.StoreMessage(domain.NewMessage{RoomID: withCarol.RoomID, UserID: carol.ID, Content: "new"})
	req.NoError(err)

	conversations, err := f.svc.List(alice.ID)
	req.NoError(err)
	req.Len(conversations, 3)

	req.Equal(withCarol.RoomID, conversations[0].RoomID)
	req.Equal("carol", conversations[0].OtherUser.Username)
	req.Empty(conversations[0].OtherUser.Email)
	req.Equal("new", conversations[0].LastMessage.Content)

	req.Equal(withBob.RoomID, conversations[1].RoomID)
	req.Equal("old", conversations[1].LastMessage.Content)

	req.Equal(withDave.RoomID, conversations[2].RoomID)
	req.Nil(conversations[2].LastMessage)
}
