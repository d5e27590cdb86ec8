package internal

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestScan_Maps_Relay_Keys(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	users, err := repositories.NewUserRepository(db, clock)
	req.NoError(err)
	defer users.Close()
	rooms, err := repositories.NewRoomRepository(db, clock)
	req.NoError(err)
	defer rooms.Close()
	messages := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug), clock, 10)

	alice, err := users.CreateUser(domain.NewUser{Username: "alice", Email: "alice@example.com", PasswordHash: "x"})
	req.NoError(err)
	room, err := rooms.CreateRoom(domain.NewRoom{Name: "general", OwnerID: alice.ID}, alice.ID)
	req.NoError(err)
	_, err = messages.StoreMessage(domain.NewMessage{RoomID: room.ID, UserID: alice.ID, Content: "hello"})
	req.NoError(err)

	rows, err := Scan(db, "msg:", 0, nil)
	req.NoError(err)
	req.Len(rows, 1)
	req.Equal("MSG", rows[0].Type)
	req.Equal("09:30:00", rows[0].Timestamp)
	req.Equal("hello", rows[0].Detail)

	rows, err = Scan(db, "user:id:", 0, nil)
	req.NoError(err)
	req.Len(rows, 1)
	req.Equal("alice", rows[0].Detail)

	rows, err = Scan(db, "room:", 0, nil)
	req.NoError(err)
	req.Equal("general", rows[0].Detail)

	rows, err = Scan(db, "member:", 1, nil)
	req.NoError(err)
	req.Len(rows, 1)
	req.Equal("MEMBER_ROOM", rows[0].Type)
}

func TestDefaultMapper_Unknown_Key(t *testing.T) {
	row := DefaultMapper("seq:room", []byte{1, 2, 3})
	require.Equal(t, "SEQ", row.Type)
	require.Equal(t, "Size: 3 bytes", row.Detail)
}
