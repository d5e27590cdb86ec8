package event

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	req := require.New(t)

	env, err := Decode([]byte(`{"event":"join_room","data":{"roomId":42}}`))
	req.NoError(err)
	req.Equal(JoinRoom, env.Event)

	var room RoomRequest
	req.NoError(Bind(env.Data, &room))
	req.Equal(domain.RoomID(42), room.RoomID)

	_, err = Decode([]byte(`{"data":{}}`))
	req.ErrorIs(err, errors.ErrMalformedEvent)

	_, err = Decode([]byte(`not json`))
	req.ErrorIs(err, errors.ErrValidation)
}

func TestBind_ToleratesMissingPayload(t *testing.T) {
	req := require.New(t)
	env, err := Decode([]byte(`{"event":"ping"}`))
	req.NoError(err)

	var dst struct{}
	req.NoError(Bind(env.Data, &dst))
	req.ErrorIs(Bind([]byte(`{"roomId":"abc"}`), &RoomRequest{}), errors.ErrMalformedEvent)
}

func TestEncode_NewMessage(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.MustParse("7b0a2a52-9a3f-4d4b-9a53-4cbf1b1ad8f1")

	frame, err := Encode(NewMessage, FromMessage(domain.Message{
		ID: id, RoomID: 42, UserID: 7, Content: "hi", CreatedAt: at,
	}))
	req.NoError(err)
	req.JSONEq(`{"event":"new_message","data":{
		"id":"7b0a2a52-9a3f-4d4b-9a53-4cbf1b1ad8f1",
		"roomId":42,"userId":7,"content":"hi",
		"serverTimestamp":"2024-05-01T12:00:00Z"}}`, string(frame))
}

func TestFromError(t *testing.T) {
	req := require.New(t)

	p := FromError(errors.ErrNotMember)
	req.Equal("authorization", p.Code)
	req.Contains(p.Message, "has not joined")

	p = FromError(fmt.Errorf("disk on fire"))
	req.Equal(ErrorPayload{Code: "internal", Message: "internal error"}, p)
}
