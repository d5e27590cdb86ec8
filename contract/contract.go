//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"strings"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging during supervision, so workers don't have to name themselves.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Authenticator resolves a bearer credential to a user id.
type Authenticator interface {
	Verify(ctx context.Context, token string) (domain.UserID, error)
}

// ChatStore is the persistence surface the connection controller depends on.
type ChatStore interface {
	// CanJoin fails with a not_found error for unknown rooms and an authorization
	// error when the room is private and the user is not one of its members.
	CanJoin(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	CreateMessage(ctx context.Context, msg domain.NewMessage) (domain.Message, error)
	GetRoomName(ctx context.Context, roomID domain.RoomID) (string, error)
}

// Transport delivers frames to live connections.
// Send must not block: a full or closed outbound buffer is reported as an error.
type Transport interface {
	Send(handle domain.Handle, payload []byte) error
	Close(handle domain.Handle) error
}

// ConnectionHandler receives the inbound callbacks of the transport.
type ConnectionHandler interface {
	Connect(ctx context.Context, handle domain.Handle, hs Handshake) error
	HandleEvent(ctx context.Context, handle domain.Handle, name string, data json.RawMessage)
	Disconnect(ctx context.Context, handle domain.Handle)
}

// Censor masks forbidden words and reports which ones were found.
type Censor interface {
	Censor(content string) (string, []string)
}

type MessageIndexer interface {
	Index(msg domain.Message) error
}

// Handshake carries the upgrade request data needed to authenticate a connection.
type Handshake struct {
	Header http.Header
	Query  url.Values
}

// Token returns the bearer credential, from the Authorization header first
// and the "token" query parameter otherwise.
func (h Handshake) Token() string {
	if authz := h.Header.Get("Authorization"); authz != "" {
		if token, ok := strings.CutPrefix(authz, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(h.Query.Get("token"))
}
