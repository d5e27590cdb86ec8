package httpserver

import (
	"bytes"
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"chat-relay/services"
	"chat-relay/storage"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const password = "ComplexPass123!"

type stubPresence map[domain.RoomID][]domain.UserID

func (p stubPresence) OnlineUsers(roomID domain.RoomID) []domain.UserID {
	return p[roomID]
}

type apiFixture struct {
	srv      *httptest.Server
	messages repositories.MessageRepository
	index    *repositories.MessageIndex
	presence stubPresence
}

func newAPIFixture(t *testing.T, cfg Config) apiFixture {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	users, err := repositories.NewUserRepository(db, clock)
	req.NoError(err)
	rooms, err := repositories.NewRoomRepository(db, clock)
	req.NoError(err)
	t.Cleanup(func() {
		_ = users.Close()
		_ = rooms.Close()
		_ = writer.Close()
		_ = db.Close()
	})

	messages := repositories.NewMessageRepository(db, log, clock, 50)
	index := repositories.NewMessageIndex(writer, log, 20)
	files := repositories.NewFileRepository(db)
	store, err := storage.NewDiskStore(t.TempDir(), "http://localhost", 1024, log)
	req.NoError(err)

	presence := stubPresence{}
	tokens := auth.NewTokenIssuer("test-secret", time.Hour, clockwork.NewRealClock())
	server := NewServer(log, cfg, Deps{
		Auth:          services.NewAuthService(users, tokens, log),
		Users:         services.NewUserService(users),
		Rooms:         services.NewRoomService(rooms, messages, users, index, presence, log),
		Conversations: services.NewConversationService(rooms, messages, users, log),
		Uploads:       services.NewUploadService(store, files, clock, log),
		Files:         store,
		Tokens:        tokens,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "relay_connections 0\n")
		}),
	})
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return apiFixture{srv: srv, messages: messages, index: index, presence: presence}
}

// call sends a JSON request and decodes the JSON response into out when given.
func (f apiFixture) call(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	request, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f apiFixture) register(t *testing.T, username string) services.Session {
	t.Helper()
	var session services.Session
	status := f.call(t, http.MethodPost, "/api/register", "", auth.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		FullName: strings.ToUpper(username),
		Password: password,
	}, &session)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, session.AccessToken)
	return session
}

func TestAPI_Register_And_Login(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t, Config{})
	alice := f.register(t, "alice")

	var session services.Session
	status := f.call(t, http.MethodPost, "/api/login", "", auth.LoginRequest{Email: "alice@example.com", Password: password}, &session)
	req.Equal(http.StatusOK, status)
	req.Equal(alice.UserID, session.UserID)

	var failure event.ErrorPayload
	status = f.call(t, http.MethodPost, "/api/login", "", auth.LoginRequest{Email: "alice@example.com", Password: "WrongPass123!"}, &failure)
	req.Equal(http.StatusUnauthorized, status)
	req.Equal("authentication", failure.Code)

	status = f.call(t, http.MethodPost, "/api/register", "", auth.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: password,
	}, &failure)
	req.Equal(http.StatusConflict, status)

	status = f.call(t, http.MethodPost, "/api/register", "", auth.RegisterRequest{Username: "bob", Email: "nope", Password: "short"}, &failure)
	req.Equal(http.StatusBadRequest, status)
	req.Equal("validation", failure.Code)

	var me domain.Profile
	status = f.call(t, http.MethodGet, "/api/users/me", alice.AccessToken, nil, &me)
	req.Equal(http.StatusOK, status)
	req.Equal("alice", me.Username)
	req.Equal("alice@example.com", me.Email)
}

func TestAPI_Protected_Routes_Require_Token(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t, Config{})

	var failure event.ErrorPayload
	req.Equal(http.StatusUnauthorized, f.call(t, http.MethodGet, "/api/users/me", "", nil, &failure))
	req.Equal("authentication", failure.Code)
	req.Equal(http.StatusUnauthorized, f.call(t, http.MethodGet, "/api/rooms", "not-a-token", nil, &failure))
}

func TestAPI_Rooms(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t, Config{})
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	var public services.RoomView
	req.Equal(http.StatusCreated, f.call(t, http.MethodPost, "/api/rooms", alice.AccessToken,
		services.CreateRoomRequest{Name: "general", Description: "everything"}, &public))
	req.Equal(alice.UserID, public.OwnerID)

	var private services.RoomView
	req.Equal(http.StatusCreated, f.call(t, http.MethodPost, "/api/rooms", alice.AccessToken,
		services.CreateRoomRequest{Name: "secret", IsPrivate: true}, &private))

	var listed []services.RoomView
	req.Equal(http.StatusOK, f.call(t, http.MethodGet, "/api/rooms", bob.AccessToken, nil, &listed))
	req.Len(listed, 1)
	req.Equal(public.ID, listed[0].ID)

	var failure event.ErrorPayload
	req.Equal(http.StatusForbidden, f.call(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d", private.ID), bob.AccessToken, nil, &failure))
	req.Equal("authorization", failure.Code)
	req.Equal(http.StatusNotFound, f.call(t, http.MethodGet, "/api/rooms/999", bob.AccessToken, nil, &failure))
	req.Equal(http.StatusBadRequest, f.call(t, http.MethodGet, "/api/rooms/abc", bob.AccessToken, nil, &failure))

	req.Equal(http.StatusNoContent, f.call(t, http.MethodPost, fmt.Sprintf("/api/rooms/%d/members", public.ID), bob.AccessToken, nil, nil))
	var members []domain.Profile
	req.Equal(http.StatusOK, f.call(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/members", public.ID), bob.AccessToken, nil, &members))
	req.Len(members, 2)
	for _, member := range members {
		req.Empty(member.Email)
	}

	req.Equal(http.StatusNoContent, f.call(t, http.MethodDelete, fmt.Sprintf("/api/rooms/%d/members", public.ID), bob.AccessToken, nil, nil))
	req.Equal(http.StatusOK, f.call(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/members", public.ID), alice.AccessToken, nil, &members))
	req.Len(members, 1)

	f.presence[public.ID] = []domain.UserID{alice.UserID}
	var online event.UsersOnlinePayload
	req.Equal(http.StatusOK, f.call(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/online", public.ID), alice.AccessToken, nil, &online))
	req.Equal(public.ID, online.RoomID)
	req.Equal([]domain.UserID{alice.UserID}, online.UserIDs)
	req.Equal(1, online.Count)
}

func TestAPI_History_And_Search(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t, Config{})
	alice := f.register(t, "alice")

	var room services.RoomView
	req.Equal(http.StatusCreated, f.call(t, http.MethodPost, "/api/rooms", alice.AccessToken, services.CreateRoomRequest{Name: "ops"}, &room))
	for _, content := range []string{"deploy tonight", "lunch?", "deploy done"} {
		msg, err := f.messages.StoreMessage(domain.NewMessage{RoomID: room.ID, UserID: alice.UserID, Content: content})
		req.NoError(err)
		req.NoError(f.index.Index(msg))
	}

	var history services.HistoryPage
	req.Equal(http.StatusOK, f.call(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages", room.ID), alice.AccessToken, nil, &history))
	req.Len(history.Messages, 3)
	req.Nil(history.NextCursor)

	var found services.SearchPage
	req.Equal(http.StatusOK, f.call(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages/search?q=deploy", room.ID), alice.AccessToken, nil, &found))
	req.Equal(uint64(2), found.Total)
	req.Len(found.Messages, 2)

	var failure event.ErrorPayload
	req.Equal(http.StatusBadRequest, f.call(t, http.MethodGet, fmt.Sprintf("/api/rooms/%d/messages/search?q=deploy&page=-1", room.ID), alice.AccessToken, nil, &failure))
}

func TestAPI_Conversations(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t, Config{})
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	var created services.InitiateResult
	req.Equal(http.StatusCreated, f.call(t, http.MethodPost, "/api/conversations/initiate", alice.AccessToken,
		services.InitiateRequest{RecipientID: bob.UserID}, &created))
	req.Equal(services.StatusCreated, created.Status)

	var existing services.InitiateResult
	req.Equal(http.StatusOK, f.call(t, http.MethodPost, "/api/conversations/initiate", bob.AccessToken,
		services.InitiateRequest{RecipientID: alice.UserID}, &existing))
	req.Equal(services.StatusExisting, existing.Status)
	req.Equal(created.RoomID, existing.RoomID)

	var conversations []services.ConversationView
	req.Equal(http.StatusOK, f.call(t, http.MethodGet, "/api/conversations", bob.AccessToken, nil, &conversations))
	req.Len(conversations, 1)
	req.Equal("alice", conversations[0].OtherUser.Username)
}

func TestAPI_Uploads(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t, Config{})
	alice := f.register(t, "alice")

	upload := func(content []byte) (*http.Response, error) {
		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		part, err := form.CreateFormFile("file", "notes.txt")
		req.NoError(err)
		_, err = part.Write(content)
		req.NoError(err)
		req.NoError(form.Close())

		request, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/uploads", &body)
		req.NoError(err)
		request.Header.Set("Content-Type", form.FormDataContentType())
		request.Header.Set("Authorization", "Bearer "+alice.AccessToken)
		return http.DefaultClient.Do(request)
	}

	resp, err := upload([]byte("plain text notes"))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusCreated, resp.StatusCode)
	var view services.FileView
	req.NoError(json.NewDecoder(resp.Body).Decode(&view))
	req.Equal("notes.txt", view.Filename)
	req.True(strings.HasPrefix(view.URL, "http://localhost/uploads/"))

	var fetched services.FileView
	req.Equal(http.StatusOK, f.call(t, http.MethodGet, "/api/files/"+view.ID.String(), alice.AccessToken, nil, &fetched))
	req.Equal(view.URL, fetched.URL)

	served, err := http.Get(f.srv.URL + strings.TrimPrefix(view.URL, "http://localhost"))
	req.NoError(err)
	defer served.Body.Close()
	raw, err := io.ReadAll(served.Body)
	req.NoError(err)
	req.Equal("plain text notes", string(raw))

	tooLarge, err := upload(bytes.Repeat([]byte("a"), 2048))
	req.NoError(err)
	defer tooLarge.Body.Close()
	req.Equal(http.StatusRequestEntityTooLarge, tooLarge.StatusCode)

	var failure event.ErrorPayload
	req.Equal(http.StatusNotFound, f.call(t, http.MethodGet, "/api/files/not-a-uuid", alice.AccessToken, nil, &failure))
	missing, err := http.Get(f.srv.URL + "/uploads/missing.txt")
	req.NoError(err)
	defer missing.Body.Close()
	req.Equal(http.StatusNotFound, missing.StatusCode)
}

func TestAPI_Upload_Body_Limit(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t, Config{MaxUploadSize: 1024})
	alice := f.register(t, "alice")

	// The body exceeds the upload size plus the multipart allowance
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "huge.txt")
	req.NoError(err)
	_, err = part.Write(bytes.Repeat([]byte("a"), int(1024+multipartOverhead+1)))
	req.NoError(err)
	req.NoError(form.Close())

	request, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/uploads", &body)
	req.NoError(err)
	request.Header.Set("Content-Type", form.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+alice.AccessToken)
	resp, err := http.DefaultClient.Do(request)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusRequestEntityTooLarge, resp.StatusCode)

	// Rejected by the route before the upload handler parsed the form
	var failure event.ErrorPayload
	req.NoError(json.NewDecoder(resp.Body).Decode(&failure))
	req.Empty(failure.Code)
	req.Equal(http.StatusText(http.StatusRequestEntityTooLarge), failure.Message)
}

func TestAPI_Rate_Limit(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t, Config{RatePerSecond: 0.001, RateBurst: 1})

	var failure event.ErrorPayload
	req.Equal(http.StatusBadRequest, f.call(t, http.MethodPost, "/api/login", "", auth.LoginRequest{}, &failure))
	req.Equal(http.StatusTooManyRequests, f.call(t, http.MethodPost, "/api/login", "", auth.LoginRequest{}, &failure))
	req.Equal("rate_limited", failure.Code)
}

func TestAPI_Metrics_Endpoint(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t, Config{})

	resp, err := http.Get(f.srv.URL + "/metrics")
	req.NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.Contains(string(raw), "relay_connections")
}
