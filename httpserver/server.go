// Package httpserver exposes the REST API, the health and metrics endpoints and
// the WebSocket upgrade route over echo.
package httpserver

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/services"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type authService interface {
	Register(req auth.RegisterRequest) (services.Session, error)
	Login(req auth.LoginRequest) (services.Session, error)
}

type userService interface {
	Me(userID domain.UserID) (domain.Profile, error)
	Search(caller domain.UserID, query string) ([]domain.Profile, error)
}

type roomService interface {
	CreateRoom(owner domain.UserID, req services.CreateRoomRequest) (services.RoomView, error)
	ListPublicRooms() ([]services.RoomView, error)
	GetRoom(userID domain.UserID, roomID domain.RoomID) (services.RoomView, error)
	Members(userID domain.UserID, roomID domain.RoomID) ([]domain.Profile, error)
	JoinRoom(userID domain.UserID, roomID domain.RoomID) error
	LeaveRoom(userID domain.UserID, roomID domain.RoomID) error
	History(userID domain.UserID, roomID domain.RoomID, cursor *string) (services.HistoryPage, error)
	Search(ctx context.Context, userID domain.UserID, roomID domain.RoomID, query string, page int) (services.SearchPage, error)
	Online(userID domain.UserID, roomID domain.RoomID) (event.UsersOnlinePayload, error)
}

type conversationService interface {
	Initiate(caller domain.UserID, req services.InitiateRequest) (services.InitiateResult, error)
	List(caller domain.UserID) ([]services.ConversationView, error)
}

type uploadService interface {
	Upload(uploader domain.UserID, filename string, r io.Reader) (domain.FileUpload, error)
	GetFile(id uuid.UUID) (domain.FileUpload, error)
}

// fileResolver maps a stored attachment name to a local path.
type fileResolver interface {
	Path(name string) (string, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
	RatePerSecond  float64
	RateBurst      int

	// MaxUploadSize caps the request body of an upload. Zero disables the cap.
	MaxUploadSize int64
}

// Deps are the collaborators the routes delegate to.
type Deps struct {
	Auth          authService
	Users         userService
	Rooms         roomService
	Conversations conversationService
	Uploads       uploadService
	Files         fileResolver
	Tokens        *auth.TokenIssuer
	WebSocket     http.Handler
	Metrics       http.Handler
	HealthChecks  []HealthCheck
	Stats         *observability.StatsRecorder
}

type Server struct {
	echo      *echo.Echo
	log       *slog.Logger
	cfg       Config
	deps      Deps
	startTime time.Time
}

func NewServer(log *slog.Logger, cfg Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		log:       log,
		cfg:       cfg,
		deps:      deps,
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

// Handler exposes the router, mostly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.cfg.Addr)
	if err := s.echo.Start(s.cfg.Addr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
