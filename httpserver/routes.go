package httpserver

import (
	"chat-relay/auth"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.requestLogger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(ErrorHandlingMiddleware(s.log))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.registerHealthRoutes()
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}
	if s.deps.WebSocket != nil {
		s.echo.GET("/ws", echo.WrapHandler(s.deps.WebSocket))
	}
	s.echo.GET("/uploads/:name", s.handleServeUpload)

	api := s.echo.Group("/api")
	if s.cfg.RatePerSecond > 0 {
		api.Use(newRateLimiter(s.cfg.RatePerSecond, s.cfg.RateBurst))
	}
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)

	protected := api.Group("", auth.BearerMiddleware(s.deps.Tokens))
	protected.GET("/users/me", s.handleMe)
	protected.GET("/users/search", s.handleSearchUsers)

	protected.POST("/rooms", s.handleCreateRoom)
	protected.GET("/rooms", s.handleListRooms)
	protected.GET("/rooms/:id", s.handleGetRoom)
	protected.GET("/rooms/:id/members", s.handleListMembers)
	protected.POST("/rooms/:id/members", s.handleJoinRoom)
	protected.DELETE("/rooms/:id/members", s.handleLeaveRoom)
	protected.GET("/rooms/:id/messages", s.handleHistory)
	protected.GET("/rooms/:id/messages/search", s.handleSearchMessages)
	protected.GET("/rooms/:id/online", s.handleOnline)

	protected.POST("/conversations/initiate", s.handleInitiateConversation)
	protected.GET("/conversations", s.handleListConversations)

	protected.POST("/uploads", s.handleUpload, s.uploadBodyLimit()...)
	protected.GET("/files/:id", s.handleGetFile)
}

// multipartOverhead leaves room for the boundaries and part headers around the file.
const multipartOverhead int64 = 64 << 10

// uploadBodyLimit rejects oversized uploads before the multipart form is buffered.
func (s *Server) uploadBodyLimit() []echo.MiddlewareFunc {
	if s.cfg.MaxUploadSize <= 0 {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.BodyLimit(fmt.Sprintf("%dB", s.cfg.MaxUploadSize+multipartOverhead))}
}
