package httpserver

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleRegister(c echo.Context) error {
	var req auth.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := s.deps.Auth.Register(req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := s.deps.Auth.Login(req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleMe(c echo.Context) error {
	userID, err := auth.UserIDFrom(c)
	if err != nil {
		return err
	}
	profile, err := s.deps.Users.Me(userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleSearchUsers(c echo.Context) error {
	userID, err := auth.UserIDFrom(c)
	if err != nil {
		return err
	}
	users, err := s.deps.Users.Search(userID, c.QueryParam("query"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// bind decodes the JSON body. Malformed bodies are validation errors.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", errors.ErrValidation)
	}
	return nil
}
