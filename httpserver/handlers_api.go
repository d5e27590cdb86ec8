package httpserver

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleCreateRoom(c echo.Context) error {
	userID, err := auth.UserIDFrom(c)
	if err != nil {
		return err
	}
	var req services.CreateRoomRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	room, err := s.deps.Rooms.CreateRoom(userID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, room)
}

func (s *Server) handleListRooms(c echo.Context) error {
	rooms, err := s.deps.Rooms.ListPublicRooms()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rooms)
}

func (s *Server) handleGetRoom(c echo.Context) error {
	userID, roomID, err := roomRequest(c)
	if err != nil {
		return err
	}
	room, err := s.deps.Rooms.GetRoom(userID, roomID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, room)
}

func (s *Server) handleListMembers(c echo.Context) error {
	userID, roomID, err := roomRequest(c)
	if err != nil {
		return err
	}
	members, err := s.deps.Rooms.Members(userID, roomID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, members)
}

func (s *Server) handleJoinRoom(c echo.Context) error {
	userID, roomID, err := roomRequest(c)
	if err != nil {
		return err
	}
	if err := s.deps.Rooms.JoinRoom(userID, roomID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleLeaveRoom(c echo.Context) error {
	userID, roomID, err := roomRequest(c)
	if err != nil {
		return err
	}
	if err := s.deps.Rooms.LeaveRoom(userID, roomID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleHistory(c echo.Context) error {
	userID, roomID, err := roomRequest(c)
	if err != nil {
		return err
	}
	var cursor *string
	if raw := c.QueryParam("cursor"); raw != "" {
		cursor = &raw
	}
	page, err := s.deps.Rooms.History(userID, roomID, cursor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleSearchMessages(c echo.Context) error {
	userID, roomID, err := roomRequest(c)
	if err != nil {
		return err
	}
	page := 0
	if raw := c.QueryParam("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 0 {
			return fmt.Errorf("%w: page must be a non-negative integer", errors.ErrValidation)
		}
	}
	result, err := s.deps.Rooms.Search(c.Request().Context(), userID, roomID, c.QueryParam("q"), page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleOnline(c echo.Context) error {
	userID, roomID, err := roomRequest(c)
	if err != nil {
		return err
	}
	online, err := s.deps.Rooms.Online(userID, roomID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, online)
}

func (s *Server) handleInitiateConversation(c echo.Context) error {
	userID, err := auth.UserIDFrom(c)
	if err != nil {
		return err
	}
	var req services.InitiateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := s.deps.Conversations.Initiate(userID, req)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if result.Status == services.StatusCreated {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

func (s *Server) handleListConversations(c echo.Context) error {
	userID, err := auth.UserIDFrom(c)
	if err != nil {
		return err
	}
	conversations, err := s.deps.Conversations.List(userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conversations)
}

// roomRequest extracts the caller and the ":id" room parameter.
func roomRequest(c echo.Context) (domain.UserID, domain.RoomID, error) {
	userID, err := auth.UserIDFrom(c)
	if err != nil {
		return 0, 0, err
	}
	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || !domain.RoomID(raw).Valid() {
		return 0, 0, errors.ErrInvalidRoomID
	}
	return userID, domain.RoomID(raw), nil
}
