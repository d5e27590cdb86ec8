package httpserver

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/services"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func (s *Server) handleUpload(c echo.Context) error {
	userID, err := auth.UserIDFrom(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if err != nil {
		return fmt.Errorf("%w: multipart field \"file\" is required", errors.ErrValidation)
	}
	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	defer file.Close()

	upload, err := s.deps.Uploads.Upload(userID, header.Filename, file)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, services.ToFileView(upload))
}

func (s *Server) handleGetFile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errors.ErrFileNotFound
	}
	upload, err := s.deps.Uploads.GetFile(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, services.ToFileView(upload))
}

func (s *Server) handleServeUpload(c echo.Context) error {
	path, err := s.deps.Files.Path(c.Param("name"))
	if err != nil {
		return err
	}
	return c.File(path)
}
