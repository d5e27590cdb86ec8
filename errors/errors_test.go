package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"missing credential", ErrMissingCredential, "authentication"},
		{"not member", ErrNotMember, "authorization"},
		{"room not found", ErrRoomNotFound, "not_found"},
		{"empty message", ErrEmptyMessage, "validation"},
		{"wrapped persistence", fmt.Errorf("%w: badger closed", ErrPersistence), "persistence"},
		{"duplicate user", ErrUserAlreadyExists, "conflict"},
		{"send buffer", ErrSendBufferFull, "delivery"},
		{"anything else", fmt.Errorf("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	req := require.New(t)
	req.Equal(http.StatusUnauthorized, HTTPStatus(ErrInvalidCredentials))
	req.Equal(http.StatusForbidden, HTTPStatus(ErrAccessDenied))
	req.Equal(http.StatusNotFound, HTTPStatus(ErrUserNotFound))
	req.Equal(http.StatusBadRequest, HTTPStatus(ErrInvalidPassword))
	req.Equal(http.StatusUnsupportedMediaType, HTTPStatus(ErrUnsupportedMediaType))
	req.Equal(http.StatusRequestEntityTooLarge, HTTPStatus(ErrFileTooLarge))
	req.Equal(http.StatusConflict, HTTPStatus(ErrUserAlreadyExists))
	req.Equal(http.StatusInternalServerError, HTTPStatus(ErrTokenGeneration))
}
