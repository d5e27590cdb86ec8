package auth_test

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestBearerMiddleware(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	issuer := auth.NewTokenIssuer("test-secret", time.Hour, clock)

	var seen domain.UserID
	handler := auth.BearerMiddleware(issuer)(func(c echo.Context) error {
		userID, err := auth.UserIDFrom(c)
		if err != nil {
			return err
		}
		seen = userID
		return c.NoContent(http.StatusNoContent)
	})

	call := func(header string) error {
		e := echo.New()
		r := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		if header != "" {
			r.Header.Set(echo.HeaderAuthorization, header)
		}
		return handler(e.NewContext(r, httptest.NewRecorder()))
	}

	t.Run("should inject the user id of a valid token", func(t *testing.T) {
		req := require.New(t)
		token, err := issuer.GenerateToken(7)
		req.NoError(err)

		req.NoError(call("Bearer " + token))
		req.Equal(domain.UserID(7), seen)
	})

	t.Run("should fail when the header is missing", func(t *testing.T) {
		require.ErrorIs(t, call(""), errors.ErrMissingCredential)
	})

	t.Run("should fail without the Bearer scheme", func(t *testing.T) {
		token, err := issuer.GenerateToken(7)
		require.NoError(t, err)
		require.ErrorIs(t, call("Basic "+token), errors.ErrMissingCredential)
	})

	t.Run("should fail with invalid token", func(t *testing.T) {
		require.ErrorIs(t, call("Bearer invalid-token-string"), errors.ErrInvalidToken)
	})

	t.Run("should fail once the token expired", func(t *testing.T) {
		req := require.New(t)
		token, err := issuer.GenerateToken(7)
		req.NoError(err)
		clock.Advance(2 * time.Hour)

		req.ErrorIs(call("Bearer "+token), errors.ErrInvalidToken)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		req := require.New(t)
		other := auth.NewTokenIssuer("other-secret", time.Hour, clock)
		token, err := other.GenerateToken(7)
		req.NoError(err)

		req.ErrorIs(call("Bearer "+token), errors.ErrInvalidToken)
	})
}

type stubUsers map[domain.UserID]domain.User

func (s stubUsers) GetUserByID(id domain.UserID) (domain.User, error) {
	user, ok := s[id]
	if !ok {
		return domain.User{}, errors.ErrUserNotFound
	}
	return user, nil
}

func TestTokenAuthenticator(t *testing.T) {
	req := require.New(t)
	ctx := t.Context()
	clock := clockwork.NewFakeClock()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour, clock)
	authenticator := auth.NewTokenAuthenticator(issuer, stubUsers{7: {ID: 7, Username: "alice"}})

	token, err := issuer.GenerateToken(7)
	req.NoError(err)
	userID, err := authenticator.Verify(ctx, token)
	req.NoError(err)
	req.Equal(domain.UserID(7), userID)

	_, err = authenticator.Verify(ctx, "")
	req.ErrorIs(err, errors.ErrMissingCredential)

	_, err = authenticator.Verify(ctx, "garbage")
	req.ErrorIs(err, errors.ErrInvalidToken)

	ghost, err := issuer.GenerateToken(99)
	req.NoError(err)
	_, err = authenticator.Verify(ctx, ghost)
	req.ErrorIs(err, errors.ErrInvalidToken)
}
