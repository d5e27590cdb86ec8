package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"strings"

	"github.com/labstack/echo/v4"
)

// UserIDKey is where the middleware stores the authenticated user id in the echo context.
const UserIDKey = "user_id"

// BearerMiddleware rejects requests without a valid "Authorization: Bearer" token
// and injects the user id for downstream handlers.
func BearerMiddleware(issuer *TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return errors.ErrMissingCredential
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return errors.ErrMissingCredential
			}
			claims, err := issuer.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				return err
			}
			c.Set(UserIDKey, domain.UserID(claims.UserID))
			return next(c)
		}
	}
}

// UserIDFrom returns the id injected by BearerMiddleware.
func UserIDFrom(c echo.Context) (domain.UserID, error) {
	userID, ok := c.Get(UserIDKey).(domain.UserID)
	if !ok || userID <= 0 {
		return 0, errors.ErrNotAuthenticated
	}
	return userID, nil
}
