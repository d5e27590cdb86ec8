package auth

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
)

// UserLookup is the part of the user repository needed to confirm a token owner still exists.
type UserLookup interface {
	GetUserByID(id domain.UserID) (domain.User, error)
}

// TokenAuthenticator resolves a bearer JWT to the id of an existing user.
type TokenAuthenticator struct {
	issuer *TokenIssuer
	users  UserLookup
}

var _ contract.Authenticator = (*TokenAuthenticator)(nil)

func NewTokenAuthenticator(issuer *TokenIssuer, users UserLookup) *TokenAuthenticator {
	return &TokenAuthenticator{issuer: issuer, users: users}
}

func (a *TokenAuthenticator) Verify(ctx context.Context, token string) (domain.UserID, error) {
	if token == "" {
		return 0, errors.ErrMissingCredential
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	claims, err := a.issuer.ValidateToken(token)
	if err != nil {
		return 0, err
	}
	userID := domain.UserID(claims.UserID)
	if _, err := a.users.GetUserByID(userID); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return 0, fmt.Errorf("%w: user %d no longer exists", errors.ErrInvalidToken, userID)
		}
		return 0, err
	}
	return userID, nil
}
