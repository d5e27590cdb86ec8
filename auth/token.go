package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const issuer = "chat-relay"

// CustomClaims defines the data stored inside the JWT.
type CustomClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 access tokens.
type TokenIssuer struct {
	secret   []byte
	duration time.Duration
	clock    clockwork.Clock
}

func NewTokenIssuer(secret string, duration time.Duration, clock clockwork.Clock) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), duration: duration, clock: clock}
}

// GenerateToken creates a signed JWT for a user, valid for the configured duration.
func (t *TokenIssuer) GenerateToken(userID domain.UserID) (string, error) {
	now := t.clock.Now()
	claims := &CustomClaims{
		UserID: int64(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// ValidateToken checks signature, algorithm, issuer and expiration.
func (t *TokenIssuer) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
