package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer("test-secret", 7*24*time.Hour, clockwork.NewFakeClock())
}

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	issuer := newTestIssuer()
	svc := NewAuthService(mockRepo, issuer, logs.GetLoggerFromLevel(slog.LevelDebug))

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		request := auth.RegisterRequest{Username: "alice", Email: "test@example.com", Password: "ComplexPass123!"}

		// The repository must receive a hash, never the plain password
		mockRepo.EXPECT().
			CreateUser(gomock.Any()).
			DoAndReturn(func(user domain.NewUser) (domain.User, error) {
				req.Equal("alice", user.Username)
				req.NotEqual(request.Password, user.PasswordHash)
				req.NoError(auth.CheckPassword(request.Password, user.PasswordHash))
				return domain.User{ID: 12, Username: user.Username}, nil
			}).
			Times(1)

		session, err := svc.Register(request)

		req.NoError(err)
		req.Equal(domain.UserID(12), session.UserID)
		claims, err := issuer.ValidateToken(session.AccessToken)
		req.NoError(err)
		req.Equal(int64(12), claims.UserID)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().CreateUser(gomock.Any()).Times(0)

		session, err := svc.Register(auth.RegisterRequest{Username: "alice", Email: "test@example.com", Password: "simplesimplesimple"})

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(session.AccessToken)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			CreateUser(gomock.Any()).
			Return(domain.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register(auth.RegisterRequest{Username: "dup", Email: "duplicate@example.com", Password: "ComplexPass123!"})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	issuer := newTestIssuer()
	svc := NewAuthService(mockRepo, issuer, logs.GetLoggerFromLevel(slog.LevelDebug))

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"
		password := "Secret123456!"

		hashedPassword, err := auth.HashPassword(password)
		req.NoError(err)
		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(domain.User{ID: 5, Email: email, PasswordHash: hashedPassword}, nil).
			Times(1)

		session, err := svc.Login(auth.LoginRequest{Email: email, Password: password})

		req.NoError(err)
		req.Equal(domain.UserID(5), session.UserID)
		claims, err := issuer.ValidateToken(session.AccessToken)
		req.NoError(err)
		req.Equal(int64(5), claims.UserID)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"

		hashedPassword, err := auth.HashPassword("CorrectPassword123!")
		req.NoError(err)
		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(domain.User{ID: 5, Email: email, PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err = svc.Login(auth.LoginRequest{Email: email, Password: "WrongPassword123!"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			GetUserByEmail("unknown@example.com").
			Return(domain.User{}, errors.ErrUserNotFound).
			Times(1)

		_, err := svc.Login(auth.LoginRequest{Email: "unknown@example.com", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should surface storage failures", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			GetUserByEmail("user@example.com").
			Return(domain.User{}, errors.ErrPersistence).
			Times(1)

		_, err := svc.Login(auth.LoginRequest{Email: "user@example.com", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrPersistence)
	})
}
