package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Register(req auth.RegisterRequest) (Session, error)
	Login(req auth.LoginRequest) (Session, error)
}

// Session is returned by register and login.
type Session struct {
	AccessToken string        `json:"accessToken"`
	UserID      domain.UserID `json:"userId"`
}

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenIssuer
	log    *slog.Logger
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenIssuer, log *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log}
}

func (s *AuthService) Register(req auth.RegisterRequest) (Session, error) {
	// Rules are checked before any expensive hashing
	if err := auth.ValidateRegister(req); err != nil {
		return Session{}, err
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.CreateUser(domain.NewUser{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hashedPassword,
	})
	if err != nil {
		return Session{}, err
	}
	s.log.Info("User registered", "user_id", user.ID)

	return s.issue(user.ID)
}

func (s *AuthService) Login(req auth.LoginRequest) (Session, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return Session{}, err
	}

	user, err := s.users.GetUserByEmail(req.Email)
	if errors.Is(err, errors.ErrNotFound) {
		// Same answer as a wrong password, to prevent user enumeration
		return Session{}, errors.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if err := auth.CheckPassword(req.Password, user.PasswordHash); err != nil {
		return Session{}, err
	}
	return s.issue(user.ID)
}

func (s *AuthService) issue(userID domain.UserID) (Session, error) {
	token, err := s.tokens.GenerateToken(userID)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: token, UserID: userID}, nil
}
