package services

import (
	"chat-rooms/auth"
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (chat.User, error)
	Login(ctx context.Context, username, password string) (Token, error)
	SeedAdmin(ctx context.Context, req auth.RegisterRequest) error
}

type Token string

func (t Token) String() string {
	return string(t)
}

type AuthService struct {
	log            *slog.Logger
	userRepository contract.IUserRepository
	issuer         *auth.TokenIssuer
}

func NewAuthService(log *slog.Logger, repo contract.IUserRepository, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{log: log, userRepository: repo, issuer: issuer}
}

// Register creates a regular user. Elevated accounts only come from SeedAdmin.
func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (chat.User, error) {
	return s.create(ctx, req, chat.RoleUser)
}

// Login checks the credentials and issues an access token.
// Unknown users and wrong passwords look the same to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.userRepository.GetUserByUsername(ctx, username)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.issuer.Generate(user)
	if err != nil {
		return "", err
	}
	return Token(token), nil
}

// SeedAdmin makes sure an administrator exists. It does nothing when the
// username is already taken, so it is safe to call on every start.
func (s *AuthService) SeedAdmin(ctx context.Context, req auth.RegisterRequest) error {
	if _, err := s.userRepository.GetUserByUsername(ctx, req.Username); err == nil {
		s.log.Debug("Admin already seeded", "username", req.Username)
		return nil
	} else if !stdErrors.Is(err, errors.ErrUserNotFound) {
		return err
	}
	admin, err := s.create(ctx, req, chat.RoleAdmin)
	if err != nil {
		return err
	}
	s.log.Info("Admin seeded", "user_id", admin.ID, "username", admin.Username)
	return nil
}

func (s *AuthService) create(ctx context.Context, req auth.RegisterRequest, role chat.Role) (chat.User, error) {
	// Validation happens before any expensive cryptographic operation
	if err := auth.ValidateRegister(req); err != nil {
		return chat.User{}, err
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return chat.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	return s.userRepository.CreateUser(ctx, chat.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	})
}
