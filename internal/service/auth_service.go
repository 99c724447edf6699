package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"messenger/internal/domain"
	"messenger/internal/security"
)

const (
	maxUsernameLen = 50
	maxNicknameLen = 100
)

// AuthService handles registration and login.
type AuthService struct {
	users  domain.UserRepository
	tokens *security.TokenService
	hash   *security.PasswordHasher
}

func NewAuthService(users domain.UserRepository, tokens *security.TokenService, hash *security.PasswordHasher) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hash:   hash,
	}
}

type RegisterInput struct {
	Username string
	Password string
	Nickname string
}

type LoginInput struct {
	Username string
	Password string
}

type TokenResponse struct {
	AccessToken string
	TokenType   string
	User        *domain.User
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	nickname := strings.TrimSpace(in.Nickname)
	if username == "" || in.Password == "" || nickname == "" {
		return nil, domain.Invalid("username, password and nickname are required")
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateNickname(nickname); err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	} else if existing != nil {
		return nil, domain.ErrConflict
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:       username,
		HashedPassword: hashed,
		Nickname:       nickname,
		Theme:          domain.ThemeSystem,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates the user and issues an access token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: incorrect username or password", domain.ErrUnauthorized)
	}

	if err := s.hash.Verify(in.Password, user.HashedPassword); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, fmt.Errorf("%w: incorrect username or password", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	token, err := s.tokens.CreateForUser(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	}, nil
}

func validateUsername(username string) error {
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return domain.Invalid("username must be at most %d characters", maxUsernameLen)
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return domain.Invalid("username must contain only letters and digits")
		}
	}
	return nil
}

func validateNickname(nickname string) error {
	if nickname == "" {
		return domain.Invalid("nickname is required")
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLen {
		return domain.Invalid("nickname must be at most %d characters", maxNicknameLen)
	}
	return nil
}
