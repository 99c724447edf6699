package service

import (
	"context"
	"fmt"
	"strings"

	"messenger/internal/cache"
	"messenger/internal/domain"
)

// UserService provides profile operations.
type UserService struct {
	users    domain.UserRepository
	profiles cache.ProfileCache
}

func NewUserService(users domain.UserRepository, profiles cache.ProfileCache) *UserService {
	if profiles == nil {
		profiles = cache.Nop{}
	}
	return &UserService{users: users, profiles: profiles}
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	if u, ok := s.profiles.Get(ctx, userID); ok {
		return u, nil
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	s.profiles.Set(ctx, u)
	return u, nil
}

func (s *UserService) UpdateNickname(ctx context.Context, userID int64, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if err := validateNickname(nickname); err != nil {
		return err
	}
	return s.invalidateAfter(ctx, userID, s.users.UpdateNickname(ctx, userID, nickname))
}

// UpdateAvatar sets the avatar URL; nil or blank clears it.
func (s *UserService) UpdateAvatar(ctx context.Context, userID int64, avatar *string) error {
	return s.invalidateAfter(ctx, userID, s.users.UpdateAvatar(ctx, userID, blankToNil(avatar)))
}

func (s *UserService) UpdateTheme(ctx context.Context, userID int64, theme domain.Theme) error {
	if !theme.Valid() {
		return domain.Invalid("theme must be one of system, light, dark")
	}
	return s.invalidateAfter(ctx, userID, s.users.UpdateTheme(ctx, userID, theme))
}

func (s *UserService) UpdateVisibility(ctx context.Context, userID int64, hideOnlineStatus bool) error {
	return s.invalidateAfter(ctx, userID, s.users.UpdateVisibility(ctx, userID, hideOnlineStatus))
}

// DeleteAccount removes the user together with their memberships and the
// messages they sent. It is the only physical deletion in the model.
func (s *UserService) DeleteAccount(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return domain.Invalid("user id is required")
	}
	return s.invalidateAfter(ctx, userID, s.users.Delete(ctx, userID))
}

func (s *UserService) invalidateAfter(ctx context.Context, userID int64, err error) error {
	if err != nil {
		return err
	}
	s.profiles.Invalidate(ctx, userID)
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
