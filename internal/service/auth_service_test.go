package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger/internal/domain"
	"messenger/internal/security"
	"messenger/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil {
		u.ID = 1
	}
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) UpdateNickname(ctx context.Context, id int64, nickname string) error {
	return m.Called(ctx, id, nickname).Error(0)
}

func (m *MockUserRepo) UpdateAvatar(ctx context.Context, id int64, avatar *string) error {
	return m.Called(ctx, id, avatar).Error(0)
}

func (m *MockUserRepo) UpdateTheme(ctx context.Context, id int64, theme domain.Theme) error {
	return m.Called(ctx, id, theme).Error(0)
}

func (m *MockUserRepo) UpdateVisibility(ctx context.Context, id int64, hide bool) error {
	return m.Called(ctx, id, hide).Error(0)
}

func (m *MockUserRepo) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func newAuthService(repo domain.UserRepository) (*service.AuthService, *security.TokenService, *security.PasswordHasher) {
	tokens := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests
	return service.NewAuthService(repo, tokens, hasher), tokens, hasher
}

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _, hasher := newAuthService(repo)

		repo.On("GetByUsername", mock.Anything, "newuser").Return(nil, nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "newuser" && u.Nickname == "New" && u.Theme == domain.ThemeSystem
		})).Return(nil)

		user, err := svc.Register(context.Background(), service.RegisterInput{
			Username: " newuser ",
			Password: "Password1!",
			Nickname: "New",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, "newuser", user.Username)
		assert.NotEqual(t, "Password1!", user.HashedPassword)
		assert.NoError(t, hasher.Verify("Password1!", user.HashedPassword))
		repo.AssertExpectations(t)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _, _ := newAuthService(repo)

		repo.On("GetByUsername", mock.Anything, "existing").Return(&domain.User{Username: "existing"}, nil)

		user, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "existing",
			Password: "Password1!",
			Nickname: "E",
		})
		assert.Nil(t, user)
		assert.ErrorIs(t, err, domain.ErrConflict)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Validation", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _, _ := newAuthService(repo)

		cases := map[string]service.RegisterInput{
			"missing password": {Username: "bob", Nickname: "Bob"},
			"missing nickname": {Username: "bob", Password: "pw"},
			"bad characters":   {Username: "bob smith", Password: "pw", Nickname: "Bob"},
			"too long":         {Username: string(make([]byte, 51)), Password: "pw", Nickname: "Bob"},
		}
		for name, in := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := svc.Register(context.Background(), in)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
			})
		}
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	repo := new(MockUserRepo)
	svc, tokens, hasher := newAuthService(repo)

	hashed, err := hasher.Hash("Password1!")
	require.NoError(t, err)
	alice := &domain.User{ID: 7, Username: "alice", HashedPassword: hashed, Nickname: "Alice"}

	repo.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)
	repo.On("GetByUsername", mock.Anything, "ghost").Return(nil, nil)
	repo.On("GetByUsername", mock.Anything, "broken").Return(nil, errors.New("db down"))

	t.Run("Success", func(t *testing.T) {
		res, err := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "Password1!"})
		require.NoError(t, err)
		assert.Equal(t, "bearer", res.TokenType)
		assert.Equal(t, alice, res.User)

		claims, err := tokens.Parse(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, int64(7), claims.UserID)
		assert.Equal(t, "alice", claims.Username)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "nope"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Username: "ghost", Password: "x"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Username: "broken", Password: "x"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUnauthorized)
	})
}
