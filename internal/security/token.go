package security

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"messenger/internal/domain"
)

// Claims identify the user by id in "sub". The username is carried as
// well so a token never outlives a rename of the identity it was issued to.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims

	UserID int64 `json:"-"`
}

// TokenService wraps JWT creation and validation.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
}

func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
	}
}

// CreateForUser creates a JWT for the user with the default TTL.
func (t *TokenService) CreateForUser(userID int64, username string) (string, error) {
	return t.CreateWithTTL(userID, username, t.expiresIn)
}

// CreateWithTTL creates a JWT for the user with an explicit TTL.
func (t *TokenService) CreateWithTTL(userID int64, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates a token and returns its claims.
func (t *TokenService) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 || claims.Username == "" {
		return nil, jwt.ErrTokenInvalidSubject
	}
	claims.UserID = id
	return claims, nil
}

// Authenticate parses the token and loads the user it was issued to.
// A token whose user was deleted, or whose id now belongs to a different
// username, is rejected with ErrUnauthorized.
func (t *TokenService) Authenticate(ctx context.Context, tokenStr string, users domain.UserRepository) (*domain.User, error) {
	claims, err := t.Parse(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	user, err := users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", claims.UserID, err)
	}
	if user == nil || user.Username != claims.Username {
		return nil, fmt.Errorf("%w: user not found", domain.ErrUnauthorized)
	}
	return user, nil
}
