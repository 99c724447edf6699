// Package cache holds read-through caches for hot lookups. Cache failures
// are logged and treated as misses; they never fail the calling operation.
package cache

import (
	"context"

	"messenger/internal/domain"
)

// ProfileCache caches user profiles by id.
type ProfileCache interface {
	Get(ctx context.Context, userID int64) (*domain.User, bool)
	Set(ctx context.Context, u *domain.User)
	Invalidate(ctx context.Context, userID int64)
}

// Nop is used when no cache backend is configured.
type Nop struct{}

func (Nop) Get(context.Context, int64) (*domain.User, bool) { return nil, false }
func (Nop) Set(context.Context, *domain.User)               {}
func (Nop) Invalidate(context.Context, int64)               {}
