package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"messenger/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `id, username, hashed_password, nickname, avatar, theme, hide_online_status, created_at`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.Theme == "" {
		u.Theme = domain.ThemeSystem
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, hashed_password, nickname, avatar, theme, hide_online_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`, u.Username, u.HashedPassword, u.Nickname, u.Avatar, string(u.Theme), u.HideOnlineStatus,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %q: %w", u.Username, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepo) UpdateNickname(ctx context.Context, id int64, nickname string) error {
	return r.update(ctx, "update nickname", `UPDATE users SET nickname = $1 WHERE id = $2`, nickname, id)
}

func (r *UserRepo) UpdateAvatar(ctx context.Context, id int64, avatar *string) error {
	return r.update(ctx, "update avatar", `UPDATE users SET avatar = $1 WHERE id = $2`, avatar, id)
}

func (r *UserRepo) UpdateTheme(ctx context.Context, id int64, theme domain.Theme) error {
	return r.update(ctx, "update theme", `UPDATE users SET theme = $1 WHERE id = $2`, string(theme), id)
}

func (r *UserRepo) UpdateVisibility(ctx context.Context, id int64, hide bool) error {
	return r.update(ctx, "update visibility", `UPDATE users SET hide_online_status = $1 WHERE id = $2`, hide, id)
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_participants WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE sender_id = $1`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := checkAffected(res, "delete user"); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *UserRepo) update(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return checkAffected(res, what)
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.HashedPassword, &u.Nickname,
		&u.Avatar, &u.Theme, &u.HideOnlineStatus, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
