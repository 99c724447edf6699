package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"messenger/internal/domain"
)

type ParticipantRepo struct {
	db *sql.DB
}

func NewParticipantRepo(db *sql.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

var _ domain.ParticipantRepository = (*ParticipantRepo)(nil)

func (r *ParticipantRepo) ListActive(ctx context.Context, chatID int64) ([]*domain.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.nickname, u.avatar, cp.joined_at
		FROM chat_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.chat_id = $1 AND cp.left_at IS NULL
		ORDER BY cp.joined_at ASC, cp.id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var res []*domain.Participant
	for rows.Next() {
		p := &domain.Participant{}
		if err := rows.Scan(&p.UserID, &p.Username, &p.Nickname, &p.Avatar, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ActiveUserIDs returns just the user IDs of active members (useful for WS
// broadcasts without loading full rows).
func (r *ParticipantRepo) ActiveUserIDs(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM chat_participants
		WHERE chat_id = $1 AND left_at IS NULL
		ORDER BY id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list participant ids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ParticipantRepo) IsActive(ctx context.Context, chatID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM chat_participants
			WHERE chat_id = $1 AND user_id = $2 AND left_at IS NULL
		)
	`, chatID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return exists, nil
}

func (r *ParticipantRepo) Deactivate(ctx context.Context, chatID, userID int64, notice string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE chat_participants
		SET left_at = NOW()
		WHERE chat_id = $1 AND user_id = $2 AND left_at IS NULL
	`, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("deactivate membership: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return false, nil
	}

	if err := insertSystemMessage(ctx, tx, chatID, notice); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
