package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"messenger/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageSelect = `
	SELECT m.id, m.chat_id, m.sender_id, u.nickname, u.username, m.content,
	       m.photo_url, m.photo_caption, m.voice_url, m.voice_duration,
	       m.is_system, m.is_edited, m.is_read, m.is_deleted, m.created_at, m.updated_at
	FROM messages m
	LEFT JOIN users u ON u.id = m.sender_id
`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO messages
			(chat_id, sender_id, content, photo_url, photo_caption, voice_url, voice_duration, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, created_at
	`, m.ChatID, m.SenderID, m.Content,
		m.PhotoURL, m.PhotoCaption, m.VoiceURL, m.VoiceDuration, m.IsSystem,
	).Scan(&m.ID, &m.CreatedAt)
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, messageSelect+` WHERE m.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	msgs, err := r.scanMessages(rows)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return msgs[0], nil
}

func (r *MessageRepo) ListForChat(ctx context.Context, chatID int64) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, messageSelect+` WHERE m.chat_id = $1 ORDER BY m.id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return r.scanMessages(rows)
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = $1, is_edited = TRUE, updated_at = NOW() WHERE id = $2
	`, content, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return checkAffected(res, "update message")
}

func (r *MessageRepo) MarkRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return checkAffected(res, "mark read")
}

func (r *MessageRepo) Redact(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET content = $1, photo_url = NULL, photo_caption = NULL,
		    voice_url = NULL, voice_duration = NULL, is_deleted = TRUE
		WHERE id = $2
	`, domain.RedactedContent, id)
	if err != nil {
		return fmt.Errorf("redact message: %w", err)
	}
	return checkAffected(res, "redact message")
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (r *MessageRepo) scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	defer rows.Close()
	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID, &m.ChatID, &m.SenderID, &m.SenderNickname, &m.SenderUsername, &m.Content,
			&m.PhotoURL, &m.PhotoCaption, &m.VoiceURL, &m.VoiceDuration,
			&m.IsSystem, &m.IsEdited, &m.IsRead, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
