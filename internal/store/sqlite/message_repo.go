package sqlite

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
	m.CreatedAt = now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages
			(chat_id, sender_id, content, photo_url, photo_caption, voice_url, voice_duration, is_system, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ChatID, m.SenderID, m.Content,
		m.PhotoURL, m.PhotoCaption, m.VoiceURL, m.VoiceDuration,
		m.IsSystem, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, messageSelect+` WHERE m.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

func (r *MessageRepo) ListForChat(ctx context.Context, chatID int64) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, messageSelect+` WHERE m.chat_id = ? ORDER BY m.id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return scanMessages(rows)
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, is_edited = 1, updated_at = ? WHERE id = ?
	`, content, now(), id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return checkAffected(res, "update message")
}

func (r *MessageRepo) MarkRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return checkAffected(res, "mark read")
}

func (r *MessageRepo) Redact(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET content = ?, photo_url = NULL, photo_caption = NULL,
		    voice_url = NULL, voice_duration = NULL, is_deleted = 1
		WHERE id = ?
	`, domain.RedactedContent, id)
	if err != nil {
		return fmt.Errorf("redact message: %w", err)
	}
	return checkAffected(res, "redact message")
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
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
