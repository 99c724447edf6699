package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"messenger/internal/domain"
)

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

var _ domain.ChatRepository = (*ChatRepo)(nil)

func (r *ChatRepo) CreatePersonal(ctx context.Context, userID, otherID int64) (int64, bool, error) {
	// Write transactions are BEGIN IMMEDIATE (see Open), so the lookup and
	// the insert below are serialized against other writers.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var chatID int64
	err = tx.QueryRowContext(ctx, `
		SELECT c.id
		FROM chats c
		JOIN chat_participants cp1 ON cp1.chat_id = c.id AND cp1.user_id = ?
		JOIN chat_participants cp2 ON cp2.chat_id = c.id AND cp2.user_id = ?
		WHERE c.is_group = 0
		ORDER BY c.id ASC
		LIMIT 1
	`, userID, otherID).Scan(&chatID)
	switch {
	case err == nil:
		if err := rejoin(ctx, tx, chatID, userID); err != nil {
			return 0, false, err
		}
		if err := tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("commit: %w", err)
		}
		return chatID, true, nil
	case err != sql.ErrNoRows:
		return 0, false, fmt.Errorf("find personal chat: %w", err)
	}

	ts := now()
	res, err := tx.ExecContext(ctx, `INSERT INTO chats (is_group, created_at) VALUES (0, ?)`, ts)
	if err != nil {
		return 0, false, fmt.Errorf("insert chat: %w", err)
	}
	if chatID, err = res.LastInsertId(); err != nil {
		return 0, false, fmt.Errorf("last insert id: %w", err)
	}
	for _, uid := range []int64{userID, otherID} {
		if err := addParticipant(ctx, tx, chatID, uid); err != nil {
			return 0, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit: %w", err)
	}
	return chatID, false, nil
}

func (r *ChatRepo) CreateGroup(ctx context.Context, c *domain.Chat, memberIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c.IsGroup = true
	c.CreatedAt = now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO chats (is_group, name, avatar, creator_id, created_at)
		VALUES (1, ?, ?, ?, ?)
	`, c.Name, c.Avatar, c.CreatorID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id

	ids := memberIDs
	if c.CreatorID != nil {
		ids = append([]int64{*c.CreatorID}, memberIDs...)
	}
	for _, uid := range ids {
		if err := addParticipant(ctx, tx, id, uid); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ChatRepo) GetByID(ctx context.Context, id int64) (*domain.Chat, error) {
	c := &domain.Chat{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, is_group, name, avatar, creator_id, created_at
		FROM chats
		WHERE id = ?
	`, id).Scan(&c.ID, &c.IsGroup, &c.Name, &c.Avatar, &c.CreatorID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

func (r *ChatRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.ChatSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.avatar, c.is_group, c.creator_id,
		       lm.content, lm.created_at, lm.is_system, lm.is_deleted,
		       ou.username, ou.nickname, ou.avatar
		FROM chats c
		JOIN chat_participants cp
		  ON cp.chat_id = c.id AND cp.user_id = ? AND cp.left_at IS NULL
		LEFT JOIN messages lm
		  ON lm.id = (SELECT MAX(m.id) FROM messages m WHERE m.chat_id = c.id)
		LEFT JOIN chat_participants ocp
		  ON c.is_group = 0 AND ocp.chat_id = c.id AND ocp.user_id <> cp.user_id AND ocp.left_at IS NULL
		LEFT JOIN users ou ON ou.id = ocp.user_id
		ORDER BY lm.id IS NULL, lm.created_at DESC, lm.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var res []*domain.ChatSummary
	for rows.Next() {
		var (
			s                 domain.ChatSummary
			lastTime          sql.NullTime
			isSystem, deleted sql.NullBool
			otherNickname     *string
			otherAvatar       *string
		)
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Avatar, &s.IsGroup, &s.CreatorID,
			&s.LastMessage, &lastTime, &isSystem, &deleted,
			&s.OtherUsername, &otherNickname, &otherAvatar,
		); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		if lastTime.Valid {
			t := lastTime.Time
			s.LastMessageTime = &t
		}
		s.LastMessagePlain = isSystem.Bool || deleted.Bool
		if !s.IsGroup {
			s.Name = otherNickname
			s.Avatar = otherAvatar
		}
		res = append(res, &s)
	}
	return res, rows.Err()
}

func (r *ChatRepo) UpdateInfo(ctx context.Context, chatID int64, name, avatar *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE chats SET name = ?, avatar = ? WHERE id = ? AND is_group = 1
	`, name, avatar, chatID)
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	return checkAffected(res, "update chat")
}

func addParticipant(ctx context.Context, tx *sql.Tx, chatID, userID int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_participants (chat_id, user_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, chatID, userID, now()); err != nil {
		return fmt.Errorf("insert participant %d: %w", userID, err)
	}
	return nil
}

// rejoin gives the user a fresh active membership if they had left the chat.
func rejoin(ctx context.Context, tx *sql.Tx, chatID, userID int64) error {
	var active int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_participants
		WHERE chat_id = ? AND user_id = ? AND left_at IS NULL
	`, chatID, userID).Scan(&active); err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if active > 0 {
		return nil
	}
	return addParticipant(ctx, tx, chatID, userID)
}
