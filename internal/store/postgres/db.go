package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"messenger/internal/domain"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the messenger schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                 BIGSERIAL    PRIMARY KEY,
			username           VARCHAR(50)  UNIQUE NOT NULL,
			hashed_password    VARCHAR(255) NOT NULL,
			nickname           VARCHAR(100) NOT NULL,
			avatar             TEXT,
			theme              VARCHAR(10)  NOT NULL DEFAULT 'system'
			                   CHECK (theme IN ('system', 'light', 'dark')),
			hide_online_status BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chats (
			id         BIGSERIAL    PRIMARY KEY,
			is_group   BOOLEAN      NOT NULL DEFAULT FALSE,
			name       VARCHAR(100),
			avatar     TEXT,
			creator_id BIGINT       REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chat_participants (
			id        BIGSERIAL   PRIMARY KEY,
			chat_id   BIGINT      NOT NULL REFERENCES chats(id),
			user_id   BIGINT      NOT NULL REFERENCES users(id),
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			left_at   TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id             BIGSERIAL   PRIMARY KEY,
			chat_id        BIGINT      NOT NULL REFERENCES chats(id),
			sender_id      BIGINT      REFERENCES users(id),
			content        TEXT        NOT NULL DEFAULT '',
			photo_url      TEXT,
			photo_caption  TEXT,
			voice_url      TEXT,
			voice_duration DOUBLE PRECISION,
			is_system      BOOLEAN     NOT NULL DEFAULT FALSE,
			is_edited      BOOLEAN     NOT NULL DEFAULT FALSE,
			is_read        BOOLEAN     NOT NULL DEFAULT FALSE,
			is_deleted     BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS uq_chat_participants_active
			ON chat_participants(chat_id, user_id) WHERE left_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_chat_participants_user ON chat_participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_is_group ON chats(is_group)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id)`,

		// columns added after the first release
		`ALTER TABLE messages ADD COLUMN IF NOT EXISTS is_deleted BOOLEAN NOT NULL DEFAULT FALSE`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS hide_online_status BOOLEAN NOT NULL DEFAULT FALSE`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// insertSystemMessage appends a membership notice inside an open transaction.
func insertSystemMessage(ctx context.Context, tx *sql.Tx, chatID int64, text string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (chat_id, sender_id, content, is_system, created_at)
		VALUES ($1, NULL, $2, TRUE, NOW())
	`, chatID, text); err != nil {
		return fmt.Errorf("insert system message: %w", err)
	}
	return nil
}

func checkAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}
