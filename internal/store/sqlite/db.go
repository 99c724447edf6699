package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"messenger/internal/domain"
)

// Open opens a SQLite database file. Every connection enables foreign keys
// and starts write transactions with BEGIN IMMEDIATE so that check-then-insert
// sequences inside one transaction cannot interleave.
func Open(path string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Migrate creates the schema. Statements are idempotent.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			hashed_password TEXT NOT NULL,
			nickname TEXT NOT NULL,
			avatar TEXT DEFAULT NULL,
			theme TEXT NOT NULL DEFAULT 'system' CHECK (theme IN ('system', 'light', 'dark')),
			hide_online_status BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			is_group BOOLEAN NOT NULL DEFAULT 0,
			name TEXT DEFAULT NULL,
			avatar TEXT DEFAULT NULL,
			creator_id INTEGER DEFAULT NULL REFERENCES users(id) ON DELETE SET NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chat_participants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL REFERENCES chats(id),
			user_id INTEGER NOT NULL REFERENCES users(id),
			joined_at DATETIME NOT NULL,
			left_at DATETIME DEFAULT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL REFERENCES chats(id),
			sender_id INTEGER DEFAULT NULL REFERENCES users(id),
			content TEXT NOT NULL DEFAULT '',
			photo_url TEXT DEFAULT NULL,
			photo_caption TEXT DEFAULT NULL,
			voice_url TEXT DEFAULT NULL,
			voice_duration REAL DEFAULT NULL,
			is_system BOOLEAN NOT NULL DEFAULT 0,
			is_edited BOOLEAN NOT NULL DEFAULT 0,
			is_read BOOLEAN NOT NULL DEFAULT 0,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME DEFAULT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_chat_participants_active ON chat_participants(chat_id, user_id) WHERE left_at IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_chat_participants_user ON chat_participants(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_chats_is_group ON chats(is_group);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// insertSystemMessage appends a membership notice inside an open transaction.
func insertSystemMessage(ctx context.Context, tx *sql.Tx, chatID int64, text string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (chat_id, sender_id, content, is_system, created_at)
		VALUES (?, NULL, ?, 1, ?)
	`, chatID, text, now())
	if err != nil {
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
