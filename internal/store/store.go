// Package store selects the database driver and exposes its repositories.
package store

import (
	"database/sql"
	"fmt"

	"messenger/internal/config"
	"messenger/internal/domain"
	"messenger/internal/store/postgres"
	"messenger/internal/store/sqlite"
)

// Store is an open, migrated database with one repository per aggregate.
type Store struct {
	DB           *sql.DB
	Users        domain.UserRepository
	Chats        domain.ChatRepository
	Participants domain.ParticipantRepository
	Messages     domain.MessageRepository
}

// Open connects to the configured database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return &Store{
			DB:           db,
			Users:        sqlite.NewUserRepo(db),
			Chats:        sqlite.NewChatRepo(db),
			Participants: sqlite.NewParticipantRepo(db),
			Messages:     sqlite.NewMessageRepo(db),
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL, cfg.DBMaxOpenConns)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return &Store{
			DB:           db,
			Users:        postgres.NewUserRepo(db),
			Chats:        postgres.NewChatRepo(db),
			Participants: postgres.NewParticipantRepo(db),
			Messages:     postgres.NewMessageRepo(db),
		}, nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

func (s *Store) Close() error {
	return s.DB.Close()
}
