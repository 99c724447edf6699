package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
// Lookups return (nil, nil) when no row matches.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdateNickname(ctx context.Context, id int64, nickname string) error
	UpdateAvatar(ctx context.Context, id int64, avatar *string) error
	UpdateTheme(ctx context.Context, id int64, theme Theme) error
	UpdateVisibility(ctx context.Context, id int64, hide bool) error
	// Delete removes the user's memberships, the messages they sent and the
	// user row in a single transaction.
	Delete(ctx context.Context, id int64) error
}

// ChatRepository defines persistence operations for chats.
type ChatRepository interface {
	// CreatePersonal returns the personal chat shared by the two users,
	// creating it if none exists. Check and insert are atomic per pair.
	CreatePersonal(ctx context.Context, userID, otherID int64) (chatID int64, existing bool, err error)
	// CreateGroup inserts the chat, the creator's membership and one
	// membership per member id in a single transaction.
	CreateGroup(ctx context.Context, c *Chat, memberIDs []int64) error
	GetByID(ctx context.Context, id int64) (*Chat, error)
	ListForUser(ctx context.Context, userID int64) ([]*ChatSummary, error)
	UpdateInfo(ctx context.Context, chatID int64, name, avatar *string) error
}

// ParticipantRepository defines operations around chat memberships.
type ParticipantRepository interface {
	ListActive(ctx context.Context, chatID int64) ([]*Participant, error)
	ActiveUserIDs(ctx context.Context, chatID int64) ([]int64, error)
	IsActive(ctx context.Context, chatID, userID int64) (bool, error)
	// Deactivate sets left_at on the user's active membership and appends a
	// system message with the given text, atomically. It reports false and
	// writes nothing when there is no active membership.
	Deactivate(ctx context.Context, chatID, userID int64, notice string) (bool, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	ListForChat(ctx context.Context, chatID int64) ([]*Message, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	MarkRead(ctx context.Context, id int64) error
	Redact(ctx context.Context, id int64) error
}
