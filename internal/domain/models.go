package domain

import "time"

// Theme is the UI theme preference stored on a user.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeSystem, ThemeLight, ThemeDark:
		return true
	}
	return false
}

// User represents an application user.
type User struct {
	ID               int64     `db:"id" json:"id"`
	Username         string    `db:"username" json:"username"`
	HashedPassword   string    `db:"hashed_password" json:"-"`
	Nickname         string    `db:"nickname" json:"nickname"`
	Avatar           *string   `db:"avatar" json:"avatar"`
	Theme            Theme     `db:"theme" json:"theme"`
	HideOnlineStatus bool      `db:"hide_online_status" json:"hide_online_status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Chat is either a personal chat between two users or a named group.
// Name, Avatar and CreatorID are only meaningful for groups.
type Chat struct {
	ID        int64     `db:"id" json:"id"`
	IsGroup   bool      `db:"is_group" json:"is_group"`
	Name      *string   `db:"name" json:"name"`
	Avatar    *string   `db:"avatar" json:"avatar"`
	CreatorID *int64    `db:"creator_id" json:"creator_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsCreator reports whether userID created the chat.
func (c *Chat) IsCreator(userID int64) bool {
	return c.CreatorID != nil && *c.CreatorID == userID
}

// ChatSummary is a row of a user's chat list. For personal chats Name and
// Avatar are taken from the other participant.
type ChatSummary struct {
	ID              int64      `json:"id"`
	Name            *string    `json:"name"`
	Avatar          *string    `json:"avatar"`
	IsGroup         bool       `json:"is_group"`
	CreatorID       *int64     `json:"creator_id"`
	OtherUsername   *string    `json:"other_username,omitempty"`
	LastMessage     *string    `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time"`

	// set by the store so the ledger can decide whether to decrypt
	LastMessagePlain bool `json:"-"`
}

// Participant is an active member of a chat.
type Participant struct {
	UserID    int64     `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Avatar    *string   `json:"avatar"`
	JoinedAt  time.Time `json:"joined_at"`
	IsCreator bool      `json:"is_creator"`
}

// Message is a single ledger entry. SenderID is nil for system messages.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	ChatID         int64      `db:"chat_id" json:"chat_id"`
	SenderID       *int64     `db:"sender_id" json:"sender_id"`
	SenderNickname *string    `json:"sender_nickname"`
	SenderUsername *string    `json:"sender_username"`
	Content        string     `db:"content" json:"content"` // encrypted at rest
	PhotoURL       *string    `db:"photo_url" json:"photo_url"`
	PhotoCaption   *string    `db:"photo_caption" json:"photo_caption"`
	VoiceURL       *string    `db:"voice_url" json:"voice_url"`
	VoiceDuration  *float64   `db:"voice_duration" json:"voice_duration"`
	IsSystem       bool       `db:"is_system" json:"is_system"`
	IsEdited       bool       `db:"is_edited" json:"is_edited"`
	IsRead         bool       `db:"is_read" json:"is_read"`
	IsDeleted      bool       `db:"is_deleted" json:"is_deleted"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at"`
}

// HasAttachment reports whether the message carries a photo or voice clip.
func (m *Message) HasAttachment() bool {
	return m.PhotoURL != nil || m.VoiceURL != nil
}

// RedactedContent replaces the body of a deleted message.
const RedactedContent = "[Deleted]"
