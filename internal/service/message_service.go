package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"messenger/internal/domain"
	"messenger/internal/security"
)

const maxContentLen = 5000

// Attachment is an optional payload of a message: a PhotoAttachment or a
// VoiceAttachment.
type Attachment interface {
	attach(m *domain.Message) error
}

type PhotoAttachment struct {
	URL     string
	Caption string
}

func (a PhotoAttachment) attach(m *domain.Message) error {
	url := strings.TrimSpace(a.URL)
	if url == "" {
		return domain.Invalid("photo url is required")
	}
	m.PhotoURL = &url
	if c := strings.TrimSpace(a.Caption); c != "" {
		m.PhotoCaption = &c
	}
	return nil
}

type VoiceAttachment struct {
	URL             string
	DurationSeconds float64
}

func (a VoiceAttachment) attach(m *domain.Message) error {
	url := strings.TrimSpace(a.URL)
	if url == "" {
		return domain.Invalid("voice url is required")
	}
	if a.DurationSeconds <= 0 {
		return domain.Invalid("voice duration must be positive")
	}
	d := a.DurationSeconds
	m.VoiceURL, m.VoiceDuration = &url, &d
	return nil
}

// MessageService is the per-chat message ledger. Messages are never
// physically removed here; deletion redacts the row in place.
type MessageService struct {
	messages     domain.MessageRepository
	participants domain.ParticipantRepository
	encryptor    *security.Encryptor
}

func NewMessageService(
	messages domain.MessageRepository,
	participants domain.ParticipantRepository,
	encryptor *security.Encryptor,
) *MessageService {
	return &MessageService{
		messages:     messages,
		participants: participants,
		encryptor:    encryptor,
	}
}

type SendInput struct {
	ChatID     int64
	SenderID   int64
	Content    string
	Attachment Attachment
}

func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	if in.ChatID <= 0 || in.SenderID <= 0 {
		return nil, domain.Invalid("chat_id and sender_id are required")
	}
	if utf8.RuneCountInString(in.Content) > maxContentLen {
		return nil, domain.Invalid("message content exceeds %d characters", maxContentLen)
	}
	if strings.TrimSpace(in.Content) == "" && in.Attachment == nil {
		return nil, domain.Invalid("message content cannot be empty")
	}
	if err := s.requireMember(ctx, in.ChatID, in.SenderID); err != nil {
		return nil, err
	}

	senderID := in.SenderID
	msg := &domain.Message{
		ChatID:   in.ChatID,
		SenderID: &senderID,
	}
	if in.Attachment != nil {
		if err := in.Attachment.attach(msg); err != nil {
			return nil, err
		}
	}
	encrypted, err := s.encryptor.Encrypt(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	msg.Content = encrypted

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return s.get(ctx, msg.ID)
}

// List returns every message of the chat, system and redacted ones
// included, oldest first.
func (s *MessageService) List(ctx context.Context, chatID, callerID int64) ([]*domain.Message, error) {
	if err := s.requireMember(ctx, chatID, callerID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListForChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		s.reveal(m)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

// Edit replaces the content of the caller's own message.
func (s *MessageService) Edit(ctx context.Context, actorID, messageID int64, content string) (*domain.Message, error) {
	msg, err := s.ownMessage(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, domain.ErrMessageDeleted
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return nil, domain.Invalid("message content exceeds %d characters", maxContentLen)
	}
	if strings.TrimSpace(content) == "" && !msg.HasAttachment() {
		return nil, domain.Invalid("message content cannot be empty")
	}

	encrypted, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	if err := s.messages.UpdateContent(ctx, messageID, encrypted); err != nil {
		return nil, err
	}
	return s.get(ctx, messageID)
}

// MarkRead flags a message as read by a member of its chat.
func (s *MessageService) MarkRead(ctx context.Context, actorID, messageID int64) (*domain.Message, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, msg.ChatID, actorID); err != nil {
		return nil, err
	}
	if err := s.messages.MarkRead(ctx, messageID); err != nil {
		return nil, err
	}
	msg.IsRead = true
	return msg, nil
}

// Delete redacts the caller's own message: the body becomes a placeholder
// and attachments are cleared, the row keeps its id and position.
func (s *MessageService) Delete(ctx context.Context, actorID, messageID int64) (*domain.Message, error) {
	msg, err := s.ownMessage(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsDeleted {
		if err := s.messages.Redact(ctx, messageID); err != nil {
			return nil, err
		}
	}
	return s.get(ctx, messageID)
}

func (s *MessageService) get(ctx context.Context, messageID int64) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %d: %w", messageID, domain.ErrNotFound)
	}
	s.reveal(msg)
	return msg, nil
}

func (s *MessageService) ownMessage(ctx context.Context, actorID, messageID int64) (*domain.Message, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID == nil || *msg.SenderID != actorID {
		return nil, fmt.Errorf("%w: not the sender of this message", domain.ErrForbidden)
	}
	return msg, nil
}

func (s *MessageService) requireMember(ctx context.Context, chatID, userID int64) error {
	ok, err := s.participants.IsActive(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: not a member of this chat", domain.ErrForbidden)
	}
	return nil
}

// reveal decrypts the body in place. System notices and redaction
// placeholders are stored in clear.
func (s *MessageService) reveal(m *domain.Message) {
	if m.IsSystem || m.IsDeleted {
		return
	}
	m.Content = s.encryptor.DecryptOrRaw(m.Content)
}
