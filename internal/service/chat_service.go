package service

import (
	"context"
	"fmt"
	"strings"

	"messenger/internal/domain"
	"messenger/internal/security"
)

// ChatService owns chats and their membership rosters.
type ChatService struct {
	chats        domain.ChatRepository
	participants domain.ParticipantRepository
	users        domain.UserRepository
	encryptor    *security.Encryptor
}

func NewChatService(
	chats domain.ChatRepository,
	participants domain.ParticipantRepository,
	users domain.UserRepository,
	encryptor *security.Encryptor,
) *ChatService {
	return &ChatService{
		chats:        chats,
		participants: participants,
		users:        users,
		encryptor:    encryptor,
	}
}

// ListForUser returns the chats the user is an active member of, most
// recently active first.
func (s *ChatService) ListForUser(ctx context.Context, userID int64) ([]*domain.ChatSummary, error) {
	chats, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range chats {
		if c.LastMessage != nil && !c.LastMessagePlain {
			plain := s.encryptor.DecryptOrRaw(*c.LastMessage)
			c.LastMessage = &plain
		}
	}
	if chats == nil {
		chats = []*domain.ChatSummary{}
	}
	return chats, nil
}

// CreatePersonal opens the personal chat between userID and the user named
// otherUsername. existing is true when the pair already shared a chat.
func (s *ChatService) CreatePersonal(ctx context.Context, userID int64, otherUsername string) (chatID int64, existing bool, err error) {
	otherUsername = strings.TrimSpace(otherUsername)
	if otherUsername == "" {
		return 0, false, domain.Invalid("other_username is required")
	}
	other, err := s.users.GetByUsername(ctx, otherUsername)
	if err != nil {
		return 0, false, fmt.Errorf("get user: %w", err)
	}
	if other == nil {
		return 0, false, fmt.Errorf("user %q: %w", otherUsername, domain.ErrNotFound)
	}
	if other.ID == userID {
		return 0, false, domain.Invalid("cannot open a personal chat with yourself")
	}
	return s.chats.CreatePersonal(ctx, userID, other.ID)
}

type CreateGroupInput struct {
	CreatorID int64
	Name      string
	Avatar    *string
	MemberIDs []int64
}

// CreateGroup creates a group owned by the creator. Identical rosters are
// allowed; groups are never de-duplicated.
func (s *ChatService) CreateGroup(ctx context.Context, in CreateGroupInput) (*domain.Chat, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("group name is required")
	}

	seen := map[int64]struct{}{in.CreatorID: {}}
	members := make([]int64, 0, len(in.MemberIDs))
	for _, id := range in.MemberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get member: %w", err)
		}
		if u == nil {
			return nil, fmt.Errorf("member %d: %w", id, domain.ErrNotFound)
		}
		members = append(members, id)
	}

	creatorID := in.CreatorID
	chat := &domain.Chat{
		Name:      &name,
		Avatar:    blankToNil(in.Avatar),
		CreatorID: &creatorID,
	}
	if err := s.chats.CreateGroup(ctx, chat, members); err != nil {
		return nil, err
	}
	return chat, nil
}

type ParticipantList struct {
	Participants []*domain.Participant `json:"participants"`
	CreatorID    *int64                `json:"creator_id"`
}

// ListParticipants returns the active members ordered by join time.
func (s *ChatService) ListParticipants(ctx context.Context, chatID, callerID int64) (*ParticipantList, error) {
	chat, err := s.memberChat(ctx, chatID, callerID)
	if err != nil {
		return nil, err
	}
	participants, err := s.participants.ListActive(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		p.IsCreator = chat.IsCreator(p.UserID)
	}
	if participants == nil {
		participants = []*domain.Participant{}
	}
	return &ParticipantList{Participants: participants, CreatorID: chat.CreatorID}, nil
}

// Leave ends the user's membership and posts a departure notice.
func (s *ChatService) Leave(ctx context.Context, chatID, userID int64) error {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	notice := fmt.Sprintf("%s left the chat", user.Nickname)
	if chat.IsGroup {
		notice = fmt.Sprintf("%s left the group", user.Nickname)
	}
	left, err := s.participants.Deactivate(ctx, chatID, userID, notice)
	if err != nil {
		return err
	}
	if !left {
		return fmt.Errorf("membership in chat %d: %w", chatID, domain.ErrNotFound)
	}
	return nil
}

// RemoveMember lets the group creator remove a member. Removing someone
// who does not exist or is no longer a member succeeds without effect;
// removed reports whether a membership actually ended.
func (s *ChatService) RemoveMember(ctx context.Context, chatID, actingUserID, memberID int64) (removed bool, err error) {
	chat, err := s.creatorChat(ctx, chatID, actingUserID)
	if err != nil {
		return false, err
	}
	member, err := s.users.GetByID(ctx, memberID)
	if err != nil {
		return false, fmt.Errorf("get member: %w", err)
	}
	if member == nil {
		return false, nil
	}
	return s.participants.Deactivate(ctx, chat.ID, memberID, fmt.Sprintf("%s was removed from the group", member.Nickname))
}

type GroupInfoInput struct {
	Name   string
	Avatar *string
}

func (s *ChatService) UpdateGroupInfo(ctx context.Context, chatID, actingUserID int64, in GroupInfoInput) (*domain.Chat, error) {
	chat, err := s.creatorChat(ctx, chatID, actingUserID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("group name is required")
	}
	avatar := blankToNil(in.Avatar)
	if err := s.chats.UpdateInfo(ctx, chatID, &name, avatar); err != nil {
		return nil, err
	}
	chat.Name, chat.Avatar = &name, avatar
	return chat, nil
}

// ParticipantIDs returns the ids of the active members (for WS broadcasts).
func (s *ChatService) ParticipantIDs(ctx context.Context, chatID int64) ([]int64, error) {
	return s.participants.ActiveUserIDs(ctx, chatID)
}

func (s *ChatService) getChat(ctx context.Context, chatID int64) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, fmt.Errorf("chat %d: %w", chatID, domain.ErrNotFound)
	}
	return chat, nil
}

func (s *ChatService) memberChat(ctx context.Context, chatID, userID int64) (*domain.Chat, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ok, err := s.participants.IsActive(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: not a member of this chat", domain.ErrForbidden)
	}
	return chat, nil
}

func (s *ChatService) creatorChat(ctx context.Context, chatID, userID int64) (*domain.Chat, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsGroup {
		return nil, domain.Invalid("chat %d is not a group", chatID)
	}
	if !chat.IsCreator(userID) {
		return nil, fmt.Errorf("%w: only the group creator can do this", domain.ErrForbidden)
	}
	return chat, nil
}
