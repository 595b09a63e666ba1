// Package chat models conversations, their participants and messages.
package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/errors"
)

const (
	MaxNameLength         = 100
	MaxMessageLength      = 1000
	DeletedMessageContent = "This message was deleted"
)

// Type is DIRECT or GROUP.
type Type string

const (
	Direct Type = "DIRECT"
	Group  Type = "GROUP"
)

// MessageType is the kind of message payload.
type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageImage MessageType = "IMAGE"
	MessageFile  MessageType = "FILE"
)

// Chat is a conversation. UnreadCounts is keyed by participant id.
type Chat struct {
	ID            string
	Type          Type
	Name          string
	CreatorID     string
	Participants  []string
	UnreadCounts  map[string]int
	LastMessageID string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Read records when a participant read a message.
type Read struct {
	UserID string
	ReadAt time.Time
}

// Message is one entry in a chat.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	Type      MessageType
	FileURL   string
	ReplyToID string
	ReadBy    []Read
	IsDeleted bool
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Input is the createChat payload.
type Input struct {
	ParticipantIDs []string
	Type           Type
	Name           string
}

// Update is the updateChat payload.
type Update struct {
	Name     *string
	IsActive *bool
}

// MessageInput is the sendMessage payload.
type MessageInput struct {
	ChatID    string
	Content   string
	Type      MessageType
	FileURL   string
	ReplyToID string
}

// =============================================================================
// Validation
// =============================================================================

// ParticipantSet returns the de-duplicated participants with the creator
// included first.
func ParticipantSet(creatorID string, ids []string) []string {
	out := []string{creatorID}
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ValidateInput checks a createChat payload for the given creator.
func ValidateInput(creatorID string, in Input) error {
	if in.Type != Direct && in.Type != Group {
		return errors.Validation("Chat type must be DIRECT or GROUP").WithDetails("field", "type")
	}
	participants := ParticipantSet(creatorID, in.ParticipantIDs)
	if len(participants) < 2 {
		return errors.Validation("A chat needs at least one other participant").WithDetails("field", "participantIds")
	}
	if in.Type == Direct && len(participants) != 2 {
		return errors.Validation("A direct chat has exactly two participants").WithDetails("field", "participantIds")
	}
	return ValidateName(in.Name)
}

// ValidateName bounds the chat name.
func ValidateName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) > MaxNameLength {
		return errors.Validation(fmt.Sprintf("Chat name cannot exceed %d characters", MaxNameLength)).WithDetails("field", "name")
	}
	return nil
}

// ValidateMessage checks a sendMessage payload. Text messages need content;
// image and file messages need a file URL.
func ValidateMessage(in MessageInput) error {
	if strings.TrimSpace(in.ChatID) == "" {
		return errors.Validation("chatId is required").WithDetails("field", "chatId")
	}
	content := strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return errors.Validation(fmt.Sprintf("Message cannot exceed %d characters", MaxMessageLength)).WithDetails("field", "content")
	}
	switch messageType(in.Type) {
	case MessageText:
		if content == "" {
			return errors.Validation("Message content is required").WithDetails("field", "content")
		}
	case MessageImage, MessageFile:
		if strings.TrimSpace(in.FileURL) == "" {
			return errors.Validation("fileUrl is required for this message type").WithDetails("field", "fileUrl")
		}
	default:
		return errors.Validation("Message type must be TEXT, IMAGE or FILE").WithDetails("field", "type")
	}
	return nil
}

func messageType(t MessageType) MessageType {
	if t == "" {
		return MessageText
	}
	return t
}

// =============================================================================
// Chat mutations
// =============================================================================

// New builds a chat from a validated payload. Direct chats carry no name.
func New(creatorID string, in Input, now time.Time) Chat {
	participants := ParticipantSet(creatorID, in.ParticipantIDs)
	unread := make(map[string]int, len(participants))
	for _, p := range participants {
		unread[p] = 0
	}
	name := strings.TrimSpace(in.Name)
	if in.Type == Direct {
		name = ""
	}
	return Chat{
		Type:         in.Type,
		Name:         name,
		CreatorID:    creatorID,
		Participants: participants,
		UnreadCounts: unread,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsParticipant reports membership.
func IsParticipant(c Chat, userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns the unread counter of userID.
func UnreadFor(c Chat, userID string) int {
	return c.UnreadCounts[userID]
}

// ApplyUpdate applies an updateChat payload. Direct chats cannot be renamed.
func ApplyUpdate(c Chat, u Update, now time.Time) (Chat, domain.Intent, error) {
	intent := domain.NoChange
	if u.Name != nil {
		if c.Type == Direct {
			return c, domain.NoChange, errors.Forbidden("Cannot update name of direct chat")
		}
		if err := ValidateName(*u.Name); err != nil {
			return c, domain.NoChange, err
		}
		if name := strings.TrimSpace(*u.Name); name != c.Name {
			c.Name = name
			intent = domain.Update
		}
	}
	if u.IsActive != nil && *u.IsActive != c.IsActive {
		c.IsActive = *u.IsActive
		intent = domain.Update
	}
	if intent == domain.Update {
		c.UpdatedAt = now
	}
	return c, intent, nil
}

// RecordMessage moves the chat's last message to m and bumps the unread
// counters of everyone except the sender.
func RecordMessage(c Chat, m Message, now time.Time) (Chat, domain.Intent) {
	unread := make(map[string]int, len(c.Participants))
	for _, p := range c.Participants {
		n := c.UnreadCounts[p]
		if p != m.SenderID {
			n++
		}
		unread[p] = n
	}
	c.UnreadCounts = unread
	c.LastMessageID = m.ID
	c.UpdatedAt = now
	return c, domain.Update
}

// MarkRead resets the unread counter of userID.
func MarkRead(c Chat, userID string) (Chat, domain.Intent) {
	if c.UnreadCounts[userID] == 0 {
		return c, domain.NoChange
	}
	unread := make(map[string]int, len(c.UnreadCounts))
	for k, v := range c.UnreadCounts {
		unread[k] = v
	}
	unread[userID] = 0
	c.UnreadCounts = unread
	return c, domain.Update
}

// Leave removes userID from a group chat. The chat is deactivated when its
// last participant leaves.
func Leave(c Chat, userID string, now time.Time) (Chat, domain.Intent, error) {
	if c.Type != Group {
		return c, domain.NoChange, errors.Forbidden("Only group chats can be left")
	}
	if !IsParticipant(c, userID) {
		return c, domain.NoChange, nil
	}
	participants := make([]string, 0, len(c.Participants)-1)
	for _, p := range c.Participants {
		if p != userID {
			participants = append(participants, p)
		}
	}
	unread := make(map[string]int, len(participants))
	for _, p := range participants {
		unread[p] = c.UnreadCounts[p]
	}
	c.Participants = participants
	c.UnreadCounts = unread
	if len(participants) == 0 {
		c.IsActive = false
	}
	c.UpdatedAt = now
	return c, domain.Update, nil
}

// =============================================================================
// Message mutations
// =============================================================================

// NewMessage builds a message already read by its sender.
func NewMessage(senderID string, in MessageInput, now time.Time) Message {
	return Message{
		ChatID:    in.ChatID,
		SenderID:  senderID,
		Content:   strings.TrimSpace(in.Content),
		Type:      messageType(in.Type),
		FileURL:   strings.TrimSpace(in.FileURL),
		ReplyToID: in.ReplyToID,
		ReadBy:    []Read{{UserID: senderID, ReadAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ReadByUser reports whether userID has read m.
func ReadByUser(m Message, userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MarkMessageRead appends a read receipt for userID.
func MarkMessageRead(m Message, userID string, now time.Time) (Message, domain.Intent) {
	if ReadByUser(m, userID) {
		return m, domain.NoChange
	}
	reads := make([]Read, len(m.ReadBy), len(m.ReadBy)+1)
	copy(reads, m.ReadBy)
	m.ReadBy = append(reads, Read{UserID: userID, ReadAt: now})
	return m, domain.Update
}

// MarkMessageDeleted soft-deletes m and drops its attachment.
func MarkMessageDeleted(m Message, now time.Time) (Message, domain.Intent) {
	if m.IsDeleted {
		return m, domain.NoChange
	}
	m.IsDeleted = true
	m.DeletedAt = &now
	m.Content = DeletedMessageContent
	m.FileURL = ""
	m.UpdatedAt = now
	return m, domain.Update
}
