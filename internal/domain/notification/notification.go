// Package notification models per-user notifications.
package notification

import (
	"time"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/errors"
)

// Type classifies a notification.
type Type string

const (
	Follow  Type = "FOLLOW"
	Like    Type = "LIKE"
	Comment Type = "COMMENT"
	Mention Type = "MENTION"
	Share   Type = "SHARE"
	Message Type = "MESSAGE"
	System  Type = "SYSTEM"
)

// Types lists every known type.
var Types = []Type{Follow, Like, Comment, Mention, Share, Message, System}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Notification is addressed to one recipient.
type Notification struct {
	ID          string
	RecipientID string
	SenderID    string
	Type        Type
	PostID      string
	CommentID   string
	ChatID      string
	MessageID   string
	IsRead      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows myNotifications. Nil fields match everything.
type Filter struct {
	Type     *Type
	IsRead   *bool
	FromDate *time.Time
	ToDate   *time.Time
}

// Matches reports whether n passes f.
func (f Filter) Matches(n Notification) bool {
	if f.Type != nil && n.Type != *f.Type {
		return false
	}
	if f.IsRead != nil && n.IsRead != *f.IsRead {
		return false
	}
	if f.FromDate != nil && n.CreatedAt.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && n.CreatedAt.After(*f.ToDate) {
		return false
	}
	return true
}

// HasEntity reports whether n references a post, comment, chat or message.
func HasEntity(n Notification) bool {
	return n.PostID != "" || n.CommentID != "" || n.ChatID != "" || n.MessageID != ""
}

// Validate checks a notification before it is stored. FOLLOW points at its
// sender and SYSTEM at nothing; every other type needs an entity reference.
func Validate(n Notification) error {
	if n.RecipientID == "" {
		return errors.Validation("Notification recipient is required").WithDetails("field", "recipient")
	}
	if !n.Type.Valid() {
		return errors.Validation("Unknown notification type").WithDetails("field", "type")
	}
	switch n.Type {
	case System:
		return nil
	case Follow:
		if n.SenderID == "" {
			return errors.Validation("Follow notification needs a sender").WithDetails("field", "sender")
		}
		return nil
	}
	if !HasEntity(n) {
		return errors.Validation("Notification must reference at least one entity (post, comment, chat, or message)")
	}
	return nil
}

// ShouldNotify reports whether an action by senderID warrants notifying
// recipientID. Nobody is notified about their own actions.
func ShouldNotify(senderID, recipientID string) bool {
	return recipientID != "" && senderID != recipientID
}

// New stamps a notification for creation.
func New(n Notification, now time.Time) Notification {
	n.IsRead = false
	n.CreatedAt = now
	n.UpdatedAt = now
	return n
}

// MarkRead flips n to read.
func MarkRead(n Notification, now time.Time) (Notification, domain.Intent) {
	if n.IsRead {
		return n, domain.NoChange
	}
	n.IsRead = true
	n.UpdatedAt = now
	return n, domain.Update
}

// BelongsTo reports whether userID is the recipient.
func BelongsTo(n Notification, userID string) bool {
	return n.RecipientID == userID
}
