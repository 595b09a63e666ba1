package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/domain/user"
)

type userRow struct {
	ID                   string       `db:"id"`
	Email                string       `db:"email"`
	Username             string       `db:"username"`
	PasswordHash         string       `db:"password_hash"`
	FullName             string       `db:"full_name"`
	Bio                  string       `db:"bio"`
	Avatar               string       `db:"avatar"`
	IsVerified           bool         `db:"is_verified"`
	VerificationToken    string       `db:"verification_token"`
	ResetPasswordToken   string       `db:"reset_password_token"`
	ResetPasswordExpires sql.NullTime `db:"reset_password_expires"`
	LastActive           time.Time    `db:"last_active"`
	CreatedAt            time.Time    `db:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at"`
}

const userColumns = `id, email, username, password_hash, full_name, bio, avatar, is_verified,
	verification_token, reset_password_token, reset_password_expires, last_active, created_at, updated_at`

func newUserRow(u user.User) userRow {
	return userRow{
		ID:                   u.ID,
		Email:                u.Email,
		Username:             u.Username,
		PasswordHash:         u.PasswordHash,
		FullName:             u.FullName,
		Bio:                  u.Bio,
		Avatar:               u.Avatar,
		IsVerified:           u.IsVerified,
		VerificationToken:    u.VerificationToken,
		ResetPasswordToken:   u.ResetPasswordToken,
		ResetPasswordExpires: nullTime(u.ResetPasswordExpires),
		LastActive:           u.LastActive,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:                   r.ID,
		Email:                r.Email,
		Username:             r.Username,
		PasswordHash:         r.PasswordHash,
		FullName:             r.FullName,
		Bio:                  r.Bio,
		Avatar:               r.Avatar,
		IsVerified:           r.IsVerified,
		VerificationToken:    r.VerificationToken,
		ResetPasswordToken:   r.ResetPasswordToken,
		ResetPasswordExpires: timePtr(r.ResetPasswordExpires),
		LastActive:           r.LastActive,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type postRow struct {
	ID           string         `db:"id"`
	AuthorID     string         `db:"author_id"`
	Content      string         `db:"content"`
	Media        []byte         `db:"media"`
	Hashtags     pq.StringArray `db:"hashtags"`
	Mentions     pq.StringArray `db:"mentions"`
	Location     []byte         `db:"location"`
	IsPrivate    bool           `db:"is_private"`
	IsEdited     bool           `db:"is_edited"`
	EditedAt     sql.NullTime   `db:"edited_at"`
	IsDeleted    bool           `db:"is_deleted"`
	DeletedAt    sql.NullTime   `db:"deleted_at"`
	ParentPostID string         `db:"parent_post_id"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

const postColumns = `id, author_id, content, media, hashtags, mentions, location, is_private,
	is_edited, edited_at, is_deleted, deleted_at, parent_post_id, created_at, updated_at`

func newPostRow(p post.Post) (postRow, error) {
	media := p.Media
	if media == nil {
		media = []post.Media{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return postRow{}, err
	}
	var locationJSON []byte
	if p.Location != nil {
		if locationJSON, err = json.Marshal(p.Location); err != nil {
			return postRow{}, err
		}
	}
	return postRow{
		ID:           p.ID,
		AuthorID:     p.AuthorID,
		Content:      p.Content,
		Media:        mediaJSON,
		Hashtags:     stringArray(p.Hashtags),
		Mentions:     stringArray(p.Mentions),
		Location:     locationJSON,
		IsPrivate:    p.IsPrivate,
		IsEdited:     p.IsEdited,
		EditedAt:     nullTime(p.EditedAt),
		IsDeleted:    p.IsDeleted,
		DeletedAt:    nullTime(p.DeletedAt),
		ParentPostID: p.ParentPostID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}, nil
}

func (r postRow) toDomain() (post.Post, error) {
	p := post.Post{
		ID:           r.ID,
		AuthorID:     r.AuthorID,
		Content:      r.Content,
		Hashtags:     []string(r.Hashtags),
		Mentions:     []string(r.Mentions),
		IsPrivate:    r.IsPrivate,
		IsEdited:     r.IsEdited,
		EditedAt:     timePtr(r.EditedAt),
		IsDeleted:    r.IsDeleted,
		DeletedAt:    timePtr(r.DeletedAt),
		ParentPostID: r.ParentPostID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.Media) > 0 {
		if err := json.Unmarshal(r.Media, &p.Media); err != nil {
			return post.Post{}, err
		}
	}
	if len(r.Location) > 0 {
		var loc post.Location
		if err := json.Unmarshal(r.Location, &loc); err != nil {
			return post.Post{}, err
		}
		p.Location = &loc
	}
	return p, nil
}

type commentRow struct {
	ID              string         `db:"id"`
	PostID          string         `db:"post_id"`
	AuthorID        string         `db:"author_id"`
	Content         string         `db:"content"`
	Hashtags        pq.StringArray `db:"hashtags"`
	Mentions        pq.StringArray `db:"mentions"`
	ParentCommentID string         `db:"parent_comment_id"`
	IsEdited        bool           `db:"is_edited"`
	EditedAt        sql.NullTime   `db:"edited_at"`
	IsDeleted       bool           `db:"is_deleted"`
	DeletedAt       sql.NullTime   `db:"deleted_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

const commentColumns = `id, post_id, author_id, content, hashtags, mentions, parent_comment_id,
	is_edited, edited_at, is_deleted, deleted_at, created_at, updated_at`

func newCommentRow(c post.Comment) commentRow {
	return commentRow{
		ID:              c.ID,
		PostID:          c.PostID,
		AuthorID:        c.AuthorID,
		Content:         c.Content,
		Hashtags:        stringArray(c.Hashtags),
		Mentions:        stringArray(c.Mentions),
		ParentCommentID: c.ParentCommentID,
		IsEdited:        c.IsEdited,
		EditedAt:        nullTime(c.EditedAt),
		IsDeleted:       c.IsDeleted,
		DeletedAt:       nullTime(c.DeletedAt),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func (r commentRow) toDomain() post.Comment {
	return post.Comment{
		ID:              r.ID,
		PostID:          r.PostID,
		AuthorID:        r.AuthorID,
		Content:         r.Content,
		Hashtags:        []string(r.Hashtags),
		Mentions:        []string(r.Mentions),
		ParentCommentID: r.ParentCommentID,
		IsEdited:        r.IsEdited,
		EditedAt:        timePtr(r.EditedAt),
		IsDeleted:       r.IsDeleted,
		DeletedAt:       timePtr(r.DeletedAt),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type chatRow struct {
	ID            string    `db:"id"`
	Type          string    `db:"type"`
	Name          string    `db:"name"`
	CreatorID     string    `db:"creator_id"`
	LastMessageID string    `db:"last_message_id"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

const chatColumns = `id, type, name, creator_id, last_message_id, is_active, created_at, updated_at`

type participantRow struct {
	ChatID      string `db:"chat_id"`
	UserID      string `db:"user_id"`
	UnreadCount int    `db:"unread_count"`
}

func (r chatRow) toDomain(participants []participantRow) chat.Chat {
	c := chat.Chat{
		ID:            r.ID,
		Type:          chat.Type(r.Type),
		Name:          r.Name,
		CreatorID:     r.CreatorID,
		LastMessageID: r.LastMessageID,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Participants:  make([]string, 0, len(participants)),
		UnreadCounts:  make(map[string]int, len(participants)),
	}
	for _, p := range participants {
		c.Participants = append(c.Participants, p.UserID)
		c.UnreadCounts[p.UserID] = p.UnreadCount
	}
	return c
}

type messageRow struct {
	ID        string       `db:"id"`
	ChatID    string       `db:"chat_id"`
	SenderID  string       `db:"sender_id"`
	Content   string       `db:"content"`
	Type      string       `db:"type"`
	FileURL   string       `db:"file_url"`
	ReplyToID string       `db:"reply_to_id"`
	IsDeleted bool         `db:"is_deleted"`
	DeletedAt sql.NullTime `db:"deleted_at"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

const messageColumns = `id, chat_id, sender_id, content, type, file_url, reply_to_id, is_deleted, deleted_at, created_at, updated_at`

type readRow struct {
	MessageID string    `db:"message_id"`
	UserID    string    `db:"user_id"`
	ReadAt    time.Time `db:"read_at"`
}

func newMessageRow(m chat.Message) messageRow {
	return messageRow{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      string(m.Type),
		FileURL:   m.FileURL,
		ReplyToID: m.ReplyToID,
		IsDeleted: m.IsDeleted,
		DeletedAt: nullTime(m.DeletedAt),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (r messageRow) toDomain(reads []readRow) chat.Message {
	m := chat.Message{
		ID:        r.ID,
		ChatID:    r.ChatID,
		SenderID:  r.SenderID,
		Content:   r.Content,
		Type:      chat.MessageType(r.Type),
		FileURL:   r.FileURL,
		ReplyToID: r.ReplyToID,
		IsDeleted: r.IsDeleted,
		DeletedAt: timePtr(r.DeletedAt),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		ReadBy:    make([]chat.Read, 0, len(reads)),
	}
	for _, rd := range reads {
		m.ReadBy = append(m.ReadBy, chat.Read{UserID: rd.UserID, ReadAt: rd.ReadAt})
	}
	return m
}

type notificationRow struct {
	ID          string    `db:"id"`
	RecipientID string    `db:"recipient_id"`
	SenderID    string    `db:"sender_id"`
	Type        string    `db:"type"`
	PostID      string    `db:"post_id"`
	CommentID   string    `db:"comment_id"`
	ChatID      string    `db:"chat_id"`
	MessageID   string    `db:"message_id"`
	IsRead      bool      `db:"is_read"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

const notificationColumns = `id, recipient_id, sender_id, type, post_id, comment_id, chat_id, message_id, is_read, created_at, updated_at`

func newNotificationRow(n notification.Notification) notificationRow {
	return notificationRow{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		SenderID:    n.SenderID,
		Type:        string(n.Type),
		PostID:      n.PostID,
		CommentID:   n.CommentID,
		ChatID:      n.ChatID,
		MessageID:   n.MessageID,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func (r notificationRow) toDomain() notification.Notification {
	return notification.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		SenderID:    r.SenderID,
		Type:        notification.Type(r.Type),
		PostID:      r.PostID,
		CommentID:   r.CommentID,
		ChatID:      r.ChatID,
		MessageID:   r.MessageID,
		IsRead:      r.IsRead,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringArray(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}
