// Package post models posts, comments and their content rules.
package post

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/errors"
)

const (
	MaxContentLength        = 1000
	MaxCommentContentLength = 500
	MaxMediaItems           = 10

	DeletedPostContent    = "This post was deleted"
	DeletedCommentContent = "This comment was deleted"
)

// MediaType is IMAGE or VIDEO.
type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
)

// Media is one attachment.
type Media struct {
	Type      MediaType `json:"type"`
	URL       string    `json:"url"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Width     *int      `json:"width,omitempty"`
	Height    *int      `json:"height,omitempty"`
	Duration  *float64  `json:"duration,omitempty"`
}

// Location is an optional named point.
type Location struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Post is a published thread entry.
type Post struct {
	ID           string
	AuthorID     string
	Content      string
	Media        []Media
	Hashtags     []string
	Mentions     []string
	Location     *Location
	IsPrivate    bool
	IsEdited     bool
	EditedAt     *time.Time
	IsDeleted    bool
	DeletedAt    *time.Time
	ParentPostID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Share records one user re-sharing a post.
type Share struct {
	UserID   string
	SharedAt time.Time
}

// Comment belongs to a post and optionally replies to another comment.
type Comment struct {
	ID              string
	PostID          string
	AuthorID        string
	Content         string
	Hashtags        []string
	Mentions        []string
	ParentCommentID string
	IsEdited        bool
	EditedAt        *time.Time
	IsDeleted       bool
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Input is the createPost payload.
type Input struct {
	Content      string
	Media        []Media
	Mentions     []string
	Hashtags     []string
	Location     *Location
	IsPrivate    bool
	ParentPostID string
}

// Edit is the updatePost payload; nil fields are left untouched.
type Edit struct {
	Content   *string
	Media     *[]Media
	Mentions  *[]string
	Hashtags  *[]string
	Location  *Location
	IsPrivate *bool
}

// CommentInput is the createComment payload.
type CommentInput struct {
	PostID          string
	Content         string
	Mentions        []string
	Hashtags        []string
	ParentCommentID string
}

// CommentEdit is the updateComment payload.
type CommentEdit struct {
	Content  string
	Mentions *[]string
	Hashtags *[]string
}

// =============================================================================
// Validation
// =============================================================================

// ValidateContent checks trimmed content against max.
func ValidateContent(content string, max int) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.Validation("Content is required").WithDetails("field", "content")
	}
	if utf8.RuneCountInString(content) > max {
		return errors.Validation(fmt.Sprintf("Content cannot exceed %d characters", max)).WithDetails("field", "content")
	}
	return nil
}

// ValidateMedia checks attachment count, type and URL.
func ValidateMedia(media []Media) error {
	if len(media) > MaxMediaItems {
		return errors.Validation(fmt.Sprintf("At most %d media items are allowed", MaxMediaItems)).WithDetails("field", "media")
	}
	for _, m := range media {
		if m.Type != MediaImage && m.Type != MediaVideo {
			return errors.Validation("Media type must be IMAGE or VIDEO").WithDetails("field", "media")
		}
		if strings.TrimSpace(m.URL) == "" {
			return errors.Validation("Media url is required").WithDetails("field", "media")
		}
	}
	return nil
}

// ValidateLocation bounds coordinates.
func ValidateLocation(loc *Location) error {
	if loc == nil {
		return nil
	}
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return errors.Validation("Location coordinates are out of range").WithDetails("field", "location")
	}
	return nil
}

// ValidateInput checks a createPost payload.
func ValidateInput(in Input) error {
	if err := ValidateContent(in.Content, MaxContentLength); err != nil {
		return err
	}
	if err := ValidateMedia(in.Media); err != nil {
		return err
	}
	return ValidateLocation(in.Location)
}

// ValidateEdit checks the fields present in an updatePost payload.
func ValidateEdit(e Edit) error {
	if e.Content != nil {
		if err := ValidateContent(*e.Content, MaxContentLength); err != nil {
			return err
		}
	}
	if e.Media != nil {
		if err := ValidateMedia(*e.Media); err != nil {
			return err
		}
	}
	return ValidateLocation(e.Location)
}

// ValidateCommentInput checks a createComment payload.
func ValidateCommentInput(in CommentInput) error {
	if strings.TrimSpace(in.PostID) == "" {
		return errors.Validation("postId is required").WithDetails("field", "postId")
	}
	return ValidateContent(in.Content, MaxCommentContentLength)
}

// =============================================================================
// Hashtags
// =============================================================================

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// ExtractHashtags returns the lowercase, de-duplicated hashtags in content.
func ExtractHashtags(content string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(content, -1)
	return NormalizeHashtags(func() []string {
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, m[1])
		}
		return out
	}())
}

// NormalizeHashtags strips '#', lowercases and de-duplicates.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// UniqueIDs de-duplicates ids preserving order and dropping blanks.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
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

// =============================================================================
// Constructors and mutations
// =============================================================================

// New builds a post from a validated payload. Hashtags default to those found
// in the content.
func New(authorID string, in Input, now time.Time) Post {
	tags := NormalizeHashtags(in.Hashtags)
	if len(in.Hashtags) == 0 {
		tags = ExtractHashtags(in.Content)
	}
	return Post{
		AuthorID:     authorID,
		Content:      strings.TrimSpace(in.Content),
		Media:        in.Media,
		Hashtags:     tags,
		Mentions:     UniqueIDs(in.Mentions),
		Location:     in.Location,
		IsPrivate:    in.IsPrivate,
		ParentPostID: in.ParentPostID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// VisibleTo reports whether viewerID may see p. Soft-deleted posts stay
// visible with their placeholder content.
func VisibleTo(p Post, viewerID string) bool {
	return !p.IsPrivate || p.AuthorID == viewerID
}

// ApplyEdit applies an updatePost payload and marks the post edited.
func ApplyEdit(p Post, e Edit, now time.Time) (Post, domain.Intent) {
	if p.IsDeleted {
		return p, domain.NoChange
	}
	if e.Content != nil {
		p.Content = strings.TrimSpace(*e.Content)
		if e.Hashtags == nil {
			p.Hashtags = ExtractHashtags(p.Content)
		}
	}
	if e.Media != nil {
		p.Media = *e.Media
	}
	if e.Mentions != nil {
		p.Mentions = UniqueIDs(*e.Mentions)
	}
	if e.Hashtags != nil {
		p.Hashtags = NormalizeHashtags(*e.Hashtags)
	}
	if e.Location != nil {
		loc := *e.Location
		p.Location = &loc
	}
	if e.IsPrivate != nil {
		p.IsPrivate = *e.IsPrivate
	}
	p.IsEdited = true
	p.EditedAt = &now
	p.UpdatedAt = now
	return p, domain.Update
}

// MarkDeleted soft-deletes p and replaces its content.
func MarkDeleted(p Post, now time.Time) (Post, domain.Intent) {
	if p.IsDeleted {
		return p, domain.NoChange
	}
	p.IsDeleted = true
	p.DeletedAt = &now
	p.Content = DeletedPostContent
	p.UpdatedAt = now
	return p, domain.Update
}

// NewComment builds a comment from a validated payload.
func NewComment(authorID string, in CommentInput, now time.Time) Comment {
	tags := NormalizeHashtags(in.Hashtags)
	if len(in.Hashtags) == 0 {
		tags = ExtractHashtags(in.Content)
	}
	return Comment{
		PostID:          in.PostID,
		AuthorID:        authorID,
		Content:         strings.TrimSpace(in.Content),
		Hashtags:        tags,
		Mentions:        UniqueIDs(in.Mentions),
		ParentCommentID: in.ParentCommentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ApplyCommentEdit replaces the content and marks the comment edited.
func ApplyCommentEdit(c Comment, e CommentEdit, now time.Time) (Comment, domain.Intent) {
	if c.IsDeleted {
		return c, domain.NoChange
	}
	c.Content = strings.TrimSpace(e.Content)
	if e.Mentions != nil {
		c.Mentions = UniqueIDs(*e.Mentions)
	}
	if e.Hashtags != nil {
		c.Hashtags = NormalizeHashtags(*e.Hashtags)
	} else {
		c.Hashtags = ExtractHashtags(c.Content)
	}
	c.IsEdited = true
	c.EditedAt = &now
	c.UpdatedAt = now
	return c, domain.Update
}

// MarkCommentDeleted soft-deletes c and replaces its content.
func MarkCommentDeleted(c Comment, now time.Time) (Comment, domain.Intent) {
	if c.IsDeleted {
		return c, domain.NoChange
	}
	c.IsDeleted = true
	c.DeletedAt = &now
	c.Content = DeletedCommentContent
	c.UpdatedAt = now
	return c, domain.Update
}
