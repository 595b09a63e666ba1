package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/domain/user"
)

// Memory is a thread-safe in-memory persistence layer implementing every
// store in this package. It backs tests and local runs without a database.
type Memory struct {
	mu sync.RWMutex

	users         map[string]user.User
	follows       map[string]map[string]time.Time // follower -> followee
	posts         map[string]post.Post
	postLikes     map[string]map[string]struct{}
	postShares    map[string][]post.Share
	comments      map[string]post.Comment
	commentLikes  map[string]map[string]struct{}
	chats         map[string]chat.Chat
	messages      map[string]chat.Message
	notifications map[string]notification.Notification
}

var _ All = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]user.User),
		follows:       make(map[string]map[string]time.Time),
		posts:         make(map[string]post.Post),
		postLikes:     make(map[string]map[string]struct{}),
		postShares:    make(map[string][]post.Share),
		comments:      make(map[string]post.Comment),
		commentLikes:  make(map[string]map[string]struct{}),
		chats:         make(map[string]chat.Chat),
		messages:      make(map[string]chat.Message),
		notifications: make(map[string]notification.Notification),
	}
}

func stamp(id *string, created, updated *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func window[T any](items []T, page domain.Page) []T {
	start, end := page.Clamp().Window(len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

func newestFirst(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA > idB
	}
	return a.After(b)
}

// UserStore implementation ----------------------------------------------------

func (m *Memory) CreateUser(_ context.Context, u user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.userConflictLocked(u) {
		return user.User{}, ErrConflict
	}
	stamp(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if _, exists := m.users[u.ID]; exists {
		return user.User{}, ErrConflict
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) userConflictLocked(u user.User) bool {
	for id, existing := range m.users {
		if id == u.ID {
			continue
		}
		if existing.Email == u.Email || strings.EqualFold(existing.Username, u.Username) {
			return true
		}
	}
	return false
}

func (m *Memory) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.users[u.ID]
	if !ok {
		return user.User{}, ErrNotFound
	}
	if m.userConflictLocked(u) {
		return user.User{}, ErrConflict
	}
	u.CreatedAt = original.CreatedAt
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return user.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) findUser(match func(user.User) bool) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return user.User{}, ErrNotFound
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	return m.findUser(func(u user.User) bool { return u.Email == email })
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	return m.findUser(func(u user.User) bool { return strings.EqualFold(u.Username, username) })
}

func (m *Memory) GetUserByVerificationToken(_ context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, ErrNotFound
	}
	return m.findUser(func(u user.User) bool { return u.VerificationToken == token })
}

func (m *Memory) GetUserByResetToken(_ context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, ErrNotFound
	}
	return m.findUser(func(u user.User) bool { return u.ResetPasswordToken == token })
}

func (m *Memory) SearchUsers(_ context.Context, query string, page domain.Page) ([]user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []user.User
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.FullName), q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return window(out, page), nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	delete(m.follows, id)
	for _, followees := range m.follows {
		delete(followees, id)
	}
	return nil
}

func (m *Memory) PurgeExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, u := range m.users {
		if u.ResetPasswordExpires != nil && u.ResetPasswordExpires.Before(now) {
			u.ResetPasswordToken = ""
			u.ResetPasswordExpires = nil
			m.users[id] = u
			n++
		}
	}
	return n, nil
}

// FollowStore implementation --------------------------------------------------

func (m *Memory) Follow(_ context.Context, followerID, followeeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[followerID]; !ok {
		return false, ErrNotFound
	}
	if _, ok := m.users[followeeID]; !ok {
		return false, ErrNotFound
	}
	edges := m.follows[followerID]
	if edges == nil {
		edges = make(map[string]time.Time)
		m.follows[followerID] = edges
	}
	if _, exists := edges[followeeID]; exists {
		return false, nil
	}
	edges[followeeID] = time.Now().UTC()
	return true, nil
}

func (m *Memory) Unfollow(_ context.Context, followerID, followeeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	edges := m.follows[followerID]
	if _, exists := edges[followeeID]; !exists {
		return false, nil
	}
	delete(edges, followeeID)
	return true, nil
}

func (m *Memory) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.follows[followerID][followeeID]
	return ok, nil
}

func (m *Memory) ListFollowers(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []string{}
	for follower, edges := range m.follows {
		if _, ok := edges[userID]; ok {
			out = append(out, follower)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListFollowing(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.follows[userID]))
	for followee := range m.follows[userID] {
		out = append(out, followee)
	}
	sort.Strings(out)
	return out, nil
}

// PostStore implementation ----------------------------------------------------

func (m *Memory) CreatePost(_ context.Context, p post.Post) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if _, exists := m.posts[p.ID]; exists {
		return post.Post{}, ErrConflict
	}
	m.posts[p.ID] = p
	return p, nil
}

func (m *Memory) UpdatePost(_ context.Context, p post.Post) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.posts[p.ID]
	if !ok {
		return post.Post{}, ErrNotFound
	}
	p.CreatedAt = original.CreatedAt
	m.posts[p.ID] = p
	return p, nil
}

func (m *Memory) GetPost(_ context.Context, id string) (post.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return post.Post{}, ErrNotFound
	}
	return p, nil
}

func containsAny(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func (q PostQuery) matches(p post.Post) bool {
	if p.IsDeleted || !post.VisibleTo(p, q.ViewerID) {
		return false
	}
	if len(q.AuthorIDs) > 0 && !containsAny([]string{p.AuthorID}, q.AuthorIDs) {
		return false
	}
	if len(q.Hashtags) > 0 && !containsAny(p.Hashtags, post.NormalizeHashtags(q.Hashtags)) {
		return false
	}
	if len(q.Mentions) > 0 && !containsAny(p.Mentions, q.Mentions) {
		return false
	}
	if q.IsPrivate != nil && p.IsPrivate != *q.IsPrivate {
		return false
	}
	if q.ParentPostID != nil && p.ParentPostID != *q.ParentPostID {
		return false
	}
	return true
}

func (m *Memory) selectPosts(match func(post.Post) bool, page domain.Page) []post.Post {
	var out []post.Post
	for _, p := range m.posts {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return window(out, page)
}

func (m *Memory) ListPosts(_ context.Context, q PostQuery, page domain.Page) ([]post.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.selectPosts(q.matches, page), nil
}

func (m *Memory) SearchPosts(_ context.Context, viewerID, query string, page domain.Page) ([]post.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	tag := strings.TrimPrefix(needle, "#")
	base := PostQuery{ViewerID: viewerID}
	return m.selectPosts(func(p post.Post) bool {
		if !base.matches(p) {
			return false
		}
		if strings.Contains(strings.ToLower(p.Content), needle) {
			return true
		}
		for _, h := range p.Hashtags {
			if strings.Contains(h, tag) {
				return true
			}
		}
		return false
	}, page), nil
}

func (m *Memory) TrendingHashtags(_ context.Context, since time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, p := range m.posts {
		if p.IsDeleted || p.IsPrivate || p.CreatedAt.Before(since) {
			continue
		}
		for _, h := range p.Hashtags {
			counts[h]++
		}
	}
	tags := make([]string, 0, len(counts))
	for h := range counts {
		tags = append(tags, h)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] == counts[tags[j]] {
			return tags[i] < tags[j]
		}
		return counts[tags[i]] > counts[tags[j]]
	})
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

func addEdge(set map[string]map[string]struct{}, key, member string) bool {
	members := set[key]
	if members == nil {
		members = make(map[string]struct{})
		set[key] = members
	}
	if _, ok := members[member]; ok {
		return false
	}
	members[member] = struct{}{}
	return true
}

func removeEdge(set map[string]map[string]struct{}, key, member string) bool {
	if _, ok := set[key][member]; !ok {
		return false
	}
	delete(set[key], member)
	return true
}

func sortedMembers(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) LikePost(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[postID]; !ok {
		return false, ErrNotFound
	}
	return addEdge(m.postLikes, postID, userID), nil
}

func (m *Memory) UnlikePost(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return removeEdge(m.postLikes, postID, userID), nil
}

func (m *Memory) PostLikes(_ context.Context, postID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedMembers(m.postLikes[postID]), nil
}

func (m *Memory) SharePost(_ context.Context, postID, userID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[postID]; !ok {
		return false, ErrNotFound
	}
	for _, s := range m.postShares[postID] {
		if s.UserID == userID {
			return false, nil
		}
	}
	m.postShares[postID] = append(m.postShares[postID], post.Share{UserID: userID, SharedAt: at})
	return true, nil
}

func (m *Memory) PostShares(_ context.Context, postID string) ([]post.Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]post.Share, len(m.postShares[postID]))
	copy(out, m.postShares[postID])
	return out, nil
}

// CommentStore implementation -------------------------------------------------

func (m *Memory) CreateComment(_ context.Context, c post.Comment) (post.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if _, exists := m.comments[c.ID]; exists {
		return post.Comment{}, ErrConflict
	}
	m.comments[c.ID] = c
	return c, nil
}

func (m *Memory) UpdateComment(_ context.Context, c post.Comment) (post.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.comments[c.ID]
	if !ok {
		return post.Comment{}, ErrNotFound
	}
	c.CreatedAt = original.CreatedAt
	m.comments[c.ID] = c
	return c, nil
}

func (m *Memory) GetComment(_ context.Context, id string) (post.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[id]
	if !ok {
		return post.Comment{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) selectComments(match func(post.Comment) bool) []post.Comment {
	var out []post.Comment
	for _, c := range m.comments {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

func (m *Memory) ListComments(_ context.Context, postID, authorID string, page domain.Page) ([]post.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.selectComments(func(c post.Comment) bool {
		return c.PostID == postID && c.ParentCommentID == "" && (authorID == "" || c.AuthorID == authorID)
	})
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return window(out, page), nil
}

func (m *Memory) ListReplies(_ context.Context, commentID string, page domain.Page) ([]post.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.selectComments(func(c post.Comment) bool { return c.ParentCommentID == commentID })
	sort.Slice(out, func(i, j int) bool {
		return !newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return window(out, page), nil
}

func (m *Memory) CountComments(_ context.Context, postID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.selectComments(func(c post.Comment) bool { return c.PostID == postID })), nil
}

func (m *Memory) CountReplies(_ context.Context, commentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.selectComments(func(c post.Comment) bool { return c.ParentCommentID == commentID })), nil
}

func (m *Memory) LikeComment(_ context.Context, commentID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.comments[commentID]; !ok {
		return false, ErrNotFound
	}
	return addEdge(m.commentLikes, commentID, userID), nil
}

func (m *Memory) UnlikeComment(_ context.Context, commentID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return removeEdge(m.commentLikes, commentID, userID), nil
}

func (m *Memory) CommentLikes(_ context.Context, commentID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedMembers(m.commentLikes[commentID]), nil
}

// ChatStore implementation ----------------------------------------------------

func cloneChat(c chat.Chat) chat.Chat {
	c.Participants = append([]string(nil), c.Participants...)
	unread := make(map[string]int, len(c.UnreadCounts))
	for k, v := range c.UnreadCounts {
		unread[k] = v
	}
	c.UnreadCounts = unread
	return c
}

func (m *Memory) CreateChat(_ context.Context, c chat.Chat) (chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if _, exists := m.chats[c.ID]; exists {
		return chat.Chat{}, ErrConflict
	}
	c = cloneChat(c)
	m.chats[c.ID] = c
	return cloneChat(c), nil
}

func (m *Memory) GetChat(_ context.Context, id string) (chat.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chats[id]
	if !ok {
		return chat.Chat{}, ErrNotFound
	}
	return cloneChat(c), nil
}

func (m *Memory) FindDirectChat(_ context.Context, a, b string) (chat.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.chats {
		if c.Type == chat.Direct && len(c.Participants) == 2 && chat.IsParticipant(c, a) && chat.IsParticipant(c, b) {
			return cloneChat(c), nil
		}
	}
	return chat.Chat{}, ErrNotFound
}

func (m *Memory) ListChats(_ context.Context, userID string, page domain.Page) ([]chat.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []chat.Chat
	for _, c := range m.chats {
		if chat.IsParticipant(c, userID) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].UpdatedAt, out[j].UpdatedAt, out[i].ID, out[j].ID)
	})
	return window(out, page), nil
}

func (m *Memory) UpdateChat(_ context.Context, c chat.Chat) (chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.chats[c.ID]
	if !ok {
		return chat.Chat{}, ErrNotFound
	}
	// Counters and membership change only through their dedicated calls.
	original.Name = c.Name
	original.IsActive = c.IsActive
	original.LastMessageID = c.LastMessageID
	original.UpdatedAt = c.UpdatedAt
	m.chats[c.ID] = original
	return cloneChat(original), nil
}

func (m *Memory) mutateChat(chatID string, fn func(*chat.Chat)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[chatID]
	if !ok {
		return ErrNotFound
	}
	c = cloneChat(c)
	fn(&c)
	m.chats[chatID] = c
	return nil
}

func (m *Memory) IncrementUnread(_ context.Context, chatID, senderID string) error {
	return m.mutateChat(chatID, func(c *chat.Chat) {
		for _, p := range c.Participants {
			if p != senderID {
				c.UnreadCounts[p]++
			}
		}
	})
}

func (m *Memory) ResetUnread(_ context.Context, chatID, userID string) error {
	return m.mutateChat(chatID, func(c *chat.Chat) {
		if chat.IsParticipant(*c, userID) {
			c.UnreadCounts[userID] = 0
		}
	})
}

func (m *Memory) RemoveParticipant(_ context.Context, chatID, userID string) error {
	return m.mutateChat(chatID, func(c *chat.Chat) {
		kept := c.Participants[:0]
		for _, p := range c.Participants {
			if p != userID {
				kept = append(kept, p)
			}
		}
		c.Participants = kept
		delete(c.UnreadCounts, userID)
	})
}

// MessageStore implementation -------------------------------------------------

func cloneMessage(msg chat.Message) chat.Message {
	msg.ReadBy = append([]chat.Read(nil), msg.ReadBy...)
	return msg
}

func (m *Memory) CreateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamp(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
	if _, exists := m.messages[msg.ID]; exists {
		return chat.Message{}, ErrConflict
	}
	msg = cloneMessage(msg)
	m.messages[msg.ID] = msg
	return cloneMessage(msg), nil
}

func (m *Memory) GetMessage(_ context.Context, id string) (chat.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return chat.Message{}, ErrNotFound
	}
	return cloneMessage(msg), nil
}

func (m *Memory) ListMessages(_ context.Context, chatID string, page domain.Page) ([]chat.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []chat.Message
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			out = append(out, cloneMessage(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return window(out, page), nil
}

func (m *Memory) UpdateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.messages[msg.ID]
	if !ok {
		return chat.Message{}, ErrNotFound
	}
	msg.CreatedAt = original.CreatedAt
	msg = cloneMessage(msg)
	m.messages[msg.ID] = msg
	return cloneMessage(msg), nil
}

func (m *Memory) MarkChatRead(_ context.Context, chatID, userID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, msg := range m.messages {
		if msg.ChatID != chatID {
			continue
		}
		if updated, intent := chat.MarkMessageRead(msg, userID, at); intent == domain.Update {
			m.messages[id] = updated
			n++
		}
	}
	return n, nil
}

// NotificationStore implementation --------------------------------------------

func (m *Memory) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamp(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if _, exists := m.notifications[n.ID]; exists {
		return notification.Notification{}, ErrConflict
	}
	m.notifications[n.ID] = n
	return n, nil
}

func (m *Memory) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notifications[id]
	if !ok {
		return notification.Notification{}, ErrNotFound
	}
	return n, nil
}

func (m *Memory) UpdateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.notifications[n.ID]
	if !ok {
		return notification.Notification{}, ErrNotFound
	}
	n.CreatedAt = original.CreatedAt
	m.notifications[n.ID] = n
	return n, nil
}

func (m *Memory) ListNotifications(_ context.Context, recipientID string, f notification.Filter, page domain.Page) ([]notification.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []notification.Notification
	for _, n := range m.notifications {
		if n.RecipientID == recipientID && f.Matches(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return window(out, page), nil
}

func (m *Memory) CountUnread(_ context.Context, recipientID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, n := range m.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *Memory) MarkAllRead(_ context.Context, recipientID string, at time.Time) ([]notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed []notification.Notification
	for id, n := range m.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if updated, intent := notification.MarkRead(n, at); intent == domain.Update {
			m.notifications[id] = updated
			changed = append(changed, updated)
		}
	}
	sort.Slice(changed, func(i, j int) bool {
		return newestFirst(changed[i].CreatedAt, changed[j].CreatedAt, changed[i].ID, changed[j].ID)
	})
	return changed, nil
}

func (m *Memory) DeleteNotification(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notifications[id]; !ok {
		return ErrNotFound
	}
	delete(m.notifications, id)
	return nil
}

func (m *Memory) DeleteAllNotifications(_ context.Context, recipientID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := []string{}
	for id, n := range m.notifications {
		if n.RecipientID == recipientID {
			ids = append(ids, id)
			delete(m.notifications, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
