package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/domain/notification"
	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/domain/user"
)

func seedUser(t *testing.T, m *Memory, name string) user.User {
	t.Helper()
	u, err := m.CreateUser(context.Background(), user.User{Email: name + "@example.com", Username: name, FullName: name})
	require.NoError(t, err)
	return u
}

func TestMemory_UserUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := seedUser(t, m, "alice")

	_, err := m.CreateUser(ctx, user.User{Email: "alice@example.com", Username: "other"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = m.CreateUser(ctx, user.User{Email: "x@example.com", Username: "ALICE"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := m.GetUserByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = m.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_FollowIsIdempotentUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := seedUser(t, m, "alice")
	b := seedUser(t, m, "bob")

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Follow(ctx, a.ID, b.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	followers, err := m.ListFollowers(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, followers)

	removed, err := m.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = m.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemory_DeleteUserDropsEdges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := seedUser(t, m, "alice")
	b := seedUser(t, m, "bob")
	_, _ = m.Follow(ctx, a.ID, b.ID)
	_, _ = m.Follow(ctx, b.ID, a.ID)

	require.NoError(t, m.DeleteUser(ctx, a.ID))
	following, _ := m.ListFollowing(ctx, b.ID)
	assert.Empty(t, following)
	assert.ErrorIs(t, m.DeleteUser(ctx, a.ID), ErrNotFound)
}

func TestMemory_PurgeExpiredResetTokens(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	past, future := now.Add(-time.Minute), now.Add(time.Hour)

	expired := seedUser(t, m, "expired")
	expired.ResetPasswordToken, expired.ResetPasswordExpires = "t1", &past
	_, _ = m.UpdateUser(ctx, expired)
	live := seedUser(t, m, "live")
	live.ResetPasswordToken, live.ResetPasswordExpires = "t2", &future
	_, _ = m.UpdateUser(ctx, live)

	n, err := m.PurgeExpiredResetTokens(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = m.GetUserByResetToken(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetUserByResetToken(ctx, "t2")
	assert.NoError(t, err)
}

func TestMemory_ListPostsVisibility(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now().Add(-time.Hour)

	mk := func(author, content string, private bool, offset time.Duration) post.Post {
		p, err := m.CreatePost(ctx, post.New(author, post.Input{Content: content, IsPrivate: private}, base.Add(offset)))
		require.NoError(t, err)
		return p
	}
	public := mk("a", "hello #go", false, 0)
	secret := mk("a", "secret #go", true, time.Minute)
	other := mk("b", "from b", false, 2*time.Minute)
	gone := mk("b", "gone", false, 3*time.Minute)
	gone, _ = post.MarkDeleted(gone, time.Now())
	_, err := m.UpdatePost(ctx, gone)
	require.NoError(t, err)

	asB, err := m.ListPosts(ctx, PostQuery{ViewerID: "b"}, domain.NewPage(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID, public.ID}, ids(asB))

	asA, err := m.ListPosts(ctx, PostQuery{ViewerID: "a", Hashtags: []string{"#GO"}}, domain.NewPage(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{secret.ID, public.ID}, ids(asA))

	found, err := m.SearchPosts(ctx, "b", "#go", domain.NewPage(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{public.ID}, ids(found))

	tags, err := m.TrendingHashtags(ctx, base.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, tags)
}

func ids(posts []post.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestMemory_LikesAndShares(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p, _ := m.CreatePost(ctx, post.New("a", post.Input{Content: "x"}, time.Now()))

	liked, err := m.LikePost(ctx, p.ID, "u")
	require.NoError(t, err)
	assert.True(t, liked)
	liked, _ = m.LikePost(ctx, p.ID, "u")
	assert.False(t, liked)
	likes, _ := m.PostLikes(ctx, p.ID)
	assert.Equal(t, []string{"u"}, likes)

	shared, _ := m.SharePost(ctx, p.ID, "u", time.Now())
	assert.True(t, shared)
	shared, _ = m.SharePost(ctx, p.ID, "u", time.Now())
	assert.False(t, shared)

	_, err = m.LikePost(ctx, "missing", "u")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_CommentOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()
	root, _ := m.CreateComment(ctx, post.NewComment("a", post.CommentInput{PostID: "p", Content: "root"}, base))
	r1, _ := m.CreateComment(ctx, post.NewComment("b", post.CommentInput{PostID: "p", Content: "r1", ParentCommentID: root.ID}, base.Add(time.Second)))
	r2, _ := m.CreateComment(ctx, post.NewComment("c", post.CommentInput{PostID: "p", Content: "r2", ParentCommentID: root.ID}, base.Add(2*time.Second)))

	top, err := m.ListComments(ctx, "p", "", domain.NewPage(nil, nil))
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, root.ID, top[0].ID)

	replies, err := m.ListReplies(ctx, root.ID, domain.NewPage(nil, nil))
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, r1.ID, replies[0].ID)
	assert.Equal(t, r2.ID, replies[1].ID)

	n, _ := m.CountReplies(ctx, root.ID)
	assert.Equal(t, 2, n)
	n, _ = m.CountComments(ctx, "p")
	assert.Equal(t, 3, n)
}

func TestMemory_ChatCounters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	c, err := m.CreateChat(ctx, chat.New("a", chat.Input{Type: chat.Group, ParticipantIDs: []string{"b", "c"}}, now))
	require.NoError(t, err)

	require.NoError(t, m.IncrementUnread(ctx, c.ID, "a"))
	require.NoError(t, m.IncrementUnread(ctx, c.ID, "b"))
	got, _ := m.GetChat(ctx, c.ID)
	assert.Equal(t, 1, got.UnreadCounts["a"])
	assert.Equal(t, 1, got.UnreadCounts["b"])
	assert.Equal(t, 2, got.UnreadCounts["c"])

	require.NoError(t, m.ResetUnread(ctx, c.ID, "c"))
	require.NoError(t, m.RemoveParticipant(ctx, c.ID, "b"))
	got, _ = m.GetChat(ctx, c.ID)
	assert.Equal(t, []string{"a", "c"}, got.Participants)
	assert.Equal(t, 0, got.UnreadCounts["c"])

	list, _ := m.ListChats(ctx, "b", domain.NewPage(nil, nil))
	assert.Empty(t, list)

	direct, _ := m.CreateChat(ctx, chat.New("a", chat.Input{Type: chat.Direct, ParticipantIDs: []string{"b"}}, now))
	found, err := m.FindDirectChat(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, direct.ID, found.ID)
}

func TestMemory_MarkChatRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	for i := 0; i < 3; i++ {
		_, err := m.CreateMessage(ctx, chat.NewMessage("a", chat.MessageInput{ChatID: "c", Content: "hi"}, now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	n, err := m.MarkChatRead(ctx, "c", "b", now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	n, _ = m.MarkChatRead(ctx, "c", "b", now)
	assert.EqualValues(t, 0, n)

	msgs, _ := m.ListMessages(ctx, "c", domain.NewPage(nil, nil))
	require.Len(t, msgs, 3)
	assert.True(t, msgs[0].CreatedAt.After(msgs[2].CreatedAt))
}

func TestMemory_Notifications(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	for i := 0; i < 3; i++ {
		_, err := m.CreateNotification(ctx, notification.New(notification.Notification{RecipientID: "r", SenderID: "s", Type: notification.Like, PostID: "p"}, now))
		require.NoError(t, err)
	}
	_, _ = m.CreateNotification(ctx, notification.New(notification.Notification{RecipientID: "other", Type: notification.System}, now))

	count, _ := m.CountUnread(ctx, "r")
	assert.Equal(t, 3, count)

	changed, err := m.MarkAllRead(ctx, "r", now)
	require.NoError(t, err)
	assert.Len(t, changed, 3)
	changed, _ = m.MarkAllRead(ctx, "r", now)
	assert.Empty(t, changed)

	unread := false
	list, _ := m.ListNotifications(ctx, "r", notification.Filter{IsRead: &unread}, domain.NewPage(nil, nil))
	assert.Empty(t, list)

	removed, _ := m.DeleteAllNotifications(ctx, "r")
	assert.Len(t, removed, 3)
	count, _ = m.CountUnread(ctx, "other")
	assert.Equal(t, 1, count)
}
