package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/chat"
	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/domain/user"
	"github.com/threadsclone/backend/internal/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestFollow_ReportsWhetherEdgeWasCreated(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO follows .* ON CONFLICT DO NOTHING`).
		WithArgs("a", "b", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO follows .* ON CONFLICT DO NOTHING`).
		WithArgs("a", "b", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := store.Follow(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Follow(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFollow_MissingUserIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO follows`).
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

	_, err := store.Follow(context.Background(), "a", "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateUser_UniqueViolationIsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	_, err := store.CreateUser(context.Background(), user.User{Email: "a@example.com", Username: "alice"})
	assert.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NoRowsIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListPosts_BuildsVisibilityFilter(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	top := ""

	columns := []string{"id", "author_id", "content", "media", "hashtags", "mentions", "location", "is_private",
		"is_edited", "edited_at", "is_deleted", "deleted_at", "parent_post_id", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT .* FROM posts WHERE is_deleted = FALSE AND \(is_private = FALSE OR author_id = \$1\) AND author_id = ANY\(\$2\) AND hashtags && \$3 AND parent_post_id = \$4 ORDER BY created_at DESC, id DESC LIMIT \$5 OFFSET \$6`).
		WithArgs("viewer", sqlmock.AnyArg(), sqlmock.AnyArg(), "", 20, 0).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"p1", "author", "hello #go", []byte(`[{"type":"IMAGE","url":"http://img"}]`), []byte("{go}"), []byte("{}"),
			nil, false, false, nil, false, nil, "", now, now,
		))

	posts, err := store.ListPosts(context.Background(), storage.PostQuery{
		ViewerID:     "viewer",
		AuthorIDs:    []string{"author"},
		Hashtags:     []string{"#Go"},
		ParentPostID: &top,
	}, domain.NewPage(nil, nil))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, []string{"go"}, posts[0].Hashtags)
	require.Len(t, posts[0].Media, 1)
	assert.Equal(t, post.MediaImage, posts[0].Media[0].Type)
	assert.Nil(t, posts[0].Location)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkChatRead_CountsNewReceipts(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now()
	mock.ExpectExec(`INSERT INTO message_reads .* SELECT id, \$2, \$3 FROM messages WHERE chat_id = \$1`).
		WithArgs("c1", "u1", at).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.MarkChatRead(context.Background(), "c1", "u1", at)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestIncrementUnread_SkipsSender(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE chat_participants SET unread_count = unread_count \+ 1\s+WHERE chat_id = \$1 AND user_id <> \$2`).
		WithArgs("c1", "sender").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, store.IncrementUnread(context.Background(), "c1", "sender"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNotification_MissingIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM notifications WHERE id = \$1`).
		WithArgs("n1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.DeleteNotification(context.Background(), "n1"), storage.ErrNotFound)
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, likePattern(" 50%_off "))
}

func TestMigrationSource_HasUpAndDown(t *testing.T) {
	src, err := MigrationSource()
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	up, _, err := src.ReadUp(version)
	require.NoError(t, err)
	up.Close()
	down, _, err := src.ReadDown(version)
	require.NoError(t, err)
	down.Close()
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}
	require.NoError(t, Migrate(dsn))
	require.NoError(t, Migrate(dsn), "second run must be a no-op")

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	ctx := context.Background()
	suffix := time.Now().Format("150405.000000")

	a, err := store.CreateUser(ctx, user.User{Email: "a" + suffix + "@example.com", Username: "a_" + suffix[7:], PasswordHash: "x"})
	require.NoError(t, err)
	b, err := store.CreateUser(ctx, user.User{Email: "b" + suffix + "@example.com", Username: "b_" + suffix[7:], PasswordHash: "x"})
	require.NoError(t, err)
	defer func() {
		_ = store.DeleteUser(ctx, a.ID)
		_ = store.DeleteUser(ctx, b.ID)
	}()

	created, err := store.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = store.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)

	c, err := store.CreateChat(ctx, chat.New(a.ID, chat.Input{Type: chat.Direct, ParticipantIDs: []string{b.ID}}, time.Now().UTC()))
	require.NoError(t, err)
	found, err := store.FindDirectChat(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
	assert.Equal(t, []string{a.ID, b.ID}, found.Participants)
}
