package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/post"
	"github.com/threadsclone/backend/internal/storage"
)

// --- PostStore --------------------------------------------------------------

func (s *Store) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	stampNew(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	row, err := newPostRow(p)
	if err != nil {
		return post.Post{}, err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (:id, :author_id, :content, :media, :hashtags, :mentions, :location, :is_private,
			:is_edited, :edited_at, :is_deleted, :deleted_at, :parent_post_id, :created_at, :updated_at)
	`, row)
	if err != nil {
		return post.Post{}, mapError(err)
	}
	return p, nil
}

func (s *Store) UpdatePost(ctx context.Context, p post.Post) (post.Post, error) {
	row, err := newPostRow(p)
	if err != nil {
		return post.Post{}, err
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE posts
		SET content = :content, media = :media, hashtags = :hashtags, mentions = :mentions,
			location = :location, is_private = :is_private, is_edited = :is_edited,
			edited_at = :edited_at, is_deleted = :is_deleted, deleted_at = :deleted_at,
			updated_at = :updated_at
		WHERE id = :id
	`, row)
	if err != nil {
		return post.Post{}, mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return post.Post{}, err
	}
	return s.GetPost(ctx, p.ID)
}

func (s *Store) GetPost(ctx context.Context, id string) (post.Post, error) {
	var row postRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id); err != nil {
		return post.Post{}, mapError(err)
	}
	return row.toDomain()
}

// postFilter accumulates WHERE clauses with ? placeholders that are rebound
// for the driver.
type postFilter struct {
	conds []string
	args  []interface{}
}

func (f *postFilter) add(cond string, args ...interface{}) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

func visiblePosts(viewerID string) *postFilter {
	f := &postFilter{}
	f.add(`is_deleted = FALSE`)
	f.add(`(is_private = FALSE OR author_id = ?)`, viewerID)
	return f
}

func (s *Store) selectPosts(ctx context.Context, f *postFilter, page domain.Page) ([]post.Post, error) {
	page = page.Clamp()
	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + strings.Join(f.conds, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args := append(f.args, page.Limit, page.Offset)

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]post.Post, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ListPosts(ctx context.Context, q storage.PostQuery, page domain.Page) ([]post.Post, error) {
	f := visiblePosts(q.ViewerID)
	if len(q.AuthorIDs) > 0 {
		f.add(`author_id = ANY(?)`, pq.Array(q.AuthorIDs))
	}
	if len(q.Hashtags) > 0 {
		f.add(`hashtags && ?`, pq.Array(post.NormalizeHashtags(q.Hashtags)))
	}
	if len(q.Mentions) > 0 {
		f.add(`mentions && ?`, pq.Array(q.Mentions))
	}
	if q.IsPrivate != nil {
		f.add(`is_private = ?`, *q.IsPrivate)
	}
	if q.ParentPostID != nil {
		f.add(`parent_post_id = ?`, *q.ParentPostID)
	}
	return s.selectPosts(ctx, f, page)
}

func (s *Store) SearchPosts(ctx context.Context, viewerID, query string, page domain.Page) ([]post.Post, error) {
	tag := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(query)), "#")
	f := visiblePosts(viewerID)
	f.add(`(content ILIKE ? OR EXISTS (SELECT 1 FROM unnest(hashtags) AS h WHERE h ILIKE ?))`,
		likePattern(query), likePattern(tag))
	return s.selectPosts(ctx, f, page)
}

func (s *Store) TrendingHashtags(ctx context.Context, since time.Time, limit int) ([]string, error) {
	tags := []string{}
	err := s.db.SelectContext(ctx, &tags, `
		SELECT tag
		FROM posts, unnest(hashtags) AS tag
		WHERE is_deleted = FALSE AND is_private = FALSE AND created_at >= $1
		GROUP BY tag
		ORDER BY COUNT(*) DESC, tag ASC
		LIMIT $2
	`, since, limit)
	return tags, err
}

func (s *Store) LikePost(ctx context.Context, postID, userID string) (bool, error) {
	return changed(s.db.ExecContext(ctx, `
		INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, postID, userID, time.Now().UTC()))
}

func (s *Store) UnlikePost(ctx context.Context, postID, userID string) (bool, error) {
	return changed(s.db.ExecContext(ctx, `
		DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2
	`, postID, userID))
}

func (s *Store) PostLikes(ctx context.Context, postID string) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM post_likes WHERE post_id = $1 ORDER BY user_id
	`, postID)
	return ids, err
}

func (s *Store) SharePost(ctx context.Context, postID, userID string, at time.Time) (bool, error) {
	return changed(s.db.ExecContext(ctx, `
		INSERT INTO post_shares (post_id, user_id, shared_at) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, postID, userID, at))
}

func (s *Store) PostShares(ctx context.Context, postID string) ([]post.Share, error) {
	var rows []struct {
		UserID   string    `db:"user_id"`
		SharedAt time.Time `db:"shared_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, shared_at FROM post_shares WHERE post_id = $1 ORDER BY shared_at, user_id
	`, postID); err != nil {
		return nil, err
	}
	out := make([]post.Share, len(rows))
	for i, r := range rows {
		out[i] = post.Share{UserID: r.UserID, SharedAt: r.SharedAt}
	}
	return out, nil
}

// --- CommentStore -----------------------------------------------------------

func (s *Store) CreateComment(ctx context.Context, c post.Comment) (post.Comment, error) {
	stampNew(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES (:id, :post_id, :author_id, :content, :hashtags, :mentions, :parent_comment_id,
			:is_edited, :edited_at, :is_deleted, :deleted_at, :created_at, :updated_at)
	`, newCommentRow(c))
	if err != nil {
		return post.Comment{}, mapError(err)
	}
	return c, nil
}

func (s *Store) UpdateComment(ctx context.Context, c post.Comment) (post.Comment, error) {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE comments
		SET content = :content, hashtags = :hashtags, mentions = :mentions, is_edited = :is_edited,
			edited_at = :edited_at, is_deleted = :is_deleted, deleted_at = :deleted_at,
			updated_at = :updated_at
		WHERE id = :id
	`, newCommentRow(c))
	if err != nil {
		return post.Comment{}, mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return post.Comment{}, err
	}
	return s.GetComment(ctx, c.ID)
}

func (s *Store) GetComment(ctx context.Context, id string) (post.Comment, error) {
	var row commentRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id); err != nil {
		return post.Comment{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) selectComments(ctx context.Context, query string, args ...interface{}) ([]post.Comment, error) {
	var rows []commentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]post.Comment, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) ListComments(ctx context.Context, postID, authorID string, page domain.Page) ([]post.Comment, error) {
	page = page.Clamp()
	return s.selectComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE post_id = $1 AND parent_comment_id = '' AND ($2 = '' OR author_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, postID, authorID, page.Limit, page.Offset)
}

func (s *Store) ListReplies(ctx context.Context, commentID string, page domain.Page) ([]post.Comment, error) {
	page = page.Clamp()
	return s.selectComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE parent_comment_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, commentID, page.Limit, page.Offset)
}

func (s *Store) CountComments(ctx context.Context, postID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID)
	return n, err
}

func (s *Store) CountReplies(ctx context.Context, commentID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM comments WHERE parent_comment_id = $1`, commentID)
	return n, err
}

func (s *Store) LikeComment(ctx context.Context, commentID, userID string) (bool, error) {
	return changed(s.db.ExecContext(ctx, `
		INSERT INTO comment_likes (comment_id, user_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, commentID, userID, time.Now().UTC()))
}

func (s *Store) UnlikeComment(ctx context.Context, commentID, userID string) (bool, error) {
	return changed(s.db.ExecContext(ctx, `
		DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2
	`, commentID, userID))
}

func (s *Store) CommentLikes(ctx context.Context, commentID string) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM comment_likes WHERE comment_id = $1 ORDER BY user_id
	`, commentID)
	return ids, err
}
