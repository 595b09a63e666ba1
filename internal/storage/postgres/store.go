// Package postgres implements the storage interfaces on PostgreSQL through
// sqlx and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/user"
	"github.com/threadsclone/backend/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.All = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// mapError turns driver errors into storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return storage.ErrConflict
		case pqForeignKeyViolation:
			return storage.ErrNotFound
		}
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func changed(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

func stampNew(id *string, created, updated *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = time.Now().UTC()
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	stampNew(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if u.LastActive.IsZero() {
		u.LastActive = u.CreatedAt
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :username, :password_hash, :full_name, :bio, :avatar, :is_verified,
			:verification_token, :reset_password_token, :reset_password_expires, :last_active, :created_at, :updated_at)
	`, newUserRow(u))
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE users
		SET email = :email, username = :username, password_hash = :password_hash,
			full_name = :full_name, bio = :bio, avatar = :avatar, is_verified = :is_verified,
			verification_token = :verification_token, reset_password_token = :reset_password_token,
			reset_password_expires = :reset_password_expires, last_active = :last_active,
			updated_at = :updated_at
		WHERE id = :id
	`, newUserRow(u))
	if err != nil {
		return user.User{}, mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return user.User{}, err
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) getUserWhere(ctx context.Context, cond string, arg interface{}) (user.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE `+cond, arg); err != nil {
		return user.User{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.getUserWhere(ctx, `id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.getUserWhere(ctx, `email = $1`, email)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.getUserWhere(ctx, `LOWER(username) = LOWER($1)`, username)
}

func (s *Store) GetUserByVerificationToken(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, storage.ErrNotFound
	}
	return s.getUserWhere(ctx, `verification_token = $1`, token)
}

func (s *Store) GetUserByResetToken(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, storage.ErrNotFound
	}
	return s.getUserWhere(ctx, `reset_password_token = $1`, token)
}

func (s *Store) SearchUsers(ctx context.Context, query string, page domain.Page) ([]user.User, error) {
	page = page.Clamp()
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+`
		FROM users
		WHERE username ILIKE $1 OR full_name ILIKE $1
		ORDER BY username
		LIMIT $2 OFFSET $3
	`, likePattern(query), page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]user.User, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET reset_password_token = '', reset_password_expires = NULL
		WHERE reset_password_expires IS NOT NULL AND reset_password_expires < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- FollowStore ------------------------------------------------------------

func (s *Store) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	return changed(s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followee_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, followerID, followeeID, time.Now().UTC()))
}

func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	return changed(s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2
	`, followerID, followeeID))
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)
	`, followerID, followeeID)
	return exists, err
}

func (s *Store) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY follower_id
	`, userID)
	return ids, err
}

func (s *Store) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY followee_id
	`, userID)
	return ids, err
}
