package postgres

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/notification"
)

// --- NotificationStore ------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	stampNew(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (:id, :recipient_id, :sender_id, :type, :post_id, :comment_id, :chat_id, :message_id, :is_read, :created_at, :updated_at)
	`, newNotificationRow(n))
	if err != nil {
		return notification.Notification{}, mapError(err)
	}
	return n, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id); err != nil {
		return notification.Notification{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = $2, updated_at = $3 WHERE id = $1
	`, n.ID, n.IsRead, n.UpdatedAt)
	if err != nil {
		return notification.Notification{}, mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return notification.Notification{}, err
	}
	return s.GetNotification(ctx, n.ID)
}

func toNotifications(rows []notificationRow) []notification.Notification {
	out := make([]notification.Notification, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}

func (s *Store) ListNotifications(ctx context.Context, recipientID string, f notification.Filter, page domain.Page) ([]notification.Notification, error) {
	page = page.Clamp()
	conds := []string{`recipient_id = ?`}
	args := []interface{}{recipientID}
	if f.Type != nil {
		conds = append(conds, `type = ?`)
		args = append(args, string(*f.Type))
	}
	if f.IsRead != nil {
		conds = append(conds, `is_read = ?`)
		args = append(args, *f.IsRead)
	}
	if f.FromDate != nil {
		conds = append(conds, `created_at >= ?`)
		args = append(args, *f.FromDate)
	}
	if f.ToDate != nil {
		conds = append(conds, `created_at <= ?`)
		args = append(args, *f.ToDate)
	}
	args = append(args, page.Limit, page.Offset)

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return toNotifications(rows), nil
}

func (s *Store) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE
	`, recipientID)
	return n, err
}

func (s *Store) MarkAllRead(ctx context.Context, recipientID string, at time.Time) ([]notification.Notification, error) {
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, `
		UPDATE notifications SET is_read = TRUE, updated_at = $2
		WHERE recipient_id = $1 AND is_read = FALSE
		RETURNING `+notificationColumns, recipientID, at); err != nil {
		return nil, err
	}
	out := toNotifications(rows)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteAllNotifications(ctx context.Context, recipientID string) ([]string, error) {
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, `
		DELETE FROM notifications WHERE recipient_id = $1 RETURNING id
	`, recipientID); err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
