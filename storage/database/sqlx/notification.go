package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/excellacademy/academia/core/notification"
)

const notificationColumns = "id, recipient_id, title, message, type, is_read, related_url, created_at"

type notificationRepository struct {
	db dbtx
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: bind(db)}
}

func (repo *notificationRepository) Create(ctx context.Context, ns ...notification.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (:id, :recipient_id, :title, :message, :type, :is_read, :related_url, :created_at)`, ns)
	return translate(err)
}

func (repo *notificationRepository) Query(ctx context.Context, qf notification.QueryFilter) ([]notification.Notification, error) {
	var f filter
	if qf.RecipientID != "" {
		f.where("recipient_id = ?", qf.RecipientID)
	}
	if qf.UnreadOnly {
		f.where("NOT is_read")
	}
	suffix := "ORDER BY created_at DESC, id"
	if qf.Limit > 0 {
		suffix += " LIMIT ?"
		f.args = append(f.args, qf.Limit)
	}
	ns := make([]notification.Notification, 0)
	err := f.sel(ctx, repo.db, &ns, "SELECT "+notificationColumns+" FROM notifications", suffix)
	return ns, err
}

func (repo *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := get(ctx, repo.db, &count, "SELECT count(*) FROM notifications WHERE recipient_id = ? AND NOT is_read", recipientID)
	return count, err
}

func (repo *notificationRepository) MarkRead(ctx context.Context, recipientID, id string) (notification.Notification, error) {
	var n notification.Notification
	err := get(ctx, repo.db, &n, `
		UPDATE notifications SET is_read = true
		WHERE id = ? AND recipient_id = ?
		RETURNING `+notificationColumns, id, recipientID)
	return n, notFound(err, notification.ErrNotFound)
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	res, err := exec(ctx, repo.db, "UPDATE notifications SET is_read = true WHERE recipient_id = ? AND NOT is_read", recipientID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
