// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mealsync/internal/domain/notification"
)

const notificationColumns = `id, user_id, type, title, message, notification_date, removed_dish, read, created_at, action_url`

// PostgresNotificationRepository is the read side used by the notification
// inbox. Records are created only through the batch writer.
type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Get(ctx context.Context, id string) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error getting notification %s: %w", id, classify(err))
	}
	return n, nil
}

// ListUnreadByUser returns the user's unread notifications, newest first.
func (r *PostgresNotificationRepository) ListUnreadByUser(ctx context.Context, userID string) ([]*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
               WHERE user_id = $1 AND NOT read
               ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying unread notifications for %s: %w", userID, classify(err))
	}
	defer rows.Close()

	notifications := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", classify(err))
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", classify(err))
	}
	return notifications, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error marking notification %s read: %w", id, classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(row rowScanner) (*notification.Notification, error) {
	var (
		n    notification.Notification
		date time.Time
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &date,
		&n.RemovedDish, &n.Read, &n.CreatedAt, &n.ActionURL)
	if err != nil {
		return nil, err
	}
	n.Date = scanDate(date)
	return &n, nil
}

var _ notification.Repository = (*PostgresNotificationRepository)(nil)
