// internal/domain/notification/repository.go
package notification

import (
	"context"
	"errors"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Repository exposes the read side used by the notification UI. Creation goes
// through store.CreateNotification inside a batch.
type Repository interface {
	Get(ctx context.Context, id string) (*Notification, error)
	// ListUnreadByUser returns the user's unread alerts, newest first.
	ListUnreadByUser(ctx context.Context, userID string) ([]*Notification, error)
	MarkRead(ctx context.Context, id string) error
}
