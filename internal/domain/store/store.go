// Package store is the contract of the document store the consistency core
// writes through: a limited-size atomic multi-document batch.
package store

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"

	"mealsync/internal/domain/notification"
)

// ErrUnavailable marks a transient store failure. The core never retries on
// its own; callers retry with backoff or leave the gap to the sweeper.
var ErrUnavailable = errors.New("document store unavailable")

// ErrBatchTooLarge is returned when a batch exceeds the store's operation limit.
var ErrBatchTooLarge = errors.New("batch exceeds maximum operation count")

// Op is one staged write. The concrete types below are the only operations the
// core ever issues.
type Op interface {
	op()
}

// StripSelection removes dishes from a selection. Backends apply it to the
// value stored at commit time, not to a list read earlier, so it can only
// shrink a selection and can never bring back a dish. When none of Remove is
// present the op is a no-op and the document is left untouched.
type StripSelection struct {
	UserID string
	Date   civil.Date
	Remove []string
	At     time.Time // stamped as updatedAt and cleanedAt
}

// CreateNotification inserts the notification unless a record with the same
// ID already exists, in which case the existing record is kept as is.
type CreateNotification struct {
	Notification *notification.Notification
}

func (StripSelection) op()     {}
func (CreateNotification) op() {}

// Writer commits batches atomically: either every op of a batch takes effect
// or none does.
type Writer interface {
	WriteBatch(ctx context.Context, ops []Op) error
}
