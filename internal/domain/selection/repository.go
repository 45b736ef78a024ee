// internal/domain/selection/repository.go
package selection

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"

	"mealsync/internal/domain/calendar"
)

var ErrSelectionNotFound = errors.New("selection not found")

// Repository persists selections keyed by (userID, date).
// Selections are not indexed by dish; finding who chose a dish means scanning
// a date.
type Repository interface {
	Get(ctx context.Context, userID string, date civil.Date) (*Selection, error)
	ListByDate(ctx context.Context, date civil.Date) ([]*Selection, error)
	ListRange(ctx context.Context, r calendar.Range) ([]*Selection, error)
	// Save creates or overwrites the user's selection (the user's own save action).
	Save(ctx context.Context, s *Selection) error
}
