// internal/domain/menu/repository.go
package menu

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"

	"mealsync/internal/domain/calendar"
)

var ErrMenuNotFound = errors.New("menu not found")
var ErrEmptyMenu = errors.New("menu must contain at least one dish")

// Repository persists menus keyed by date.
type Repository interface {
	Get(ctx context.Context, date civil.Date) (*Menu, error)
	ListRange(ctx context.Context, r calendar.Range) ([]*Menu, error)
	// Save creates or replaces the menu. An empty item list is rejected with
	// ErrEmptyMenu; callers delete instead.
	Save(ctx context.Context, m *Menu) error
	Delete(ctx context.Context, date civil.Date) error
}
