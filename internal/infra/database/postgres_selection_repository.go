package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/lib/pq"

	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/selection"
)

const selectionColumns = `user_id, selection_date, selected_items IS NOT NULL, selected_items, updated_at, cleaned_at`

type PostgresSelectionRepository struct {
	db *sql.DB
}

func NewPostgresSelectionRepository(db *sql.DB) *PostgresSelectionRepository {
	return &PostgresSelectionRepository{db: db}
}

func (r *PostgresSelectionRepository) Get(ctx context.Context, userID string, date civil.Date) (*selection.Selection, error) {
	query := `SELECT ` + selectionColumns + ` FROM menu_selections
               WHERE user_id = $1 AND selection_date = $2::date`
	sel, err := scanSelection(r.db.QueryRowContext(ctx, query, userID, dateArg(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, selection.ErrSelectionNotFound
		}
		return nil, fmt.Errorf("error getting selection %s: %w", selection.Key(userID, date), classify(err))
	}
	return sel, nil
}

// ListByDate is the date-scoped scan used by the cascade. Selections are
// not indexed by dish.
func (r *PostgresSelectionRepository) ListByDate(ctx context.Context, date civil.Date) ([]*selection.Selection, error) {
	query := `SELECT ` + selectionColumns + ` FROM menu_selections
               WHERE selection_date = $1::date ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query, dateArg(date))
	if err != nil {
		return nil, fmt.Errorf("error listing selections for %s: %w", date, classify(err))
	}
	defer rows.Close()
	return scanSelections(rows)
}

func (r *PostgresSelectionRepository) ListRange(ctx context.Context, rng calendar.Range) ([]*selection.Selection, error) {
	query := `SELECT ` + selectionColumns + ` FROM menu_selections
               WHERE ($1::date IS NULL OR selection_date >= $1::date)
                 AND ($2::date IS NULL OR selection_date <= $2::date)
               ORDER BY selection_date, user_id`
	from, to := rangeArgs(rng)
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing selections in %s: %w", rng, classify(err))
	}
	defer rows.Close()
	return scanSelections(rows)
}

// Save replaces the stored dish list. It is the end-user write path; the core
// only ever shrinks lists through the batch writer.
func (r *PostgresSelectionRepository) Save(ctx context.Context, sel *selection.Selection) error {
	if sel.UpdatedAt.IsZero() {
		sel.UpdatedAt = time.Now().UTC()
	}
	query := `INSERT INTO menu_selections (user_id, selection_date, selected_items, updated_at)
               VALUES ($1, $2::date, $3, $4)
               ON CONFLICT (user_id, selection_date) DO UPDATE
               SET selected_items = EXCLUDED.selected_items, updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query, sel.UserID, dateArg(sel.Date), itemsArg(sel.Items), sel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error saving selection %s: %w", sel.Key(), classify(err))
	}
	return nil
}

// itemsArg binds a dish list; a malformed list is stored as NULL.
func itemsArg(items selection.Items) any {
	if !items.Valid {
		return nil
	}
	names := items.Names
	if names == nil {
		names = []string{}
	}
	return pq.Array(names)
}

func scanSelection(row rowScanner) (*selection.Selection, error) {
	var (
		sel   selection.Selection
		date  time.Time
		valid bool
		items pq.StringArray
	)
	if err := row.Scan(&sel.UserID, &date, &valid, &items, &sel.UpdatedAt, &sel.CleanedAt); err != nil {
		return nil, err
	}
	sel.Date = scanDate(date)
	if valid {
		sel.Items = selection.ItemsOf(items...)
	}
	return &sel, nil
}

func scanSelections(rows *sql.Rows) ([]*selection.Selection, error) {
	selections := make([]*selection.Selection, 0)
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning selection row: %w", classify(err))
		}
		selections = append(selections, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating selection rows: %w", classify(err))
	}
	return selections, nil
}

var _ selection.Repository = (*PostgresSelectionRepository)(nil)
