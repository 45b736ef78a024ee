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
	"mealsync/internal/domain/menu"
)

type PostgresMenuRepository struct {
	db *sql.DB
}

func NewPostgresMenuRepository(db *sql.DB) *PostgresMenuRepository {
	return &PostgresMenuRepository{db: db}
}

func (r *PostgresMenuRepository) Get(ctx context.Context, date civil.Date) (*menu.Menu, error) {
	query := `SELECT menu_date, available_items, updated_at FROM menus WHERE menu_date = $1::date`
	m, err := scanMenu(r.db.QueryRowContext(ctx, query, dateArg(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, menu.ErrMenuNotFound
		}
		return nil, fmt.Errorf("error getting menu for %s: %w", date, classify(err))
	}
	return m, nil
}

func (r *PostgresMenuRepository) ListRange(ctx context.Context, rng calendar.Range) ([]*menu.Menu, error) {
	query := `SELECT menu_date, available_items, updated_at FROM menus
               WHERE ($1::date IS NULL OR menu_date >= $1::date)
                 AND ($2::date IS NULL OR menu_date <= $2::date)
               ORDER BY menu_date`
	from, to := rangeArgs(rng)
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing menus in %s: %w", rng, classify(err))
	}
	defer rows.Close()

	menus := make([]*menu.Menu, 0)
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning menu: %w", classify(err))
		}
		menus = append(menus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating menus: %w", classify(err))
	}
	return menus, nil
}

func (r *PostgresMenuRepository) Save(ctx context.Context, m *menu.Menu) error {
	if len(m.AvailableItems) == 0 {
		return menu.ErrEmptyMenu
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	query := `INSERT INTO menus (menu_date, available_items, updated_at)
               VALUES ($1::date, $2, $3)
               ON CONFLICT (menu_date) DO UPDATE
               SET available_items = EXCLUDED.available_items, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, dateArg(m.Date), pq.Array(m.AvailableItems), m.UpdatedAt); err != nil {
		return fmt.Errorf("error saving menu for %s: %w", m.Date, classify(err))
	}
	return nil
}

func (r *PostgresMenuRepository) Delete(ctx context.Context, date civil.Date) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM menus WHERE menu_date = $1::date`, dateArg(date))
	if err != nil {
		return fmt.Errorf("error deleting menu for %s: %w", date, classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return menu.ErrMenuNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMenu(row rowScanner) (*menu.Menu, error) {
	var (
		m     menu.Menu
		date  time.Time
		items pq.StringArray
	)
	if err := row.Scan(&date, &items, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Date = scanDate(date)
	m.AvailableItems = []string(items)
	return &m, nil
}

var _ menu.Repository = (*PostgresMenuRepository)(nil)
