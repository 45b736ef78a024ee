package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	_ "github.com/lib/pq" // PostgreSQL driver

	"mealsync/internal/domain/calendar"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(ctx context.Context, dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", classify(err))
	}

	return db, nil
}

// ApplySchema creates the tables and indexes if they do not exist yet.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", classify(err))
	}
	return nil
}

// dateArg binds a calendar date; queries cast it with ::date.
func dateArg(d civil.Date) string {
	return d.String()
}

// rangeArgs binds the bounds of rng, nil for an open end.
func rangeArgs(rng calendar.Range) (from, to any) {
	if rng.From != nil {
		from = dateArg(*rng.From)
	}
	if rng.To != nil {
		to = dateArg(*rng.To)
	}
	return from, to
}

// scanDate converts a DATE column scanned by lib/pq.
func scanDate(t time.Time) civil.Date {
	return civil.DateOf(t)
}
