package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"mealsync/internal/domain/store"
)

// stripSelectionQuery removes the named dishes from whatever list is stored
// when the statement runs, keeping the remaining order. Rows that hold none
// of them, or hold NULL, are not touched.
const stripSelectionQuery = `UPDATE menu_selections
SET selected_items = ARRAY(
        SELECT s.item
        FROM unnest(selected_items) WITH ORDINALITY AS s(item, pos)
        WHERE s.item <> ALL($3::text[])
        ORDER BY s.pos
    ),
    updated_at = $4,
    cleaned_at = $4
WHERE user_id = $1
  AND selection_date = $2::date
  AND selected_items && $3::text[]`

const createNotificationQuery = `INSERT INTO notifications
    (id, user_id, type, title, message, notification_date, removed_dish, read, created_at, action_url)
VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`

// PostgresBatchWriter commits each batch in its own transaction.
type PostgresBatchWriter struct {
	db          *sql.DB
	maxBatchOps int
}

func NewPostgresBatchWriter(db *sql.DB, maxBatchOps int) *PostgresBatchWriter {
	return &PostgresBatchWriter{db: db, maxBatchOps: maxBatchOps}
}

func (w *PostgresBatchWriter) WriteBatch(ctx context.Context, ops []store.Op) error {
	if len(ops) == 0 {
		return nil
	}
	if w.maxBatchOps > 0 && len(ops) > w.maxBatchOps {
		return fmt.Errorf("%w: %d > %d", store.ErrBatchTooLarge, len(ops), w.maxBatchOps)
	}

	txn, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for batch: %w", classify(err))
	}
	defer txn.Rollback() // Rollback if not committed

	var strip, create *sql.Stmt
	for i, op := range ops {
		switch o := op.(type) {
		case store.StripSelection:
			if strip == nil {
				if strip, err = txn.PrepareContext(ctx, stripSelectionQuery); err != nil {
					return fmt.Errorf("failed to prepare strip statement: %w", classify(err))
				}
				defer strip.Close()
			}
			if _, err := strip.ExecContext(ctx, o.UserID, dateArg(o.Date), pq.Array(o.Remove), o.At); err != nil {
				return fmt.Errorf("op %d: error stripping selection %s_%s: %w", i, o.UserID, o.Date, classify(err))
			}
		case store.CreateNotification:
			n := o.Notification
			if n == nil || n.ID == "" {
				return fmt.Errorf("op %d: notification without id", i)
			}
			if create == nil {
				if create, err = txn.PrepareContext(ctx, createNotificationQuery); err != nil {
					return fmt.Errorf("failed to prepare notification statement: %w", classify(err))
				}
				defer create.Close()
			}
			_, err := create.ExecContext(ctx, n.ID, n.UserID, string(n.Type), n.Title, n.Message,
				dateArg(n.Date), n.RemovedDish, n.Read, n.CreatedAt, n.ActionURL)
			if err != nil {
				return fmt.Errorf("op %d: error creating notification %s: %w", i, n.ID, classify(err))
			}
		default:
			return fmt.Errorf("op %d: unsupported operation %T", i, op)
		}
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", classify(err))
	}
	return nil
}

var _ store.Writer = (*PostgresBatchWriter)(nil)
