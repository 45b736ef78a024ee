package app

import (
	"context"
	"errors"
	"fmt"

	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/store"
)

// ErrStoreUnavailable is the transient, retryable store failure. The core
// performs no retry loop of its own.
var ErrStoreUnavailable = store.ErrUnavailable

var ErrInvalidDate = calendar.ErrInvalidDate

// IntegrityWarning describes a malformed document that was skipped. It never
// aborts a pass.
type IntegrityWarning struct {
	Key    string
	Reason string
}

func (w IntegrityWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Key, w.Reason)
}

const reasonMissingItems = "selection has no selectedItems field"

// distinct returns the names in first-seen order without duplicates. Names are
// compared exactly; no trimming or case folding.
func distinct(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// readFailure wraps a failed read so callers can retry on ErrStoreUnavailable.
// A cancelled context is passed through as is.
func readFailure(what string, err error) error {
	if errors.Is(err, store.ErrUnavailable) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", what, ErrStoreUnavailable, err)
}
