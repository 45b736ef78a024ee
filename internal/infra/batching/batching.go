// Package batching splits staged writes into store-sized batches and commits
// them in order. The cascade engine and the sweeper both go through Run so they
// share one set of chunking and abort semantics.
package batching

import (
	"context"
	"errors"
	"fmt"
)

var ErrInvalidMax = errors.New("batch size limit must be positive")

// CommitFunc commits one batch atomically.
type CommitFunc[T any] func(ctx context.Context, batch []T) error

// Batch is one planned commit. Groups counts the groups that are complete once
// this batch commits.
type Batch[T any] struct {
	Ops    []T
	Groups int
}

// Report describes a Run.
type Report struct {
	Batches         int   // planned
	Committed       int   // committed, always a prefix of the plan
	FirstFailed     int   // index of the failing batch, -1 when none failed
	CommittedGroups int   // groups whose every op is committed
	Err             error // cause of the abort, nil on full success
}

// Failed is the number of planned batches that did not commit, including the
// ones skipped after the abort.
func (r Report) Failed() int { return r.Batches - r.Committed }

// Partition packs ordered groups of ops into batches of at most max ops.
// A group is never split across batches unless it alone exceeds max, in which
// case it fills consecutive batches in order.
func Partition[T any](groups [][]T, max int) ([]Batch[T], error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMax, max)
	}

	var batches []Batch[T]
	var cur Batch[T]
	flush := func() {
		if len(cur.Ops) > 0 {
			batches = append(batches, cur)
		}
		cur = Batch[T]{}
	}

	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		if len(group) > max {
			flush()
			for start := 0; start < len(group); start += max {
				end := min(start+max, len(group))
				cur.Ops = append(cur.Ops, group[start:end]...)
				if end == len(group) {
					cur.Groups = 1
				}
				flush()
			}
			continue
		}
		if len(cur.Ops)+len(group) > max {
			flush()
		}
		cur.Ops = append(cur.Ops, group...)
		cur.Groups++
	}
	flush()
	return batches, nil
}

// Run partitions groups and commits the batches sequentially. It stops at the
// first failing batch or when ctx is done; batches committed before that stay
// committed, nothing is rolled back.
func Run[T any](ctx context.Context, groups [][]T, max int, commit CommitFunc[T]) Report {
	report := Report{FirstFailed: -1}

	batches, err := Partition(groups, max)
	if err != nil {
		report.Err = err
		return report
	}
	report.Batches = len(batches)

	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			report.FirstFailed = i
			report.Err = err
			return report
		}
		if err := commit(ctx, b.Ops); err != nil {
			report.FirstFailed = i
			report.Err = fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err)
			return report
		}
		report.Committed++
		report.CommittedGroups += b.Groups
	}
	return report
}
