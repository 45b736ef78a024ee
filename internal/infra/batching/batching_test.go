package batching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singles(n int) [][]int {
	groups := make([][]int, n)
	for i := range groups {
		groups[i] = []int{i}
	}
	return groups
}

func TestPartition(t *testing.T) {
	t.Run("600 singles at 500", func(t *testing.T) {
		batches, err := Partition(singles(600), 500)
		require.NoError(t, err)
		require.Len(t, batches, 2)
		assert.Len(t, batches[0].Ops, 500)
		assert.Len(t, batches[1].Ops, 100)
		assert.Equal(t, 500, batches[0].Groups)
		assert.Equal(t, 100, batches[1].Groups)
	})

	t.Run("groups stay together", func(t *testing.T) {
		groups := [][]int{{1, 2}, {3, 4}, {5, 6}}
		batches, err := Partition(groups, 5)
		require.NoError(t, err)
		require.Len(t, batches, 2)
		assert.Equal(t, []int{1, 2, 3, 4}, batches[0].Ops)
		assert.Equal(t, []int{5, 6}, batches[1].Ops)
	})

	t.Run("oversized group splits in order", func(t *testing.T) {
		groups := [][]int{{0}, {1, 2, 3, 4, 5}, {6}}
		batches, err := Partition(groups, 2)
		require.NoError(t, err)
		var ops [][]int
		groupsDone := 0
		for _, b := range batches {
			assert.LessOrEqual(t, len(b.Ops), 2)
			ops = append(ops, b.Ops)
			groupsDone += b.Groups
		}
		assert.Equal(t, [][]int{{0}, {1, 2}, {3, 4}, {5}, {6}}, ops)
		assert.Equal(t, 3, groupsDone)
	})

	t.Run("empty input and empty groups", func(t *testing.T) {
		batches, err := Partition([][]int{{}, nil}, 3)
		require.NoError(t, err)
		assert.Empty(t, batches)
	})

	t.Run("invalid max", func(t *testing.T) {
		_, err := Partition(singles(1), 0)
		assert.ErrorIs(t, err, ErrInvalidMax)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("commits everything in order", func(t *testing.T) {
		var seen []int
		report := Run(ctx, singles(7), 3, func(_ context.Context, b []int) error {
			seen = append(seen, b...)
			return nil
		})
		require.NoError(t, report.Err)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, seen)
		assert.Equal(t, 3, report.Batches)
		assert.Equal(t, 3, report.Committed)
		assert.Equal(t, 0, report.Failed())
		assert.Equal(t, -1, report.FirstFailed)
		assert.Equal(t, 7, report.CommittedGroups)
	})

	t.Run("aborts after first failure and keeps earlier commits", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		report := Run(ctx, singles(10), 3, func(_ context.Context, b []int) error {
			calls++
			if calls == 2 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, report.Err, boom)
		assert.Equal(t, 2, calls, "no batch may be attempted after a failure")
		assert.Equal(t, 4, report.Batches)
		assert.Equal(t, 1, report.Committed)
		assert.Equal(t, 1, report.FirstFailed)
		assert.Equal(t, 3, report.Failed())
		assert.Equal(t, 3, report.CommittedGroups)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		report := Run(cctx, singles(6), 2, func(_ context.Context, b []int) error {
			calls++
			cancel()
			return nil
		})
		assert.ErrorIs(t, report.Err, context.Canceled)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, report.Committed)
		assert.Equal(t, 1, report.FirstFailed)
	})

	t.Run("nothing to do", func(t *testing.T) {
		report := Run(ctx, nil, 500, func(context.Context, []int) error {
			t.Fatal("commit must not be called")
			return nil
		})
		assert.NoError(t, report.Err)
		assert.Equal(t, 0, report.Batches)
	})
}
