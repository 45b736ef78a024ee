package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/menu"
	"mealsync/internal/domain/selection"
	"mealsync/internal/domain/store"
	"mealsync/internal/infra/memstore"
)

func newSweeper(s *memstore.Store, w store.Writer, max int) *Sweeper {
	return NewSweeper(s.Menus(), s.Selections(), w, max, testClock(), quietLogger())
}

func TestReconcile_ConsistentStoreWritesNothing(t *testing.T) {
	s := memstore.New(500)
	date := day("2025-06-10")
	seedMenu(t, s, date, "Pasta", "Salad")
	seedSelection(t, s, "u1", date, "Pasta")
	seedSelection(t, s, "u2", date)
	w := newRecordingWriter(s)

	res, err := newSweeper(s, w, 500).Reconcile(context.Background(), calendar.All())
	require.NoError(t, err)
	assert.Equal(t, 2, res.ScannedSelections)
	assert.Equal(t, 0, res.CleanedSelections)
	assert.Equal(t, 0, res.ErrorCount)
	assert.Equal(t, 0, w.calls())
}

func TestReconcile_ConvergesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New(500)
	d1, d2, d3 := day("2025-06-10"), day("2025-06-11"), day("2025-06-12")
	seedMenu(t, s, d1, "Salad")
	seedMenu(t, s, d2, "Soup", "Bread")
	seedSelection(t, s, "u1", d1, "Pasta", "Salad", "Pasta")
	seedSelection(t, s, "u1", d2, "Bread")
	seedSelection(t, s, "u2", d3, "Fish") // no menu on d3
	w := newRecordingWriter(s)
	sweeper := newSweeper(s, w, 500)

	res, err := sweeper.Reconcile(ctx, calendar.All())
	require.NoError(t, err)
	assert.Equal(t, 3, res.ScannedSelections)
	assert.Equal(t, 2, res.CleanedSelections)
	assert.Equal(t, 2, res.RemovedItems)
	assert.Equal(t, 1, w.calls())

	assert.Equal(t, []string{"Salad"}, itemsOf(t, s, "u1", d1))
	assert.Equal(t, []string{"Bread"}, itemsOf(t, s, "u1", d2))
	assert.Empty(t, itemsOf(t, s, "u2", d3))

	menus, err := s.Menus().ListRange(ctx, calendar.All())
	require.NoError(t, err)
	available := map[string][]string{}
	for _, m := range menus {
		available[m.Date.String()] = m.AvailableItems
	}
	all, err := s.Selections().ListRange(ctx, calendar.All())
	require.NoError(t, err)
	for _, sel := range all {
		assert.True(t, selection.IsSubset(sel.Items.Names, available[sel.Date.String()]), sel.Key())
	}

	res, err = sweeper.Reconcile(ctx, calendar.All())
	require.NoError(t, err)
	assert.Equal(t, 0, res.CleanedSelections)
	assert.Equal(t, 1, w.calls(), "second sweep must not write")
}

func TestReconcile_RepairsMissedCascadeWithoutNotifying(t *testing.T) {
	s := memstore.New(500)
	date := day("2025-06-10")
	seedMenu(t, s, date, "Salad")
	seedSelection(t, s, "u1", date, "Pasta", "Salad")

	res, err := newSweeper(s, s, 500).Reconcile(context.Background(), calendar.Day(date))
	require.NoError(t, err)
	assert.Equal(t, 1, res.CleanedSelections)
	assert.Equal(t, []string{"Salad"}, itemsOf(t, s, "u1", date))
	assert.Equal(t, 0, s.NotificationCount())
}

func TestReconcile_RespectsRange(t *testing.T) {
	s := memstore.New(500)
	inside, outside := day("2025-06-10"), day("2025-06-20")
	seedSelection(t, s, "u1", inside, "Pasta")
	seedSelection(t, s, "u1", outside, "Pasta")

	res, err := newSweeper(s, s, 500).Reconcile(context.Background(), calendar.Between(day("2025-06-01"), day("2025-06-15")))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ScannedSelections)
	assert.Empty(t, itemsOf(t, s, "u1", inside))
	assert.Equal(t, []string{"Pasta"}, itemsOf(t, s, "u1", outside))

	_, err = newSweeper(s, s, 500).Reconcile(context.Background(), calendar.Between(outside, inside))
	assert.ErrorIs(t, err, calendar.ErrInvalidRange)
}

func TestReconcile_MalformedAndFailedBatches(t *testing.T) {
	s := memstore.New(1)
	date := day("2025-06-10")
	seedMenu(t, s, date, "Salad")
	seedMalformed(t, s, "a", date)
	seedSelection(t, s, "b", date, "Pasta")
	seedSelection(t, s, "c", date, "Pasta")
	seedSelection(t, s, "d", date, "Pasta")
	w := newRecordingWriter(s)
	w.failOn[2] = errors.New("deadline")

	res, err := newSweeper(s, w, 1).Reconcile(context.Background(), calendar.All())
	require.NoError(t, err)
	assert.Equal(t, 4, res.ScannedSelections)
	assert.Equal(t, 1, res.CleanedSelections)
	assert.Equal(t, 2, res.FailedBatchCount)
	assert.Equal(t, 3, res.ErrorCount) // malformed + two repairs not committed
	require.Len(t, res.Warnings, 1)
	assert.Empty(t, itemsOf(t, s, "b", date))
	assert.Equal(t, []string{"Pasta"}, itemsOf(t, s, "d", date))
}

func TestReconcile_ReadFailure(t *testing.T) {
	s := memstore.New(500)
	sweeper := NewSweeper(s.Menus(), failingSelections{err: store.ErrUnavailable}, s, 500, testClock(), quietLogger())

	_, err := sweeper.Reconcile(context.Background(), calendar.All())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

// A sweep interleaved with a cascade only ever shrinks a selection and both
// converge on the same state.
func TestReconcile_InterleavedWithCascade(t *testing.T) {
	ctx := context.Background()
	s := memstore.New(500)
	date := day("2025-06-10")
	seedMenu(t, s, date, "Salad")
	seedSelection(t, s, "u1", date, "Pasta", "Salad", "Soup")

	// The sweep reads before the cascade commits but writes after it.
	sweepRead, err := s.Selections().ListRange(ctx, calendar.All())
	require.NoError(t, err)
	require.Len(t, sweepRead, 1)

	_, err = newCascade(s, s, 500).OnDishesRemoved(ctx, date, []string{"Pasta"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Salad", "Soup"}, itemsOf(t, s, "u1", date))

	stale := selection.Subtract(sweepRead[0].Items.Names, []string{"Salad"})
	require.NoError(t, s.WriteBatch(ctx, []store.Op{store.StripSelection{UserID: "u1", Date: date, Remove: stale, At: testNow}}))
	assert.Equal(t, []string{"Salad"}, itemsOf(t, s, "u1", date))

	res, err := newSweeper(s, s, 500).Reconcile(ctx, calendar.All())
	require.NoError(t, err)
	assert.Equal(t, 0, res.CleanedSelections)
	assert.Equal(t, 1, s.NotificationCount())
}

// betweenReads runs hook once, right after the sweeper's first range read,
// whichever repository that read goes to.
type betweenReads struct {
	fired bool
	hook  func()
}

func (b *betweenReads) done() {
	if !b.fired {
		b.fired = true
		b.hook()
	}
}

type hookedMenus struct {
	menu.Repository
	reads *betweenReads
}

func (h hookedMenus) ListRange(ctx context.Context, rng calendar.Range) ([]*menu.Menu, error) {
	menus, err := h.Repository.ListRange(ctx, rng)
	h.reads.done()
	return menus, err
}

type hookedSelections struct {
	selection.Repository
	reads *betweenReads
}

func (h hookedSelections) ListRange(ctx context.Context, rng calendar.Range) ([]*selection.Selection, error) {
	selections, err := h.Repository.ListRange(ctx, rng)
	h.reads.done()
	return selections, err
}

func TestReconcile_DishAddedAndSelectedDuringSweepSurvives(t *testing.T) {
	ctx := context.Background()
	s := memstore.New(500)
	date := day("2025-06-10")
	seedMenu(t, s, date, "Pasta")
	seedSelection(t, s, "u1", date, "Pasta")

	reads := &betweenReads{hook: func() {
		seedMenu(t, s, date, "Pasta", "Soup")
		seedSelection(t, s, "u1", date, "Pasta", "Soup")
	}}
	sweeper := NewSweeper(hookedMenus{s.Menus(), reads}, hookedSelections{s.Selections(), reads}, s, 500, testClock(), quietLogger())

	res, err := sweeper.Reconcile(ctx, calendar.All())
	require.NoError(t, err)
	require.True(t, reads.fired)
	assert.Equal(t, 0, res.CleanedSelections)
	assert.Equal(t, []string{"Pasta", "Soup"}, itemsOf(t, s, "u1", date))
}
