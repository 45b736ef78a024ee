package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsync/internal/domain/menu"
	"mealsync/internal/domain/store"
	"mealsync/internal/infra/memstore"
)

func newMenuService(s *memstore.Store, w store.Writer) *MenuService {
	return NewMenuService(s.Menus(), newCascade(s, w, 500), testClock(), quietLogger())
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	date := day("2025-06-10")

	t.Run("new menu has nothing to cascade", func(t *testing.T) {
		s := memstore.New(500)
		w := newRecordingWriter(s)
		res, err := newMenuService(s, w).Publish(ctx, date, []string{" Pasta ", "Salad", "Pasta", ""})
		require.NoError(t, err)
		assert.Equal(t, []string{"Pasta", "Salad"}, res.Menu.AvailableItems)
		assert.Empty(t, res.Removed)
		assert.Equal(t, 0, w.calls())
	})

	t.Run("edit cascades removed dishes", func(t *testing.T) {
		s := memstore.New(500)
		seedMenu(t, s, date, "Pasta", "Salad")
		seedSelection(t, s, "u1", date, "Pasta", "Salad")

		res, err := newMenuService(s, s).Publish(ctx, date, []string{"Salad", "Soup"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Pasta"}, res.Removed)
		assert.Equal(t, 1, res.Cascade.NotificationCount)
		assert.Equal(t, []string{"Salad"}, itemsOf(t, s, "u1", date))

		m, err := s.Menus().Get(ctx, date)
		require.NoError(t, err)
		assert.Equal(t, []string{"Salad", "Soup"}, m.AvailableItems)
	})

	t.Run("empty list deletes the menu", func(t *testing.T) {
		s := memstore.New(500)
		seedMenu(t, s, date, "Soup")
		seedSelection(t, s, "u1", date, "Soup")

		res, err := newMenuService(s, s).Publish(ctx, date, []string{"  "})
		require.NoError(t, err)
		assert.True(t, res.Deleted)
		assert.Nil(t, res.Menu)
		assert.Equal(t, []string{"Soup"}, res.Removed)
		assert.Empty(t, itemsOf(t, s, "u1", date))

		_, err = s.Menus().Get(ctx, date)
		assert.ErrorIs(t, err, menu.ErrMenuNotFound)
	})

	t.Run("empty list without a menu", func(t *testing.T) {
		s := memstore.New(500)
		_, err := newMenuService(s, s).Publish(ctx, date, nil)
		assert.ErrorIs(t, err, menu.ErrEmptyMenu)
	})

	t.Run("failed cascade is reported", func(t *testing.T) {
		s := memstore.New(500)
		seedMenu(t, s, date, "Pasta", "Salad")
		seedSelection(t, s, "u1", date, "Pasta")
		w := newRecordingWriter(s)
		w.failOn[2] = store.ErrUnavailable

		res, err := newMenuService(s, w).Publish(ctx, date, []string{"Salad"})
		assert.ErrorIs(t, err, ErrCascadeIncomplete)
		require.NotNil(t, res)
		assert.Equal(t, 1, res.Cascade.FailedBatchCount)

		m, err := s.Menus().Get(ctx, date)
		require.NoError(t, err)
		assert.Equal(t, []string{"Salad"}, m.AvailableItems, "menu edit and cascade are not atomic")
	})
}
