package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsync/internal/infra/memstore"
)

func TestSelectionService_Save(t *testing.T) {
	ctx := context.Background()
	today := day("2025-06-09")
	tomorrow := day("2025-06-10")
	user := Actor{UserID: "u1"}
	admin := Actor{UserID: "boss", IsAdmin: true}

	newService := func(t *testing.T) (*SelectionService, *memstore.Store) {
		s := memstore.New(500)
		seedMenu(t, s, today, "Pasta")
		seedMenu(t, s, tomorrow, "Pasta", "Salad")
		return NewSelectionService(s.Menus(), s.Selections(), testClock(), quietLogger()), s
	}

	t.Run("own future selection", func(t *testing.T) {
		svc, s := newService(t)
		sel, err := svc.Save(ctx, user, "u1", tomorrow, []string{"Salad", " Pasta", "Salad"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Salad", "Pasta"}, sel.Items.Names)
		assert.Equal(t, []string{"Salad", "Pasta"}, itemsOf(t, s, "u1", tomorrow))
	})

	t.Run("today is locked for users", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Save(ctx, user, "u1", today, []string{"Pasta"})
		assert.ErrorIs(t, err, ErrDateLocked)
	})

	t.Run("admin edits any user any day", func(t *testing.T) {
		svc, s := newService(t)
		_, err := svc.Save(ctx, admin, "u1", today, []string{"Pasta"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Pasta"}, itemsOf(t, s, "u1", today))
	})

	t.Run("other user's selection", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Save(ctx, user, "u2", tomorrow, []string{"Pasta"})
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("dish not on menu", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Save(ctx, user, "u1", tomorrow, []string{"Fish"})
		assert.ErrorIs(t, err, ErrDishNotOnMenu)
	})

	t.Run("no menu", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Save(ctx, user, "u1", day("2025-06-20"), []string{"Pasta"})
		assert.ErrorIs(t, err, ErrNoMenu)

		sel, err := svc.Save(ctx, user, "u1", day("2025-06-20"), nil)
		require.NoError(t, err)
		assert.True(t, sel.Items.Valid)
		assert.Empty(t, sel.Items.Names)
	})
}

func TestSelectionService_Validate(t *testing.T) {
	ctx := context.Background()
	date := day("2025-06-10")
	s := memstore.New(500)
	seedMenu(t, s, date, "Pasta")
	seedSelection(t, s, "ok", date, "Pasta")
	seedSelection(t, s, "stale", date, "Pasta", "Soup")
	seedSelection(t, s, "orphan", day("2025-06-11"), "Pasta")
	seedMalformed(t, s, "broken", date)
	svc := NewSelectionService(s.Menus(), s.Selections(), testClock(), quietLogger())

	tests := []struct {
		user string
		date string
		want bool
	}{
		{"ok", "2025-06-10", true},
		{"stale", "2025-06-10", false},
		{"orphan", "2025-06-11", false},
		{"broken", "2025-06-10", false},
		{"nobody", "2025-06-10", true},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			got, err := svc.Validate(ctx, tt.user, day(tt.date))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
