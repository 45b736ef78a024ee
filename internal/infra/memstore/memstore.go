// Package memstore is an in-process implementation of the menu, selection and
// notification repositories and of the batch writer. It backs local runs with
// STORE_BACKEND=memory and the engine tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/menu"
	"mealsync/internal/domain/notification"
	"mealsync/internal/domain/selection"
	"mealsync/internal/domain/store"
)

type selectionKey struct {
	userID string
	date   civil.Date
}

// Store keeps every collection behind one mutex so a batch is applied
// atomically with respect to readers.
type Store struct {
	mu            sync.RWMutex
	maxBatchOps   int
	menus         map[civil.Date]menu.Menu
	selections    map[selectionKey]selection.Selection
	notifications map[string]notification.Notification
}

// New creates an empty store enforcing maxBatchOps per WriteBatch.
func New(maxBatchOps int) *Store {
	return &Store{
		maxBatchOps:   maxBatchOps,
		menus:         make(map[civil.Date]menu.Menu),
		selections:    make(map[selectionKey]selection.Selection),
		notifications: make(map[string]notification.Notification),
	}
}

// Menus returns the store as a menu.Repository.
func (s *Store) Menus() menu.Repository { return menuRepo{s} }

// Selections returns the store as a selection.Repository.
func (s *Store) Selections() selection.Repository { return selectionRepo{s} }

// Notifications returns the store as a notification.Repository.
func (s *Store) Notifications() notification.Repository { return notificationRepo{s} }

// WriteBatch applies ops atomically.
func (s *Store) WriteBatch(ctx context.Context, ops []store.Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.maxBatchOps > 0 && len(ops) > s.maxBatchOps {
		return fmt.Errorf("%w: %d > %d", store.ErrBatchTooLarge, len(ops), s.maxBatchOps)
	}
	for i, op := range ops {
		switch o := op.(type) {
		case store.StripSelection:
		case store.CreateNotification:
			if o.Notification == nil || o.Notification.ID == "" {
				return fmt.Errorf("op %d: notification without id", i)
			}
		default:
			return fmt.Errorf("op %d: unsupported operation %T", i, op)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		switch o := op.(type) {
		case store.StripSelection:
			s.strip(o)
		case store.CreateNotification:
			if _, exists := s.notifications[o.Notification.ID]; !exists {
				s.notifications[o.Notification.ID] = *o.Notification
			}
		}
	}
	return nil
}

func (s *Store) strip(o store.StripSelection) {
	key := selectionKey{o.UserID, o.Date}
	sel, ok := s.selections[key]
	if !ok || !sel.Items.Valid {
		return
	}
	if len(selection.Overlap(sel.Items.Names, o.Remove)) == 0 {
		return
	}
	sel.Items = selection.ItemsOf(selection.Subtract(sel.Items.Names, o.Remove)...)
	sel.UpdatedAt = o.At
	sel.CleanedAt.Time, sel.CleanedAt.Valid = o.At, true
	s.selections[key] = sel
}

// --- menus ---

type menuRepo struct{ s *Store }

func (r menuRepo) Get(ctx context.Context, date civil.Date) (*menu.Menu, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.menus[date]
	if !ok {
		return nil, menu.ErrMenuNotFound
	}
	return cloneMenu(m), nil
}

func (r menuRepo) ListRange(ctx context.Context, rng calendar.Range) ([]*menu.Menu, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*menu.Menu, 0)
	for date, m := range r.s.menus {
		if rng.Contains(date) {
			out = append(out, cloneMenu(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r menuRepo) Save(ctx context.Context, m *menu.Menu) error {
	if len(m.AvailableItems) == 0 {
		return menu.ErrEmptyMenu
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.menus[m.Date] = *cloneMenu(*m)
	return nil
}

func (r menuRepo) Delete(ctx context.Context, date civil.Date) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.menus[date]; !ok {
		return menu.ErrMenuNotFound
	}
	delete(r.s.menus, date)
	return nil
}

func cloneMenu(m menu.Menu) *menu.Menu {
	m.AvailableItems = append([]string(nil), m.AvailableItems...)
	return &m
}

// --- selections ---

type selectionRepo struct{ s *Store }

func (r selectionRepo) Get(ctx context.Context, userID string, date civil.Date) (*selection.Selection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sel, ok := r.s.selections[selectionKey{userID, date}]
	if !ok {
		return nil, selection.ErrSelectionNotFound
	}
	return cloneSelection(sel), nil
}

func (r selectionRepo) ListByDate(ctx context.Context, date civil.Date) ([]*selection.Selection, error) {
	return r.ListRange(ctx, calendar.Day(date))
}

func (r selectionRepo) ListRange(ctx context.Context, rng calendar.Range) ([]*selection.Selection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*selection.Selection, 0)
	for key, sel := range r.s.selections {
		if rng.Contains(key.date) {
			out = append(out, cloneSelection(sel))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r selectionRepo) Save(ctx context.Context, sel *selection.Selection) error {
	if sel.UpdatedAt.IsZero() {
		sel.UpdatedAt = time.Now().UTC()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.selections[selectionKey{sel.UserID, sel.Date}] = *cloneSelection(*sel)
	return nil
}

func cloneSelection(sel selection.Selection) *selection.Selection {
	if sel.Items.Names != nil {
		sel.Items.Names = append([]string{}, sel.Items.Names...)
	}
	return &sel
}

// --- notifications ---

type notificationRepo struct{ s *Store }

func (r notificationRepo) Get(ctx context.Context, id string) (*notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, notification.ErrNotificationNotFound
	}
	return &n, nil
}

func (r notificationRepo) ListUnreadByUser(ctx context.Context, userID string) ([]*notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*notification.Notification, 0)
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return notification.ErrNotificationNotFound
	}
	n.Read = true
	r.s.notifications[id] = n
	return nil
}

// NotificationCount returns the number of stored notifications.
func (s *Store) NotificationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications)
}

var (
	_ store.Writer            = (*Store)(nil)
	_ menu.Repository         = menuRepo{}
	_ selection.Repository    = selectionRepo{}
	_ notification.Repository = notificationRepo{}
)
