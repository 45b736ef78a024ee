package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"

	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/editlock"
	"mealsync/internal/domain/menu"
	"mealsync/internal/domain/selection"
)

var ErrNotAuthorized = errors.New("user may only edit their own selection")
var ErrDateLocked = errors.New("selection date is locked")
var ErrNoMenu = errors.New("no menu published for this date")
var ErrDishNotOnMenu = errors.New("dish is not on the menu")

// Actor is the user performing an edit.
type Actor struct {
	UserID  string
	IsAdmin bool
}

type SelectionService struct {
	menus      menu.Repository
	selections selection.Repository
	clock      calendar.Clock
	logger     *logrus.Entry
}

func NewSelectionService(mr menu.Repository, sr selection.Repository, clock calendar.Clock, logger *logrus.Entry) *SelectionService {
	return &SelectionService{
		menus:      mr,
		selections: sr,
		clock:      clock,
		logger:     logger,
	}
}

// Save stores userID's dishes for date. Only dishes on that day's menu are
// accepted; an empty list is a valid "no meal" choice and needs no menu.
func (s *SelectionService) Save(ctx context.Context, actor Actor, userID string, date civil.Date, items []string) (*selection.Selection, error) {
	if !date.IsValid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, date)
	}
	if !actor.IsAdmin && actor.UserID != userID {
		return nil, ErrNotAuthorized
	}
	now := s.clock.Now()
	if editlock.IsLocked(date, actor.IsAdmin, now) {
		return nil, fmt.Errorf("%w: %s", ErrDateLocked, date)
	}

	items = menu.NormalizeItems(items)
	if len(items) > 0 {
		m, err := s.menus.Get(ctx, date)
		if errors.Is(err, menu.ErrMenuNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoMenu, date)
		}
		if err != nil {
			return nil, readFailure("get menu for "+date.String(), err)
		}
		for _, item := range items {
			if !m.Has(item) {
				return nil, fmt.Errorf("%w: %q on %s", ErrDishNotOnMenu, item, date)
			}
		}
	}

	sel := &selection.Selection{
		UserID:    userID,
		Date:      date,
		Items:     selection.ItemsOf(items...),
		UpdatedAt: now,
	}
	if err := s.selections.Save(ctx, sel); err != nil {
		return nil, fmt.Errorf("failed to save selection %s: %w", sel.Key(), err)
	}
	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"date":    date.String(),
		"items":   len(items),
		"by":      actor.UserID,
	}).Debug("Selection saved")
	return sel, nil
}

// Validate reports whether userID's selection for date only holds dishes on
// that day's menu. No selection is valid; a selection without a menu is not.
func (s *SelectionService) Validate(ctx context.Context, userID string, date civil.Date) (bool, error) {
	sel, err := s.selections.Get(ctx, userID, date)
	if errors.Is(err, selection.ErrSelectionNotFound) {
		return true, nil
	}
	if err != nil {
		return false, readFailure("get selection "+selection.Key(userID, date), err)
	}
	if !sel.Items.Valid {
		return false, nil
	}

	m, err := s.menus.Get(ctx, date)
	if errors.Is(err, menu.ErrMenuNotFound) {
		return false, nil
	}
	if err != nil {
		return false, readFailure("get menu for "+date.String(), err)
	}
	return selection.IsSubset(sel.Items.Names, m.AvailableItems), nil
}
