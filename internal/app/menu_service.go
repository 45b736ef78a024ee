package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"

	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/menu"
)

var ErrCascadeIncomplete = errors.New("menu saved but the removal cascade did not complete")

// PublishResult reports what a menu edit changed.
type PublishResult struct {
	Menu    *menu.Menu // nil when the menu was deleted
	Deleted bool
	Removed []string
	Cascade CascadeResult
}

// MenuService applies admin menu edits and hands removed dishes to the
// cascade engine.
type MenuService struct {
	menus   menu.Repository
	cascade *CascadeEngine
	clock   calendar.Clock
	logger  *logrus.Entry
}

func NewMenuService(mr menu.Repository, cascade *CascadeEngine, clock calendar.Clock, logger *logrus.Entry) *MenuService {
	return &MenuService{
		menus:   mr,
		cascade: cascade,
		clock:   clock,
		logger:  logger,
	}
}

// Publish replaces the menu of date with items. An empty list deletes the
// menu, which removes every dish it had. Publishing an empty list for a day
// without a menu is rejected with menu.ErrEmptyMenu.
func (s *MenuService) Publish(ctx context.Context, date civil.Date, items []string) (*PublishResult, error) {
	if !date.IsValid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, date)
	}
	items = menu.NormalizeItems(items)
	log := s.logger.WithField("date", date.String())

	var before []string
	current, err := s.menus.Get(ctx, date)
	switch {
	case err == nil:
		before = current.AvailableItems
	case errors.Is(err, menu.ErrMenuNotFound):
	default:
		return nil, readFailure("get menu for "+date.String(), err)
	}

	result := &PublishResult{}
	if len(items) == 0 {
		if current == nil {
			return nil, menu.ErrEmptyMenu
		}
		if err := s.menus.Delete(ctx, date); err != nil && !errors.Is(err, menu.ErrMenuNotFound) {
			return nil, fmt.Errorf("failed to delete menu for %s: %w", date, err)
		}
		result.Deleted = true
		result.Removed = before
		log.WithField("dishes", len(before)).Info("Menu deleted")
	} else {
		m := &menu.Menu{Date: date, AvailableItems: items, UpdatedAt: s.clock.Now()}
		if err := s.menus.Save(ctx, m); err != nil {
			return nil, fmt.Errorf("failed to save menu for %s: %w", date, err)
		}
		result.Menu = m
		result.Removed = menu.Removed(before, items)
		log.WithFields(logrus.Fields{"dishes": len(items), "removed": result.Removed}).Info("Menu saved")
	}

	if len(result.Removed) == 0 {
		return result, nil
	}
	result.Cascade, err = s.cascade.OnDishesRemoved(ctx, date, result.Removed)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrCascadeIncomplete, err)
	}
	if result.Cascade.FailedBatchCount > 0 {
		return result, fmt.Errorf("%w: %d of %d batches failed", ErrCascadeIncomplete,
			result.Cascade.FailedBatchCount, result.Cascade.FailedBatchCount+result.Cascade.CommittedBatchCount)
	}
	return result, nil
}
