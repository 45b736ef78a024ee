package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"mealsync/internal/app"
	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/menu"
	"mealsync/internal/domain/notification"
)

const msgUnauthorized = "Error: you are not allowed to run this command."

// AdminServices are the operations exposed to the admin chat.
type AdminServices struct {
	Menus         *app.MenuService
	Selections    *app.SelectionService
	Cascade       *app.CascadeEngine
	Sweeper       *app.Sweeper
	Notifications notification.Repository
}

// RegisterAdminHandlers registers handlers for admin commands.
// Only adminTelegramID may run them.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, svc AdminServices, adminTelegramID int64, baseLogger *logrus.Entry) {
	authorize := func(c telebot.Context, handler string) (*logrus.Entry, bool) {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   handler,
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return handlerLogger, false
		}
		return handlerLogger, true
	}

	b.Handle("/menu", func(c telebot.Context) error {
		handlerLogger, ok := authorize(c, "/menu")
		if !ok {
			return c.Send(msgUnauthorized)
		}

		// Expected format: /menu <YYYY-MM-DD> [dish | dish ...]
		date, dishes, err := parseDatedDishes(c.Message().Payload)
		if err != nil {
			return c.Send("Invalid format. Use: /menu <YYYY-MM-DD> dish one | dish two (no dishes deletes the menu)")
		}
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"date": date.String(), "dishes": len(dishes)})

		res, err := svc.Menus.Publish(ctx, date, dishes)
		switch {
		case errors.Is(err, menu.ErrEmptyMenu):
			return c.Send(fmt.Sprintf("There is no menu for %s to delete.", date))
		case errors.Is(err, app.ErrCascadeIncomplete) && res != nil:
			handlerLogger.WithError(err).Warn("Menu saved, cascade incomplete")
			return c.Send(formatPublish(date, res))
		case err != nil:
			handlerLogger.WithError(err).Error("Failed to publish menu")
			return c.Send(fmt.Sprintf("Failed to publish the menu: %s", err.Error()))
		}

		handlerLogger.WithField("removed", res.Removed).Info("Menu published")
		return c.Send(formatPublish(date, res))
	})

	b.Handle("/cascade", func(c telebot.Context) error {
		handlerLogger, ok := authorize(c, "/cascade")
		if !ok {
			return c.Send(msgUnauthorized)
		}

		// Expected format: /cascade <YYYY-MM-DD> dish | dish ...
		date, dishes, err := parseDatedDishes(c.Message().Payload)
		if err != nil || len(dishes) == 0 {
			return c.Send("Invalid format. Use: /cascade <YYYY-MM-DD> dish one | dish two")
		}

		res, err := svc.Cascade.OnDishesRemoved(ctx, date, dishes)
		if err != nil {
			handlerLogger.WithError(err).Error("Cascade failed")
			if errors.Is(err, app.ErrStoreUnavailable) {
				return c.Send("The store is unavailable, try again later.")
			}
			return c.Send(fmt.Sprintf("Cascade failed: %s", err.Error()))
		}
		return c.Send(formatCascade(date, dishes, res))
	})

	b.Handle("/reconcile", func(c telebot.Context) error {
		handlerLogger, ok := authorize(c, "/reconcile")
		if !ok {
			return c.Send(msgUnauthorized)
		}

		// Optional arguments: <YYYY-MM-DD> or <from|*> <to|*>
		rng, err := parseRangeArgs(c.Args())
		if err != nil {
			return c.Send("Invalid format. Use: /reconcile [YYYY-MM-DD] or /reconcile <from|*> <to|*>")
		}
		handlerLogger = handlerLogger.WithField("range", rng.String())

		res, err := svc.Sweeper.Reconcile(ctx, rng)
		if err != nil {
			handlerLogger.WithError(err).Error("Reconciliation failed")
			return c.Send(fmt.Sprintf("Reconciliation failed: %s", err.Error()))
		}
		return c.Send(formatReconcile(rng, res))
	})

	b.Handle("/validate", func(c telebot.Context) error {
		handlerLogger, ok := authorize(c, "/validate")
		if !ok {
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		if len(args) != 2 {
			return c.Send("Invalid format. Use: /validate <userID> <YYYY-MM-DD>")
		}
		date, err := calendar.Parse(args[1])
		if err != nil {
			return c.Send("Error: the date must look like YYYY-MM-DD.")
		}

		valid, err := svc.Selections.Validate(ctx, args[0], date)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to validate selection")
			return c.Send(fmt.Sprintf("Validation failed: %s", err.Error()))
		}
		if valid {
			return c.Send(fmt.Sprintf("Selection of %s for %s matches the menu.", args[0], date))
		}
		return c.Send(fmt.Sprintf("Selection of %s for %s holds dishes that are not on the menu.", args[0], date))
	})

	b.Handle("/unread", func(c telebot.Context) error {
		handlerLogger, ok := authorize(c, "/unread")
		if !ok {
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid format. Use: /unread <userID>")
		}
		list, err := svc.Notifications.ListUnreadByUser(ctx, args[0])
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list notifications")
			return c.Send(fmt.Sprintf("Failed to list notifications: %s", err.Error()))
		}
		return c.Send(formatUnread(args[0], list))
	})
}
