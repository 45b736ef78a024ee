package telegram

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"mealsync/internal/app"
	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/menu"
	"mealsync/internal/domain/notification"
)

var errUsage = errors.New("invalid command format")

// parseDatedDishes splits "<YYYY-MM-DD> dish one | dish two" into the date
// and the dish names. Dish names may contain spaces, so they are separated by
// '|' or new lines.
func parseDatedDishes(payload string) (civil.Date, []string, error) {
	payload = strings.TrimSpace(payload)
	dateStr, rest, _ := strings.Cut(payload, " ")
	if dateStr == "" {
		return civil.Date{}, nil, errUsage
	}
	date, err := calendar.Parse(dateStr)
	if err != nil {
		return civil.Date{}, nil, err
	}
	return date, parseDishList(rest), nil
}

func parseDishList(s string) []string {
	return menu.NormalizeItems(strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == '\n'
	}))
}

// parseRangeArgs accepts no bounds, one date (that day only) or two bounds
// where "*" leaves an end open.
func parseRangeArgs(args []string) (calendar.Range, error) {
	bound := func(s string) string {
		if s == "*" {
			return ""
		}
		return s
	}
	switch len(args) {
	case 0:
		return calendar.All(), nil
	case 1:
		d, err := calendar.Parse(args[0])
		if err != nil {
			return calendar.Range{}, err
		}
		return calendar.Day(d), nil
	case 2:
		return calendar.ParseRange(bound(args[0]), bound(args[1]))
	}
	return calendar.Range{}, errUsage
}

func formatCascade(date civil.Date, removed []string, res app.CascadeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Removed from %s: %s\n", date, strings.Join(removed, ", "))
	fmt.Fprintf(&b, "Affected users: %d\nSelections updated: %d\nNotifications: %d (%d users)",
		res.AffectedUserCount, res.UpdatedSelectionCount, res.NotificationCount, res.NotifiedUserCount)
	if res.FailedBatchCount > 0 {
		fmt.Fprintf(&b, "\nFailed batches: %d of %d, the nightly reconcile will finish the cleanup.",
			res.FailedBatchCount, res.FailedBatchCount+res.CommittedBatchCount)
	}
	if res.SkippedDocuments > 0 {
		fmt.Fprintf(&b, "\nSkipped malformed selections: %d", res.SkippedDocuments)
	}
	return b.String()
}

func formatPublish(date civil.Date, res *app.PublishResult) string {
	var b strings.Builder
	if res.Deleted {
		fmt.Fprintf(&b, "Menu for %s deleted.", date)
	} else {
		fmt.Fprintf(&b, "Menu for %s saved: %s", date, strings.Join(res.Menu.AvailableItems, ", "))
	}
	if len(res.Removed) > 0 {
		b.WriteString("\n")
		b.WriteString(formatCascade(date, res.Removed, res.Cascade))
	}
	return b.String()
}

func formatReconcile(rng calendar.Range, res app.ReconcileResult) string {
	s := fmt.Sprintf("Reconciled %s\nScanned: %d\nCleaned: %d\nRemoved dishes: %d\nErrors: %d",
		rng, res.ScannedSelections, res.CleanedSelections, res.RemovedItems, res.ErrorCount)
	if res.FailedBatchCount > 0 {
		s += fmt.Sprintf("\nFailed batches: %d", res.FailedBatchCount)
	}
	return s
}

func formatUnread(userID string, list []*notification.Notification) string {
	if len(list) == 0 {
		return fmt.Sprintf("No unread notifications for %s.", userID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Unread notifications for %s (%d):", userID, len(list))
	for _, n := range list {
		fmt.Fprintf(&b, "\n- %s: %s removed (%s)", n.Date, n.RemovedDish, n.ID)
	}
	return b.String()
}
