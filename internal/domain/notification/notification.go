// internal/domain/notification/notification.go
package notification

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Type tags the kind of user-facing alert.
type Type string

const (
	TypeDishRemoved Type = "dish_removed"
)

// Notification is a user-facing alert record. The core creates it once and
// never rewrites it; the notification UI marks it read.
type Notification struct {
	ID          string // deterministic, see Key
	UserID      string
	Type        Type
	Title       string
	Message     string
	Date        civil.Date // day the alert refers to
	RemovedDish string
	Read        bool
	CreatedAt   time.Time
	ActionURL   string // deep link back to the affected day
}

const dishRemovedTitle = "⚠️ Dish removed from the menu"

// Key derives the notification id for a (user, date, removed dish) event.
// Re-running a cascade for the same event yields the same key, so the record
// is created at most once. revision disambiguates an event that legitimately
// happens again (the dish is re-added, re-selected and removed once more); an
// empty revision yields the bare key.
func Key(userID string, date civil.Date, dish, revision string) string {
	key := fmt.Sprintf("%s_%s_%s", userID, date.String(), dishSegment(dish))
	if revision != "" {
		key += "_" + revision
	}
	return key
}

// dishSegment replaces each whitespace run with "_". Names that had to be
// rewritten, or that contain the "~" marker, get a digest of the raw name so
// "Green salad" and "Green_salad" never share a key.
func dishSegment(dish string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range dish {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	seg := b.String()
	if seg == dish && !strings.Contains(dish, "~") {
		return seg
	}
	sum := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceOID, []byte(dish)).String(), "-", "")
	return seg + "~" + sum[:12]
}

// ActionURL is the calendar deep link for date.
func ActionURL(date civil.Date) string {
	return "/calendar?date=" + date.String()
}

// NewDishRemoved builds the alert for a user whose selected dish was dropped.
func NewDishRemoved(userID string, date civil.Date, dish, revision string, now time.Time) *Notification {
	day := date.In(time.UTC).Format("Monday 2 January 2006")
	return &Notification{
		ID:          Key(userID, date, dish, revision),
		UserID:      userID,
		Type:        TypeDishRemoved,
		Title:       dishRemovedTitle,
		Message:     fmt.Sprintf("The dish %q you selected for %s has been removed from the menu. Please update your selection so you are not left without a meal.", dish, day),
		Date:        date,
		RemovedDish: dish,
		Read:        false,
		CreatedAt:   now,
		ActionURL:   ActionURL(date),
	}
}
