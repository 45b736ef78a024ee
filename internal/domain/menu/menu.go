// internal/domain/menu/menu.go
package menu

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Menu is the authoritative list of dishes served on a day.
// Dishes are identified by exact, case-sensitive name only; a renamed dish is
// indistinguishable from a removed one plus a new one.
type Menu struct {
	Date           civil.Date
	AvailableItems []string // ordered set, never empty once persisted
	UpdatedAt      time.Time
}

// Has reports whether dish is on the menu.
func (m *Menu) Has(dish string) bool {
	for _, item := range m.AvailableItems {
		if item == dish {
			return true
		}
	}
	return false
}

// NormalizeItems trims names, drops blanks and keeps the first occurrence of
// each name in its original order.
func NormalizeItems(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Removed returns the names present in before but absent from after, in
// before's order.
func Removed(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, item := range after {
		keep[item] = struct{}{}
	}
	var removed []string
	for _, item := range before {
		if _, ok := keep[item]; !ok {
			removed = append(removed, item)
		}
	}
	return removed
}
