// Package editlock decides whether a day's menu or selection may still be
// changed by a given actor.
package editlock

import (
	"time"

	"cloud.google.com/go/civil"

	"mealsync/internal/domain/calendar"
)

// IsLocked reports whether date is frozen for the actor at instant now.
// Admins are never locked. Everyone else may only edit strictly future days:
// the whole current day locks the moment it becomes today, whatever the hour.
func IsLocked(date civil.Date, actorIsAdmin bool, now time.Time) bool {
	if actorIsAdmin {
		return false
	}
	return !date.After(calendar.Today(now))
}
