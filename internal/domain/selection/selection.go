// internal/domain/selection/selection.go
package selection

import (
	"database/sql"
	"time"

	"cloud.google.com/go/civil"
)

// Items is the stored dish list of a selection. Valid is false when the
// stored document has no selectedItems field at all, which is a malformed
// document rather than an empty choice.
type Items struct {
	Names []string
	Valid bool
}

// ItemsOf wraps a well-formed list.
func ItemsOf(names ...string) Items {
	if names == nil {
		names = []string{}
	}
	return Items{Names: names, Valid: true}
}

// Selection is one user's choice of dishes for one day.
// An empty, valid item list means "no meal"; it is never deleted by the core.
type Selection struct {
	UserID    string
	Date      civil.Date
	Items     Items
	UpdatedAt time.Time
	CleanedAt sql.NullTime // last time the core stripped dishes from it
}

// Key is the composite document key, userID_YYYY-MM-DD.
func (s *Selection) Key() string {
	return Key(s.UserID, s.Date)
}

func Key(userID string, date civil.Date) string {
	return userID + "_" + date.String()
}
