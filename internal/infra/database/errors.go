package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"mealsync/internal/domain/store"
)

// SQLSTATE classes that mean the server cannot serve us right now:
// connection exception, insufficient resources, operator intervention.
var unavailableClasses = map[pq.ErrorClass]struct{}{
	"08": {},
	"53": {},
	"57": {},
}

// classify marks connection-level failures as store.ErrUnavailable so callers
// can retry them. Everything else is returned unchanged.
func classify(err error) error {
	if err == nil || errors.Is(err, store.ErrUnavailable) {
		return err
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		_, ok := unavailableClasses[pqErr.Code.Class()]
		return ok
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
