package dbx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/judoassistant/tournament-sync/internal/common"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Classify wraps unique, foreign-key, not-null and check violations reported by
// the Postgres or SQLite drivers with common.ErrConstraintViolation. Other
// errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsConstraintViolation(err) && !errors.Is(err, common.ErrConstraintViolation) {
		return fmt.Errorf("%w: %w", common.ErrConstraintViolation, err)
	}
	return err
}

// IsConstraintViolation reports whether err is an integrity constraint error.
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 23: integrity constraint violation
		return strings.HasPrefix(pgErr.Code, "23")
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return errors.Is(err, common.ErrConstraintViolation)
}
