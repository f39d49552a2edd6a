package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// translate maps driver errors onto the domain sentinels so callers can
// branch with errors.Is regardless of the database in use.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, bracket.ErrNotFound)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w: %v", what, bracket.ErrConflict, err)
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w: %v", what, ErrDuplicate, err)
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		// serialization_failure, deadlock_detected, lock_not_available
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%s: %w: %v", what, bracket.ErrConflict, err)
		case "23505":
			return fmt.Errorf("%s: %w: %v", what, ErrDuplicate, err)
		}
	}

	return fmt.Errorf("failed to %s: %w", what, err)
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s changed concurrently: %w", what, bracket.ErrConflict)
	}
	return nil
}
