package store

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrConflict is returned when a write would duplicate a unique record.
	ErrConflict = errors.New("record already exists")
	// ErrInUse is returned when a delete is blocked by a referencing record.
	ErrInUse = errors.New("record is in use")
	// ErrNotFound is returned when a delete finds nothing to remove.
	ErrNotFound = errors.New("record not found")
	// ErrPaid is returned when a paid commission would be changed.
	ErrPaid = errors.New("commission already paid")
)

const dateLayout = "2006-01-02 15:04:05"

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY")
}
