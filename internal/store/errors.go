package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a contact does not exist or is soft-deleted.
var ErrNotFound = errors.New("contact not found")

// IsTransient reports whether err is a lock-contention failure that may
// succeed when the transaction is retried.
func IsTransient(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
