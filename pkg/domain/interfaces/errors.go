package interfaces

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// Store error kinds. Implementations wrap their driver errors with one of these.
var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = goerr.New("record not found")

	// ErrAlreadyExists is returned when creating a record whose ID is taken
	ErrAlreadyExists = goerr.New("record already exists")

	// ErrStoreUnavailable is returned when the backing store cannot be reached
	ErrStoreUnavailable = goerr.New("record store unavailable")

	// ErrTransactionFailed is returned when a transaction could not commit.
	// No write of that transaction is visible afterwards.
	ErrTransactionFailed = goerr.New("transaction failed")
)

// IsTransient reports whether err is a store failure worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTransactionFailed)
}
