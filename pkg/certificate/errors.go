package certificate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is the parent of every input rejection raised before a
	// tree is built or a ledger call is made.
	ErrInvalidInput = errors.New("invalid input")

	ErrEmptyBatch          = fmt.Errorf("%w: batch has no leaves", ErrInvalidInput)
	ErrDuplicateExternalID = fmt.Errorf("%w: duplicate external ID in batch", ErrInvalidInput)

	// ErrRootMismatch marks a local recomputation that diverges from a
	// persisted or ledger root. It needs manual reconciliation.
	ErrRootMismatch = errors.New("recomputed root does not match stored root")

	// ErrLedgerUnavailable is transient; callers may retry with backoff.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrLedgerRejected    = errors.New("ledger rejected transaction")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyIssued is returned when a document hash already has a record
	// in the requested scope.
	ErrAlreadyIssued = errors.New("document already issued")
)

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedgerUnavailable)
}
