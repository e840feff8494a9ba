package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the coordination core. Local lookups fail fast with
// ErrNotFound/ErrConflict; routing surfaces ErrNoAgentAvailable for the
// caller to queue or fail; transport failures are wrapped in TransientError
// and retried; ErrUnknownState is fatal to a plan and never auto-resolved.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrNoAgentAvailable = errors.New("no healthy agent available")
	ErrUnknownState     = errors.New("change left in unknown state, manual intervention required")
)

// TransientError marks a network or timeout failure talking to an agent or
// the metrics store. Transient failures are safe to retry with backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable, annotated with the failing operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
