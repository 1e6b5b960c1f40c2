package domain

import "errors"

// ErrNotFound is returned when a request record does not exist.
var ErrNotFound = errors.New("request not found")

// ErrLockExists is returned by the lock store when the conditional write
// loses to an existing lock row.
var ErrLockExists = errors.New("idempotency lock already held")

// ErrLockUnreadable indicates a store-level anomaly: the lock row exists but
// its owner request id cannot be read.
var ErrLockUnreadable = errors.New("idempotency lock exists but is unreadable")

// ErrInvalidCursor is returned when a list continuation token cannot be
// decoded.
var ErrInvalidCursor = errors.New("invalid next_token")

// ValidationError is a client-facing spec validation failure. It is never
// persisted; the message identifies the offending field, index and value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
