package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these, optionally
// wrapped, and services translate them into coded domain errors.
//
//   - ErrNotFound: row does not exist or is soft-deleted
//   - ErrConflict: a constraint rejected the write
//   - ErrRetryable: the transaction lost a serialization race and may be replayed
//   - ErrUnavailable: backing service unreachable or lock not acquired in time
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRetryable   = errors.New("retryable transaction failure")
	ErrUnavailable = errors.New("unavailable")
)
