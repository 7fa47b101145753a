package eventstore

import "errors"

// The store reports failures through these sentinels, wrapped with detail via
// fmt.Errorf and %w. Callers classify with errors.Is and map to their own
// domain errors; the store never uses domain vocabulary itself.
var (
	// ErrBadFilter marks a malformed filter: empty type set or a blank tag.
	ErrBadFilter = errors.New("eventstore: bad filter")

	// ErrBadEvent marks a malformed event: empty type tag, or a batch over
	// the hard size limit.
	ErrBadEvent = errors.New("eventstore: bad event")

	// ErrConcurrencyConflict is returned by Append when the filter's max
	// sequence number no longer equals the expected value. The log is
	// unchanged; re-read the context and retry.
	ErrConcurrencyConflict = errors.New("eventstore: concurrency conflict")

	// ErrStoreUnavailable means the backend is unreachable, the pool is
	// drained, or the store has been closed.
	ErrStoreUnavailable = errors.New("eventstore: store unavailable")

	// ErrStoreInternal wraps unexpected backend errors.
	ErrStoreInternal = errors.New("eventstore: internal error")
)
