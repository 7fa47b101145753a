package eventstore

import "context"

// AnyMaxSequenceNumber disables the optimistic concurrency check on Append:
// the events are inserted whatever the filter's current max sequence number is.
const AnyMaxSequenceNumber int64 = -1

// QueryResult is what a query returns: every matching event in ascending
// sequence order plus the highest sequence number observed within the filter.
type QueryResult struct {
	Events []StoredEvent

	// MaxSequenceNumber is the largest sequence number among Events, or 0
	// when nothing matched. Pass it to Append as the expected value to
	// commit a decision only if the context has not changed since the read.
	MaxSequenceNumber int64
}

// Store is the contract feature slices program against. Implementations:
// postgres.Store (durable) and memory.Store (tests, demos).
type Store interface {
	// Migrate bootstraps the backing schema. Idempotent.
	Migrate(ctx context.Context) error

	// Query returns every event matching the filter, in ascending sequence
	// number order, observed as one consistent snapshot of the log.
	Query(ctx context.Context, filter Filter) (QueryResult, error)

	// Append atomically recomputes the filter's current max sequence
	// number, verifies it equals expected (skipped for
	// AnyMaxSequenceNumber), and inserts the events in caller order. On
	// mismatch nothing is inserted and ErrConcurrencyConflict is returned.
	// An empty batch still performs the check.
	Append(ctx context.Context, filter Filter, expected int64, events ...Event) error

	// Close drains the store's resources. Afterwards every operation
	// fails with ErrStoreUnavailable.
	Close() error
}

// Logger is the minimal logging surface the stores write to. pkg/log
// satisfies it; the default is a noop.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debugf(format string, args ...any) {}
func (NoopLogger) Infof(format string, args ...any)  {}
func (NoopLogger) Warnf(format string, args ...any)  {}
func (NoopLogger) Errorf(format string, args ...any) {}
