package eventstore

import (
	"fmt"
	"strings"
	"time"
)

// MaxBatchSize is the hard upper bound on the number of events accepted by a
// single Append call. Batches of up to 1,000 events are always safe; anything
// beyond MaxBatchSize is rejected before touching the backend.
const MaxBatchSize = 10_000

// Event is the shape callers hand to Append. The store treats Payload and
// Metadata as opaque JSON objects; Payload participates in subset-containment
// matching, Metadata never does.
type Event struct {
	// Type identifies the kind of event, e.g. "BankAccountOpened".
	Type string `json:"event_type"`

	// Payload is the event body. Its schema is the caller's concern.
	Payload map[string]any `json:"payload"`

	// Metadata carries informational context. Defaults to an empty object.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StoredEvent is the shape the store returns from Query: the appended fields
// plus the sequence number and timestamp assigned at insertion.
//
// Type is the authoritative discriminator; readers dispatch on it as data.
type StoredEvent struct {
	// SequenceNumber is assigned by the store, unique across the log and
	// strictly increasing with insertion order. It is the sole definition
	// of "before" and "after" between events. Gaps are possible.
	SequenceNumber int64 `json:"sequence_number"`

	// OccurredAt is the server clock at insertion. Informational only;
	// never used for ordering.
	OccurredAt time.Time `json:"occurred_at"`

	Type     string         `json:"event_type"`
	Payload  map[string]any `json:"payload"`
	Metadata map[string]any `json:"metadata"`
}

// Validate reports whether the event is well formed enough to persist.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Type) == "" {
		return fmt.Errorf("%w: empty event type", ErrBadEvent)
	}
	return nil
}

// ValidateEvents checks a batch before it is sent to the backend.
func ValidateEvents(events []Event) error {
	if len(events) > MaxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds limit of %d", ErrBadEvent, len(events), MaxBatchSize)
	}
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}
