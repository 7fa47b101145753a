// Package memory provides an in-process Store with the same semantics as the
// Postgres backend. It backs tests and the demo's --memory mode; it is not
// durable.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/web3tea/tidelog/eventstore"
)

var _ eventstore.Store = (*Store)(nil)

type Store struct {
	mu      sync.RWMutex
	rows    []eventstore.StoredEvent
	nextSeq int64
	closed  bool

	logger eventstore.Logger
}

type Option func(*Store)

func WithLogger(logger eventstore.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(options ...Option) *Store {
	s := &Store{
		nextSeq: 1,
		logger:  eventstore.NoopLogger{},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Migrate is a no-op; the log lives in memory.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("%w: store closed", eventstore.ErrStoreUnavailable)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, filter eventstore.Filter) (eventstore.QueryResult, error) {
	if err := filter.Validate(); err != nil {
		return eventstore.QueryResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return eventstore.QueryResult{}, fmt.Errorf("%w: %v", eventstore.ErrStoreUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return eventstore.QueryResult{}, fmt.Errorf("%w: store closed", eventstore.ErrStoreUnavailable)
	}

	var result eventstore.QueryResult
	for _, row := range s.rows {
		if !filter.Matches(row.Type, row.Payload) {
			continue
		}
		result.Events = append(result.Events, row)
		result.MaxSequenceNumber = row.SequenceNumber
	}
	return result, nil
}

func (s *Store) Append(ctx context.Context, filter eventstore.Filter, expected int64, events ...eventstore.Event) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	if err := eventstore.ValidateEvents(events); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", eventstore.ErrStoreUnavailable, err)
	}

	// Rows are stored in normalized JSON form so that reads compare the way
	// the Postgres backend does.
	rows := make([]eventstore.StoredEvent, 0, len(events))
	for i, e := range events {
		row, err := normalizeEvent(e)
		if err != nil {
			return fmt.Errorf("event %d: %w: %v", i, eventstore.ErrBadEvent, err)
		}
		rows = append(rows, row)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: store closed", eventstore.ErrStoreUnavailable)
	}

	// The check and the insert happen under one lock; nothing can slip an
	// event matching the filter in between.
	var current int64
	for _, row := range s.rows {
		if filter.Matches(row.Type, row.Payload) {
			current = row.SequenceNumber
		}
	}
	if expected != eventstore.AnyMaxSequenceNumber && current != expected {
		return fmt.Errorf("%w: expected max sequence number %d, found %d",
			eventstore.ErrConcurrencyConflict, expected, current)
	}

	now := time.Now().UTC()
	for i := range rows {
		rows[i].SequenceNumber = s.nextSeq
		rows[i].OccurredAt = now
		s.nextSeq++
	}
	s.rows = append(s.rows, rows...)

	s.logger.Debugf("appended %d events, log size %d", len(rows), len(s.rows))
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.rows = nil
	return nil
}

func normalizeEvent(e eventstore.Event) (eventstore.StoredEvent, error) {
	payload, err := eventstore.NormalizeObject(e.Payload)
	if err != nil {
		return eventstore.StoredEvent{}, err
	}
	metadata, err := eventstore.NormalizeObject(e.Metadata)
	if err != nil {
		return eventstore.StoredEvent{}, err
	}
	return eventstore.StoredEvent{
		Type:     e.Type,
		Payload:  payload,
		Metadata: metadata,
	}, nil
}
