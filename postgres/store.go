// Package postgres implements the event store on PostgreSQL. The log is a
// single append-only table; payload matching uses jsonb containment (@>) and
// the conditional append is fused into one guarded INSERT ... SELECT so the
// check and the insert are indivisible.
package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/web3tea/tidelog/eventstore"
)

const (
	defaultMaxConns         = 8
	defaultStatementTimeout = 30 * time.Second
)

type Config struct {
	// URL is a libpq-style connection string or URL.
	URL string `json:"url" yaml:"url" toml:"url"`

	// MaxConns caps the pool size. Defaults to 8.
	MaxConns int32 `json:"max_conns" yaml:"max_conns" toml:"max_conns"`

	// StatementTimeout is applied server-side to every statement.
	// Defaults to 30s.
	StatementTimeout time.Duration `json:"statement_timeout" yaml:"statement_timeout" toml:"statement_timeout"`
}

var _ eventstore.Store = (*Store)(nil)

type Store struct {
	pool   *pgxpool.Pool
	logger eventstore.Logger

	migrated atomic.Bool
	closed   atomic.Bool
}

// New connects a pool to the database. The schema is not touched; call
// Migrate before the first Query or Append against a fresh database.
func New(ctx context.Context, cfg Config, logger eventstore.Logger) (*Store, error) {
	if logger == nil {
		logger = eventstore.NoopLogger{}
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultMaxConns
	}
	if cfg.StatementTimeout <= 0 {
		cfg.StatementTimeout = defaultStatementTimeout
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse connection string: %v", eventstore.ErrStoreUnavailable, err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] =
		fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", eventstore.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", eventstore.ErrStoreUnavailable, err)
	}

	logger.Infof("connected to %s, pool size %d", poolCfg.ConnConfig.Host, cfg.MaxConns)
	return &Store{pool: pool, logger: logger}, nil
}

// Migrate creates the events table and its indexes if absent. Safe to call
// any number of times; a one-shot latch skips the round trips once it has
// succeeded on this instance.
func (s *Store) Migrate(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: store closed", eventstore.ErrStoreUnavailable)
	}
	if s.migrated.Load() {
		return nil
	}

	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return classify(err)
		}
	}

	s.migrated.Store(true)
	s.logger.Infof("schema migrated")
	return nil
}

func (s *Store) Query(ctx context.Context, filter eventstore.Filter) (eventstore.QueryResult, error) {
	if err := filter.Validate(); err != nil {
		return eventstore.QueryResult{}, err
	}
	if s.closed.Load() {
		return eventstore.QueryResult{}, fmt.Errorf("%w: store closed", eventstore.ErrStoreUnavailable)
	}

	sql, args, err := querySQL(filter)
	if err != nil {
		return eventstore.QueryResult{}, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return eventstore.QueryResult{}, classify(err)
	}
	defer rows.Close()

	var result eventstore.QueryResult
	for rows.Next() {
		var e eventstore.StoredEvent
		if err := rows.Scan(&e.SequenceNumber, &e.OccurredAt, &e.Type, &e.Payload, &e.Metadata); err != nil {
			return eventstore.QueryResult{}, classify(err)
		}
		result.Events = append(result.Events, e)
		result.MaxSequenceNumber = e.SequenceNumber
	}
	if err := rows.Err(); err != nil {
		return eventstore.QueryResult{}, classify(err)
	}

	s.logger.Debugf("query %s returned %d events, max %d",
		filter, len(result.Events), result.MaxSequenceNumber)
	return result, nil
}

func (s *Store) Append(ctx context.Context, filter eventstore.Filter, expected int64, events ...eventstore.Event) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	if err := eventstore.ValidateEvents(events); err != nil {
		return err
	}
	if s.closed.Load() {
		return fmt.Errorf("%w: store closed", eventstore.ErrStoreUnavailable)
	}

	// An empty batch is a pure barrier: run the check, insert nothing.
	if len(events) == 0 {
		return s.checkOnly(ctx, filter, expected)
	}

	sql, args, err := appendSQL(filter, expected, events)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return classify(err)
	}
	// The guard predicate was false: the scope moved since the caller read
	// it, and the statement inserted zero rows.
	if tag.RowsAffected() == 0 {
		s.logger.Debugf("append rejected, scope %s moved past %d", filter, expected)
		return fmt.Errorf("%w: expected max sequence number %d", eventstore.ErrConcurrencyConflict, expected)
	}

	s.logger.Debugf("appended %d events in scope %s", len(events), filter)
	return nil
}

func (s *Store) checkOnly(ctx context.Context, filter eventstore.Filter, expected int64) error {
	if expected == eventstore.AnyMaxSequenceNumber {
		return nil
	}

	sql, args, err := maxSequenceSQL(filter)
	if err != nil {
		return err
	}

	var current int64
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&current); err != nil {
		return classify(err)
	}
	if current != expected {
		return fmt.Errorf("%w: expected max sequence number %d, found %d",
			eventstore.ErrConcurrencyConflict, expected, current)
	}
	return nil
}

// Close drains the pool. Afterwards every operation fails with
// ErrStoreUnavailable.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.pool.Close()
	return nil
}
