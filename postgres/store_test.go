package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/web3tea/tidelog/eventstore"
	"github.com/web3tea/tidelog/postgres"
)

// The suite needs a running PostgreSQL; point TIDELOG_TEST_DATABASE_URL at a
// scratch database to enable it. Every test starts from an empty events table.
func TestStoreSuite(t *testing.T) {
	url := os.Getenv("TIDELOG_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TIDELOG_TEST_DATABASE_URL not set")
	}
	suite.Run(t, &storeSuite{url: url})
}

type storeSuite struct {
	suite.Suite
	url   string
	store *postgres.Store
	admin *pgxpool.Pool
}

func (s *storeSuite) SetupSuite() {
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, s.url)
	s.Require().NoError(err)
	s.admin = admin

	store, err := postgres.New(ctx, postgres.Config{URL: s.url}, nil)
	s.Require().NoError(err)
	s.store = store

	s.Require().NoError(store.Migrate(ctx))
}

func (s *storeSuite) TearDownSuite() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
	if s.admin != nil {
		s.admin.Close()
	}
}

func (s *storeSuite) SetupTest() {
	_, err := s.admin.Exec(context.Background(), "TRUNCATE events RESTART IDENTITY")
	s.Require().NoError(err)
}

func (s *storeSuite) filter(types []string, predicates ...map[string]any) eventstore.Filter {
	f, err := eventstore.NewFilter(types, predicates...)
	s.Require().NoError(err)
	return f
}

func (s *storeSuite) TestMigrateIsIdempotent() {
	ctx := context.Background()

	// A second instance re-runs the DDL against the existing schema.
	other, err := postgres.New(ctx, postgres.Config{URL: s.url}, nil)
	s.Require().NoError(err)
	defer other.Close()

	s.Require().NoError(other.Migrate(ctx))
	s.Require().NoError(other.Migrate(ctx))
}

func (s *storeSuite) TestAppendThenRead() {
	ctx := context.Background()
	filter := s.filter([]string{"A"})

	s.Require().NoError(s.store.Append(ctx, filter, 0,
		eventstore.Event{Type: "A", Payload: map[string]any{"n": 1}}))

	result, err := s.store.Query(ctx, filter)
	s.Require().NoError(err)
	s.Require().Len(result.Events, 1)
	s.Equal(int64(1), result.Events[0].SequenceNumber)
	s.Equal(int64(1), result.MaxSequenceNumber)
	s.Equal("A", result.Events[0].Type)
	s.Equal(float64(1), result.Events[0].Payload["n"])
	s.WithinDuration(time.Now(), result.Events[0].OccurredAt, time.Minute)
	s.NotNil(result.Events[0].Metadata)
}

func (s *storeSuite) TestStaleExpectation() {
	ctx := context.Background()
	filter := s.filter([]string{"A"})

	s.Require().NoError(s.store.Append(ctx, filter, 0,
		eventstore.Event{Type: "A", Payload: map[string]any{"n": 1}}))

	err := s.store.Append(ctx, filter, 0,
		eventstore.Event{Type: "A", Payload: map[string]any{"n": 2}})
	s.Require().ErrorIs(err, eventstore.ErrConcurrencyConflict)

	result, err := s.store.Query(ctx, filter)
	s.Require().NoError(err)
	s.Len(result.Events, 1)
}

func (s *storeSuite) TestPayloadDisjunction() {
	ctx := context.Background()
	all := s.filter([]string{"T"})

	s.Require().NoError(s.store.Append(ctx, all, eventstore.AnyMaxSequenceNumber,
		eventstore.Event{Type: "T", Payload: map[string]any{"x": 1}},
		eventstore.Event{Type: "T", Payload: map[string]any{"x": 2}},
		eventstore.Event{Type: "T", Payload: map[string]any{"x": 3}},
	))

	result, err := s.store.Query(ctx, s.filter([]string{"T"},
		map[string]any{"x": 1},
		map[string]any{"x": 3},
	))
	s.Require().NoError(err)
	s.Require().Len(result.Events, 2)
	s.Equal(float64(1), result.Events[0].Payload["x"])
	s.Equal(float64(3), result.Events[1].Payload["x"])
	s.Equal(result.Events[1].SequenceNumber, result.MaxSequenceNumber)
}

func (s *storeSuite) TestConcurrentLosers() {
	ctx := context.Background()
	filter := s.filter([]string{"A"})

	s.Require().NoError(s.store.Append(ctx, filter, 0,
		eventstore.Event{Type: "A", Payload: map[string]any{"seed": true}}))

	result, err := s.store.Query(ctx, filter)
	s.Require().NoError(err)
	k := result.MaxSequenceNumber

	const racers = 8
	var wins, losses atomic.Int32
	var g errgroup.Group
	for i := 0; i < racers; i++ {
		i := i
		g.Go(func() error {
			err := s.store.Append(ctx, filter, k,
				eventstore.Event{Type: "A", Payload: map[string]any{"racer": i}})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, eventstore.ErrConcurrencyConflict):
				losses.Add(1)
			default:
				return fmt.Errorf("racer %d: %w", i, err)
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int32(1), wins.Load(), "exactly one racer may win")
	s.Equal(int32(racers-1), losses.Load())

	result, err = s.store.Query(ctx, filter)
	s.Require().NoError(err)
	s.Len(result.Events, 2)
	s.Greater(result.MaxSequenceNumber, k)
}

func (s *storeSuite) TestEmptyBatchAsBarrier() {
	ctx := context.Background()
	filter := s.filter([]string{"A"})

	s.Require().NoError(s.store.Append(ctx, filter, 0, eventstore.Event{Type: "A"}))

	s.Require().NoError(s.store.Append(ctx, filter, 1))
	s.Require().ErrorIs(s.store.Append(ctx, filter, 0), eventstore.ErrConcurrencyConflict)

	result, err := s.store.Query(ctx, filter)
	s.Require().NoError(err)
	s.Len(result.Events, 1)
}

func (s *storeSuite) TestSubsetContainment() {
	ctx := context.Background()
	all := s.filter([]string{"T"})

	s.Require().NoError(s.store.Append(ctx, all, 0, eventstore.Event{
		Type:    "T",
		Payload: map[string]any{"a": 1, "b": map[string]any{"c": 2}},
	}))

	match, err := s.store.Query(ctx, s.filter([]string{"T"},
		map[string]any{"b": map[string]any{"c": 2}}))
	s.Require().NoError(err)
	s.Len(match.Events, 1)

	miss, err := s.store.Query(ctx, s.filter([]string{"T"},
		map[string]any{"b": map[string]any{"c": 3}}))
	s.Require().NoError(err)
	s.Empty(miss.Events)
	s.Zero(miss.MaxSequenceNumber)
}

func (s *storeSuite) TestIntraBatchOrder() {
	ctx := context.Background()
	filter := s.filter([]string{"A", "B"})

	s.Require().NoError(s.store.Append(ctx, filter, 0,
		eventstore.Event{Type: "A", Payload: map[string]any{"i": 0}},
		eventstore.Event{Type: "B", Payload: map[string]any{"i": 1}},
		eventstore.Event{Type: "A", Payload: map[string]any{"i": 2}},
	))

	result, err := s.store.Query(ctx, filter)
	s.Require().NoError(err)
	s.Require().Len(result.Events, 3)
	for i, e := range result.Events {
		s.Equal(float64(i), e.Payload["i"], "caller order preserved")
	}
}

func (s *storeSuite) TestLargeBatch() {
	ctx := context.Background()
	filter := s.filter([]string{"Bulk"})

	events := make([]eventstore.Event, 1000)
	for i := range events {
		events[i] = eventstore.Event{Type: "Bulk", Payload: map[string]any{"i": i}}
	}
	s.Require().NoError(s.store.Append(ctx, filter, 0, events...))

	result, err := s.store.Query(ctx, filter)
	s.Require().NoError(err)
	s.Len(result.Events, 1000)
	s.Equal(result.Events[len(result.Events)-1].SequenceNumber, result.MaxSequenceNumber)
}

func (s *storeSuite) TestClosedStoreFails() {
	ctx := context.Background()

	store, err := postgres.New(ctx, postgres.Config{URL: s.url}, nil)
	s.Require().NoError(err)
	s.Require().NoError(store.Close())

	filter := s.filter([]string{"A"})
	_, err = store.Query(ctx, filter)
	s.ErrorIs(err, eventstore.ErrStoreUnavailable)
	s.ErrorIs(store.Append(ctx, filter, 0, eventstore.Event{Type: "A"}), eventstore.ErrStoreUnavailable)
}

func (s *storeSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.store.Query(ctx, s.filter([]string{"A"}))
	s.ErrorIs(err, eventstore.ErrStoreUnavailable)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := postgres.New(context.Background(), postgres.Config{URL: "://not-a-url"}, nil)
	require.ErrorIs(t, err, eventstore.ErrStoreUnavailable)
}
