// Package eventstore defines the contract of an aggregateless event store:
// an append-only, globally ordered log of JSON-payload events, queried
// through composable filters over event type and payload subset containment.
//
// A feature slice makes a decision in three steps:
//
//	filter := eventstore.MustNewFilter(
//		[]string{"MoneyDeposited", "MoneyWithdrawn"},
//	).WithPayloadPredicate("accountId", accountID)
//
//	result, err := store.Query(ctx, filter)
//	// ... pure decision over result.Events ...
//	err = store.Append(ctx, filter, result.MaxSequenceNumber, newEvents...)
//
// The Append succeeds only if no event matching the filter was inserted
// since the Query; otherwise it fails with ErrConcurrencyConflict and the
// slice re-reads and retries. That check, fused with the insert into one
// atomic backend operation, gives serialisable consistency over arbitrary
// subsets of the log without aggregates, per-entity versions, or locks.
package eventstore
