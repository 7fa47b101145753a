package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/web3tea/tidelog/eventstore"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		sequence_number BIGSERIAL PRIMARY KEY,
		occurred_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		event_type      TEXT NOT NULL,
		payload         JSONB NOT NULL,
		metadata        JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS events_event_type_idx ON events (event_type)`,
	`CREATE INDEX IF NOT EXISTS events_payload_idx ON events USING GIN (payload jsonb_path_ops)`,
}

// whereClause renders the filter's scope. Type membership is an ANY over the
// tag set; the predicate disjunction maps onto a single containment test
// against a jsonb array, payload @> ANY(...).
func whereClause(filter eventstore.Filter, args *[]any) (string, error) {
	*args = append(*args, filter.EventTypes())
	clause := fmt.Sprintf("event_type = ANY($%d)", len(*args))

	predicates := filter.PayloadPredicates()
	if len(predicates) == 0 {
		return clause, nil
	}

	encoded := make([]string, len(predicates))
	for i, p := range predicates {
		data, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("%w: predicate %d not JSON-encodable: %v", eventstore.ErrBadFilter, i, err)
		}
		encoded[i] = string(data)
	}
	*args = append(*args, encoded)
	clause += fmt.Sprintf(" AND payload @> ANY($%d::jsonb[])", len(*args))
	return clause, nil
}

func querySQL(filter eventstore.Filter) (string, []any, error) {
	var args []any
	where, err := whereClause(filter, &args)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf(`SELECT sequence_number, occurred_at, event_type, payload, metadata
FROM events
WHERE %s
ORDER BY sequence_number`, where)
	return sql, args, nil
}

func maxSequenceSQL(filter eventstore.Filter) (string, []any, error) {
	var args []any
	where, err := whereClause(filter, &args)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf(`SELECT COALESCE(MAX(sequence_number), 0)
FROM events
WHERE %s`, where)
	return sql, args, nil
}

// appendSQL fuses the concurrency check and the insert into one statement.
// A CTE computes the scope's current max sequence number; the INSERT selects
// the batch joined against it under the guard predicate. When the guard is
// false the statement inserts zero rows, which the caller reports as a
// conflict. WITH ORDINALITY keeps the caller's batch order so sequence
// numbers are assigned in supply order.
func appendSQL(filter eventstore.Filter, expected int64, events []eventstore.Event) (string, []any, error) {
	var args []any
	where, err := whereClause(filter, &args)
	if err != nil {
		return "", nil, err
	}

	types := make([]string, len(events))
	payloads := make([]string, len(events))
	metadatas := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
		if payloads[i], err = encodeObject(e.Payload); err != nil {
			return "", nil, fmt.Errorf("%w: event %d payload: %v", eventstore.ErrBadEvent, i, err)
		}
		if metadatas[i], err = encodeObject(e.Metadata); err != nil {
			return "", nil, fmt.Errorf("%w: event %d metadata: %v", eventstore.ErrBadEvent, i, err)
		}
	}

	args = append(args, types)
	typesArg := len(args)
	args = append(args, payloads)
	payloadsArg := len(args)
	args = append(args, metadatas)
	metadatasArg := len(args)

	var exp *int64
	if expected != eventstore.AnyMaxSequenceNumber {
		exp = &expected
	}
	args = append(args, exp)
	expectedArg := len(args)

	var b strings.Builder
	fmt.Fprintf(&b, `WITH scope AS (
	SELECT COALESCE(MAX(sequence_number), 0) AS max_seq
	FROM events
	WHERE %s
)
`, where)
	fmt.Fprintf(&b, `INSERT INTO events (event_type, payload, metadata)
SELECT batch.event_type, batch.payload, batch.metadata
FROM scope
CROSS JOIN UNNEST($%d::text[], $%d::jsonb[], $%d::jsonb[])
	WITH ORDINALITY AS batch (event_type, payload, metadata, ord)
WHERE $%d::bigint IS NULL OR scope.max_seq = $%d
ORDER BY batch.ord`,
		typesArg, payloadsArg, metadatasArg, expectedArg, expectedArg)

	return b.String(), args, nil
}

func encodeObject(obj map[string]any) (string, error) {
	if obj == nil {
		return "{}", nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
