package eventstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/samber/lo"
)

// Filter describes which events are in scope: a non-empty set of event type
// tags plus a disjunction of payload subset predicates.
//
// An event matches when its type is in the set AND either the predicate list
// is empty or at least one predicate is a JSON subset of the event payload.
//
// Filters are immutable values. The With* methods return new filters; equal
// filters produce identical query and append behaviour.
type Filter struct {
	types      []string
	predicates []map[string]any
}

// NewFilter builds a filter over the given event types, optionally constrained
// by payload subset predicates. The type set must be non-empty and free of
// blank tags.
func NewFilter(types []string, predicates ...map[string]any) (Filter, error) {
	if len(types) == 0 {
		return Filter{}, fmt.Errorf("%w: no event types", ErrBadFilter)
	}
	for _, t := range types {
		if strings.TrimSpace(t) == "" {
			return Filter{}, fmt.Errorf("%w: blank event type", ErrBadFilter)
		}
	}

	f := Filter{
		types:      lo.Uniq(types),
		predicates: make([]map[string]any, 0, len(predicates)),
	}
	for _, p := range predicates {
		f.predicates = append(f.predicates, copyObject(p))
	}
	return f, nil
}

// MustNewFilter is NewFilter for filters known valid at compile time.
func MustNewFilter(types []string, predicates ...map[string]any) Filter {
	f, err := NewFilter(types, predicates...)
	if err != nil {
		panic(err)
	}
	return f
}

// WithPayloadPredicate returns a new filter with one additional single-key
// subset predicate. Adding predicates broadens the match (OR).
func (f Filter) WithPayloadPredicate(key string, value any) Filter {
	return f.WithPayloadPredicates(map[string]any{key: value})
}

// WithPayloadPredicates returns a new filter with one additional subset
// predicate; all keys of obj must be contained in a payload for it to match.
func (f Filter) WithPayloadPredicates(obj map[string]any) Filter {
	next := Filter{
		types:      f.types,
		predicates: make([]map[string]any, 0, len(f.predicates)+1),
	}
	next.predicates = append(next.predicates, f.predicates...)
	next.predicates = append(next.predicates, copyObject(obj))
	return next
}

// EventTypes returns a copy of the filter's type set.
func (f Filter) EventTypes() []string {
	out := make([]string, len(f.types))
	copy(out, f.types)
	return out
}

// PayloadPredicates returns a copy of the filter's predicate list.
func (f Filter) PayloadPredicates() []map[string]any {
	out := make([]map[string]any, 0, len(f.predicates))
	for _, p := range f.predicates {
		out = append(out, copyObject(p))
	}
	return out
}

// Validate reports whether the filter can be executed.
func (f Filter) Validate() error {
	if len(f.types) == 0 {
		return fmt.Errorf("%w: no event types", ErrBadFilter)
	}
	return nil
}

// Matches reports whether an event with the given type and payload is in the
// filter's scope. This is the authoritative matching semantics; the Postgres
// backend renders the same semantics as SQL.
func (f Filter) Matches(eventType string, payload map[string]any) bool {
	if !lo.Contains(f.types, eventType) {
		return false
	}
	if len(f.predicates) == 0 {
		return true
	}
	normalized, err := NormalizeObject(payload)
	if err != nil {
		return false
	}
	return lo.SomeBy(f.predicates, func(p map[string]any) bool {
		sub, err := NormalizeObject(p)
		if err != nil {
			return false
		}
		return objectContains(normalized, sub)
	})
}

// Equal reports structural equality: same type set and the same predicate
// list, compared value by value.
func (f Filter) Equal(other Filter) bool {
	if len(f.types) != len(other.types) || len(f.predicates) != len(other.predicates) {
		return false
	}
	if !lo.Every(f.types, other.types) {
		return false
	}
	for i := range f.predicates {
		if !reflect.DeepEqual(f.predicates[i], other.predicates[i]) {
			return false
		}
	}
	return true
}

// String renders the diagnostic wire form of the filter. It is meant for
// logging, not for the backend.
func (f Filter) String() string {
	form := struct {
		EventTypes        []string         `json:"event_types"`
		PayloadPredicates []map[string]any `json:"payload_predicates,omitempty"`
	}{
		EventTypes:        f.types,
		PayloadPredicates: f.predicates,
	}
	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Sprintf("filter(%v)", f.types)
	}
	return string(data)
}

func copyObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}
