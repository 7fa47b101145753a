package eventstore

import "encoding/json"

// JSON subset containment, the "@>" relation: object a contains object b iff
// every key of b is present in a with a matching value. Objects recurse,
// arrays match when every listed element is contained in the candidate array,
// scalars compare structurally after JSON normalisation (1 matches 1.0).

// NormalizeObject round-trips an object through JSON so that values compare
// structurally regardless of the Go types the caller used. A nil object
// normalizes to an empty one.
func NormalizeObject(obj map[string]any) (map[string]any, error) {
	if obj == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func objectContains(super, sub map[string]any) bool {
	for key, want := range sub {
		got, ok := super[key]
		if !ok || !valueContains(got, want) {
			return false
		}
	}
	return true
}

// valueContains expects both sides in normalized form: map[string]any,
// []any, float64, string, bool or nil.
func valueContains(got, want any) bool {
	switch want := want.(type) {
	case map[string]any:
		gotObj, ok := got.(map[string]any)
		return ok && objectContains(gotObj, want)
	case []any:
		gotArr, ok := got.([]any)
		if !ok {
			return false
		}
		for _, elem := range want {
			if !arrayHas(gotArr, elem) {
				return false
			}
		}
		return true
	default:
		return got == want
	}
}

func arrayHas(arr []any, elem any) bool {
	for _, candidate := range arr {
		if valueContains(candidate, elem) {
			return true
		}
	}
	return false
}
