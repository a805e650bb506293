package workflow

import (
	"errors"
	"fmt"
)

// ErrFieldNotSet is returned when a node reads a state field that no
// predecessor has produced
var ErrFieldNotSet = errors.New("state field not set")

// State is the shared record a graph execution accumulates. Fields are keyed
// by name and written by at most one node each, except fields with a declared
// fan-in reducer.
type State map[string]interface{}

// Clone returns a shallow copy of the state
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// GetString reads a string field, failing loudly if it is absent or has the
// wrong type
func (s State) GetString(key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrFieldNotSet, key)
	}
	text, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("state field %q is %T, expected string", key, v)
	}
	return text, nil
}

// GetStrings reads a string-sequence field, failing loudly if it is absent
// or has the wrong type
func (s State) GetStrings(key string) ([]string, error) {
	v, ok := s[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotSet, key)
	}
	seq, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("state field %q is %T, expected []string", key, v)
	}
	return seq, nil
}

// Reducer merges an existing field value with a node's contribution
type Reducer func(existing, incoming interface{}) interface{}

// Overwrite is the default reducer for single-writer fields
func Overwrite(existing, incoming interface{}) interface{} {
	return incoming
}

// AppendStrings is the fan-in reducer: contributions are concatenated in
// arrival order, never deduplicated. Both sides must be []string; a nil
// existing value starts a fresh sequence.
func AppendStrings(existing, incoming interface{}) interface{} {
	var acc []string
	if existing != nil {
		if seq, ok := existing.([]string); ok {
			acc = append(acc, seq...)
		}
	}
	switch v := incoming.(type) {
	case []string:
		acc = append(acc, v...)
	case string:
		acc = append(acc, v)
	}
	return acc
}
