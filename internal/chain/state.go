package chain

import (
	"encoding/json"
	"fmt"
)

// kvStore is a contract's committed key-value namespace.
type kvStore struct {
	data map[string][]byte
}

func newKVStore() *kvStore {
	return &kvStore{data: make(map[string][]byte)}
}

// State is the view of one contract's namespace inside an invocation.
// Writes land in an overlay and only reach the committed store when the
// whole invocation succeeds.
type State struct {
	base    *kvStore
	overlay map[string][]byte
}

func newState(base *kvStore) *State {
	return &State{base: base, overlay: make(map[string][]byte)}
}

func (s *State) raw(key string) ([]byte, bool) {
	if v, ok := s.overlay[key]; ok {
		return v, true
	}
	v, ok := s.base.data[key]
	return v, ok
}

// Has reports whether the key exists.
func (s *State) Has(key string) bool {
	_, ok := s.raw(key)
	return ok
}

// Get decodes the stored value into out. Returns false if the key is absent.
func (s *State) Get(key string, out any) (bool, error) {
	raw, ok := s.raw(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode state key %q: %w", key, err)
	}
	return true, nil
}

// Set encodes v and stages it under key.
func (s *State) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state key %q: %w", key, err)
	}
	s.overlay[key] = raw
	return nil
}

func (s *State) commit() {
	for k, v := range s.overlay {
		s.base.data[k] = v
	}
}
