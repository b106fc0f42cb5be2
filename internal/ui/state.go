package ui

import (
	"fmt"
	"slices"
	"sync"
)

// State is the shared application state of one session: a fixed set of named
// string fields whose changes can be observed.
type State struct {
	mu        sync.Mutex
	fields    []string
	values    map[string]string
	nextID    int
	observers map[string]map[int]func(string)
}

// NewState declares the fields of a state. All fields start empty.
func NewState(fields ...string) *State {
	s := &State{
		fields:    slices.Clone(fields),
		values:    make(map[string]string, len(fields)),
		observers: make(map[string]map[int]func(string)),
	}
	for _, f := range fields {
		s.values[f] = ""
	}

	return s
}

func (s *State) Has(field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.values[field]
	return ok
}

func (s *State) Get(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.values[field]
}

// Set changes a field and notifies its observers if the value changed.
// Setting an undeclared field is a programming error and panics.
func (s *State) Set(field, value string) {
	s.mu.Lock()
	old, ok := s.values[field]
	if !ok {
		s.mu.Unlock()
		panic(fmt.Sprintf("ui: state has no field %q", field))
	}
	if old == value {
		s.mu.Unlock()
		return
	}
	s.values[field] = value
	obs := make([]func(string), 0, len(s.observers[field]))
	for _, fn := range s.observers[field] {
		obs = append(obs, fn)
	}
	s.mu.Unlock()

	for _, fn := range obs {
		fn(value)
	}
}

// Reset empties every field, notifying observers of the fields that change.
func (s *State) Reset() {
	for _, f := range s.fields {
		s.Set(f, "")
	}
}

// Observe calls fn with the new value whenever field changes. It reports false
// if field is not declared.
func (s *State) Observe(field string, fn func(string)) (cancel func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[field]; !ok {
		return nil, false
	}

	if s.observers[field] == nil {
		s.observers[field] = make(map[int]func(string))
	}
	s.nextID++
	id := s.nextID
	s.observers[field][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers[field], id)
	}, true
}
