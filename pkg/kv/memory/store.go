package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/step-tracker/pkg/kv"
)

var errDeveloperInduced = errors.New("in memory kv: developer induced error")

// Store is an in memory kv.Store used for testing and local simulation
type Store struct {
	mu     sync.Mutex
	values map[string]string

	readErr  error
	writeErr error
}

// New returns a new in memory kv.Store
func New() *Store {
	return &Store{
		values: make(map[string]string),
	}
}

// Get implements kv.Store.Get
func (s *Store) Get(_ context.Context, key string) (string, error) {
	if err := kv.ValidateKey(key); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return "", s.readErr
	}

	value, ok := s.values[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return value, nil
}

// Set implements kv.Store.Set
func (s *Store) Set(_ context.Context, key, value string) error {
	if err := kv.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}

	s.values[key] = value
	return nil
}

// Keys returns the number of keys currently stored
func (s *Store) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.values)
}

// InduceReadErrors instructs the store to fail subsequent Get calls
func (s *Store) InduceReadErrors() {
	s.mu.Lock()
	s.readErr = errDeveloperInduced
	s.mu.Unlock()
}

// InduceWriteErrors instructs the store to fail subsequent Set calls
func (s *Store) InduceWriteErrors() {
	s.mu.Lock()
	s.writeErr = errDeveloperInduced
	s.mu.Unlock()
}

// StopInducingErrors stops the store from simulating failures
func (s *Store) StopInducingErrors() {
	s.mu.Lock()
	s.readErr = nil
	s.writeErr = nil
	s.mu.Unlock()
}

func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]string)
	s.readErr = nil
	s.writeErr = nil
}
