// Package kv defines the durable key-value capability that step counters are
// persisted through. Values are opaque strings; no transactional guarantees
// are made across keys or across a Get followed by a Set.
package kv

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("kv: key not found")
	ErrInvalidKey = errors.New("kv: key is required")
)

type Store interface {
	// Get returns the value stored under key, or ErrNotFound when absent
	Get(ctx context.Context, key string) (string, error)

	// Set unconditionally stores value under key
	Set(ctx context.Context, key, value string) error
}

// ValidateKey checks a key is usable by every Store implementation
func ValidateKey(key string) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	return nil
}
