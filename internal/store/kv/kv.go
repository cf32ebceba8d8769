// Package kv is the persistence adapter: JSON values stored under string keys
// on top of a raw byte Backend. Every Save overwrites the whole value.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// ErrInvalidKey is returned for keys a backend could not store safely.
var ErrInvalidKey = errors.New("invalid key")

const maxKeyLen = 128

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Backend stores raw bytes. Get reports a missing key with found == false and a nil error.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// ValidateKey rejects empty, oversized or path-like keys.
func ValidateKey(key string) error {
	if len(key) == 0 || len(key) > maxKeyLen || !keyPattern.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Store serializes values as JSON into a Backend.
type Store struct {
	backend Backend
	log     *zap.Logger
}

// New wraps backend. A nil logger disables logging.
func New(backend Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, log: log.Named("kv")}
}

// Save writes value under key, replacing whatever was there.
func (s *Store) Save(ctx context.Context, key string, value any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := s.backend.Put(ctx, key, b); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	s.log.Debug("saved", zap.String("key", key), zap.Int("bytes", len(b)))
	return nil
}

// Load decodes the value under key into dst. A key that was never written, or whose
// value does not parse, yields found == false and no error; only backend failures
// are errors.
func (s *Store) Load(ctx context.Context, key string, dst any) (found bool, err error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	b, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %q: %w", key, err)
	}
	if !ok {
		s.log.Debug("absent", zap.String("key", key))
		return false, nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		s.log.Warn("stored value does not parse, treating as absent",
			zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }
