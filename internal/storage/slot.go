package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Load returns the value stored under key, or def when the key is absent,
// unreadable or does not parse as T.
func Load[T any](ctx context.Context, b Backend, key string, def T) (T, error) {
	raw, ok, err := b.Read(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return def, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return v, nil
}

// Save serializes v and writes it under key with a single backend write.
func Save[T any](ctx context.Context, b Backend, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Write(ctx, key, string(raw))
}

// Slot mirrors one key in memory. Storage problems never reach the caller:
// the mirror stays authoritative and the slot reports itself degraded.
type Slot[T any] struct {
	key     string
	backend Backend
	log     *zap.Logger

	mu       sync.RWMutex
	value    T
	degraded bool
}

// NewSlot reads the initial value under key. A nil backend gives a
// memory-only slot.
func NewSlot[T any](ctx context.Context, b Backend, key string, def T, log *zap.Logger) *Slot[T] {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Slot[T]{key: key, backend: b, log: log, value: def}
	if b == nil {
		s.degraded = true
		return s
	}

	v, err := Load(ctx, b, key, def)
	if err != nil {
		log.Warn("slot load failed, using default", zap.String("key", key), zap.Error(err))
		s.degraded = !errors.Is(err, ErrMalformed)
	}
	s.value = v
	return s
}

// Ping checks the backend. A memory-only slot has nothing to check.
func (s *Slot[T]) Ping(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Ping(ctx)
}

func (s *Slot[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the mirror and writes it through before returning.
func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = v
	if s.backend == nil {
		return
	}

	if err := Save(context.Background(), s.backend, s.key, v); err != nil {
		if !s.degraded {
			s.log.Warn("slot write failed, continuing in memory", zap.String("key", s.key), zap.Error(err))
		}
		s.degraded = true
		return
	}
	if s.degraded {
		s.log.Info("slot write recovered", zap.String("key", s.key))
	}
	s.degraded = false
}

// Degraded reports whether the slot currently runs without durable storage.
func (s *Slot[T]) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}
