// Package storage persists small named values (slots) as text and mirrors
// them in memory for the lifetime of the process.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidKey = errors.New("invalid slot key")
	ErrMalformed  = errors.New("malformed slot value")
)

// Backend is a durable string store addressed by key.
type Backend interface {
	Read(ctx context.Context, key string) (value string, ok bool, err error)
	Write(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
