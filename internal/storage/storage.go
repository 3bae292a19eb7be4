// Package storage is the durable key-value channel that the cart and
// wishlist write their state blobs to.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPersistence marks a rejected write. The caller's in-memory state is
	// still authoritative.
	ErrPersistence = errors.New("persistence failure")

	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

type Storage interface {
	// Get returns ok == false for a missing key.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

func persistErr(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrPersistence, op, key, err)
}
