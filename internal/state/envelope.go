// Package state holds the persisted blob format and subscriber fan-out
// shared by the cart and wishlist containers.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"EMart/internal/storage"
)

var ErrMalformed = errors.New("malformed persisted state")

// Envelope is the stored form of a container:
//
//	{"name":"emart-cart","version":0,"state":{"items":[...]}}
type Envelope struct {
	Name    string          `json:"name"`
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// Save writes v under name. The returned error wraps storage.ErrPersistence
// when the store rejects the write.
func Save(ctx context.Context, s storage.Storage, name string, version int, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", storage.ErrPersistence, name, err)
	}

	b, err := json.Marshal(Envelope{Name: name, Version: version, State: raw})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", storage.ErrPersistence, name, err)
	}

	if err := s.Set(ctx, name, b); err != nil {
		if errors.Is(err, storage.ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: %w", storage.ErrPersistence, err)
	}
	return nil
}

// Load decodes the entry stored under name into v. A missing entry returns
// found == false and leaves v untouched.
func Load(ctx context.Context, s storage.Storage, name string, version int, v any) (found bool, err error) {
	b, ok, err := s.Get(ctx, name)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	if env.Name != name {
		return true, fmt.Errorf("%w: %s: stored name %q", ErrMalformed, name, env.Name)
	}
	if env.Version != version {
		return true, fmt.Errorf("%w: %s: unsupported version %d", ErrMalformed, name, env.Version)
	}
	if len(env.State) == 0 {
		return true, fmt.Errorf("%w: %s: empty state", ErrMalformed, name)
	}
	if err := json.Unmarshal(env.State, v); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return true, nil
}
