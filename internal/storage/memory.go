package storage

import (
	"context"
	"slices"
	"sync"
)

// MemStorage keeps blobs in process memory. With a positive quota, writes
// that would grow the total stored bytes past it fail with ErrQuotaExceeded.
type MemStorage struct {
	mu    sync.RWMutex
	m     map[string][]byte
	used  int
	quota int
}

func NewMemStorage(quotaBytes int) *MemStorage {
	return &MemStorage{m: map[string][]byte{}, quota: quotaBytes}
}

func (s *MemStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return slices.Clone(v), ok, nil
}

func (s *MemStorage) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used - len(s.m[key]) + len(value)
	if s.quota > 0 && used > s.quota {
		return persistErr("set", key, ErrQuotaExceeded)
	}

	s.m[key] = slices.Clone(value)
	s.used = used
	return nil
}

func (s *MemStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used -= len(s.m[key])
	delete(s.m, key)
	return nil
}

func (s *MemStorage) Ping(context.Context) error { return nil }
