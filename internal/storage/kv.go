// Package storage keeps per-visitor state in two key-value scopes: a
// session scope that expires after inactivity and a durable scope that
// survives across sessions.
package storage

import (
	"context"
	"sync"
)

// KV is a string key-value store partitioned by visitor id.
type KV interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, visitorID, key string) (string, bool, error)
	Set(ctx context.Context, visitorID, key, value string) error
	Delete(ctx context.Context, visitorID string, keys ...string) error
}

// MemoryKV is an in-process KV used for tests and the "memory" driver.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, visitorID, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[visitorID][key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, visitorID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[visitorID]
	if !ok {
		bucket = make(map[string]string)
		m.data[visitorID] = bucket
	}
	bucket[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, visitorID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[visitorID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(bucket, k)
	}
	if len(bucket) == 0 {
		delete(m.data, visitorID)
	}
	return nil
}
