package cache

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrStoreDeleted is returned when a store handle is used after its generation was deleted.
var ErrStoreDeleted = errors.New("cache store deleted")

// Registry holds named cache stores.
// Each store maps request keys to serialized response snapshots.
//
// Implementations must be thread-safe!
// Concurrent writes to the same key are allowed; the last write wins.
type Registry interface {
	// Open returns the store with the given name, creating it if it does not exist.
	Open(ctx context.Context, name string) (Store, error)
	// Names returns the names of all existing stores.
	Names(ctx context.Context) ([]string, error)
	// Delete removes the store and all of its entries.
	// It returns false if no store with that name existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// Store is a single named cache generation.
type Store interface {
	// Name returns the store name.
	Name() string
	// Match returns the stored value for the key.
	// The boolean is false on a miss; a miss is not an error.
	Match(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores the value under the key, replacing any previous value wholesale.
	Put(ctx context.Context, key string, value []byte) error
	// Keys returns all keys in the store.
	Keys(ctx context.Context) ([]string, error)
}

type MemRegistry struct {
	mutex  *sync.RWMutex
	stores map[string]map[string][]byte
}

func NewMemRegistry() MemRegistry {
	return MemRegistry{
		mutex:  &sync.RWMutex{},
		stores: make(map[string]map[string][]byte),
	}
}

func (m MemRegistry) Open(_ context.Context, name string) (Store, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.stores[name]; !ok {
		m.stores[name] = make(map[string][]byte)
	}
	return memStore{registry: m, name: name}, nil
}

func (m MemRegistry) Names(_ context.Context) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m MemRegistry) Delete(_ context.Context, name string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.stores[name]; !ok {
		return false, nil
	}
	delete(m.stores, name)
	return true, nil
}

type memStore struct {
	registry MemRegistry
	name     string
}

func (s memStore) Name() string {
	return s.name
}

func (s memStore) Match(_ context.Context, key string) ([]byte, bool, error) {
	s.registry.mutex.RLock()
	defer s.registry.mutex.RUnlock()
	entries, ok := s.registry.stores[s.name]
	if !ok {
		return nil, false, ErrStoreDeleted
	}
	value, ok := entries[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(value), true, nil
}

func (s memStore) Put(_ context.Context, key string, value []byte) error {
	s.registry.mutex.Lock()
	defer s.registry.mutex.Unlock()
	entries, ok := s.registry.stores[s.name]
	if !ok {
		return ErrStoreDeleted
	}
	// stored values must not change when the caller reuses its buffer
	entries[key] = bytes.Clone(value)
	return nil
}

func (s memStore) Keys(_ context.Context) ([]string, error) {
	s.registry.mutex.RLock()
	defer s.registry.mutex.RUnlock()
	entries, ok := s.registry.stores[s.name]
	if !ok {
		return nil, ErrStoreDeleted
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
