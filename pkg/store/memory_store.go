package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var _ Store = &MemoryStore{}

// MemoryStore keeps records in a map. It is used by tests and behaves
// like BadgerStore, including list order.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Open(string) error { return nil }
func (m *MemoryStore) Close() error      { return nil }

func (m *MemoryStore) Create(ctx context.Context, resourceType, scope, name string, resource interface{}) error {
	return m.put(resourceRef{resourceType, scope, name}, resource, putCreate)
}

func (m *MemoryStore) Update(ctx context.Context, resourceType, scope, name string, resource interface{}) error {
	return m.put(resourceRef{resourceType, scope, name}, resource, putUpdate)
}

func (m *MemoryStore) Put(ctx context.Context, resourceType, scope, name string, resource interface{}) error {
	return m.put(resourceRef{resourceType, scope, name}, resource, putUpsert)
}

func (m *MemoryStore) put(ref resourceRef, resource interface{}, mode putMode) error {
	data, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ref, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(ref.key())
	_, exists := m.data[key]
	if err := mode.check(ref, exists); err != nil {
		return err
	}
	m.data[key] = data
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, resourceType, scope, name string, resource interface{}) error {
	ref := resourceRef{resourceType, scope, name}
	m.mu.RLock()
	data, ok := m.data[string(ref.key())]
	m.mu.RUnlock()
	if !ok {
		return ref.notFound()
	}
	return json.Unmarshal(data, resource)
}

func (m *MemoryStore) Delete(ctx context.Context, resourceType, scope, name string) error {
	ref := resourceRef{resourceType, scope, name}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[string(ref.key())]; !ok {
		return ref.notFound()
	}
	delete(m.data, string(ref.key()))
	return nil
}

func (m *MemoryStore) List(ctx context.Context, resourceType, scope string, resource interface{}) error {
	prefix := string(MakePrefix(resourceType, scope))

	m.mu.RLock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	raw := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		raw = append(raw, m.data[k])
	}
	m.mu.RUnlock()

	return decodeList(raw, resource)
}
