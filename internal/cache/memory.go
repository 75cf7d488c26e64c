package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local cache with per-entry TTL and FIFO eviction once
// the entry cap is reached. Expired entries are dropped lazily on read and
// in bulk by Purge.
type Memory struct {
	mu         sync.Mutex
	items      map[string]memoryEntry
	order      []string
	maxEntries int
}

var _ Store = (*Memory)(nil)

// NewMemory creates an in-memory store. maxEntries <= 0 means unbounded.
func NewMemory(maxEntries int) *Memory {
	return &Memory{
		items:      make(map[string]memoryEntry),
		order:      make([]string, 0, 128),
		maxEntries: maxEntries,
	}
}

// Get returns the cached value, or false if absent or expired.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the given TTL. A non-positive TTL stores an
// already-expired entry, which the next Get or Purge drops.
func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[key]; !exists {
		m.order = append(m.order, key)
	}
	m.items[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	m.evict()
}

// Delete removes a single entry.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
}

// Purge drops every expired entry.
func (m *Memory) Purge() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var dropped int64
	for key, e := range m.items {
		if now.After(e.expiresAt) {
			m.remove(key)
			dropped++
		}
	}
	return dropped, nil
}

// Backend returns the cache backend name.
func (m *Memory) Backend() string { return "memory" }

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }

// evict enforces the entry cap, oldest insertion first. Callers hold the lock.
func (m *Memory) evict() {
	if m.maxEntries <= 0 {
		return
	}
	for len(m.items) > m.maxEntries && len(m.order) > 0 {
		victim := m.order[0]
		m.order = m.order[1:]
		delete(m.items, victim)
	}
}

func (m *Memory) remove(key string) {
	if _, ok := m.items[key]; !ok {
		return
	}
	delete(m.items, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
