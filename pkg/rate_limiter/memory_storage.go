package rate_limiter

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryStorage is a process-local Storer for tests and single-instance
// development runs. Expired entries are evicted lazily on read.
type MemoryStorage struct {
	mu  sync.Mutex
	db  map[string]memoryEntry
	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

var _ Storer = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		db:  make(map[string]memoryEntry),
		now: time.Now,
	}
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.db[key]
	if !ok {
		return nil, nil
	}
	if m.expired(entry) {
		delete(m.db, key)
		return nil, nil
	}
	return entry.value, nil
}

func (m *MemoryStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.db[key] = entry
	return nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.db, key)
	return nil
}

func (m *MemoryStorage) Scan(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key, entry := range m.db {
		if m.expired(entry) {
			delete(m.db, key)
			continue
		}
		if ok, err := path.Match(pattern, key); err != nil {
			return nil, err
		} else if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *MemoryStorage) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt)
}
