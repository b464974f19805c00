package checkpoint

import (
	"context"
	"sort"
	"sync"
)

type memoryWatcher struct {
	origin string
	fn     WatchFunc
}

// MemoryStore is an in-process KV. Watchers run synchronously on the writer's goroutine,
// after the write is visible.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte

	watchMu  sync.Mutex
	watchers map[int]memoryWatcher
	nextID   int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string][]byte),
		watchers: make(map[int]memoryWatcher),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, origin, key string, value []byte) error {
	m.mu.Lock()
	m.values[key] = append([]byte(nil), value...)
	m.mu.Unlock()

	m.watchMu.Lock()
	ids := make([]int, 0, len(m.watchers))
	for id := range m.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var targets []WatchFunc
	for _, id := range ids {
		if w := m.watchers[id]; w.origin != origin {
			targets = append(targets, w.fn)
		}
	}
	m.watchMu.Unlock()

	for _, fn := range targets {
		fn(key)
	}
	return nil
}

func (m *MemoryStore) Watch(ctx context.Context, origin string, fn WatchFunc) (func(), error) {
	m.watchMu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = memoryWatcher{origin: origin, fn: fn}
	m.watchMu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.watchMu.Lock()
			delete(m.watchers, id)
			m.watchMu.Unlock()
		})
	}
	context.AfterFunc(ctx, stop)
	return stop, nil
}

func (m *MemoryStore) Close() error { return nil }
