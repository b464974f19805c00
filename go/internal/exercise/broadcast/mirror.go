package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/excon/go/internal/models"
)

// Mirror holds the latest snapshot a display process has received. It never mutates
// what it is given.
type Mirror struct {
	mu        sync.RWMutex
	last      *models.DashboardSnapshot
	updatedAt time.Time

	listenersMu sync.Mutex
	listeners   map[int]func(models.DashboardSnapshot)
	nextID      int
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{listeners: make(map[int]func(models.DashboardSnapshot))}
}

// Apply replaces the mirrored snapshot and notifies listeners.
func (m *Mirror) Apply(snap models.DashboardSnapshot) {
	copied := snap.Clone()
	m.mu.Lock()
	m.last = &copied
	m.updatedAt = time.Now()
	m.mu.Unlock()

	m.listenersMu.Lock()
	targets := make([]func(models.DashboardSnapshot), 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.listeners[id]; ok {
			targets = append(targets, fn)
		}
	}
	m.listenersMu.Unlock()

	for _, fn := range targets {
		fn(snap.Clone())
	}
}

// Snapshot returns the mirrored snapshot, or false when nothing has been received yet.
func (m *Mirror) Snapshot() (models.DashboardSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return models.DashboardSnapshot{}, false
	}
	return m.last.Clone(), true
}

// UpdatedAt is when the last snapshot was applied.
func (m *Mirror) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}

// Subscribe registers fn for every applied snapshot.
func (m *Mirror) Subscribe(fn func(models.DashboardSnapshot)) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenersMu.Lock()
			delete(m.listeners, id)
			m.listenersMu.Unlock()
		})
	}
}

// Follow keeps m in step with the snapshots other processes publish on b. It subscribes
// before reading the checkpoint so a publish landing in between is still observed; the
// checkpoint only seeds m when no update has arrived by the time it is read.
func (b *Bus) Follow(ctx context.Context, m *Mirror) (func(), error) {
	var (
		mu      sync.Mutex
		updated bool
	)
	stop, err := b.Subscribe(ctx, func(snap models.DashboardSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		updated = true
		m.Apply(snap)
	})
	if err != nil {
		return nil, err
	}

	if snap := b.ReadLast(ctx); snap != nil {
		mu.Lock()
		if !updated {
			m.Apply(*snap)
		}
		mu.Unlock()
	}
	return stop, nil
}
