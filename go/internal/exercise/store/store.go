// Package store holds the authoritative exercise state for one controller process.
//
// Every mutation runs against a copy of the current state, so a failed validation leaves
// the store untouched. Clock changes run the status rules inside the same update, and
// listeners are notified in mutation order with a snapshot that already reflects them.
// Listeners must not call mutators.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/excon/go/internal/exercise/rules"
	"github.com/mcdev12/excon/go/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTime       = errors.New("invalid time")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidInput      = errors.New("invalid input")

	errUnchanged = errors.New("unchanged")
)

// Listener receives the full snapshot after each committed mutation.
type Listener func(models.DashboardSnapshot)

// DerivationObserver is told how many items the automatic rules moved in one update.
type DerivationObserver func(missed, arrived int)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides uuid-based ids (tests use deterministic ids).
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithDerivationObserver registers a hook called after the status rules change anything.
func WithDerivationObserver(fn DerivationObserver) Option {
	return func(s *Store) { s.onDerive = fn }
}

// Store is the exercise state container.
type Store struct {
	// commitMu serializes mutate+notify so listeners see mutations in order.
	commitMu sync.Mutex
	mu       sync.RWMutex
	state    models.DashboardSnapshot

	listenersMu    sync.Mutex
	listeners      map[int]Listener
	nextListenerID int

	newID    func() string
	onDerive DerivationObserver
}

// New creates an empty store: clock at zero, stopped, no injects or resources.
func New(opts ...Option) *Store {
	s := &Store{
		state:     emptyState(),
		listeners: make(map[int]Listener),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func emptyState() models.DashboardSnapshot {
	return models.DashboardSnapshot{
		Injects:   []models.Inject{},
		Resources: []models.Resource{},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.DashboardSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// CurrentSeconds returns the elapsed exercise time.
func (s *Store) CurrentSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentSeconds
}

// IsRunning reports whether the master clock is running.
func (s *Store) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsRunning
}

// Subscribe registers l and returns a function that removes it. The returned function is
// safe to call more than once.
func (s *Store) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// mutate applies fn to a copy of the state and commits it when fn succeeds.
// When derive is set the status rules run before the commit.
func (s *Store) mutate(derive bool, fn func(st *models.DashboardSnapshot) error) error {
	_, err := s.commit(derive, fn)
	return err
}

// commit is mutate returning the committed state, so callers can report items as the
// status rules left them. The snapshot is zero when fn returned errUnchanged.
func (s *Store) commit(derive bool, fn func(st *models.DashboardSnapshot) error) (models.DashboardSnapshot, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	next := s.state.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return models.DashboardSnapshot{}, nil
		}
		return models.DashboardSnapshot{}, err
	}

	var missed, arrived int
	if derive {
		next.Injects, missed = rules.DeriveInjects(next.CurrentSeconds, next.Injects)
		next.Resources, arrived = rules.DeriveResources(next.CurrentSeconds, next.Resources)
	}
	s.state = next
	committed := next.Clone()
	s.mu.Unlock()

	if (missed > 0 || arrived > 0) && s.onDerive != nil {
		s.onDerive(missed, arrived)
	}
	s.notify(committed)
	return committed, nil
}

func (s *Store) notify(snap models.DashboardSnapshot) {
	s.listenersMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	targets := make([]Listener, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, l := range targets {
		l(snap.Clone())
	}
}

// Restore replaces the whole state with snap, e.g. when hydrating from a checkpoint.
// The restored clock is always stopped and inject numbers are recomputed.
func (s *Store) Restore(snap models.DashboardSnapshot) {
	_ = s.mutate(false, func(st *models.DashboardSnapshot) error {
		restored := snap.Clone()
		restored.IsRunning = false
		if restored.CurrentSeconds < 0 {
			restored.CurrentSeconds = 0
		}
		restored.Injects = rules.Renumber(restored.Injects)
		*st = restored
		return nil
	})
}

// Wipe clears metadata, injects, resources and the clock.
func (s *Store) Wipe() {
	_ = s.mutate(false, func(st *models.DashboardSnapshot) error {
		*st = emptyState()
		return nil
	})
}

func (s *Store) findInject(st *models.DashboardSnapshot, id string) (int, error) {
	for i := range st.Injects {
		if st.Injects[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("inject %s: %w", id, ErrNotFound)
}

func injectIn(snap models.DashboardSnapshot, id string) models.Inject {
	for _, inj := range snap.Injects {
		if inj.ID == id {
			return inj
		}
	}
	return models.Inject{}
}

func resourceIn(snap models.DashboardSnapshot, id string) models.Resource {
	for _, res := range snap.Resources {
		if res.ID == id {
			return res
		}
	}
	return models.Resource{}
}

func (s *Store) findResource(st *models.DashboardSnapshot, id string) (int, error) {
	for i := range st.Resources {
		if st.Resources[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("resource %s: %w", id, ErrNotFound)
}
