package store

import (
	"fmt"

	"github.com/mcdev12/excon/go/internal/exercise/timefmt"
	"github.com/mcdev12/excon/go/internal/models"
)

// Start sets the clock running. Starting a running clock is a no-op.
func (s *Store) Start() {
	_ = s.mutate(false, func(st *models.DashboardSnapshot) error {
		if st.IsRunning {
			return errUnchanged
		}
		st.IsRunning = true
		return nil
	})
}

// Stop pauses the clock. Stopping a stopped clock is a no-op.
func (s *Store) Stop() {
	_ = s.mutate(false, func(st *models.DashboardSnapshot) error {
		if !st.IsRunning {
			return errUnchanged
		}
		st.IsRunning = false
		return nil
	})
}

// Tick advances a running clock by one second and applies the status rules in the same
// update. It reports false and changes nothing when the clock is stopped.
func (s *Store) Tick() bool {
	ticked := false
	_ = s.mutate(true, func(st *models.DashboardSnapshot) error {
		if !st.IsRunning {
			return errUnchanged
		}
		st.CurrentSeconds++
		ticked = true
		return nil
	})
	return ticked
}

// SetSeconds overwrites the elapsed time, running or stopped. Moving forward marks
// overdue injects missed and past-ETA resources arrived; moving back reverts nothing.
func (s *Store) SetSeconds(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("seconds must not be negative: %w", ErrInvalidTime)
	}
	return s.mutate(true, func(st *models.DashboardSnapshot) error {
		st.CurrentSeconds = seconds
		return nil
	})
}

// SetTime is SetSeconds for an HH:MM:SS string.
func (s *Store) SetTime(text string) error {
	seconds, ok := timefmt.ParseHMS(text)
	if !ok {
		return fmt.Errorf("clock time %q: %w", text, ErrInvalidTime)
	}
	return s.SetSeconds(seconds)
}

// Reset returns the clock to zero and stops it. Injects, resources and metadata are kept.
func (s *Store) Reset() {
	_ = s.mutate(false, func(st *models.DashboardSnapshot) error {
		st.CurrentSeconds = 0
		st.IsRunning = false
		return nil
	})
}
