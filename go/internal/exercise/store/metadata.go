package store

import (
	"fmt"
	"strings"

	"github.com/mcdev12/excon/go/internal/exercise/timefmt"
	"github.com/mcdev12/excon/go/internal/models"
)

// MetadataUpdate carries optional metadata edits. Nil fields are left alone.
type MetadataUpdate struct {
	ExerciseName       *string `json:"exercise_name,omitempty"`
	ControllerName     *string `json:"controller_name,omitempty"`
	ExerciseFinishTime *string `json:"exercise_finish_time,omitempty"`
}

// SetMetadata applies every field of upd in one update. An invalid finish time rejects
// the whole edit.
func (s *Store) SetMetadata(upd MetadataUpdate) (models.DashboardSnapshot, error) {
	var finish string
	if upd.ExerciseFinishTime != nil {
		normalized, err := normalizeFinishTime(*upd.ExerciseFinishTime)
		if err != nil {
			return models.DashboardSnapshot{}, err
		}
		finish = normalized
	}
	return s.commit(false, func(st *models.DashboardSnapshot) error {
		if upd.ExerciseName != nil {
			st.ExerciseName = strings.TrimSpace(*upd.ExerciseName)
		}
		if upd.ControllerName != nil {
			st.ControllerName = strings.TrimSpace(*upd.ControllerName)
		}
		if upd.ExerciseFinishTime != nil {
			st.ExerciseFinishTime = finish
		}
		return nil
	})
}

// SetExerciseName updates the exercise name.
func (s *Store) SetExerciseName(name string) {
	_ = s.mutate(false, func(st *models.DashboardSnapshot) error {
		st.ExerciseName = strings.TrimSpace(name)
		return nil
	})
}

// SetControllerName updates the controller name.
func (s *Store) SetControllerName(name string) {
	_ = s.mutate(false, func(st *models.DashboardSnapshot) error {
		st.ControllerName = strings.TrimSpace(name)
		return nil
	})
}

// SetFinishTime sets the planned finish time of day, stored as HH:MM:SS. An empty string clears it.
func (s *Store) SetFinishTime(text string) error {
	normalized, err := normalizeFinishTime(text)
	if err != nil {
		return err
	}
	return s.mutate(false, func(st *models.DashboardSnapshot) error {
		st.ExerciseFinishTime = normalized
		return nil
	})
}

func normalizeFinishTime(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	seconds, ok := timefmt.ParseWallClock(text)
	if !ok {
		return "", fmt.Errorf("finish time %q: %w", text, ErrInvalidTime)
	}
	return timefmt.FormatHMS(seconds), nil
}
