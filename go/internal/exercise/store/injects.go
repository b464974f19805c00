package store

import (
	"fmt"
	"strings"

	"github.com/mcdev12/excon/go/internal/exercise/rules"
	"github.com/mcdev12/excon/go/internal/exercise/timefmt"
	"github.com/mcdev12/excon/go/internal/models"
)

// NewInject is a validated inject record from the add form or a bulk import.
type NewInject struct {
	Title         string              `json:"title"`
	DueSeconds    int                 `json:"due_seconds"`
	Type          models.InjectType   `json:"type"`
	Status        models.InjectStatus `json:"status,omitempty"`
	To            string              `json:"to"`
	From          string              `json:"from"`
	AudioDataURL  string              `json:"audio_data_url,omitempty"`
	AudioName     string              `json:"audio_name,omitempty"`
	AutoPlayAudio bool                `json:"auto_play_audio,omitempty"`
}

// InjectUpdate carries optional field edits. Nil fields are left alone.
type InjectUpdate struct {
	Title         *string            `json:"title,omitempty"`
	Type          *models.InjectType `json:"type,omitempty"`
	To            *string            `json:"to,omitempty"`
	From          *string            `json:"from,omitempty"`
	AudioDataURL  *string            `json:"audio_data_url,omitempty"`
	AudioName     *string            `json:"audio_name,omitempty"`
	AutoPlayAudio *bool              `json:"auto_play_audio,omitempty"`
}

func (s *Store) buildInject(in NewInject) (models.Inject, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Inject{}, fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if in.DueSeconds < 0 {
		return models.Inject{}, fmt.Errorf("due_seconds must not be negative: %w", ErrInvalidTime)
	}
	injectType := in.Type
	if injectType == "" {
		injectType = models.InjectTypeOther
	}
	if !rules.ValidInjectType(injectType) {
		return models.Inject{}, fmt.Errorf("inject type %s: %w", injectType, ErrInvalidInput)
	}
	status := in.Status
	if status == "" {
		status = models.InjectStatusPending
	}
	if !rules.ValidInjectStatus(status) {
		return models.Inject{}, fmt.Errorf("inject status %s: %w", status, ErrInvalidInput)
	}
	return models.Inject{
		ID:            s.newID(),
		Title:         title,
		DueSeconds:    in.DueSeconds,
		Type:          injectType,
		Status:        status,
		To:            in.To,
		From:          in.From,
		AudioDataURL:  in.AudioDataURL,
		AudioName:     in.AudioName,
		AutoPlayAudio: in.AutoPlayAudio,
	}, nil
}

// AddInject appends a new inject and renumbers the list. A pending inject already past
// due is marked missed in the same update.
func (s *Store) AddInject(in NewInject) (models.Inject, error) {
	inject, err := s.buildInject(in)
	if err != nil {
		return models.Inject{}, err
	}
	committed, err := s.commit(true, func(st *models.DashboardSnapshot) error {
		st.Injects = rules.Renumber(append(st.Injects, inject))
		return nil
	})
	if err != nil {
		return models.Inject{}, err
	}
	return injectIn(committed, inject.ID), nil
}

// ImportInjects appends a batch of injects. Either all records are valid and added,
// or none are.
func (s *Store) ImportInjects(records []NewInject) ([]models.Inject, error) {
	built := make([]models.Inject, 0, len(records))
	for i, rec := range records {
		inject, err := s.buildInject(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		built = append(built, inject)
	}
	committed, err := s.commit(true, func(st *models.DashboardSnapshot) error {
		st.Injects = rules.Renumber(append(st.Injects, built...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	imported := make([]models.Inject, 0, len(built))
	for _, b := range built {
		imported = append(imported, injectIn(committed, b.ID))
	}
	return imported, nil
}

// DeleteInject removes an inject and renumbers the rest.
func (s *Store) DeleteInject(id string) error {
	return s.mutate(false, func(st *models.DashboardSnapshot) error {
		i, err := s.findInject(st, id)
		if err != nil {
			return err
		}
		st.Injects = rules.Renumber(append(st.Injects[:i], st.Injects[i+1:]...))
		return nil
	})
}

// UpdateInject edits the descriptive fields of an inject. Due time and status have
// their own operations.
func (s *Store) UpdateInject(id string, upd InjectUpdate) (models.Inject, error) {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return models.Inject{}, fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if upd.Type != nil && !rules.ValidInjectType(*upd.Type) {
		return models.Inject{}, fmt.Errorf("inject type %s: %w", *upd.Type, ErrInvalidInput)
	}
	var updated models.Inject
	err := s.mutate(false, func(st *models.DashboardSnapshot) error {
		i, err := s.findInject(st, id)
		if err != nil {
			return err
		}
		inj := &st.Injects[i]
		if upd.Title != nil {
			inj.Title = strings.TrimSpace(*upd.Title)
		}
		if upd.Type != nil {
			inj.Type = *upd.Type
		}
		if upd.To != nil {
			inj.To = *upd.To
		}
		if upd.From != nil {
			inj.From = *upd.From
		}
		if upd.AudioDataURL != nil {
			inj.AudioDataURL = *upd.AudioDataURL
		}
		if upd.AudioName != nil {
			inj.AudioName = *upd.AudioName
		}
		if upd.AutoPlayAudio != nil {
			inj.AutoPlayAudio = *upd.AutoPlayAudio
		}
		updated = *inj
		return nil
	})
	return updated, err
}

// SetInjectDue changes the due time from an HH:MM:SS string. Invalid text changes nothing.
func (s *Store) SetInjectDue(id, text string) (models.Inject, error) {
	seconds, ok := timefmt.ParseHMS(text)
	if !ok {
		return models.Inject{}, fmt.Errorf("due time %q: %w", text, ErrInvalidTime)
	}
	return s.SetInjectDueSeconds(id, seconds)
}

// SetInjectDueSeconds changes the due time and renumbers the list. Moving a pending
// inject before the current clock marks it missed right away.
func (s *Store) SetInjectDueSeconds(id string, seconds int) (models.Inject, error) {
	if seconds < 0 {
		return models.Inject{}, fmt.Errorf("due_seconds must not be negative: %w", ErrInvalidTime)
	}
	committed, err := s.commit(true, func(st *models.DashboardSnapshot) error {
		i, err := s.findInject(st, id)
		if err != nil {
			return err
		}
		st.Injects[i].DueSeconds = seconds
		st.Injects = rules.Renumber(st.Injects)
		return nil
	})
	if err != nil {
		return models.Inject{}, err
	}
	return injectIn(committed, id), nil
}

// ToggleInjectComplete flips an inject between completed and pending. Re-opening an
// inject that is already past due leaves it missed.
func (s *Store) ToggleInjectComplete(id string) (models.Inject, error) {
	return s.setInjectStatus(id, rules.ToggleCompleted)
}

// SkipInject marks a pending inject as skipped. It is one-way.
func (s *Store) SkipInject(id string) (models.Inject, error) {
	return s.setInjectStatus(id, func(current models.InjectStatus) (models.InjectStatus, error) {
		if err := rules.ValidateSkip(current); err != nil {
			return current, err
		}
		return models.InjectStatusSkipped, nil
	})
}

func (s *Store) setInjectStatus(id string, next func(models.InjectStatus) (models.InjectStatus, error)) (models.Inject, error) {
	committed, err := s.commit(true, func(st *models.DashboardSnapshot) error {
		i, err := s.findInject(st, id)
		if err != nil {
			return err
		}
		status, err := next(st.Injects[i].Status)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidTransition)
		}
		st.Injects[i].Status = status
		return nil
	})
	if err != nil {
		return models.Inject{}, err
	}
	return injectIn(committed, id), nil
}
