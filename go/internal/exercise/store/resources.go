package store

import (
	"fmt"
	"math"
	"strings"

	"github.com/mcdev12/excon/go/internal/exercise/rules"
	"github.com/mcdev12/excon/go/internal/exercise/timefmt"
	"github.com/mcdev12/excon/go/internal/models"
)

// NewResource is a resource request from the add form. The ETA is Minutes from now.
type NewResource struct {
	Label   string              `json:"label"`
	Kind    models.ResourceKind `json:"kind,omitempty"`
	Minutes int                 `json:"minutes"`
}

// ResourceRecord is a validated resource from a bulk import with an absolute ETA.
type ResourceRecord struct {
	Label      string                `json:"label"`
	Kind       models.ResourceKind   `json:"kind,omitempty"`
	ETASeconds int                   `json:"eta_seconds"`
	Status     models.ResourceStatus `json:"status,omitempty"`
}

func (s *Store) buildResource(rec ResourceRecord) (models.Resource, error) {
	label := strings.TrimSpace(rec.Label)
	if label == "" {
		return models.Resource{}, fmt.Errorf("label is required: %w", ErrInvalidInput)
	}
	if rec.ETASeconds < 0 {
		return models.Resource{}, fmt.Errorf("eta_seconds must not be negative: %w", ErrInvalidTime)
	}
	if !rules.ValidResourceKind(rec.Kind) {
		return models.Resource{}, fmt.Errorf("resource kind %s: %w", rec.Kind, ErrInvalidInput)
	}
	status := rec.Status
	if status == "" {
		status = models.ResourceStatusRequested
	}
	if !rules.ValidResourceStatus(status) {
		return models.Resource{}, fmt.Errorf("resource status %s: %w", status, ErrInvalidInput)
	}
	return models.Resource{
		ID:         s.newID(),
		Label:      label,
		ETASeconds: rec.ETASeconds,
		Status:     status,
		Kind:       rec.Kind,
	}, nil
}

// AddResource requests a resource due Minutes after the current clock value.
func (s *Store) AddResource(in NewResource) (models.Resource, error) {
	if in.Minutes < 0 {
		return models.Resource{}, fmt.Errorf("minutes must not be negative: %w", ErrInvalidTime)
	}
	var added models.Resource
	err := s.mutate(false, func(st *models.DashboardSnapshot) error {
		if in.Minutes > (math.MaxInt-st.CurrentSeconds)/60 {
			return fmt.Errorf("minutes %d out of range: %w", in.Minutes, ErrInvalidTime)
		}
		res, err := s.buildResource(ResourceRecord{
			Label:      in.Label,
			Kind:       in.Kind,
			ETASeconds: st.CurrentSeconds + in.Minutes*60,
		})
		if err != nil {
			return err
		}
		st.Resources = append(st.Resources, res)
		added = res
		return nil
	})
	return added, err
}

// ImportResources appends a batch of resources, all or nothing. Enroute records already
// past their ETA arrive in the same update.
func (s *Store) ImportResources(records []ResourceRecord) ([]models.Resource, error) {
	built := make([]models.Resource, 0, len(records))
	for i, rec := range records {
		res, err := s.buildResource(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		built = append(built, res)
	}
	committed, err := s.commit(true, func(st *models.DashboardSnapshot) error {
		st.Resources = append(st.Resources, built...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	imported := make([]models.Resource, 0, len(built))
	for _, b := range built {
		imported = append(imported, resourceIn(committed, b.ID))
	}
	return imported, nil
}

// SetResourceStatus applies a manual transition. Anything outside the state machine is
// rejected and leaves the resource as it was. Going enroute past the ETA arrives at once.
func (s *Store) SetResourceStatus(id string, next models.ResourceStatus) (models.Resource, error) {
	committed, err := s.commit(true, func(st *models.DashboardSnapshot) error {
		i, err := s.findResource(st, id)
		if err != nil {
			return err
		}
		if err := rules.ValidateResourceTransition(st.Resources[i].Status, next); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidTransition)
		}
		st.Resources[i].Status = next
		return nil
	})
	if err != nil {
		return models.Resource{}, err
	}
	return resourceIn(committed, id), nil
}

// SetResourceETA changes the ETA from an HH:MM:SS string. Invalid text changes nothing.
func (s *Store) SetResourceETA(id, text string) (models.Resource, error) {
	seconds, ok := timefmt.ParseHMS(text)
	if !ok {
		return models.Resource{}, fmt.Errorf("eta %q: %w", text, ErrInvalidTime)
	}
	if seconds < 0 {
		return models.Resource{}, fmt.Errorf("eta_seconds must not be negative: %w", ErrInvalidTime)
	}
	committed, err := s.commit(true, func(st *models.DashboardSnapshot) error {
		i, err := s.findResource(st, id)
		if err != nil {
			return err
		}
		st.Resources[i].ETASeconds = seconds
		return nil
	})
	if err != nil {
		return models.Resource{}, err
	}
	return resourceIn(committed, id), nil
}

// DeleteResource removes a resource.
func (s *Store) DeleteResource(id string) error {
	return s.mutate(false, func(st *models.DashboardSnapshot) error {
		i, err := s.findResource(st, id)
		if err != nil {
			return err
		}
		st.Resources = append(st.Resources[:i], st.Resources[i+1:]...)
		return nil
	})
}
