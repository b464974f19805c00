// Package rules holds the pure status rules for injects and resources.
//
// Automatic rules (DeriveInjects, DeriveResources) only move items forward and are safe
// to run any number of times for the same clock value. Manual transitions are validated
// here so the store can reject them before touching state.
package rules

import (
	"fmt"
	"sort"

	"github.com/mcdev12/excon/go/internal/models"
)

// DeriveInjects marks pending injects as missed once currentSeconds is strictly past their due time.
// It returns the updated list and how many injects changed.
func DeriveInjects(currentSeconds int, injects []models.Inject) ([]models.Inject, int) {
	changed := 0
	for i := range injects {
		if injects[i].Status == models.InjectStatusPending && currentSeconds > injects[i].DueSeconds {
			injects[i].Status = models.InjectStatusMissed
			changed++
		}
	}
	return injects, changed
}

// DeriveResources marks enroute resources as arrived once currentSeconds reaches their ETA.
func DeriveResources(currentSeconds int, resources []models.Resource) ([]models.Resource, int) {
	changed := 0
	for i := range resources {
		if resources[i].Status == models.ResourceStatusEnroute && currentSeconds >= resources[i].ETASeconds {
			resources[i].Status = models.ResourceStatusArrived
			changed++
		}
	}
	return resources, changed
}

// Renumber sorts injects by ascending due time (stable on ties) and assigns 1-based numbers.
func Renumber(injects []models.Inject) []models.Inject {
	sort.SliceStable(injects, func(i, j int) bool {
		return injects[i].DueSeconds < injects[j].DueSeconds
	})
	for i := range injects {
		injects[i].Number = i + 1
	}
	return injects
}

var resourceTransitions = map[models.ResourceStatus][]models.ResourceStatus{
	models.ResourceStatusRequested: {models.ResourceStatusTasked, models.ResourceStatusCancelled},
	models.ResourceStatusTasked:    {models.ResourceStatusEnroute, models.ResourceStatusCancelled},
	models.ResourceStatusEnroute:   {models.ResourceStatusArrived, models.ResourceStatusCancelled},
	models.ResourceStatusArrived:   {}, // terminal
	models.ResourceStatusCancelled: {}, // terminal
}

// ValidateResourceTransition checks a manual resource status change against the state machine.
func ValidateResourceTransition(current, next models.ResourceStatus) error {
	allowedNext, exists := resourceTransitions[current]
	if !exists {
		return fmt.Errorf("unknown current status: %s", current)
	}
	for _, allowed := range allowedNext {
		if next == allowed {
			return nil
		}
	}
	return fmt.Errorf("transition from %s to %s is not allowed", current, next)
}

// IsTerminalResource reports whether no further transition is possible.
func IsTerminalResource(status models.ResourceStatus) bool {
	return status == models.ResourceStatusArrived || status == models.ResourceStatusCancelled
}

// ToggleCompleted returns the status an inject moves to when the controller toggles completion.
// Completed goes back to pending; pending and missed become completed. Skipped injects stay put.
func ToggleCompleted(current models.InjectStatus) (models.InjectStatus, error) {
	switch current {
	case models.InjectStatusCompleted:
		return models.InjectStatusPending, nil
	case models.InjectStatusPending, models.InjectStatusMissed:
		return models.InjectStatusCompleted, nil
	default:
		return current, fmt.Errorf("cannot toggle completion of a %s inject", current)
	}
}

// ValidateSkip allows skipping only pending injects.
func ValidateSkip(current models.InjectStatus) error {
	if current != models.InjectStatusPending {
		return fmt.Errorf("cannot skip a %s inject", current)
	}
	return nil
}

// ValidInjectType reports whether t is a known inject type.
func ValidInjectType(t models.InjectType) bool {
	switch t {
	case models.InjectTypeInPerson, models.InjectTypeRadioPhone, models.InjectTypeElectronic,
		models.InjectTypeMap, models.InjectTypeOther:
		return true
	default:
		return false
	}
}

// ValidResourceKind reports whether k is empty or a known kind.
func ValidResourceKind(k models.ResourceKind) bool {
	switch k {
	case "", models.ResourceKindPerson, models.ResourceKindVehicle, models.ResourceKindGroup,
		models.ResourceKindAir, models.ResourceKindCapability, models.ResourceKindSupply:
		return true
	default:
		return false
	}
}

// ValidInjectStatus reports whether s is a known inject status.
func ValidInjectStatus(s models.InjectStatus) bool {
	switch s {
	case models.InjectStatusPending, models.InjectStatusCompleted, models.InjectStatusMissed, models.InjectStatusSkipped:
		return true
	default:
		return false
	}
}

// ValidResourceStatus reports whether s is a known resource status.
func ValidResourceStatus(s models.ResourceStatus) bool {
	_, ok := resourceTransitions[s]
	return ok
}
