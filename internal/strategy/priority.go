package strategy

import (
	"github.com/Rizwank123/emergency_dispatch/internal/models"
)

// PriorityStrategy picks a default priority for callers that leave it unset.
type PriorityStrategy struct{}

func NewPriorityStrategy() *PriorityStrategy {
	return &PriorityStrategy{}
}

func (ps *PriorityStrategy) DeterminePriority(emergencyType models.EmergencyType, metadata map[string]any) models.Priority {
	if ps.isUrgent(metadata) {
		return models.PriorityUrgent
	}

	switch emergencyType {
	case models.TypeSecurity:
		return models.PriorityUrgent
	case models.TypeHealth, models.TypeInfrastructure, models.TypeWeather:
		return models.PriorityHigh
	case models.TypeAcademic:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

func (ps *PriorityStrategy) isUrgent(metadata map[string]any) bool {
	if urgent, ok := metadata["is_urgent"]; ok {
		if isUrgent, ok := urgent.(bool); ok && isUrgent {
			return true
		}
	}

	// Incidents starting within the next quarter hour.
	if startsIn, ok := metadata["starts_in_minutes"]; ok {
		switch v := startsIn.(type) {
		case int:
			return v <= 15
		case float64:
			return v <= 15
		}
	}

	return false
}
