package models

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

var (
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidEmergencyType = errors.New("invalid emergency type")
	ErrEmptyMessage         = errors.New("notification message is required")
)

// Emergency Types
type EmergencyType string

const (
	TypeSecurity       EmergencyType = "security"
	TypeWeather        EmergencyType = "weather"
	TypeHealth         EmergencyType = "health"
	TypeInfrastructure EmergencyType = "infrastructure"
	TypeAcademic       EmergencyType = "academic"
	TypeOther          EmergencyType = "other"
)

var emergencyTypes = []EmergencyType{
	TypeSecurity,
	TypeWeather,
	TypeHealth,
	TypeInfrastructure,
	TypeAcademic,
	TypeOther,
}

// ParseEmergencyType accepts any casing of a known type name.
func ParseEmergencyType(raw string) (EmergencyType, error) {
	key := EmergencyType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range emergencyTypes {
		if t == key {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEmergencyType, raw)
}

func (t EmergencyType) Valid() bool {
	_, err := ParseEmergencyType(string(t))
	return err == nil
}

// Notification Priorities. The numeric value is the rank used for queue ordering.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

var priorityNames = map[Priority]string{
	PriorityLow:    "LOW",
	PriorityMedium: "MEDIUM",
	PriorityHigh:   "HIGH",
	PriorityUrgent: "URGENT",
}

func (p Priority) Rank() int { return int(p) }

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority accepts LOW..URGENT in any casing or the ranks 1..4.
func ParsePriority(raw string) (Priority, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(v); err == nil {
		if p := Priority(n); p.Valid() {
			return p, nil
		}
		return 0, fmt.Errorf("%w: rank %d outside 1..4", ErrInvalidPriority, n)
	}
	for p, name := range priorityNames {
		if name == v {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
}

// Notification is created once by the caller and never mutated after scheduling.
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	Type      EmergencyType  `json:"emergency_type"`
	Priority  Priority       `json:"priority"`
	Message   string         `json:"message"`
	Zone      string         `json:"zone,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewNotification validates its input and assigns a fresh id.
func NewNotification(t EmergencyType, p Priority, message, zone string, metadata map[string]any) (Notification, error) {
	if !t.Valid() {
		return Notification{}, fmt.Errorf("%w: %q", ErrInvalidEmergencyType, t)
	}
	if !p.Valid() {
		return Notification{}, fmt.Errorf("%w: %d", ErrInvalidPriority, p)
	}
	if strings.TrimSpace(message) == "" {
		return Notification{}, ErrEmptyMessage
	}
	return Notification{
		ID:        uuid.Must(uuid.NewV4()),
		Type:      t,
		Priority:  p,
		Message:   message,
		Zone:      strings.TrimSpace(zone),
		Metadata:  maps.Clone(metadata),
		CreatedAt: time.Now().UTC(),
	}, nil
}
