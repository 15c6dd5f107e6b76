package main

import (
	"fmt"
	"strings"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
)

// alertRequest is one operator alert as read by serve, one JSON object per line.
type alertRequest struct {
	Type     string         `json:"type"`
	Priority string         `json:"priority,omitempty"`
	Message  string         `json:"message"`
	Zone     string         `json:"zone,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Users    []userRequest  `json:"users"`
}

type userRequest struct {
	ID        string   `json:"id"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	PushToken string   `json:"push_token,omitempty"`
	Channels  []string `json:"channels,omitempty"`
	OptOut    []string `json:"opt_out,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// parsePriority treats an empty string as "derive from the emergency type".
func parsePriority(s string) (models.Priority, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return models.ParsePriority(s)
}

func parseType(s string) (models.EmergencyType, error) {
	if strings.TrimSpace(s) == "" {
		return models.TypeOther, nil
	}
	return models.ParseEmergencyType(s)
}

func (r userRequest) toUser() (models.User, error) {
	prefs := models.DefaultPreferences()
	if len(r.Channels) > 0 {
		prefs.EnabledChannels = r.Channels
	}
	if r.Language != "" {
		prefs.Language = r.Language
	}
	for _, raw := range r.OptOut {
		t, err := models.ParseEmergencyType(raw)
		if err != nil {
			return models.User{}, fmt.Errorf("user %s: %w", r.ID, err)
		}
		prefs.OptOutTypes = append(prefs.OptOutTypes, t)
	}
	return models.NewUser(r.ID, r.Email, r.Phone, r.PushToken, prefs)
}

func (r alertRequest) users() ([]models.User, error) {
	if len(r.Users) == 0 {
		return nil, fmt.Errorf("alert has no recipients")
	}
	out := make([]models.User, 0, len(r.Users))
	for _, ur := range r.Users {
		u, err := ur.toUser()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
