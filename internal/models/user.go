package models

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	ErrEmptyUserID  = errors.New("user id is required")
	ErrInvalidEmail = errors.New("invalid email address")
	ErrInvalidPhone = errors.New("invalid phone number")
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
)

// Delivery Channels
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// DefaultChannelOrder is the fallback order used when a user has no preference.
var DefaultChannelOrder = []string{ChannelSMS, ChannelEmail, ChannelPush}

// ContactField names the user attribute a channel needs to reach someone.
type ContactField string

const (
	ContactPhone     ContactField = "phone"
	ContactEmail     ContactField = "email"
	ContactPushToken ContactField = "push_token"
)

// UserPreferences is owned by a User and may change between dispatch calls.
type UserPreferences struct {
	EnabledChannels []string        `json:"enabled_channels"`
	OptOutTypes     []EmergencyType `json:"opt_out_types,omitempty"`
	Language        string          `json:"language"`
}

func DefaultPreferences() UserPreferences {
	return UserPreferences{
		EnabledChannels: slices.Clone(DefaultChannelOrder),
		Language:        "fr",
	}
}

func (p UserPreferences) OptedOut(t EmergencyType) bool {
	return slices.Contains(p.OptOutTypes, t)
}

func (p UserPreferences) Clone() UserPreferences {
	return UserPreferences{
		EnabledChannels: slices.Clone(p.EnabledChannels),
		OptOutTypes:     slices.Clone(p.OptOutTypes),
		Language:        p.Language,
	}
}

type User struct {
	ID          string          `json:"user_id"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	PushToken   string          `json:"push_token,omitempty"`
	Preferences UserPreferences `json:"preferences"`
}

// NewUser validates contact fields once. Empty contacts are allowed and simply
// leave the matching channel unusable.
func NewUser(id, email, phone, pushToken string, prefs UserPreferences) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, ErrEmptyUserID
	}
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return User{}, err
	}
	phone = strings.TrimSpace(phone)
	if err := ValidatePhone(phone); err != nil {
		return User{}, err
	}
	if prefs.Language == "" {
		prefs.Language = "fr"
	}
	return User{
		ID:          id,
		Email:       email,
		Phone:       phone,
		PushToken:   strings.TrimSpace(pushToken),
		Preferences: prefs.Clone(),
	}, nil
}

// ValidateEmail accepts an empty value.
func ValidateEmail(email string) error {
	if email == "" || emailPattern.MatchString(email) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
}

// ValidatePhone accepts an empty value.
func ValidatePhone(phone string) error {
	if phone == "" || phonePattern.MatchString(phone) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
}

// Contact returns the address stored for field, or "" when not configured.
func (u User) Contact(field ContactField) string {
	switch field {
	case ContactPhone:
		return u.Phone
	case ContactEmail:
		return u.Email
	case ContactPushToken:
		return u.PushToken
	default:
		return ""
	}
}

// Clone returns a snapshot that later preference edits cannot reach.
func (u User) Clone() User {
	cp := u
	cp.Preferences = u.Preferences.Clone()
	return cp
}
