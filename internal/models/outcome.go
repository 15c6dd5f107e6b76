package models

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Delivery Status
type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "SENT"
	StatusFailed  DeliveryStatus = "FAILED"
	StatusSkipped DeliveryStatus = "SKIPPED"

	// Set by the outcome store only; the dispatch core never produces them.
	StatusPendingConfirmation DeliveryStatus = "PENDING_CONFIRMATION"
	StatusConfirmed           DeliveryStatus = "CONFIRMED"
)

// DeliveryOutcome is the immutable result of one attempt set on one channel.
type DeliveryOutcome struct {
	DeliveryID     uuid.UUID      `json:"delivery_id" db:"delivery_id"`
	NotificationID uuid.UUID      `json:"notification_id" db:"notification_id"`
	UserID         string         `json:"user_id" db:"user_id"`
	Channel        string         `json:"channel" db:"channel"`
	Status         DeliveryStatus `json:"status" db:"status"`
	Error          string         `json:"error,omitempty" db:"error_message"`
	Attempts       int            `json:"attempts" db:"attempts"`
	Timestamp      time.Time      `json:"timestamp" db:"created_at"`
}

// OutcomeKey identifies who and where an outcome is about. Every outcome built
// from it gets its own delivery id.
type OutcomeKey struct {
	NotificationID uuid.UUID
	UserID         string
	Channel        string
}

func KeyFor(n Notification, u User, channel string) OutcomeKey {
	return OutcomeKey{NotificationID: n.ID, UserID: u.ID, Channel: channel}
}

func (k OutcomeKey) Sent() DeliveryOutcome {
	return k.build(StatusSent, "")
}

func (k OutcomeKey) Failed(reason string) DeliveryOutcome {
	return k.build(StatusFailed, reason)
}

func (k OutcomeKey) Skipped(reason string) DeliveryOutcome {
	return k.build(StatusSkipped, reason)
}

func (k OutcomeKey) WithStatus(status DeliveryStatus, reason string) DeliveryOutcome {
	return k.build(status, reason)
}

func (k OutcomeKey) build(status DeliveryStatus, reason string) DeliveryOutcome {
	return DeliveryOutcome{
		DeliveryID:     uuid.Must(uuid.NewV4()),
		NotificationID: k.NotificationID,
		UserID:         k.UserID,
		Channel:        k.Channel,
		Status:         status,
		Error:          reason,
		Attempts:       1,
		Timestamp:      time.Now().UTC(),
	}
}

// AnySent reports whether at least one outcome reached the provider.
func AnySent(outcomes []DeliveryOutcome) bool {
	for _, o := range outcomes {
		if o.Status == StatusSent {
			return true
		}
	}
	return false
}
