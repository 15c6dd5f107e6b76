package repository

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
)

var (
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrNotConfirmable   = errors.New("delivery cannot be confirmed")
)

// Store keeps the history of notifications and their delivery outcomes.
// The dispatch core never reads from it.
type Store interface {
	// SaveNotification upserts the notification. Once its global status is
	// "sent" it stays "sent", since any delivered job means the alert got out.
	SaveNotification(ctx context.Context, n models.Notification, globalStatus string) error
	SaveOutcomes(ctx context.Context, outcomes []models.DeliveryOutcome) error
	// MarkConfirmed moves a SENT or PENDING_CONFIRMATION outcome to CONFIRMED.
	MarkConfirmed(ctx context.Context, deliveryID uuid.UUID) error
	OutcomesByNotification(ctx context.Context, notificationID uuid.UUID) ([]models.DeliveryOutcome, error)
}

const statusSent = "sent"

func confirmable(status models.DeliveryStatus) bool {
	return status == models.StatusSent || status == models.StatusPendingConfirmation
}
