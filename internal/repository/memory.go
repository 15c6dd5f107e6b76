package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
)

type storedNotification struct {
	notification models.Notification
	globalStatus string
}

// MemoryStore is an in-process Store for the CLI and tests.
type MemoryStore struct {
	notifications map[uuid.UUID]storedNotification
	outcomes      []models.DeliveryOutcome
	byDelivery    map[uuid.UUID]int
	mu            sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notifications: make(map[uuid.UUID]storedNotification),
		byDelivery:    make(map[uuid.UUID]int),
	}
}

func (s *MemoryStore) SaveNotification(_ context.Context, n models.Notification, globalStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.notifications[n.ID]; ok && prev.globalStatus == statusSent {
		globalStatus = statusSent
	}
	s.notifications[n.ID] = storedNotification{notification: n, globalStatus: globalStatus}
	return nil
}

// SaveOutcomes upserts by delivery id. A CONFIRMED outcome keeps its status.
func (s *MemoryStore) SaveOutcomes(_ context.Context, outcomes []models.DeliveryOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range outcomes {
		if i, ok := s.byDelivery[o.DeliveryID]; ok {
			if s.outcomes[i].Status == models.StatusConfirmed {
				o.Status = models.StatusConfirmed
			}
			s.outcomes[i] = o
			continue
		}
		s.byDelivery[o.DeliveryID] = len(s.outcomes)
		s.outcomes = append(s.outcomes, o)
	}
	return nil
}

func (s *MemoryStore) MarkConfirmed(_ context.Context, deliveryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byDelivery[deliveryID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeliveryNotFound, deliveryID)
	}
	if !confirmable(s.outcomes[i].Status) {
		return fmt.Errorf("%w: status %s", ErrNotConfirmable, s.outcomes[i].Status)
	}
	s.outcomes[i].Status = models.StatusConfirmed
	return nil
}

func (s *MemoryStore) OutcomesByNotification(_ context.Context, notificationID uuid.UUID) ([]models.DeliveryOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DeliveryOutcome
	for _, o := range s.outcomes {
		if o.NotificationID == notificationID {
			out = append(out, o)
		}
	}
	return slices.Clip(out), nil
}

// GlobalStatus returns the status recorded with the notification.
func (s *MemoryStore) GlobalStatus(notificationID uuid.UUID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[notificationID]
	return n.globalStatus, ok
}
