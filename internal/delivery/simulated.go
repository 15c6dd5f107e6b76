package delivery

import (
	"context"
	"time"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// LogTransport simulates a provider: it waits Latency, consults Fail, and
// logs the message that would have gone out.
type LogTransport struct {
	Provider string
	Latency  time.Duration
	// Fail, when set, decides whether a delivery faults.
	Fail func(address string, notification models.Notification) error
	log  logger.Logger
}

func NewLogTransport(provider string, log logger.Logger) *LogTransport {
	return &LogTransport{Provider: provider, log: log}
}

func (t *LogTransport) Deliver(ctx context.Context, address string, notification models.Notification) error {
	if t.Latency > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.Latency):
		}
	}

	if t.Fail != nil {
		if err := t.Fail(address, notification); err != nil {
			return err
		}
	}

	t.log.Info("Simulated delivery",
		"provider", t.Provider,
		"notification_id", notification.ID.String(),
		"priority", notification.Priority.String(),
		"address", mask(address),
	)
	return nil
}

// mask keeps the tail of an address so logs stay useful without leaking it.
func mask(address string) string {
	const keep = 4
	if len(address) <= keep {
		return "****"
	}
	return "****" + address[len(address)-keep:]
}
