package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

const DefaultMaxRetries = 3

type RetryConfig struct {
	// MaxRetries is the number of invocations per channel, not extra retries.
	MaxRetries  int
	Delay       time.Duration
	MaxDelay    time.Duration
	Backoff     Backoff
	UrgentBonus int
}

type RetryPolicy struct {
	cfg   RetryConfig
	log   logger.Logger
	sleep func(time.Duration)
}

// AttemptFunc performs one delivery try on a single channel.
type AttemptFunc func(ctx context.Context) (models.DeliveryOutcome, error)

func NewRetryPolicy(cfg RetryConfig, log logger.Logger) *RetryPolicy {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.UrgentBonus < 0 {
		cfg.UrgentBonus = 0
	}
	if cfg.Backoff == "" {
		cfg.Backoff = BackoffFixed
	}
	return &RetryPolicy{cfg: cfg, log: log, sleep: time.Sleep}
}

func (rs *RetryPolicy) Config() RetryConfig { return rs.cfg }

// Attempts is the invocation budget for a notification of the given priority.
func (rs *RetryPolicy) Attempts(priority models.Priority) int {
	n := rs.cfg.MaxRetries
	if priority == models.PriorityUrgent {
		n += rs.cfg.UrgentBonus
	}
	return max(n, 1)
}

// CalculateDelay returns the wait before attempt retryCount+2.
func (rs *RetryPolicy) CalculateDelay(retryCount int) time.Duration {
	if rs.cfg.Delay <= 0 {
		return 0
	}
	if rs.cfg.Backoff != BackoffExponential {
		return rs.cfg.Delay
	}

	delay := time.Duration(float64(rs.cfg.Delay) * math.Pow(2, float64(retryCount)))
	if rs.cfg.MaxDelay > 0 && (delay > rs.cfg.MaxDelay || delay <= 0) {
		delay = rs.cfg.MaxDelay
	}
	return delay
}

// Attempt invokes fn until it yields a non-FAILED outcome or the budget runs
// out, and returns the last outcome. Errors and panics from fn become FAILED
// outcomes for key and are retried like any other failure. It never fails.
func (rs *RetryPolicy) Attempt(ctx context.Context, priority models.Priority, key models.OutcomeKey, fn AttemptFunc) models.DeliveryOutcome {
	budget := rs.Attempts(priority)

	var last models.DeliveryOutcome
	for attempt := 1; attempt <= budget; attempt++ {
		last = rs.invoke(ctx, key, fn)
		last.Attempts = attempt

		if last.Status != models.StatusFailed {
			return last
		}

		rs.log.Warn("Delivery attempt failed",
			"notification_id", key.NotificationID.String(),
			"channel", key.Channel,
			"attempt", attempt,
			"budget", budget,
			"error", last.Error,
		)

		if attempt < budget {
			if delay := rs.CalculateDelay(attempt - 1); delay > 0 {
				rs.sleep(delay)
			}
		}
	}
	return last
}

func (rs *RetryPolicy) invoke(ctx context.Context, key models.OutcomeKey, fn AttemptFunc) (out models.DeliveryOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = key.Failed(fmt.Sprintf("panic: %v", r))
		}
	}()

	out, err := fn(ctx)
	if err != nil {
		return key.Failed(err.Error())
	}
	// Only status and error come from the channel; identity, delivery id and
	// timestamp are always minted from key.
	switch out.Status {
	case models.StatusSent, models.StatusFailed, models.StatusSkipped:
		return key.WithStatus(out.Status, out.Error)
	default:
		return key.Failed(fmt.Sprintf("channel returned invalid status %q", out.Status))
	}
}
