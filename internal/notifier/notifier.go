package notifier

import (
	"context"
	"time"

	"github.com/Rizwank123/emergency_dispatch/internal/delivery"
	"github.com/Rizwank123/emergency_dispatch/internal/metrics"
	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/internal/strategy"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// Runner executes the delivery pipeline for one (notification, user) pair.
type Runner interface {
	Run(ctx context.Context, n models.Notification, u models.User) Result
}

// Notifier composes a channel registry, a retry policy and the fallback
// pipeline built from them.
type Notifier struct {
	Name     string
	Registry *delivery.Registry
	Retry    *strategy.RetryPolicy
	Pipeline *Pipeline
	metrics  *metrics.Metrics
	log      logger.Logger
}

func New(name string, registry *delivery.Registry, retry *strategy.RetryPolicy, cfg PipelineConfig, log logger.Logger) *Notifier {
	if name == "" {
		name = "emergency"
	}
	return &Notifier{
		Name:     name,
		Registry: registry,
		Retry:    retry,
		Pipeline: NewPipeline(registry, retry, cfg, log),
		log:      log,
	}
}

// WithMetrics makes Run report its count and duration under the notifier name.
func (nt *Notifier) WithMetrics(m *metrics.Metrics) *Notifier {
	nt.metrics = m
	return nt
}

func (nt *Notifier) Run(ctx context.Context, n models.Notification, u models.User) Result {
	start := time.Now()
	result := nt.Pipeline.Run(ctx, n, u)
	elapsed := time.Since(start)

	nt.metrics.ObserveNotifier(nt.Name, result.Kind.String(), elapsed)
	nt.log.Debug("Notifier run",
		"notifier", nt.Name,
		"notification_id", n.ID.String(),
		"user_id", u.ID,
		"result", result.Kind.String(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return result
}
