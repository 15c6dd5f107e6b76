package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/Rizwank123/emergency_dispatch/internal/config"
	"github.com/Rizwank123/emergency_dispatch/internal/delivery"
	"github.com/Rizwank123/emergency_dispatch/internal/dispatcher"
	"github.com/Rizwank123/emergency_dispatch/internal/metrics"
	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/internal/notifier"
	"github.com/Rizwank123/emergency_dispatch/internal/processor"
	"github.com/Rizwank123/emergency_dispatch/internal/repository"
	"github.com/Rizwank123/emergency_dispatch/internal/strategy"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// NotificationService wires the notifier, dispatcher, worker pool and store
// built from one configuration.
type NotificationService struct {
	cfg        *config.Config
	notifier   *notifier.Notifier
	dispatcher *dispatcher.Dispatcher
	processor  *processor.Processor
	priorities *strategy.PriorityStrategy
	store      repository.Store
	log        logger.Logger
}

// FlushResult is what one drain produced for a single notification.
type FlushResult struct {
	NotificationID uuid.UUID                `json:"notification_id"`
	UserID         string                   `json:"user_id"`
	Result         string                   `json:"result"`
	GlobalStatus   string                   `json:"global_status"`
	Outcomes       []models.DeliveryOutcome `json:"outcomes"`
}

func NewNotificationService(
	cfg *config.Config,
	transports map[string]delivery.Transport,
	store repository.Store,
	m *metrics.Metrics,
	log logger.Logger,
) (*NotificationService, error) {
	registry, err := delivery.BuildRegistry(transports, log, delivery.WithMissingContactStatus(cfg.MissingStatus()))
	if err != nil {
		return nil, fmt.Errorf("failed to build channel registry: %w", err)
	}
	if store == nil {
		store = repository.NewMemoryStore()
	}

	retry := strategy.NewRetryPolicy(cfg.RetryConfig(), log)
	nt := notifier.New(cfg.AppName, registry, retry, cfg.PipelineConfig(), log).WithMetrics(m)
	d := dispatcher.New(log, m)
	proc := processor.NewProcessor(processor.Config{
		Workers:      cfg.QueueWorkers,
		PollInterval: cfg.GetPollInterval(),
	}, d, store, log)

	log.Info("Notification service configured",
		"notifier", nt.Name,
		"channels", registry.Names(),
		"max_retries", retry.Config().MaxRetries,
		"backoff", string(retry.Config().Backoff),
	)

	return &NotificationService{
		cfg:        cfg,
		notifier:   nt,
		dispatcher: d,
		processor:  proc,
		priorities: strategy.NewPriorityStrategy(),
		store:      store,
		log:        log,
	}, nil
}

func (ns *NotificationService) Start(ctx context.Context) {
	ns.log.Info("Starting notification service")
	ns.processor.Start(ctx)
}

// Prepare builds a notification, deriving the priority from the emergency
// type and metadata when p is zero.
func (ns *NotificationService) Prepare(t models.EmergencyType, p models.Priority, message, zone string, metadata map[string]any) (models.Notification, error) {
	if p == 0 {
		p = ns.priorities.DeterminePriority(t, metadata)
	}
	return models.NewNotification(t, p, message, zone, metadata)
}

// Send records the notification as pending and queues it for every user.
func (ns *NotificationService) Send(ctx context.Context, n models.Notification, users ...models.User) error {
	if err := ns.store.SaveNotification(ctx, n, notifier.GlobalPending); err != nil {
		// Delivery matters more than history.
		ns.log.Error("Failed to save notification", "error", err, "id", n.ID.String())
	}

	for _, u := range users {
		if err := ns.dispatcher.Schedule(n, u, ns.notifier); err != nil {
			return fmt.Errorf("schedule %s for %s: %w", n.ID, u.ID, err)
		}
	}
	return nil
}

// Flush drains the queue on the calling goroutine and persists the results.
func (ns *NotificationService) Flush(ctx context.Context) []FlushResult {
	reports := ns.dispatcher.DispatchReport(ctx)
	results := make([]FlushResult, 0, len(reports))
	for _, r := range reports {
		ns.processor.Handle(context.WithoutCancel(ctx), r)
		results = append(results, FlushResult{
			NotificationID: r.Notification.ID,
			UserID:         r.UserID,
			Result:         r.Result.Kind.String(),
			GlobalStatus:   r.Result.GlobalStatus(),
			Outcomes:       r.Result.Outcomes,
		})
	}
	return results
}

// Confirm records that the recipient acknowledged a delivery.
func (ns *NotificationService) Confirm(ctx context.Context, deliveryID uuid.UUID) error {
	if err := ns.store.MarkConfirmed(ctx, deliveryID); err != nil {
		return err
	}
	ns.log.Info("Delivery confirmed", "delivery_id", deliveryID.String())
	return nil
}

func (ns *NotificationService) History(ctx context.Context, notificationID uuid.UUID) ([]models.DeliveryOutcome, error) {
	return ns.store.OutcomesByNotification(ctx, notificationID)
}

func (ns *NotificationService) Pending() int {
	return ns.dispatcher.Pending()
}

func (ns *NotificationService) Stats() map[string]interface{} {
	return ns.processor.GetMetrics()
}

func (ns *NotificationService) Shutdown(ctx context.Context) error {
	ns.log.Info("Shutting down notification service")

	if err := ns.processor.Shutdown(ctx); err != nil {
		ns.log.Error("Error shutting down processor", "error", err)
		return err
	}

	if n := ns.dispatcher.Pending(); n > 0 {
		ns.log.Warn("Jobs left in queue at shutdown", "pending", n)
	}

	ns.log.Info("Notification service shutdown complete")
	return nil
}
