package processor

import (
	"context"
	"sync"
	"time"

	"github.com/Rizwank123/emergency_dispatch/internal/dispatcher"
	"github.com/Rizwank123/emergency_dispatch/internal/notifier"
	"github.com/Rizwank123/emergency_dispatch/internal/repository"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// JobSource hands out one dispatched job at a time.
type JobSource interface {
	DispatchOne(ctx context.Context) (dispatcher.JobReport, bool)
}

type Config struct {
	Workers        int
	PollInterval   time.Duration
	ReportInterval time.Duration
}

// Processor runs a pool of workers that drain a JobSource and persist each
// job's outcomes. Channel attempts inside one job stay sequential.
type Processor struct {
	cfg     Config
	source  JobSource
	store   repository.Store
	log     logger.Logger
	wg      sync.WaitGroup
	metrics *ProcessorMetrics
}

// ProcessorMetrics tracks processor statistics
type ProcessorMetrics struct {
	TotalProcessed     int64
	TotalDelivered     int64
	TotalExhausted     int64
	TotalOptedOut      int64
	TotalOutcomes      int64
	TotalStoreErrors   int64
	AverageProcessTime time.Duration
	mu                 sync.RWMutex
}

func NewProcessor(cfg Config, source JobSource, store repository.Store, log logger.Logger) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 30 * time.Second
	}
	return &Processor{
		cfg:     cfg,
		source:  source,
		store:   store,
		log:     log,
		metrics: &ProcessorMetrics{},
	}
}

// Start launches the workers. They stop when ctx is cancelled; a job that
// is already running finishes first.
func (p *Processor) Start(ctx context.Context) {
	p.log.Info("Starting dispatch processor",
		"workers", p.cfg.Workers,
		"poll_interval", p.cfg.PollInterval.String(),
	)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	go p.reportMetrics(ctx)
}

func (p *Processor) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	p.log.Debug("Worker started", "worker_id", workerID)

	for {
		if ctx.Err() != nil {
			p.log.Debug("Worker stopping", "worker_id", workerID)
			return
		}

		report, ok := p.source.DispatchOne(ctx)
		if !ok {
			select {
			case <-ctx.Done():
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}

		p.Handle(context.WithoutCancel(ctx), report)
	}
}

// Handle persists a finished job and counts it. Workers call it for every
// job; callers draining the dispatcher directly can reuse it.
func (p *Processor) Handle(ctx context.Context, report dispatcher.JobReport) {
	p.persist(ctx, report)
	p.updateMetrics(report)
}

// persist writes the outcomes, then the notification's global status.
func (p *Processor) persist(ctx context.Context, report dispatcher.JobReport) {
	if p.store == nil {
		return
	}

	if err := p.store.SaveOutcomes(ctx, report.Result.Outcomes); err != nil {
		p.log.Error("Failed to save delivery outcomes",
			"error", err,
			"notification_id", report.Notification.ID.String(),
			"user_id", report.UserID,
		)
		p.countStoreError()
	}

	status := report.Result.GlobalStatus()
	if err := p.store.SaveNotification(ctx, report.Notification, status); err != nil {
		p.log.Error("Failed to save notification status",
			"error", err,
			"notification_id", report.Notification.ID.String(),
			"global_status", status,
		)
		p.countStoreError()
	}
}

func (p *Processor) countStoreError() {
	p.metrics.mu.Lock()
	p.metrics.TotalStoreErrors++
	p.metrics.mu.Unlock()
}

func (p *Processor) updateMetrics(report dispatcher.JobReport) {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	p.metrics.TotalProcessed++
	p.metrics.TotalOutcomes += int64(len(report.Result.Outcomes))
	switch report.Result.Kind {
	case notifier.Delivered:
		p.metrics.TotalDelivered++
	case notifier.OptedOut:
		p.metrics.TotalOptedOut++
	default:
		p.metrics.TotalExhausted++
	}

	if p.metrics.AverageProcessTime == 0 {
		p.metrics.AverageProcessTime = report.Elapsed
	} else {
		p.metrics.AverageProcessTime = (p.metrics.AverageProcessTime + report.Elapsed) / 2
	}
}

// reportMetrics periodically reports processor metrics
func (p *Processor) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.log.Info("Processor metrics", p.snapshot()...)
		}
	}
}

func (p *Processor) snapshot() []interface{} {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return []interface{}{
		"total_processed", p.metrics.TotalProcessed,
		"total_delivered", p.metrics.TotalDelivered,
		"total_exhausted", p.metrics.TotalExhausted,
		"total_opted_out", p.metrics.TotalOptedOut,
		"total_outcomes", p.metrics.TotalOutcomes,
		"total_store_errors", p.metrics.TotalStoreErrors,
		"avg_process_time_ms", p.metrics.AverageProcessTime.Milliseconds(),
	}
}

// GetMetrics returns current processor metrics
func (p *Processor) GetMetrics() map[string]interface{} {
	kv := p.snapshot()
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

// Shutdown waits for the workers started with a now-cancelled context.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.log.Info("Shutting down processor...")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("Processor shutdown complete")
		p.log.Info("Final processor metrics", p.snapshot()...)
		return nil
	case <-ctx.Done():
		p.log.Error("Processor shutdown timeout")
		return ctx.Err()
	}
}
