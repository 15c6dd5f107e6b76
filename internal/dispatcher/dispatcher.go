package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/Rizwank123/emergency_dispatch/internal/metrics"
	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/internal/notifier"
	"github.com/Rizwank123/emergency_dispatch/internal/queue"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

var ErrNilRunner = errors.New("notifier is required")

// job is consumed exactly once, then discarded.
type job struct {
	notification models.Notification
	user         models.User
	runner       notifier.Runner
}

// JobReport is what one job produced.
type JobReport struct {
	Notification models.Notification
	UserID       string
	Result       notifier.Result
	Elapsed      time.Duration
}

type Dispatcher struct {
	queue   *queue.Queue[job]
	metrics *metrics.Metrics
	log     logger.Logger
}

// New returns a dispatcher. m may be nil.
func New(log logger.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		queue:   queue.NewQueue[job](log),
		metrics: m,
		log:     log,
	}
}

// Schedule enqueues the pair under the notification's priority. The user is
// snapshotted here, along with the notification metadata, so later edits do
// not affect this job.
func (d *Dispatcher) Schedule(n models.Notification, u models.User, runner notifier.Runner) error {
	if runner == nil {
		return ErrNilRunner
	}
	if !n.Priority.Valid() {
		return fmt.Errorf("%w: %d", models.ErrInvalidPriority, n.Priority)
	}

	n.Metadata = maps.Clone(n.Metadata)
	d.queue.Add(job{notification: n, user: u.Clone(), runner: runner}, n.Priority)
	d.metrics.SetQueueDepth(d.queue.Len())

	d.log.Info("Notification scheduled",
		"notification_id", n.ID.String(),
		"user_id", u.ID,
		"priority", n.Priority.String(),
		"type", string(n.Type),
	)
	return nil
}

func (d *Dispatcher) Pending() int { return d.queue.Len() }

// Dispatch drains the queue highest priority first and returns every outcome
// in processing order. An empty queue yields an empty slice.
func (d *Dispatcher) Dispatch(ctx context.Context) []models.DeliveryOutcome {
	outcomes := make([]models.DeliveryOutcome, 0)
	for _, report := range d.DispatchReport(ctx) {
		outcomes = append(outcomes, report.Result.Outcomes...)
	}
	return outcomes
}

// DispatchReport drains the queue and keeps results grouped per job. ctx is
// only checked between jobs: once popped, a job runs all its retries. Jobs
// left behind by a cancelled ctx stay queued for the next drain.
func (d *Dispatcher) DispatchReport(ctx context.Context) []JobReport {
	reports := make([]JobReport, 0)
	for ctx.Err() == nil {
		report, ok := d.DispatchOne(ctx)
		if !ok {
			break
		}
		reports = append(reports, report)
	}
	if err := ctx.Err(); err != nil && d.queue.Len() > 0 {
		d.log.Warn("Dispatch interrupted, jobs left queued", "pending", d.queue.Len(), "error", err)
	}
	return reports
}

// DispatchOne pops and runs a single job. ok is false when the queue is empty.
func (d *Dispatcher) DispatchOne(ctx context.Context) (JobReport, bool) {
	j, ok := d.queue.Next()
	if !ok {
		return JobReport{}, false
	}
	d.metrics.SetQueueDepth(d.queue.Len())

	start := time.Now()
	result := d.run(context.WithoutCancel(ctx), j)
	elapsed := time.Since(start)

	d.metrics.ObserveJob(j.notification.Priority, result.Kind.String(), elapsed, result.Outcomes)

	return JobReport{
		Notification: j.notification,
		UserID:       j.user.ID,
		Result:       result,
		Elapsed:      elapsed,
	}, true
}

// run isolates a misbehaving runner to its own job.
func (d *Dispatcher) run(ctx context.Context, j job) (result notifier.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Notifier panicked",
				"notification_id", j.notification.ID.String(),
				"user_id", j.user.ID,
				"panic", fmt.Sprint(r),
			)
			key := models.KeyFor(j.notification, j.user, "dispatch")
			result = notifier.Result{
				Kind:     notifier.Exhausted,
				Outcomes: []models.DeliveryOutcome{key.Failed(fmt.Sprintf("dispatch fault: %v", r))},
			}
		}
	}()
	return j.runner.Run(ctx, j.notification, j.user)
}
