package dispatcher

import (
	"context"
	"sync"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rizwank123/emergency_dispatch/internal/delivery"
	"github.com/Rizwank123/emergency_dispatch/internal/metrics"
	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/internal/notifier"
	"github.com/Rizwank123/emergency_dispatch/internal/strategy"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// recordingRunner sends on the first preferred channel and remembers call order.
type recordingRunner struct {
	mu    sync.Mutex
	order []string
	notes []models.Notification
	seen  []models.User
	onRun func()
}

func (r *recordingRunner) Run(_ context.Context, n models.Notification, u models.User) notifier.Result {
	r.mu.Lock()
	r.order = append(r.order, n.Message)
	r.notes = append(r.notes, n)
	r.seen = append(r.seen, u)
	onRun := r.onRun
	r.mu.Unlock()
	if onRun != nil {
		onRun()
	}
	return notifier.Result{
		Kind:     notifier.Delivered,
		Outcomes: []models.DeliveryOutcome{models.KeyFor(n, u, "sms").Sent()},
	}
}

type panickingRunner struct{}

func (panickingRunner) Run(context.Context, models.Notification, models.User) notifier.Result {
	panic("transport wiring missing")
}

func notification(t *testing.T, msg string, p models.Priority) models.Notification {
	t.Helper()
	n, err := models.NewNotification(models.TypeSecurity, p, msg, "", nil)
	require.NoError(t, err)
	return n
}

func user(t *testing.T) models.User {
	t.Helper()
	u, err := models.NewUser("guard-1", "guard@campus.edu", "0612345678", "", models.DefaultPreferences())
	require.NoError(t, err)
	return u
}

func TestDispatcher_PriorityOrder(t *testing.T) {
	d := New(logger.Nop(), nil)
	r := &recordingRunner{}
	u := user(t)

	require.NoError(t, d.Schedule(notification(t, "low", models.PriorityLow), u, r))
	require.NoError(t, d.Schedule(notification(t, "high", models.PriorityHigh), u, r))
	require.NoError(t, d.Schedule(notification(t, "urgent", models.PriorityUrgent), u, r))
	require.NoError(t, d.Schedule(notification(t, "medium", models.PriorityMedium), u, r))

	out := d.Dispatch(context.Background())

	require.Len(t, out, 4)
	assert.Equal(t, []string{"urgent", "high", "medium", "low"}, r.order)
}

func TestDispatcher_FIFOTieBreak(t *testing.T) {
	d := New(logger.Nop(), nil)
	r := &recordingRunner{}
	u := user(t)

	a := notification(t, "A", models.PriorityHigh)
	b := notification(t, "B", models.PriorityHigh)
	c := notification(t, "C", models.PriorityHigh)
	for _, n := range []models.Notification{a, b, c} {
		require.NoError(t, d.Schedule(n, u, r))
	}

	out := d.Dispatch(context.Background())

	require.Len(t, out, 3)
	assert.Equal(t, a.ID, out[0].NotificationID)
	assert.Equal(t, b.ID, out[1].NotificationID)
	assert.Equal(t, c.ID, out[2].NotificationID)
}

func TestDispatcher_IdempotentOnEmptyQueue(t *testing.T) {
	d := New(logger.Nop(), nil)
	r := &recordingRunner{}

	first := d.Dispatch(context.Background())
	assert.NotNil(t, first)
	assert.Empty(t, first)

	require.NoError(t, d.Schedule(notification(t, "once", models.PriorityLow), user(t), r))
	assert.Len(t, d.Dispatch(context.Background()), 1)

	again := d.Dispatch(context.Background())
	assert.Empty(t, again)
	assert.Equal(t, []string{"once"}, r.order)
}

func TestDispatcher_UniqueDeliveryIDs(t *testing.T) {
	d := New(logger.Nop(), nil)

	tr := delivery.NewLogTransport("sim", logger.Nop())
	sms, err := delivery.NewSMSChannel(tr, logger.Nop())
	require.NoError(t, err)
	email, err := delivery.NewEmailChannel(tr, logger.Nop())
	require.NoError(t, err)
	reg := delivery.NewRegistry().MustRegister(sms, email)
	nt := notifier.New("campus", reg, strategy.NewRetryPolicy(strategy.RetryConfig{MaxRetries: 2}, logger.Nop()), notifier.PipelineConfig{}, logger.Nop())

	emailOnly, err := models.NewUser("u-email", "a@campus.edu", "", "", models.UserPreferences{EnabledChannels: []string{"sms", "email"}})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Schedule(notification(t, "drill", models.PriorityMedium), emailOnly, nt))
	}

	out := d.Dispatch(context.Background())
	require.Len(t, out, 10)

	ids := make(map[uuid.UUID]struct{}, len(out))
	for _, o := range out {
		ids[o.DeliveryID] = struct{}{}
	}
	assert.Len(t, ids, len(out))
}

func TestDispatcher_OptOutYieldsNothing(t *testing.T) {
	d := New(logger.Nop(), nil)

	sms, err := delivery.NewSMSChannel(delivery.NewLogTransport("sim", logger.Nop()), logger.Nop())
	require.NoError(t, err)
	nt := notifier.New("campus", delivery.NewRegistry().MustRegister(sms),
		strategy.NewRetryPolicy(strategy.RetryConfig{}, logger.Nop()), notifier.PipelineConfig{}, logger.Nop())

	u, err := models.NewUser("u1", "", "0612345678", "", models.UserPreferences{
		EnabledChannels: []string{"sms"},
		OptOutTypes:     []models.EmergencyType{models.TypeSecurity},
	})
	require.NoError(t, err)

	require.NoError(t, d.Schedule(notification(t, "intrusion", models.PriorityUrgent), u, nt))

	reports := d.DispatchReport(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, notifier.OptedOut, reports[0].Result.Kind)
	assert.Empty(t, reports[0].Result.Outcomes)
}

func TestDispatcher_ScheduleErrors(t *testing.T) {
	d := New(logger.Nop(), nil)

	err := d.Schedule(notification(t, "x", models.PriorityLow), user(t), nil)
	assert.ErrorIs(t, err, ErrNilRunner)

	n := notification(t, "x", models.PriorityLow)
	n.Priority = 0
	err = d.Schedule(n, user(t), &recordingRunner{})
	assert.ErrorIs(t, err, models.ErrInvalidPriority)

	assert.Zero(t, d.Pending())
}

func TestDispatcher_PanicIsolatedToJob(t *testing.T) {
	d := New(logger.Nop(), nil)
	r := &recordingRunner{}
	u := user(t)

	require.NoError(t, d.Schedule(notification(t, "bad", models.PriorityUrgent), u, panickingRunner{}))
	require.NoError(t, d.Schedule(notification(t, "good", models.PriorityLow), u, r))

	reports := d.DispatchReport(context.Background())

	require.Len(t, reports, 2)
	assert.Equal(t, notifier.Exhausted, reports[0].Result.Kind)
	require.Len(t, reports[0].Result.Outcomes, 1)
	assert.Equal(t, models.StatusFailed, reports[0].Result.Outcomes[0].Status)
	assert.Contains(t, reports[0].Result.Outcomes[0].Error, "transport wiring missing")
	assert.Equal(t, notifier.Delivered, reports[1].Result.Kind)
}

func TestDispatcher_UserSnapshotAtSchedule(t *testing.T) {
	d := New(logger.Nop(), nil)
	r := &recordingRunner{}
	u := user(t)

	require.NoError(t, d.Schedule(notification(t, "x", models.PriorityLow), u, r))
	u.Preferences.EnabledChannels[0] = "push"

	d.Dispatch(context.Background())

	require.Len(t, r.seen, 1)
	assert.Equal(t, "sms", r.seen[0].Preferences.EnabledChannels[0])
}

func TestDispatcher_MetadataSnapshotAtSchedule(t *testing.T) {
	d := New(logger.Nop(), nil)
	r := &recordingRunner{}

	meta := map[string]any{"building": "B"}
	n, err := models.NewNotification(models.TypeSecurity, models.PriorityHigh, "lockdown", "", meta)
	require.NoError(t, err)
	require.NoError(t, d.Schedule(n, user(t), r))

	n.Metadata["building"] = "C"
	n.Metadata["is_urgent"] = true

	d.Dispatch(context.Background())

	require.Len(t, r.notes, 1)
	assert.Equal(t, map[string]any{"building": "B"}, r.notes[0].Metadata)
}

func TestDispatcher_CancelledContextLeavesJobsQueued(t *testing.T) {
	d := New(logger.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	r := &recordingRunner{onRun: cancel}
	u := user(t)

	require.NoError(t, d.Schedule(notification(t, "first", models.PriorityHigh), u, r))
	require.NoError(t, d.Schedule(notification(t, "second", models.PriorityLow), u, r))

	out := d.Dispatch(ctx)
	assert.Len(t, out, 1, "the in-flight job completes")
	assert.Equal(t, 1, d.Pending())

	out = d.Dispatch(context.Background())
	assert.Len(t, out, 1)
	assert.Equal(t, []string{"first", "second"}, r.order)
}

func TestDispatcher_ScheduleDuringDispatch(t *testing.T) {
	d := New(logger.Nop(), nil)
	u := user(t)

	late := &recordingRunner{}
	var once sync.Once
	r := &recordingRunner{}
	r.onRun = func() {
		once.Do(func() {
			require.NoError(t, d.Schedule(notification(t, "late", models.PriorityUrgent), u, late))
		})
	}

	require.NoError(t, d.Schedule(notification(t, "early", models.PriorityLow), u, r))

	out := d.Dispatch(context.Background())
	// The queue was not yet observed empty when "late" arrived, so it is drained too.
	assert.Len(t, out, 2)
	assert.Equal(t, []string{"late"}, late.order)
}

func TestDispatcher_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	d := New(logger.Nop(), m)
	r := &recordingRunner{}

	require.NoError(t, d.Schedule(notification(t, "a", models.PriorityUrgent), user(t), r))
	require.NoError(t, d.Schedule(notification(t, "b", models.PriorityUrgent), user(t), r))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueueDepth))

	d.Dispatch(context.Background())

	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("URGENT", "delivered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("sms", "SENT")))
}
