package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rizwank123/emergency_dispatch/internal/delivery"
	"github.com/Rizwank123/emergency_dispatch/internal/metrics"
	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/internal/strategy"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// stubChannel returns results[i] on call i, repeating the last entry.
type stubChannel struct {
	name    string
	results []stubResult
	calls   int
}

type stubResult struct {
	status models.DeliveryStatus
	err    error
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Send(_ context.Context, n models.Notification, u models.User) (models.DeliveryOutcome, error) {
	r := s.results[min(s.calls, len(s.results)-1)]
	s.calls++
	if r.err != nil {
		return models.DeliveryOutcome{}, r.err
	}
	return models.KeyFor(n, u, s.name).WithStatus(r.status, ""), nil
}

func always(name string, status models.DeliveryStatus) *stubChannel {
	return &stubChannel{name: name, results: []stubResult{{status: status}}}
}

func newNotifier(t *testing.T, cfg PipelineConfig, channels ...delivery.Channel) *Notifier {
	t.Helper()
	reg := delivery.NewRegistry().MustRegister(channels...)
	retry := strategy.NewRetryPolicy(strategy.RetryConfig{MaxRetries: 3}, logger.Nop())
	return New("test", reg, retry, cfg, logger.Nop())
}

func newPair(t *testing.T, typ models.EmergencyType, prefs models.UserPreferences) (models.Notification, models.User) {
	t.Helper()
	n, err := models.NewNotification(typ, models.PriorityHigh, "Evacuate building B", "", nil)
	require.NoError(t, err)
	u, err := models.NewUser("student-42", "", "0612345678", "", prefs)
	require.NoError(t, err)
	return n, u
}

func prefs(channels ...string) models.UserPreferences {
	return models.UserPreferences{EnabledChannels: channels}
}

func TestPipeline_FirstChannelSucceeds(t *testing.T) {
	sms := always("sms", models.StatusSent)
	email := always("email", models.StatusSent)
	push := always("push", models.StatusSent)
	nt := newNotifier(t, PipelineConfig{}, sms, email, push)
	n, u := newPair(t, models.TypeSecurity, prefs("sms", "email", "push"))

	res := nt.Run(context.Background(), n, u)

	require.Equal(t, Delivered, res.Kind)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "sms", res.Outcomes[0].Channel)
	assert.Equal(t, models.StatusSent, res.Outcomes[0].Status)
	assert.Zero(t, email.calls)
	assert.Zero(t, push.calls)
}

func TestPipeline_FallsBackToEmail(t *testing.T) {
	sms := always("sms", models.StatusFailed)
	email := always("email", models.StatusSent)
	push := always("push", models.StatusSent)
	nt := newNotifier(t, PipelineConfig{}, sms, email, push)
	n, u := newPair(t, models.TypeWeather, prefs("sms", "email", "push"))

	res := nt.Run(context.Background(), n, u)

	require.Equal(t, Delivered, res.Kind)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "sms", res.Outcomes[0].Channel)
	assert.Equal(t, models.StatusFailed, res.Outcomes[0].Status)
	assert.Equal(t, 3, res.Outcomes[0].Attempts)
	assert.Equal(t, "email", res.Outcomes[1].Channel)
	assert.Equal(t, models.StatusSent, res.Outcomes[1].Status)
	assert.Equal(t, 3, sms.calls)
	assert.Zero(t, push.calls)
}

func TestPipeline_OptedOut(t *testing.T) {
	sms := always("sms", models.StatusSent)
	nt := newNotifier(t, PipelineConfig{}, sms)
	p := prefs("sms")
	p.OptOutTypes = []models.EmergencyType{models.TypeAcademic}
	n, u := newPair(t, models.TypeAcademic, p)

	res := nt.Run(context.Background(), n, u)

	assert.Equal(t, OptedOut, res.Kind)
	assert.Empty(t, res.Outcomes)
	assert.Zero(t, sms.calls)
}

func TestPipeline_RetriesThenSucceeds(t *testing.T) {
	sms := &stubChannel{name: "sms", results: []stubResult{
		{status: models.StatusFailed},
		{err: errors.New("carrier timeout")},
		{status: models.StatusSent},
	}}
	nt := newNotifier(t, PipelineConfig{}, sms)
	n, u := newPair(t, models.TypeHealth, prefs("sms"))

	res := nt.Run(context.Background(), n, u)

	require.Equal(t, Delivered, res.Kind)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, models.StatusSent, res.Outcomes[0].Status)
	assert.Equal(t, 3, sms.calls)
}

func TestPipeline_Exhausted(t *testing.T) {
	sms := always("sms", models.StatusFailed)
	email := &stubChannel{name: "email", results: []stubResult{{err: errors.New("smtp down")}}}
	nt := newNotifier(t, PipelineConfig{}, sms, email)
	n, u := newPair(t, models.TypeInfrastructure, prefs("sms", "email"))

	res := nt.Run(context.Background(), n, u)

	require.Equal(t, Exhausted, res.Kind)
	require.Len(t, res.Outcomes, 2)
	assert.False(t, models.AnySent(res.Outcomes))
	assert.Equal(t, "smtp down", res.Outcomes[1].Error)
}

func TestPipeline_UnknownChannels(t *testing.T) {
	t.Run("recorded as skipped by default", func(t *testing.T) {
		push := always("push", models.StatusSent)
		nt := newNotifier(t, PipelineConfig{}, push)
		n, u := newPair(t, models.TypeOther, prefs("pager", "push"))

		res := nt.Run(context.Background(), n, u)

		require.Equal(t, Delivered, res.Kind)
		require.Len(t, res.Outcomes, 2)
		assert.Equal(t, "pager", res.Outcomes[0].Channel)
		assert.Equal(t, models.StatusSkipped, res.Outcomes[0].Status)
		assert.Contains(t, res.Outcomes[0].Error, "not configured")
		assert.Equal(t, 1, res.Outcomes[0].Attempts)
	})

	t.Run("ignored when configured", func(t *testing.T) {
		push := always("push", models.StatusSent)
		nt := newNotifier(t, PipelineConfig{UnknownChannel: UnknownIgnore}, push)
		n, u := newPair(t, models.TypeOther, prefs("pager", "push"))

		res := nt.Run(context.Background(), n, u)

		require.Len(t, res.Outcomes, 1)
		assert.Equal(t, "push", res.Outcomes[0].Channel)
	})
}

func TestPipeline_SkippedChannelFallsThrough(t *testing.T) {
	sms := always("sms", models.StatusSkipped)
	email := always("email", models.StatusSent)
	nt := newNotifier(t, PipelineConfig{}, sms, email)
	n, u := newPair(t, models.TypeOther, prefs("sms", "email"))

	res := nt.Run(context.Background(), n, u)

	require.Equal(t, Delivered, res.Kind)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, 1, sms.calls, "SKIPPED is not retried")
}

func TestPipeline_DefaultOrderAndDuplicates(t *testing.T) {
	sms := always("sms", models.StatusFailed)
	email := always("email", models.StatusFailed)
	push := always("push", models.StatusFailed)

	t.Run("empty preferences use the default order", func(t *testing.T) {
		nt := newNotifier(t, PipelineConfig{}, sms, email, push)
		n, u := newPair(t, models.TypeOther, prefs())

		res := nt.Run(context.Background(), n, u)

		require.Len(t, res.Outcomes, 3)
		assert.Equal(t, []string{"sms", "email", "push"}, channelsOf(res.Outcomes))
	})

	t.Run("configured default order", func(t *testing.T) {
		nt := newNotifier(t, PipelineConfig{DefaultOrder: []string{"push", "sms"}}, sms, email, push)
		n, u := newPair(t, models.TypeOther, prefs())

		res := nt.Run(context.Background(), n, u)

		assert.Equal(t, []string{"push", "sms"}, channelsOf(res.Outcomes))
	})

	t.Run("duplicates tried once", func(t *testing.T) {
		nt := newNotifier(t, PipelineConfig{}, sms, email, push)
		n, u := newPair(t, models.TypeOther, prefs("email", "SMS", "email", "sms"))

		res := nt.Run(context.Background(), n, u)

		assert.Equal(t, []string{"email", "sms"}, channelsOf(res.Outcomes))
	})
}

func TestPipeline_NeverTwoSent(t *testing.T) {
	nt := newNotifier(t, PipelineConfig{},
		always("sms", models.StatusSent),
		always("email", models.StatusSent),
		always("push", models.StatusSent),
	)
	n, u := newPair(t, models.TypeSecurity, prefs("push", "email", "sms"))

	res := nt.Run(context.Background(), n, u)

	sent := 0
	for _, o := range res.Outcomes {
		if o.Status == models.StatusSent {
			sent++
		}
	}
	assert.Equal(t, 1, sent)
}

func TestPipeline_WithRealContactChannels(t *testing.T) {
	tr := delivery.NewLogTransport("sim", logger.Nop())
	sms, err := delivery.NewSMSChannel(tr, logger.Nop())
	require.NoError(t, err)
	email, err := delivery.NewEmailChannel(tr, logger.Nop())
	require.NoError(t, err)
	push, err := delivery.NewPushChannel(tr, logger.Nop())
	require.NoError(t, err)

	nt := newNotifier(t, PipelineConfig{}, sms, email, push)

	n, err := models.NewNotification(models.TypeSecurity, models.PriorityUrgent, "Lockdown", "", nil)
	require.NoError(t, err)
	u, err := models.NewUser("staff-1", "staff@campus.edu", "", "", prefs("sms", "email", "push"))
	require.NoError(t, err)

	res := nt.Run(context.Background(), n, u)

	require.Equal(t, Delivered, res.Kind)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, models.StatusFailed, res.Outcomes[0].Status)
	assert.Contains(t, res.Outcomes[0].Error, "phone missing")
	assert.Equal(t, "email", res.Outcomes[1].Channel)
	assert.Equal(t, models.StatusSent, res.Outcomes[1].Status)
}

// bareChannel builds its outcome by hand with only a status set.
type bareChannel struct {
	name   string
	status models.DeliveryStatus
}

func (b bareChannel) Name() string { return b.name }

func (b bareChannel) Send(context.Context, models.Notification, models.User) (models.DeliveryOutcome, error) {
	return models.DeliveryOutcome{Status: b.status, Error: "carrier note"}, nil
}

func TestPipeline_OutcomeIdentityComesFromJob(t *testing.T) {
	sms := bareChannel{name: "sms", status: models.StatusFailed}
	email := bareChannel{name: "email", status: models.StatusSent}
	nt := newNotifier(t, PipelineConfig{}, sms, email)

	ids := make(map[uuid.UUID]struct{})
	for i := 0; i < 3; i++ {
		n, u := newPair(t, models.TypeSecurity, prefs("sms", "email"))
		res := nt.Run(context.Background(), n, u)

		require.Equal(t, Delivered, res.Kind)
		require.Len(t, res.Outcomes, 2)
		for _, o := range res.Outcomes {
			assert.False(t, o.DeliveryID.IsNil())
			assert.Equal(t, n.ID, o.NotificationID)
			assert.Equal(t, u.ID, o.UserID)
			assert.False(t, o.Timestamp.IsZero())
			assert.Equal(t, "carrier note", o.Error)
			ids[o.DeliveryID] = struct{}{}
		}
		assert.Equal(t, []string{"sms", "email"}, channelsOf(res.Outcomes))
		assert.Equal(t, 3, res.Outcomes[0].Attempts)
	}
	assert.Len(t, ids, 6)
}

func TestPipeline_InvalidChannelStatusIsFailure(t *testing.T) {
	sms := bareChannel{name: "sms"}
	nt := newNotifier(t, PipelineConfig{}, sms)
	n, u := newPair(t, models.TypeWeather, prefs("sms"))

	res := nt.Run(context.Background(), n, u)

	require.Equal(t, Exhausted, res.Kind)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, models.StatusFailed, res.Outcomes[0].Status)
	assert.Contains(t, res.Outcomes[0].Error, "invalid status")
}

func TestNotifier_TracksRuns(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	nt := newNotifier(t, PipelineConfig{}, always("sms", models.StatusSent)).WithMetrics(m)

	n, u := newPair(t, models.TypeWeather, prefs("sms"))
	nt.Run(context.Background(), n, u)
	nt.Run(context.Background(), n, u)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotifierRuns.WithLabelValues("test", "delivered")))
}

func TestResult_GlobalStatus(t *testing.T) {
	key := models.OutcomeKey{UserID: "u1", Channel: "sms"}

	assert.Equal(t, GlobalSent, Result{Kind: Delivered, Outcomes: []models.DeliveryOutcome{key.Failed("x"), key.Sent()}}.GlobalStatus())
	assert.Equal(t, GlobalFailed, Result{Kind: Exhausted, Outcomes: []models.DeliveryOutcome{key.Failed("x")}}.GlobalStatus())
	assert.Equal(t, GlobalFailed, Result{Kind: Exhausted}.GlobalStatus())
	assert.Equal(t, GlobalOptedOut, Result{Kind: OptedOut}.GlobalStatus())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "delivered", Delivered.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "opted_out", OptedOut.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func channelsOf(outcomes []models.DeliveryOutcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Channel)
	}
	return out
}
