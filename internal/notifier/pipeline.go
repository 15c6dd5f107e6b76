package notifier

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Rizwank123/emergency_dispatch/internal/delivery"
	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/internal/strategy"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// Kind tells apart the three ways a pipeline run can end.
type Kind int

const (
	// Delivered: the last outcome is the single SENT one.
	Delivered Kind = iota + 1
	// Exhausted: every preferred channel was tried and none succeeded.
	Exhausted
	// OptedOut: the user suppressed this emergency type; no outcomes.
	OptedOut
)

func (k Kind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Exhausted:
		return "exhausted"
	case OptedOut:
		return "opted_out"
	default:
		return "unknown"
	}
}

type Result struct {
	Kind     Kind
	Outcomes []models.DeliveryOutcome
}

// Global statuses stored alongside a notification.
const (
	GlobalSent     = "sent"
	GlobalFailed   = "failed"
	GlobalOptedOut = "opted_out"
	GlobalPending  = "pending"
)

// GlobalStatus summarises the run: "sent" when a channel succeeded.
func (r Result) GlobalStatus() string {
	switch {
	case r.Kind == OptedOut:
		return GlobalOptedOut
	case models.AnySent(r.Outcomes):
		return GlobalSent
	default:
		return GlobalFailed
	}
}

// UnknownChannelPolicy controls preference entries the registry cannot resolve.
type UnknownChannelPolicy string

const (
	// UnknownRecord appends a SKIPPED "not configured" outcome.
	UnknownRecord UnknownChannelPolicy = "record"
	// UnknownIgnore only logs the entry.
	UnknownIgnore UnknownChannelPolicy = "ignore"
)

type PipelineConfig struct {
	DefaultOrder   []string
	UnknownChannel UnknownChannelPolicy
}

type Pipeline struct {
	registry     *delivery.Registry
	retry        *strategy.RetryPolicy
	defaultOrder []string
	unknown      UnknownChannelPolicy
	log          logger.Logger
}

func NewPipeline(registry *delivery.Registry, retry *strategy.RetryPolicy, cfg PipelineConfig, log logger.Logger) *Pipeline {
	order := cfg.DefaultOrder
	if len(order) == 0 {
		order = models.DefaultChannelOrder
	}
	unknown := cfg.UnknownChannel
	if unknown != UnknownIgnore {
		unknown = UnknownRecord
	}
	return &Pipeline{
		registry:     registry,
		retry:        retry,
		defaultOrder: slices.Clone(order),
		unknown:      unknown,
		log:          log,
	}
}

// Run walks the user's channels in preference order and stops at the first
// SENT outcome. Channel attempts are strictly sequential.
func (p *Pipeline) Run(ctx context.Context, n models.Notification, u models.User) Result {
	prefs := u.Preferences.Clone()

	if prefs.OptedOut(n.Type) {
		p.log.Info("User opted out of emergency type",
			"notification_id", n.ID.String(),
			"user_id", u.ID,
			"type", string(n.Type),
		)
		return Result{Kind: OptedOut}
	}

	var outcomes []models.DeliveryOutcome
	for _, name := range p.order(prefs.EnabledChannels) {
		ch, ok := p.registry.Resolve(name)
		if !ok {
			p.log.Warn("Channel not configured",
				"notification_id", n.ID.String(),
				"channel", name,
			)
			if p.unknown == UnknownRecord {
				outcomes = append(outcomes, models.KeyFor(n, u, name).Skipped(fmt.Sprintf("channel %q not configured", name)))
			}
			continue
		}

		out := p.retry.Attempt(ctx, n.Priority, models.KeyFor(n, u, ch.Name()),
			func(ctx context.Context) (models.DeliveryOutcome, error) {
				return ch.Send(ctx, n, u)
			})
		outcomes = append(outcomes, out)

		if out.Status == models.StatusSent {
			p.log.Info("Notification delivered",
				"notification_id", n.ID.String(),
				"user_id", u.ID,
				"channel", out.Channel,
				"attempts", out.Attempts,
				"delivery_id", out.DeliveryID.String(),
			)
			return Result{Kind: Delivered, Outcomes: outcomes}
		}
	}

	p.log.Error("All channels exhausted",
		"notification_id", n.ID.String(),
		"user_id", u.ID,
		"outcomes", len(outcomes),
	)
	return Result{Kind: Exhausted, Outcomes: outcomes}
}

// order normalises names and drops repeats, keeping the first position.
func (p *Pipeline) order(enabled []string) []string {
	if len(enabled) == 0 {
		enabled = p.defaultOrder
	}
	out := make([]string, 0, len(enabled))
	for _, name := range enabled {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
