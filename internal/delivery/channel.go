package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

var (
	ErrEmptyChannelName  = errors.New("channel name is required")
	ErrNilChannel        = errors.New("channel is nil")
	ErrDuplicateChannel  = errors.New("channel already registered")
	ErrUnknownChannel    = errors.New("unknown channel")
	ErrInvalidStatus     = errors.New("missing-contact status must be FAILED or SKIPPED")
	ErrTransportRequired = errors.New("transport is required")
)

// Channel is a named delivery transport. A returned error is a transport
// fault; the retry policy turns it into a FAILED outcome.
type Channel interface {
	Name() string
	Send(ctx context.Context, notification models.Notification, user models.User) (models.DeliveryOutcome, error)
}

// Transport reaches a provider for one resolved address.
type Transport interface {
	Deliver(ctx context.Context, address string, notification models.Notification) error
}

// ContactChannel is usable only when the user has the contact field it needs.
type ContactChannel struct {
	name          string
	field         models.ContactField
	transport     Transport
	missingStatus models.DeliveryStatus
	log           logger.Logger
}

type ChannelOption func(*ContactChannel)

// WithMissingContactStatus picks the outcome status reported when the user
// lacks the contact field: FAILED (retried) or SKIPPED (not retried).
func WithMissingContactStatus(status models.DeliveryStatus) ChannelOption {
	return func(c *ContactChannel) { c.missingStatus = status }
}

func NewContactChannel(name string, field models.ContactField, transport Transport, log logger.Logger, opts ...ChannelOption) (*ContactChannel, error) {
	name = normalize(name)
	if name == "" {
		return nil, ErrEmptyChannelName
	}
	if transport == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrTransportRequired)
	}
	c := &ContactChannel{
		name:          name,
		field:         field,
		transport:     transport,
		missingStatus: models.StatusFailed,
		log:           log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.missingStatus != models.StatusFailed && c.missingStatus != models.StatusSkipped {
		return nil, fmt.Errorf("%s: %w", name, ErrInvalidStatus)
	}
	return c, nil
}

func NewSMSChannel(transport Transport, log logger.Logger, opts ...ChannelOption) (*ContactChannel, error) {
	return NewContactChannel(models.ChannelSMS, models.ContactPhone, transport, log, opts...)
}

func NewEmailChannel(transport Transport, log logger.Logger, opts ...ChannelOption) (*ContactChannel, error) {
	return NewContactChannel(models.ChannelEmail, models.ContactEmail, transport, log, opts...)
}

func NewPushChannel(transport Transport, log logger.Logger, opts ...ChannelOption) (*ContactChannel, error) {
	return NewContactChannel(models.ChannelPush, models.ContactPushToken, transport, log, opts...)
}

func (c *ContactChannel) Name() string { return c.name }

func (c *ContactChannel) ContactField() models.ContactField { return c.field }

func (c *ContactChannel) Send(ctx context.Context, notification models.Notification, user models.User) (models.DeliveryOutcome, error) {
	key := models.KeyFor(notification, user, c.name)

	address := user.Contact(c.field)
	if address == "" {
		c.log.Debug("Contact field missing",
			"channel", c.name,
			"field", string(c.field),
			"user_id", user.ID,
		)
		return key.WithStatus(c.missingStatus, fmt.Sprintf("%s missing: %s not possible", c.field, c.name)), nil
	}

	if err := c.transport.Deliver(ctx, address, notification); err != nil {
		return models.DeliveryOutcome{}, fmt.Errorf("%s delivery failed: %w", c.name, err)
	}
	return key.Sent(), nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
