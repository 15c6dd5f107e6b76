package delivery

import (
	"fmt"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

type constructor func(Transport, logger.Logger, ...ChannelOption) (*ContactChannel, error)

var constructors = map[string]constructor{
	models.ChannelSMS:   NewSMSChannel,
	models.ChannelEmail: NewEmailChannel,
	models.ChannelPush:  NewPushChannel,
}

// BuildRegistry creates a registry holding one channel per entry of
// transports. Every key must name a known channel.
func BuildRegistry(transports map[string]Transport, log logger.Logger, opts ...ChannelOption) (*Registry, error) {
	reg := NewRegistry()
	for name, transport := range transports {
		build, ok := constructors[normalize(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
		}
		ch, err := build(transport, log, opts...)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(ch); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
