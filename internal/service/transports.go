package service

import (
	"context"

	"github.com/Rizwank123/emergency_dispatch/internal/config"
	"github.com/Rizwank123/emergency_dispatch/internal/delivery"
	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// BuildTransports picks a provider per channel. SMS is always simulated;
// e-mail and push use Resend and Firebase when configured and fall back to
// simulated delivery otherwise.
func BuildTransports(ctx context.Context, cfg *config.Config, log logger.Logger) map[string]delivery.Transport {
	transports := map[string]delivery.Transport{
		models.ChannelSMS:   delivery.NewLogTransport("sms-gateway", log),
		models.ChannelEmail: delivery.NewLogTransport("smtp", log),
		models.ChannelPush:  delivery.NewLogTransport("push", log),
	}

	if cfg.ResendEnabled() {
		email, err := delivery.NewResendTransport(cfg.ResendApiKey, cfg.FromEmail, log)
		if err != nil {
			log.Error("Failed to initialize Resend, using simulated delivery", "error", err)
		} else {
			transports[models.ChannelEmail] = email
		}
	}

	if cfg.FirebaseEnabled() {
		push, err := delivery.NewFirebaseTransport(ctx, delivery.FirebaseConfig{
			ProjectID:      cfg.FirebaseProjectID,
			CredentialPath: cfg.FirebaseCredentialPath,
			Title:          cfg.PushTitle,
		}, log)
		if err != nil {
			log.Error("Failed to initialize Firebase, using simulated delivery", "error", err)
		} else {
			transports[models.ChannelPush] = push
		}
	} else {
		log.Debug("Firebase not configured, using simulated push delivery")
	}

	return transports
}
