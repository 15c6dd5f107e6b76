package delivery

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// fcmClient is the part of *messaging.Client the push transport needs.
type fcmClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FirebaseTransport struct {
	client fcmClient
	title  string
	log    logger.Logger
}

type FirebaseConfig struct {
	ProjectID      string
	CredentialPath string
	// Title is shown above the message body on devices.
	Title string
}

func NewFirebaseTransport(ctx context.Context, cfg FirebaseConfig, log logger.Logger) (*FirebaseTransport, error) {
	if cfg.ProjectID == "" || cfg.CredentialPath == "" {
		return nil, fmt.Errorf("firebase credentials not configured")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, option.WithCredentialsFile(cfg.CredentialPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	log.Info("Firebase transport initialized", "project_id", cfg.ProjectID)
	return newFirebaseTransport(client, cfg.Title, log), nil
}

func newFirebaseTransport(client fcmClient, title string, log logger.Logger) *FirebaseTransport {
	if title == "" {
		title = "Emergency alert"
	}
	return &FirebaseTransport{client: client, title: title, log: log}
}

// Deliver sends one FCM message to the device token.
func (f *FirebaseTransport) Deliver(ctx context.Context, deviceToken string, notification models.Notification) error {
	response, err := f.client.Send(ctx, f.buildMessage(deviceToken, notification))
	if err != nil {
		return fmt.Errorf("fcm send failed: %w", err)
	}

	f.log.Info("FCM notification sent",
		"notification_id", notification.ID.String(),
		"message_id", response,
	)
	return nil
}

func (f *FirebaseTransport) buildMessage(deviceToken string, notification models.Notification) *messaging.Message {
	title := f.title
	if notification.Zone != "" {
		title = fmt.Sprintf("%s (%s)", f.title, notification.Zone)
	}

	data := map[string]string{
		"notification_id": notification.ID.String(),
		"type":            string(notification.Type),
		"priority":        notification.Priority.String(),
	}
	if notification.Zone != "" {
		data["zone"] = notification.Zone
	}

	return &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  notification.Message,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: androidPriority(notification.Priority),
			Notification: &messaging.AndroidNotification{
				Title: title,
				Body:  notification.Message,
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority(notification.Priority)},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  notification.Message,
					},
					Sound: "default",
				},
			},
		},
	}
}

func androidPriority(priority models.Priority) string {
	switch priority {
	case models.PriorityUrgent, models.PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

func apnsPriority(priority models.Priority) string {
	switch priority {
	case models.PriorityUrgent, models.PriorityHigh:
		return "10"
	default:
		return "5"
	}
}
