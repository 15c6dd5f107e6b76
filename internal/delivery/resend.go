package delivery

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

// resendEmails is the part of resend.EmailsSvc the e-mail transport needs.
type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendTransport struct {
	emails    resendEmails
	fromEmail string
	log       logger.Logger
}

func NewResendTransport(apiKey, fromEmail string, log logger.Logger) (*ResendTransport, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key not configured")
	}
	if fromEmail == "" {
		fromEmail = "alerts@resend.dev"
	}
	return &ResendTransport{
		emails:    resend.NewClient(apiKey).Emails,
		fromEmail: fromEmail,
		log:       log,
	}, nil
}

func (s *ResendTransport) Deliver(ctx context.Context, to string, notification models.Notification) error {
	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: emailSubject(notification),
		Html:    emailBody(notification),
		Tags: []resend.Tag{
			{Name: "emergency_type", Value: string(notification.Type)},
			{Name: "priority", Value: notification.Priority.String()},
		},
	}

	sent, err := s.emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	s.log.Info("Email sent",
		"notification_id", notification.ID.String(),
		"resend_id", sent.Id,
	)
	return nil
}

func emailSubject(n models.Notification) string {
	subject := fmt.Sprintf("[%s] %s alert", n.Priority, strings.ToUpper(string(n.Type)))
	if n.Zone != "" {
		subject += " - " + n.Zone
	}
	return subject
}

func emailBody(n models.Notification) string {
	var b strings.Builder
	b.WriteString("<h1>")
	b.WriteString(html.EscapeString(emailSubject(n)))
	b.WriteString("</h1><p>")
	b.WriteString(html.EscapeString(n.Message))
	b.WriteString("</p><p><small>Reference ")
	b.WriteString(n.ID.String())
	b.WriteString("</small></p>")
	return b.String()
}
