package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/internal/service"
)

var sendFlags struct {
	alertType string
	priority  string
	message   string
	zone      string
	urgent    bool
	user      userRequest
	channels  string
	optOut    string
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Dispatch one notification to one user and print the outcomes",
	Example: `  dispatch send --type security --message "Lockdown in building B" \
    --user-id guard-1 --phone 0612345678 --email guard@campus.edu`,
	RunE: runSend,
}

func init() {
	f := sendCmd.Flags()
	f.StringVar(&sendFlags.alertType, "type", string(models.TypeOther), "emergency type (security, weather, health, infrastructure, academic, other)")
	f.StringVar(&sendFlags.priority, "priority", "", "LOW, MEDIUM, HIGH, URGENT or 1-4 (default derived from type)")
	f.StringVar(&sendFlags.message, "message", "", "notification text")
	f.StringVar(&sendFlags.zone, "zone", "", "affected zone")
	f.BoolVar(&sendFlags.urgent, "urgent", false, "force URGENT when no priority is given")
	f.StringVar(&sendFlags.user.ID, "user-id", "", "recipient id")
	f.StringVar(&sendFlags.user.Email, "email", "", "recipient e-mail")
	f.StringVar(&sendFlags.user.Phone, "phone", "", "recipient phone")
	f.StringVar(&sendFlags.user.PushToken, "push-token", "", "recipient device token")
	f.StringVar(&sendFlags.channels, "channels", "", "preferred channels in order, comma separated")
	f.StringVar(&sendFlags.optOut, "opt-out", "", "emergency types the recipient opted out of, comma separated")
	_ = sendCmd.MarkFlagRequired("message")
	_ = sendCmd.MarkFlagRequired("user-id")
}

func runSend(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx := cmd.Context()

	t, err := parseType(sendFlags.alertType)
	if err != nil {
		return err
	}
	p, err := parsePriority(sendFlags.priority)
	if err != nil {
		return err
	}
	var metadata map[string]any
	if sendFlags.urgent {
		metadata = map[string]any{"is_urgent": true}
	}

	ur := sendFlags.user
	ur.Channels = splitList(sendFlags.channels)
	ur.OptOut = splitList(sendFlags.optOut)
	u, err := ur.toUser()
	if err != nil {
		return err
	}

	svc, err := service.NewNotificationService(cfg, service.BuildTransports(ctx, cfg, log), nil, nil, log)
	if err != nil {
		return err
	}

	n, err := svc.Prepare(t, p, sendFlags.message, sendFlags.zone, metadata)
	if err != nil {
		return err
	}
	if err := svc.Send(ctx, n, u); err != nil {
		return err
	}

	results := svc.Flush(ctx)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to write outcomes: %w", err)
	}
	return nil
}
