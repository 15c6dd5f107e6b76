package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rizwank123/emergency_dispatch/internal/models"
	"github.com/Rizwank123/emergency_dispatch/pkg/logger"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

func NewNotificationRepository(pool *pgxpool.Pool, log logger.Logger) *NotificationRepository {
	return &NotificationRepository{
		pool: pool,
		log:  log,
	}
}

// SaveNotification inserts the notification or refreshes its global status.
func (r *NotificationRepository) SaveNotification(ctx context.Context, n models.Notification, globalStatus string) error {
	query := `
		INSERT INTO notifications (
			notification_id, emergency_type, priority, message, zone,
			metadata, global_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (notification_id) DO UPDATE SET
			global_status = CASE
				WHEN notifications.global_status = 'sent' THEN 'sent'
				ELSE EXCLUDED.global_status
			END
	`

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(
		ctx, query,
		n.ID,
		string(n.Type),
		n.Priority.String(),
		n.Message,
		n.Zone,
		metadata,
		globalStatus,
		n.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to save notification", "error", err, "id", n.ID.String())
		return err
	}

	r.log.Debug("Notification saved to database", "id", n.ID.String(), "global_status", globalStatus)
	return nil
}

// SaveOutcomes writes all outcomes in a single transaction.
func (r *NotificationRepository) SaveOutcomes(ctx context.Context, outcomes []models.DeliveryOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO delivery_outcomes (
			delivery_id, notification_id, user_id, channel, status,
			attempts, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (delivery_id) DO UPDATE SET
			status = CASE
				WHEN delivery_outcomes.status = 'CONFIRMED' THEN 'CONFIRMED'
				ELSE EXCLUDED.status
			END,
			attempts = EXCLUDED.attempts,
			error_message = EXCLUDED.error_message
	`

	batch := &pgx.Batch{}
	for _, o := range outcomes {
		batch.Queue(
			query,
			o.DeliveryID,
			o.NotificationID,
			o.UserID,
			o.Channel,
			string(o.Status),
			o.Attempts,
			o.Error,
			o.Timestamp,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range outcomes {
		if _, err := br.Exec(); err != nil {
			br.Close()
			r.log.Error("Failed to save delivery outcome", "error", err)
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *NotificationRepository) MarkConfirmed(ctx context.Context, deliveryID uuid.UUID) error {
	query := `
		UPDATE delivery_outcomes
		SET status = $1, confirmed_at = now()
		WHERE delivery_id = $2 AND status IN ($3, $4)
	`

	tag, err := r.pool.Exec(ctx, query,
		string(models.StatusConfirmed),
		deliveryID,
		string(models.StatusSent),
		string(models.StatusPendingConfirmation),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var status string
	err = r.pool.QueryRow(ctx, `SELECT status FROM delivery_outcomes WHERE delivery_id = $1`, deliveryID).Scan(&status)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrDeliveryNotFound, deliveryID)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: status %s", ErrNotConfirmable, status)
}

func (r *NotificationRepository) OutcomesByNotification(ctx context.Context, notificationID uuid.UUID) ([]models.DeliveryOutcome, error) {
	query := `
		SELECT delivery_id, notification_id, user_id, channel, status,
		       attempts, error_message, created_at
		FROM delivery_outcomes
		WHERE notification_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, notificationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []models.DeliveryOutcome
	for rows.Next() {
		var (
			o      models.DeliveryOutcome
			status string
		)
		if err := rows.Scan(
			&o.DeliveryID,
			&o.NotificationID,
			&o.UserID,
			&o.Channel,
			&status,
			&o.Attempts,
			&o.Error,
			&o.Timestamp,
		); err != nil {
			return nil, err
		}
		o.Status = models.DeliveryStatus(status)
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}
