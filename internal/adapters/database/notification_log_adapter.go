package database

import (
	"context"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/jmoiron/sqlx"
)

// NotificationLogAdapter persists delivery-log entries via sqlx
type NotificationLogAdapter struct {
	db *sqlx.DB
}

// NewNotificationLogAdapter creates a new notification log adapter
func NewNotificationLogAdapter(client *postgres.Client) repositories.NotificationLogRepository {
	return &NotificationLogAdapter{
		db: sqlx.NewDb(client.DB(), "postgres"),
	}
}

// Create records one delivery attempt outcome
func (a *NotificationLogAdapter) Create(ctx context.Context, record *entities.NotificationRecord) error {
	query := `
		INSERT INTO notification_log (id, user_id, category, channel, title, body, status, error, sent_at, created_at)
		VALUES (:id, :user_id, :category, :channel, :title, :body, :status, :error, :sent_at, :created_at)`

	if _, err := a.db.NamedExecContext(ctx, query, record); err != nil {
		return apperrors.NewInternalError("failed to record notification", err)
	}
	return nil
}

// ListByUser retrieves a user's delivery history, newest first
func (a *NotificationLogAdapter) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []*entities.NotificationRecord
	query := `
		SELECT id, user_id, category, channel, title, body, status, error, sent_at, created_at
		FROM notification_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := a.db.SelectContext(ctx, &records, query, userID, limit); err != nil {
		return nil, apperrors.NewInternalError("failed to list notifications", err)
	}
	return records, nil
}
