package repositories

import (
	"context"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
)

// NotificationLogRepository persists the per-channel delivery log
type NotificationLogRepository interface {
	// Create records one delivery attempt outcome
	Create(ctx context.Context, record *entities.NotificationRecord) error

	// ListByUser retrieves a user's delivery history, newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.NotificationRecord, error)
}
