package providers

import (
	"context"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
)

// Dispatcher is the multi-channel notification boundary. Implementations
// resolve the recipient's language and channel preferences, silently no-op
// per channel when disabled or absent, and never return an error: dispatch
// failures must not abort or roll back the operation that triggered them.
type Dispatcher interface {
	// Dispatch sends synchronously and reports per-channel outcome
	Dispatch(ctx context.Context, userID string, category entities.NotificationCategory, content *entities.NotificationContent) *entities.DispatchResult

	// DispatchAsync enqueues the send and returns immediately; the caller
	// does not observe delivery.
	DispatchAsync(userID string, category entities.NotificationCategory, content *entities.NotificationContent)
}
