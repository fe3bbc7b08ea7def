package providers

import (
	"context"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to live
// queue events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.QueueEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.QueueEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelQueuePrefix is the prefix for per-doctor queue channels
const EventChannelQueuePrefix = "queue:"

// GetDoctorQueueChannel returns the channel name for one doctor's line
func GetDoctorQueueChannel(doctorID string) string {
	return EventChannelQueuePrefix + doctorID
}
