package providers

import (
	"context"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
)

// ChannelSender delivers a rendered notification over one channel. The
// dispatcher selects senders by channel according to the recipient's
// preferences; a sender never sees the raw localized maps.
type ChannelSender interface {
	// Channel identifies which delivery channel this sender serves
	Channel() entities.NotificationChannel

	// Send delivers the message and returns the provider-side message ID
	Send(ctx context.Context, userID, title, body string, data map[string]string) (string, error)
}
