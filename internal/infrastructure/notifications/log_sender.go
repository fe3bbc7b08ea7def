package notifications

import (
	"context"
	"log"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/google/uuid"
)

// LogSender writes notifications to the application log instead of an
// external provider. It stands in for the SMS and email channels until a
// real gateway is wired for them.
type LogSender struct {
	channel entities.NotificationChannel
}

// NewLogSender creates a log-backed sender for the given channel
func NewLogSender(channel entities.NotificationChannel) *LogSender {
	return &LogSender{channel: channel}
}

// Channel identifies the channel this sender serves
func (s *LogSender) Channel() entities.NotificationChannel {
	return s.channel
}

// Send logs the message and returns a synthetic message ID
func (s *LogSender) Send(ctx context.Context, userID, title, body string, data map[string]string) (string, error) {
	messageID := uuid.New().String()
	log.Printf("[%s] to=%s title=%q body=%q id=%s", s.channel, userID, title, body, messageID)
	return messageID, nil
}
