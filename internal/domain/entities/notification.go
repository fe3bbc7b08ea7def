package entities

import "time"

// NotificationChannel represents the delivery channel
type NotificationChannel string

const (
	ChannelPush  NotificationChannel = "push"
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
)

// NotificationCategory represents the notification purpose
type NotificationCategory string

const (
	NotificationAppointmentConfirmed NotificationCategory = "appointment_confirmed"
	NotificationAppointmentCancelled NotificationCategory = "appointment_cancelled"
	NotificationDoctorCancelled      NotificationCategory = "doctor_cancelled"
	NotificationRescheduled          NotificationCategory = "rescheduled"
	NotificationReminder24h          NotificationCategory = "reminder_24h"
	NotificationReminder1h           NotificationCategory = "reminder_1h"
	NotificationQueueCalled          NotificationCategory = "queue_called"
	NotificationWalletCredited       NotificationCategory = "wallet_credited"
)

// NotificationStatus represents the delivery status
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// NotificationContent is the localized payload handed to the dispatcher.
// Title and Body are always language maps; a bare string never flows
// through the core.
type NotificationContent struct {
	Title LocalizedText     `json:"title"`
	Body  LocalizedText     `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// NotificationRecord is the delivery log entry written per enabled channel
type NotificationRecord struct {
	ID        string               `json:"id" db:"id"`
	UserID    string               `json:"user_id" db:"user_id"`
	Category  NotificationCategory `json:"category" db:"category"`
	Channel   NotificationChannel  `json:"channel" db:"channel"`
	Title     string               `json:"title" db:"title"`
	Body      string               `json:"body" db:"body"`
	Status    NotificationStatus   `json:"status" db:"status"`
	Error     *string              `json:"error,omitempty" db:"error"`
	SentAt    *time.Time           `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt time.Time            `json:"created_at" db:"created_at"`
}

// DispatchResult reports per-channel delivery outcome, best effort
type DispatchResult struct {
	Delivered map[NotificationChannel]bool `json:"delivered"`
}
