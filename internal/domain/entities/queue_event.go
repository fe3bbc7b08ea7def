package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// QueueEventType represents the type of live queue event
type QueueEventType string

const (
	QueueEventJoined    QueueEventType = "joined"
	QueueEventLeft      QueueEventType = "left"
	QueueEventCalled    QueueEventType = "called"
	QueueEventHeld      QueueEventType = "held"
	QueueEventResumed   QueueEventType = "resumed"
	QueueEventWalkIn    QueueEventType = "walk_in"
	QueueEventCheckedIn QueueEventType = "checked_in"
	QueueEventCompleted QueueEventType = "completed"
)

// QueueEvent is a real-time update for one doctor's waiting line, published
// on every queue mutation so live boards can refresh without polling.
type QueueEvent struct {
	ID           string         `json:"id"`
	EventType    QueueEventType `json:"event_type"`
	DoctorID     string         `json:"doctor_id"`
	HospitalID   string         `json:"hospital_id,omitempty"`
	QueueItemID  string         `json:"queue_item_id,omitempty"`
	TicketNumber string         `json:"ticket_number,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// NewQueueEvent creates a new queue event
func NewQueueEvent(eventType QueueEventType, item *QueueItem) *QueueEvent {
	ev := &QueueEvent{
		ID:        generateEventID(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
	if item != nil {
		ev.DoctorID = item.DoctorID
		ev.HospitalID = item.HospitalID
		ev.QueueItemID = item.ID
		ev.TicketNumber = item.TicketNumber
	}
	return ev
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based if crypto/rand fails
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
