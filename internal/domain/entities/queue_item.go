package entities

import (
	"time"
)

// QueueItemStatus represents the state of a live waiting-line entry
type QueueItemStatus string

const (
	QueueStatusWaiting        QueueItemStatus = "waiting"
	QueueStatusServing        QueueItemStatus = "serving"
	QueueStatusDone           QueueItemStatus = "done"
	QueueStatusHeld           QueueItemStatus = "held"
	QueueStatusLeft           QueueItemStatus = "left"
	QueueStatusRemovedByAdmin QueueItemStatus = "removed"
)

// ActiveQueueStatuses are the states that count toward the "at most one
// active entry per patient" invariant.
var ActiveQueueStatuses = []QueueItemStatus{
	QueueStatusWaiting,
	QueueStatusServing,
	QueueStatusHeld,
}

// QueueItem is one doctor's live waiting-line entry. It is linked either to
// a registered patient or to a free-text walk-in name, never both.
type QueueItem struct {
	ID         string `json:"id" db:"id"`
	DoctorID   string `json:"doctor_id" db:"doctor_id"`
	HospitalID string `json:"hospital_id" db:"hospital_id"`

	PatientID     *string `json:"patient_id,omitempty" db:"patient_id"`
	VisitorName   string  `json:"visitor_name,omitempty" db:"visitor_name"`
	AppointmentID *string `json:"appointment_id,omitempty" db:"appointment_id"`

	TicketNumber string          `json:"ticket_number" db:"ticket_number"`
	Status       QueueItemStatus `json:"status" db:"status"`

	// CheckInTime is the sole FIFO ordering key among waiting items. A held
	// entry keeps its original check-in time so resuming does not lose
	// fairness priority.
	CheckInTime time.Time  `json:"check_in_time" db:"check_in_time"`
	ServedAt    *time.Time `json:"served_at,omitempty" db:"served_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" db:"finished_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the entry still occupies a place in the line
func (q *QueueItem) IsActive() bool {
	switch q.Status {
	case QueueStatusWaiting, QueueStatusServing, QueueStatusHeld:
		return true
	}
	return false
}

// QueuePosition is a patient-facing view of their place in a doctor's line
type QueuePosition struct {
	Item                 *QueueItem `json:"item"`
	Position             int        `json:"position"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
}

// QueueBoard is the doctor-facing view of the whole line
type QueueBoard struct {
	DoctorID string       `json:"doctor_id"`
	Serving  *QueueItem   `json:"serving,omitempty"`
	Waiting  []*QueueItem `json:"waiting"`
	Held     []*QueueItem `json:"held"`
}
