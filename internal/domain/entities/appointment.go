package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppointmentStatus represents the lifecycle status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusUpcoming        AppointmentStatus = "upcoming"
	AppointmentStatusCompleted       AppointmentStatus = "completed"
	AppointmentStatusCancelled       AppointmentStatus = "cancelled"
	AppointmentStatusNoShow          AppointmentStatus = "no_show"
	AppointmentStatusDoctorCancelled AppointmentStatus = "doctor_cancelled"
)

// CancellationResolution is the sub-state of a doctor-cancelled appointment.
// It is only meaningful while the status is doctor_cancelled (pending) or
// after the patient has resolved the cancellation.
type CancellationResolution string

const (
	ResolutionNone        CancellationResolution = ""
	ResolutionPending     CancellationResolution = "pending"
	ResolutionRescheduled CancellationResolution = "rescheduled"
	ResolutionRefunded    CancellationResolution = "refunded"
	ResolutionRedirected  CancellationResolution = "redirected"
)

// Appointment represents one scheduled clinical encounter
type Appointment struct {
	ID            string `json:"id" db:"id"`
	DoctorID      string `json:"doctor_id" db:"doctor_id"`
	PatientID     string `json:"patient_id" db:"patient_id"`
	HospitalID    string `json:"hospital_id" db:"hospital_id"`
	ServiceTypeID string `json:"service_type_id" db:"service_type_id"`

	// Date is the calendar day (YYYY-MM-DD); Time is a human time-of-day
	// string in 12-hour or 24-hour form, exactly as entered or computed.
	Date string `json:"date" db:"date"`
	Time string `json:"time" db:"time"`

	// Cost is the service fee captured at booking time, immutable after creation
	Cost decimal.Decimal `json:"cost" db:"cost"`

	Status                 AppointmentStatus      `json:"status" db:"status"`
	CancellationResolution CancellationResolution `json:"cancellation_resolution,omitempty" db:"cancellation_resolution"`

	IsRefunded  bool `json:"is_refunded" db:"is_refunded"`
	ReminderSet bool `json:"reminder_set" db:"reminder_set"`

	Reminder24hSent   bool       `json:"reminder_24h_sent" db:"reminder_24h_sent"`
	Reminder24hSentAt *time.Time `json:"reminder_24h_sent_at,omitempty" db:"reminder_24h_sent_at"`
	Reminder1hSent    bool       `json:"reminder_1h_sent" db:"reminder_1h_sent"`
	Reminder1hSentAt  *time.Time `json:"reminder_1h_sent_at,omitempty" db:"reminder_1h_sent_at"`

	// QueueNumber is the human-readable ticket assigned once per (doctor, day)
	// and reused whenever this appointment re-enters the live queue.
	QueueNumber string `json:"queue_number,omitempty" db:"queue_number"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsUpcoming reports whether the appointment is still bookable state
func (a *Appointment) IsUpcoming() bool {
	return a.Status == AppointmentStatusUpcoming
}

// AwaitingResolution reports whether the appointment is a doctor-cancelled
// appointment whose patient has not yet chosen a resolution.
func (a *Appointment) AwaitingResolution() bool {
	return a.Status == AppointmentStatusDoctorCancelled && a.CancellationResolution == ResolutionPending
}
