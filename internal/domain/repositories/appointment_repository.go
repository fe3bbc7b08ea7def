package repositories

import (
	"context"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
)

// ReminderClass selects one of the two fixed reminder lead-time windows
type ReminderClass string

const (
	Reminder24h ReminderClass = "24h"
	Reminder1h  ReminderClass = "1h"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// Create creates a new appointment. The storage layer enforces the
	// no-double-booking constraint on (doctor, date, time) among upcoming
	// appointments and surfaces violations as Conflict.
	Create(ctx context.Context, uow UnitOfWork, appointment *entities.Appointment) error

	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// GetByIDForUpdate retrieves an appointment inside the unit of work,
	// holding a row lock until commit. Status and refund guards must run on
	// this read, not on an earlier snapshot.
	GetByIDForUpdate(ctx context.Context, uow UnitOfWork, id string) (*entities.Appointment, error)

	// Update updates a mutable appointment (status, sub-state, flags, slot)
	Update(ctx context.Context, uow UnitOfWork, appointment *entities.Appointment) error

	// GetUpcomingAt returns the upcoming appointment occupying the exact
	// (doctor, date, time) slot, or nil if the slot is free.
	GetUpcomingAt(ctx context.Context, doctorID, date, timeOfDay string) (*entities.Appointment, error)

	// ListUpcomingByPatientDate returns a patient's upcoming appointments on
	// a calendar day, used for the soft booking-conflict buffer check.
	ListUpcomingByPatientDate(ctx context.Context, patientID, date string) ([]*entities.Appointment, error)

	// ListUpcomingByDoctorDate returns a doctor's upcoming appointments for
	// a day at a hospital, ordered chronologically by time of day.
	ListUpcomingByDoctorDate(ctx context.Context, doctorID, date, hospitalID string) ([]*entities.Appointment, error)

	// ListUpcomingByDoctorRange returns a doctor's upcoming appointments with
	// date in [fromDate, toDate], used by bulk doctor cancellation.
	ListUpcomingByDoctorRange(ctx context.Context, doctorID, fromDate, toDate string) ([]*entities.Appointment, error)

	// ListReminderCandidates returns upcoming appointments whose sent flag
	// for the given reminder class is still false.
	ListReminderCandidates(ctx context.Context, class ReminderClass) ([]*entities.Appointment, error)

	// MarkReminderSent durably records that the reminder class fired for the
	// appointment. This write is the reminder idempotency guard.
	MarkReminderSent(ctx context.Context, id string, class ReminderClass, sentAt time.Time) error

	// ListByPatient retrieves appointments for a patient
	ListByPatient(ctx context.Context, patientID string, filter AppointmentFilter) ([]*entities.Appointment, error)

	// ListByDoctor retrieves appointments for a doctor
	ListByDoctor(ctx context.Context, doctorID string, filter AppointmentFilter) ([]*entities.Appointment, error)
}

// AppointmentFilter defines filters for listing appointments
type AppointmentFilter struct {
	Status   entities.AppointmentStatus
	FromDate string
	ToDate   string
	Limit    int
	Offset   int
}
