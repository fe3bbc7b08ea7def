package repositories

import (
	"context"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
)

// QueueRepository defines the interface for live waiting-line storage
type QueueRepository interface {
	// Create inserts a new queue entry. The storage layer enforces at most
	// one active entry per registered patient and surfaces violations as
	// Conflict.
	Create(ctx context.Context, uow UnitOfWork, item *entities.QueueItem) error

	// GetByID retrieves a queue entry by ID
	GetByID(ctx context.Context, id string) (*entities.QueueItem, error)

	// Update persists a status transition
	Update(ctx context.Context, uow UnitOfWork, item *entities.QueueItem) error

	// GetActiveByPatient returns the patient's waiting/serving/held entry
	// across all doctors, or nil if the patient is not in any line.
	GetActiveByPatient(ctx context.Context, patientID string) (*entities.QueueItem, error)

	// ListWaitingByDoctor returns a doctor's waiting entries ordered by
	// check-in time (FIFO).
	ListWaitingByDoctor(ctx context.Context, doctorID string) ([]*entities.QueueItem, error)

	// GetServingByDoctor returns the doctor's single serving entry, or nil
	GetServingByDoctor(ctx context.Context, doctorID string) (*entities.QueueItem, error)

	// ListHeldByDoctor returns the doctor's held entries
	ListHeldByDoctor(ctx context.Context, doctorID string) ([]*entities.QueueItem, error)

	// CountWaitingByDoctor returns the number of waiting entries, used for
	// least-loaded walk-in routing.
	CountWaitingByDoctor(ctx context.Context, doctorID string) (int, error)
}

// TicketRepository issues per-(doctor, day) sequential ticket numbers
type TicketRepository interface {
	// Next atomically increments and returns the sequence value for the
	// doctor and calendar day, joining the supplied unit of work.
	Next(ctx context.Context, uow UnitOfWork, doctorID, date string) (int, error)
}
