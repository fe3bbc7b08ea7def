package database

import (
	"context"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
)

// TicketAdapter implements the TicketRepository interface
type TicketAdapter struct {
	client *postgres.Client
}

// NewTicketAdapter creates a new ticket sequence adapter
func NewTicketAdapter(client *postgres.Client) repositories.TicketRepository {
	return &TicketAdapter{client: client}
}

// Next atomically increments and returns the per-(doctor, day) sequence.
// The upsert takes a row lock inside the caller's unit of work, so two
// concurrent bookings for the same doctor and day get distinct values.
func (a *TicketAdapter) Next(ctx context.Context, uow repositories.UnitOfWork, doctorID, date string) (int, error) {
	const query = `
		INSERT INTO ticket_sequences (doctor_id, day, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (doctor_id, day)
		DO UPDATE SET last_value = ticket_sequences.last_value + 1
		RETURNING last_value`

	var value int
	err := execerFrom(a.client, uow).QueryRowContext(ctx, query, doctorID, date).Scan(&value)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to advance ticket sequence", err)
	}

	return value, nil
}
