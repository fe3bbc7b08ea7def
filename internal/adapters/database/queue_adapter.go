package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

var queueColumns = []interface{}{
	"id", "doctor_id", "hospital_id", "patient_id", "visitor_name",
	"appointment_id", "ticket_number", "status", "check_in_time",
	"served_at", "finished_at", "created_at", "updated_at",
}

// QueueAdapter implements the QueueRepository interface
type QueueAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewQueueAdapter creates a new queue adapter
func NewQueueAdapter(client *postgres.Client) repositories.QueueRepository {
	return &QueueAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new queue entry
func (a *QueueAdapter) Create(ctx context.Context, uow repositories.UnitOfWork, item *entities.QueueItem) error {
	record := goqu.Record{
		"id":             item.ID,
		"doctor_id":      item.DoctorID,
		"hospital_id":    item.HospitalID,
		"patient_id":     item.PatientID,
		"visitor_name":   item.VisitorName,
		"appointment_id": item.AppointmentID,
		"ticket_number":  item.TicketNumber,
		"status":         item.Status,
		"check_in_time":  item.CheckInTime,
		"served_at":      item.ServedAt,
		"finished_at":    item.FinishedAt,
		"created_at":     item.CreatedAt,
		"updated_at":     item.UpdatedAt,
	}

	query, args, err := a.db.Insert("queue_items").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = execerFrom(a.client, uow).ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, "ux_queue_active_patient") {
			return apperrors.NewConflictError("patient already has an active queue entry")
		}
		return apperrors.NewInternalError("failed to create queue item", err)
	}

	return nil
}

// GetByID retrieves a queue entry by ID
func (a *QueueAdapter) GetByID(ctx context.Context, id string) (*entities.QueueItem, error) {
	query, args, err := a.db.Select(queueColumns...).
		From("queue_items").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	item, err := scanQueueRow(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("queue item with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get queue item", err)
	}

	return item, nil
}

// Update persists a status transition
func (a *QueueAdapter) Update(ctx context.Context, uow repositories.UnitOfWork, item *entities.QueueItem) error {
	item.UpdatedAt = time.Now()

	record := goqu.Record{
		"status":      item.Status,
		"served_at":   item.ServedAt,
		"finished_at": item.FinishedAt,
		"updated_at":  item.UpdatedAt,
	}

	query, args, err := a.db.Update("queue_items").
		Set(record).
		Where(goqu.Ex{"id": item.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := execerFrom(a.client, uow).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update queue item", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("queue item with id %s not found", item.ID))
	}

	return nil
}

// GetActiveByPatient returns the patient's active entry anywhere, or nil
func (a *QueueAdapter) GetActiveByPatient(ctx context.Context, patientID string) (*entities.QueueItem, error) {
	query, args, err := a.db.Select(queueColumns...).
		From("queue_items").
		Where(
			goqu.Ex{"patient_id": patientID},
			goqu.C("status").In(activeStatusStrings()),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	item, err := scanQueueRow(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get active queue item", err)
	}

	return item, nil
}

// ListWaitingByDoctor returns waiting entries in FIFO order
func (a *QueueAdapter) ListWaitingByDoctor(ctx context.Context, doctorID string) ([]*entities.QueueItem, error) {
	ds := a.db.Select(queueColumns...).
		From("queue_items").
		Where(goqu.Ex{"doctor_id": doctorID, "status": entities.QueueStatusWaiting}).
		Order(goqu.I("check_in_time").Asc())

	return a.queryQueueItems(ctx, ds)
}

// GetServingByDoctor returns the doctor's serving entry, or nil
func (a *QueueAdapter) GetServingByDoctor(ctx context.Context, doctorID string) (*entities.QueueItem, error) {
	query, args, err := a.db.Select(queueColumns...).
		From("queue_items").
		Where(goqu.Ex{"doctor_id": doctorID, "status": entities.QueueStatusServing}).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	item, err := scanQueueRow(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get serving queue item", err)
	}

	return item, nil
}

// ListHeldByDoctor returns the doctor's held entries
func (a *QueueAdapter) ListHeldByDoctor(ctx context.Context, doctorID string) ([]*entities.QueueItem, error) {
	ds := a.db.Select(queueColumns...).
		From("queue_items").
		Where(goqu.Ex{"doctor_id": doctorID, "status": entities.QueueStatusHeld}).
		Order(goqu.I("check_in_time").Asc())

	return a.queryQueueItems(ctx, ds)
}

// CountWaitingByDoctor returns the number of waiting entries
func (a *QueueAdapter) CountWaitingByDoctor(ctx context.Context, doctorID string) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From("queue_items").
		Where(goqu.Ex{"doctor_id": doctorID, "status": entities.QueueStatusWaiting}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count waiting queue items", err)
	}

	return count, nil
}

func (a *QueueAdapter) queryQueueItems(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.QueueItem, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list queue items", err)
	}
	defer rows.Close()

	var items []*entities.QueueItem
	for rows.Next() {
		item, err := scanQueueRow(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan queue item", err)
		}
		items = append(items, item)
	}

	return items, nil
}

func scanQueueRow(row rowScanner) (*entities.QueueItem, error) {
	item := &entities.QueueItem{}
	var patientID, appointmentID sql.NullString
	var servedAt, finishedAt sql.NullTime

	err := row.Scan(
		&item.ID,
		&item.DoctorID,
		&item.HospitalID,
		&patientID,
		&item.VisitorName,
		&appointmentID,
		&item.TicketNumber,
		&item.Status,
		&item.CheckInTime,
		&servedAt,
		&finishedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if patientID.Valid {
		item.PatientID = &patientID.String
	}
	if appointmentID.Valid {
		item.AppointmentID = &appointmentID.String
	}
	if servedAt.Valid {
		item.ServedAt = &servedAt.Time
	}
	if finishedAt.Valid {
		item.FinishedAt = &finishedAt.Time
	}

	return item, nil
}

func activeStatusStrings() []string {
	statuses := make([]string, len(entities.ActiveQueueStatuses))
	for i, s := range entities.ActiveQueueStatuses {
		statuses[i] = string(s)
	}
	return statuses
}
