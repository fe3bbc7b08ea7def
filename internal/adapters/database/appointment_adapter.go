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

var appointmentColumns = []interface{}{
	"id", "doctor_id", "patient_id", "hospital_id", "service_type_id",
	"date", "time", "cost", "status", "cancellation_resolution",
	"is_refunded", "reminder_set",
	"reminder_24h_sent", "reminder_24h_sent_at",
	"reminder_1h_sent", "reminder_1h_sent_at",
	"queue_number", "created_at", "updated_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new appointment
func (a *AppointmentAdapter) Create(ctx context.Context, uow repositories.UnitOfWork, appointment *entities.Appointment) error {
	record := goqu.Record{
		"id":                      appointment.ID,
		"doctor_id":               appointment.DoctorID,
		"patient_id":              appointment.PatientID,
		"hospital_id":             appointment.HospitalID,
		"service_type_id":         appointment.ServiceTypeID,
		"date":                    appointment.Date,
		"time":                    appointment.Time,
		"cost":                    appointment.Cost,
		"status":                  appointment.Status,
		"cancellation_resolution": appointment.CancellationResolution,
		"is_refunded":             appointment.IsRefunded,
		"reminder_set":            appointment.ReminderSet,
		"reminder_24h_sent":       appointment.Reminder24hSent,
		"reminder_24h_sent_at":    appointment.Reminder24hSentAt,
		"reminder_1h_sent":        appointment.Reminder1hSent,
		"reminder_1h_sent_at":     appointment.Reminder1hSentAt,
		"queue_number":            appointment.QueueNumber,
		"created_at":              appointment.CreatedAt,
		"updated_at":              appointment.UpdatedAt,
	}

	query, args, err := a.db.Insert("appointments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = execerFrom(a.client, uow).ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, "ux_appointments_doctor_slot") {
			return apperrors.NewConflictError("the requested slot was just booked by someone else").
				WithDetails(map[string]interface{}{
					"doctor_id": appointment.DoctorID,
					"date":      appointment.Date,
					"time":      appointment.Time,
				})
		}
		return apperrors.NewInternalError("failed to create appointment", err)
	}

	return nil
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointmentRow(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// GetByIDForUpdate retrieves an appointment with a row lock inside the
// unit of work
func (a *AppointmentAdapter) GetByIDForUpdate(ctx context.Context, uow repositories.UnitOfWork, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointmentRow(execerFrom(a.client, uow).QueryRowContext(ctx, query+" FOR UPDATE", args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// Update updates an appointment
func (a *AppointmentAdapter) Update(ctx context.Context, uow repositories.UnitOfWork, appointment *entities.Appointment) error {
	appointment.UpdatedAt = time.Now()

	record := goqu.Record{
		"doctor_id":               appointment.DoctorID,
		"date":                    appointment.Date,
		"time":                    appointment.Time,
		"status":                  appointment.Status,
		"cancellation_resolution": appointment.CancellationResolution,
		"is_refunded":             appointment.IsRefunded,
		"reminder_set":            appointment.ReminderSet,
		"queue_number":            appointment.QueueNumber,
		"updated_at":              appointment.UpdatedAt,
	}

	query, args, err := a.db.Update("appointments").
		Set(record).
		Where(goqu.Ex{"id": appointment.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := execerFrom(a.client, uow).ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, "ux_appointments_doctor_slot") {
			return apperrors.NewConflictError("the requested slot was just booked by someone else")
		}
		return apperrors.NewInternalError("failed to update appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", appointment.ID))
	}

	return nil
}

// GetUpcomingAt returns the upcoming appointment at the exact slot, or nil
func (a *AppointmentAdapter) GetUpcomingAt(ctx context.Context, doctorID, date, timeOfDay string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{
			"doctor_id": doctorID,
			"date":      date,
			"time":      timeOfDay,
			"status":    entities.AppointmentStatusUpcoming,
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointmentRow(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment at slot", err)
	}

	return appointment, nil
}

// ListUpcomingByPatientDate returns a patient's upcoming appointments on a day
func (a *AppointmentAdapter) ListUpcomingByPatientDate(ctx context.Context, patientID, date string) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{
			"patient_id": patientID,
			"date":       date,
			"status":     entities.AppointmentStatusUpcoming,
		}).
		Order(goqu.I("time").Asc())

	return a.queryAppointments(ctx, ds)
}

// ListUpcomingByDoctorDate returns a doctor's upcoming appointments for a day
// at a hospital, ordered chronologically
func (a *AppointmentAdapter) ListUpcomingByDoctorDate(ctx context.Context, doctorID, date, hospitalID string) ([]*entities.Appointment, error) {
	where := goqu.Ex{
		"doctor_id": doctorID,
		"date":      date,
		"status":    entities.AppointmentStatusUpcoming,
	}
	if hospitalID != "" {
		where["hospital_id"] = hospitalID
	}

	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(where).
		Order(goqu.I("time").Asc())

	return a.queryAppointments(ctx, ds)
}

// ListUpcomingByDoctorRange returns upcoming appointments in [fromDate, toDate]
func (a *AppointmentAdapter) ListUpcomingByDoctorRange(ctx context.Context, doctorID, fromDate, toDate string) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(
			goqu.Ex{"doctor_id": doctorID, "status": entities.AppointmentStatusUpcoming},
			goqu.C("date").Gte(fromDate),
			goqu.C("date").Lte(toDate),
		).
		Order(goqu.I("date").Asc(), goqu.I("time").Asc())

	return a.queryAppointments(ctx, ds)
}

// ListReminderCandidates returns upcoming appointments whose sent flag for
// the class is still false
func (a *AppointmentAdapter) ListReminderCandidates(ctx context.Context, class repositories.ReminderClass) ([]*entities.Appointment, error) {
	flagColumn := "reminder_24h_sent"
	if class == repositories.Reminder1h {
		flagColumn = "reminder_1h_sent"
	}

	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{
			"status":   entities.AppointmentStatusUpcoming,
			flagColumn: false,
		}).
		Order(goqu.I("date").Asc(), goqu.I("time").Asc())

	return a.queryAppointments(ctx, ds)
}

// MarkReminderSent durably records that the reminder class fired
func (a *AppointmentAdapter) MarkReminderSent(ctx context.Context, id string, class repositories.ReminderClass, sentAt time.Time) error {
	record := goqu.Record{"updated_at": time.Now()}
	switch class {
	case repositories.Reminder1h:
		record["reminder_1h_sent"] = true
		record["reminder_1h_sent_at"] = sentAt
	default:
		record["reminder_24h_sent"] = true
		record["reminder_24h_sent_at"] = sentAt
	}

	query, args, err := a.db.Update("appointments").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build reminder update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to mark reminder sent", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}

	return nil
}

// ListByPatient retrieves appointments for a patient
func (a *AppointmentAdapter) ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.filteredList(goqu.Ex{"patient_id": patientID}, filter)
	return a.queryAppointments(ctx, ds)
}

// ListByDoctor retrieves appointments for a doctor
func (a *AppointmentAdapter) ListByDoctor(ctx context.Context, doctorID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.filteredList(goqu.Ex{"doctor_id": doctorID}, filter)
	return a.queryAppointments(ctx, ds)
}

func (a *AppointmentAdapter) filteredList(base goqu.Ex, filter repositories.AppointmentFilter) *goqu.SelectDataset {
	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(base)

	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}
	if filter.FromDate != "" {
		ds = ds.Where(goqu.C("date").Gte(filter.FromDate))
	}
	if filter.ToDate != "" {
		ds = ds.Where(goqu.C("date").Lte(filter.ToDate))
	}

	ds = ds.Order(goqu.I("date").Desc(), goqu.I("time").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return ds
}

func (a *AppointmentAdapter) queryAppointments(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Appointment, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appointment, err := scanAppointmentRow(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}

	return appointments, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointmentRow(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var resolution sql.NullString
	var sent24At, sent1At sql.NullTime

	err := row.Scan(
		&appointment.ID,
		&appointment.DoctorID,
		&appointment.PatientID,
		&appointment.HospitalID,
		&appointment.ServiceTypeID,
		&appointment.Date,
		&appointment.Time,
		&appointment.Cost,
		&appointment.Status,
		&resolution,
		&appointment.IsRefunded,
		&appointment.ReminderSet,
		&appointment.Reminder24hSent,
		&sent24At,
		&appointment.Reminder1hSent,
		&sent1At,
		&appointment.QueueNumber,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	appointment.CancellationResolution = entities.CancellationResolution(resolution.String)
	if sent24At.Valid {
		appointment.Reminder24hSentAt = &sent24At.Time
	}
	if sent1At.Valid {
		appointment.Reminder1hSentAt = &sent1At.Time
	}

	return appointment, nil
}
