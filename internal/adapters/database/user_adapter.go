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

var userColumns = []interface{}{
	"id", "name", "role", "active", "disabled", "specialty_id", "language",
	"push_enabled", "sms_enabled", "email_enabled",
	"reminders_enabled", "reminder_24h_enabled", "reminder_1h_enabled",
	"created_at", "updated_at",
}

// UserAdapter implements the UserRepository read surface
type UserAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserAdapter creates a new user adapter
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a user with memberships, availability and
// unavailability episodes loaded
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	query, args, err := a.db.Select(userColumns...).
		From("users").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	user, err := scanUserRow(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user", err)
	}

	if err := a.loadAssociations(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// ListDoctorsBySpecialty returns usable doctors with the specialty at the hospital
func (a *UserAdapter) ListDoctorsBySpecialty(ctx context.Context, hospitalID, specialtyID string) ([]*entities.User, error) {
	ds := a.db.Select(
		"u.id", "u.name", "u.role", "u.active", "u.disabled", "u.specialty_id", "u.language",
		"u.push_enabled", "u.sms_enabled", "u.email_enabled",
		"u.reminders_enabled", "u.reminder_24h_enabled", "u.reminder_1h_enabled",
		"u.created_at", "u.updated_at",
	).From(goqu.T("users").As("u")).
		Join(goqu.T("user_hospitals").As("uh"), goqu.On(goqu.Ex{"uh.user_id": goqu.I("u.id")})).
		Where(goqu.Ex{
			"u.role":         entities.RoleDoctor,
			"u.active":       true,
			"u.disabled":     false,
			"u.specialty_id": specialtyID,
			"uh.hospital_id": hospitalID,
		}).
		Order(goqu.I("u.name").Asc())

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list doctors", err)
	}
	defer rows.Close()

	var doctors []*entities.User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan doctor", err)
		}
		doctors = append(doctors, user)
	}

	for _, doctor := range doctors {
		if err := a.loadAssociations(ctx, doctor); err != nil {
			return nil, err
		}
	}

	return doctors, nil
}

func (a *UserAdapter) loadAssociations(ctx context.Context, user *entities.User) error {
	if err := a.loadHospitals(ctx, user); err != nil {
		return err
	}
	if user.Role != entities.RoleDoctor {
		return nil
	}
	if err := a.loadAvailability(ctx, user); err != nil {
		return err
	}
	return a.loadUnavailability(ctx, user)
}

func (a *UserAdapter) loadHospitals(ctx context.Context, user *entities.User) error {
	rows, err := a.client.DB().QueryContext(ctx,
		`SELECT hospital_id FROM user_hospitals WHERE user_id = $1 ORDER BY hospital_id`, user.ID)
	if err != nil {
		return apperrors.NewInternalError("failed to load hospital memberships", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hospitalID string
		if err := rows.Scan(&hospitalID); err != nil {
			return apperrors.NewInternalError("failed to scan hospital membership", err)
		}
		user.HospitalIDs = append(user.HospitalIDs, hospitalID)
	}
	return nil
}

func (a *UserAdapter) loadAvailability(ctx context.Context, user *entities.User) error {
	rows, err := a.client.DB().QueryContext(ctx,
		`SELECT weekday, available, start_time, end_time, hospital_id
		 FROM doctor_availability WHERE doctor_id = $1 ORDER BY weekday`, user.ID)
	if err != nil {
		return apperrors.NewInternalError("failed to load availability", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day entities.DayAvailability
		var weekday int
		var start, end, hospitalID sql.NullString
		if err := rows.Scan(&weekday, &day.Available, &start, &end, &hospitalID); err != nil {
			return apperrors.NewInternalError("failed to scan availability", err)
		}
		day.Weekday = time.Weekday(weekday)
		day.Start = start.String
		day.End = end.String
		day.HospitalID = hospitalID.String
		user.Availability = append(user.Availability, day)
	}
	return nil
}

func (a *UserAdapter) loadUnavailability(ctx context.Context, user *entities.User) error {
	rows, err := a.client.DB().QueryContext(ctx,
		`SELECT id, doctor_id, from_date, to_date, reason
		 FROM doctor_unavailability WHERE doctor_id = $1 ORDER BY from_date`, user.ID)
	if err != nil {
		return apperrors.NewInternalError("failed to load unavailability episodes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ep entities.UnavailabilityEpisode
		var reason sql.NullString
		if err := rows.Scan(&ep.ID, &ep.DoctorID, &ep.FromDate, &ep.ToDate, &reason); err != nil {
			return apperrors.NewInternalError("failed to scan unavailability episode", err)
		}
		ep.Reason = reason.String
		user.Unavailability = append(user.Unavailability, ep)
	}
	return nil
}

func scanUserRow(row rowScanner) (*entities.User, error) {
	user := &entities.User{}
	var specialtyID sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Role,
		&user.Active,
		&user.Disabled,
		&specialtyID,
		&user.Language,
		&user.PushEnabled,
		&user.SMSEnabled,
		&user.EmailEnabled,
		&user.RemindersEnabled,
		&user.Reminder24hEnabled,
		&user.Reminder1hEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.SpecialtyID = specialtyID.String
	return user, nil
}
