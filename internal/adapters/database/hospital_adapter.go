package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// HospitalAdapter implements the HospitalRepository read surface
type HospitalAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewHospitalAdapter creates a new hospital adapter
func NewHospitalAdapter(client *postgres.Client) repositories.HospitalRepository {
	return &HospitalAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a hospital
func (a *HospitalAdapter) GetByID(ctx context.Context, id string) (*entities.Hospital, error) {
	query, args, err := a.db.Select(
		"id", "name", "refund_policy_percentage", "created_at", "updated_at",
	).From("hospitals").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	hospital := &entities.Hospital{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&hospital.ID,
		&hospital.Name,
		&hospital.RefundPolicyPercentage,
		&hospital.CreatedAt,
		&hospital.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("hospital with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get hospital", err)
	}

	return hospital, nil
}

// GetServiceType retrieves a service type with duration and cost
func (a *HospitalAdapter) GetServiceType(ctx context.Context, id string) (*entities.ServiceType, error) {
	query, args, err := a.db.Select(
		"id", "hospital_id", "name", "duration_minutes", "cost", "created_at", "updated_at",
	).From("service_types").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	serviceType := &entities.ServiceType{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&serviceType.ID,
		&serviceType.HospitalID,
		&serviceType.Name,
		&serviceType.DurationMinutes,
		&serviceType.Cost,
		&serviceType.CreatedAt,
		&serviceType.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("service type with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get service type", err)
	}

	return serviceType, nil
}
