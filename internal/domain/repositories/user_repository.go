package repositories

import (
	"context"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
)

// UserRepository is the identity/directory read surface this core consumes.
// Account CRUD is an external collaborator; this core only looks accounts up.
type UserRepository interface {
	// GetByID retrieves a user with availability and unavailability loaded
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// ListDoctorsBySpecialty returns active, non-disabled doctors with the
	// given specialty practicing at the hospital.
	ListDoctorsBySpecialty(ctx context.Context, hospitalID, specialtyID string) ([]*entities.User, error)
}

// HospitalRepository is the catalog read surface for hospitals and services
type HospitalRepository interface {
	// GetByID retrieves a hospital
	GetByID(ctx context.Context, id string) (*entities.Hospital, error)

	// GetServiceType retrieves a service type with duration and cost
	GetServiceType(ctx context.Context, id string) (*entities.ServiceType, error)
}
