package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Hospital is the catalog surface this core reads for a clinic site
type Hospital struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// RefundPolicyPercentage (0-100) is applied to patient-initiated
	// cancellations. Doctor-cancellation refunds are always 100%.
	RefundPolicyPercentage int `json:"refund_policy_percentage" db:"refund_policy_percentage"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ServiceType is a bookable service offered at a hospital
type ServiceType struct {
	ID              string          `json:"id" db:"id"`
	HospitalID      string          `json:"hospital_id" db:"hospital_id"`
	Name            string          `json:"name" db:"name"`
	DurationMinutes int             `json:"duration_minutes" db:"duration_minutes"`
	Cost            decimal.Decimal `json:"cost" db:"cost"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}
