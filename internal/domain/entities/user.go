package entities

import (
	"fmt"
	"time"
)

// UserRole represents the role of a user account
type UserRole string

const (
	RolePatient UserRole = "patient"
	RoleDoctor  UserRole = "doctor"
	RoleStaff   UserRole = "staff"
	RoleManager UserRole = "manager"
	RoleAdmin   UserRole = "admin"
)

// DayAvailability is one immutable day-record of a doctor's weekly schedule.
// Start and End are time-of-day strings; an End at or before Start means the
// working window wraps past midnight.
type DayAvailability struct {
	Weekday    time.Weekday `json:"weekday" db:"weekday"`
	Available  bool         `json:"available" db:"available"`
	Start      string       `json:"start,omitempty" db:"start_time"`
	End        string       `json:"end,omitempty" db:"end_time"`
	HospitalID string       `json:"hospital_id,omitempty" db:"hospital_id"`
}

// UnavailabilityEpisode is an explicit date range during which a doctor
// cannot be booked, distinct from the recurring weekly schedule.
type UnavailabilityEpisode struct {
	ID       string `json:"id" db:"id"`
	DoctorID string `json:"doctor_id" db:"doctor_id"`
	FromDate string `json:"from_date" db:"from_date"`
	ToDate   string `json:"to_date" db:"to_date"`
	Reason   string `json:"reason,omitempty" db:"reason"`
}

// User is the identity surface this core reads: account flags, memberships
// and reminder preferences. Account management itself lives elsewhere.
type User struct {
	ID          string   `json:"id" db:"id"`
	Name        string   `json:"name" db:"name"`
	Role        UserRole `json:"role" db:"role"`
	Active      bool     `json:"active" db:"active"`
	Disabled    bool     `json:"disabled" db:"disabled"`
	SpecialtyID string   `json:"specialty_id,omitempty" db:"specialty_id"`
	HospitalIDs []string `json:"hospital_ids"`
	Language    string   `json:"language" db:"language"`

	PushEnabled  bool `json:"push_enabled" db:"push_enabled"`
	SMSEnabled   bool `json:"sms_enabled" db:"sms_enabled"`
	EmailEnabled bool `json:"email_enabled" db:"email_enabled"`

	RemindersEnabled   bool `json:"reminders_enabled" db:"reminders_enabled"`
	Reminder24hEnabled bool `json:"reminder_24h_enabled" db:"reminder_24h_enabled"`
	Reminder1hEnabled  bool `json:"reminder_1h_enabled" db:"reminder_1h_enabled"`

	// Availability holds exactly seven day-records, one per weekday,
	// replaced wholesale on update. Only meaningful for doctors.
	Availability []DayAvailability `json:"availability,omitempty"`

	Unavailability []UnavailabilityEpisode `json:"unavailability,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsUsable reports whether the account can participate in bookings
func (u *User) IsUsable() bool {
	return u.Active && !u.Disabled
}

// PracticesAt reports whether the user is a member of the given hospital
func (u *User) PracticesAt(hospitalID string) bool {
	for _, id := range u.HospitalIDs {
		if id == hospitalID {
			return true
		}
	}
	return false
}

// AvailabilityOn returns the doctor's day-record for the given weekday,
// or nil if the weekly schedule has not been configured.
func (u *User) AvailabilityOn(weekday time.Weekday) *DayAvailability {
	for i := range u.Availability {
		if u.Availability[i].Weekday == weekday {
			return &u.Availability[i]
		}
	}
	return nil
}

// IsUnavailableOn reports whether date (YYYY-MM-DD) falls inside any
// recorded unavailability episode. Dates compare lexicographically.
func (u *User) IsUnavailableOn(date string) bool {
	for _, ep := range u.Unavailability {
		if date >= ep.FromDate && date <= ep.ToDate {
			return true
		}
	}
	return false
}

// ValidateWeeklyAvailability checks that a schedule update carries exactly
// one record per weekday.
func ValidateWeeklyAvailability(days []DayAvailability) error {
	if len(days) != 7 {
		return fmt.Errorf("weekly availability must have exactly 7 entries, got %d", len(days))
	}
	seen := make(map[time.Weekday]bool, 7)
	for _, d := range days {
		if seen[d.Weekday] {
			return fmt.Errorf("duplicate weekday %s in weekly availability", d.Weekday)
		}
		seen[d.Weekday] = true
	}
	return nil
}
