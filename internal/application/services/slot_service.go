package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/Zubair-mohamed/myclinic-backend/pkg/timeutil"
)

// Slot is a computed bookable time for a doctor on a day
type Slot struct {
	Time          string `json:"time"`
	QueuePosition int    `json:"queue_position"`
}

// SlotService computes the next bookable time for a doctor. It is a pure
// query over current data: it never reserves the slot, so two concurrent
// callers may be handed the same time and the storage uniqueness constraint
// decides the race at booking time.
type SlotService struct {
	userRepo        repositories.UserRepository
	hospitalRepo    repositories.HospitalRepository
	appointmentRepo repositories.AppointmentRepository

	avgConsultationMinutes int
	leadTimeMinutes        int
	roundingMinutes        int

	loc *time.Location
	now func() time.Time
}

// NewSlotService creates a new slot service
func NewSlotService(
	userRepo repositories.UserRepository,
	hospitalRepo repositories.HospitalRepository,
	appointmentRepo repositories.AppointmentRepository,
	avgConsultationMinutes, leadTimeMinutes, roundingMinutes int,
	loc *time.Location,
) *SlotService {
	if loc == nil {
		loc = time.Local
	}
	return &SlotService{
		userRepo:               userRepo,
		hospitalRepo:           hospitalRepo,
		appointmentRepo:        appointmentRepo,
		avgConsultationMinutes: avgConsultationMinutes,
		leadTimeMinutes:        leadTimeMinutes,
		roundingMinutes:        roundingMinutes,
		loc:                    loc,
		now:                    time.Now,
	}
}

// ComputeNextSlot returns the earliest free slot for the doctor on the date
// at the hospital, for the given service.
func (s *SlotService) ComputeNextSlot(ctx context.Context, doctorID, date, serviceTypeID, hospitalID string) (*Slot, error) {
	day, err := timeutil.ParseDate(date, s.loc)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	doctor, err := s.userRepo.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != entities.RoleDoctor {
		return nil, apperrors.NewValidationError("referenced user is not a doctor")
	}
	if doctor.IsUnavailableOn(date) {
		return nil, apperrors.NewNotAvailableError(fmt.Sprintf("doctor is unavailable on %s", date))
	}

	serviceType, err := s.hospitalRepo.GetServiceType(ctx, serviceTypeID)
	if err != nil {
		return nil, err
	}
	duration := serviceType.DurationMinutes
	if duration <= 0 {
		duration = s.avgConsultationMinutes
	}

	window := doctor.AvailabilityOn(day.Weekday())
	if window == nil || !window.Available || window.HospitalID != hospitalID {
		return nil, apperrors.NewNotAvailableError(fmt.Sprintf("doctor has no working window on %s at this hospital", day.Weekday()))
	}

	startMin, err := timeutil.ParseClock(window.Start)
	if err != nil {
		return nil, apperrors.NewNotAvailableError("doctor working window start time is invalid")
	}
	endMin, err := timeutil.ParseClock(window.End)
	if err != nil {
		return nil, apperrors.NewNotAvailableError("doctor working window end time is invalid")
	}
	// A window ending at or before its start wraps past midnight
	if endMin <= startMin {
		endMin += 24 * 60
	}

	existing, err := s.appointmentRepo.ListUpcomingByDoctorDate(ctx, doctorID, date, hospitalID)
	if err != nil {
		return nil, err
	}

	candidate := startMin
	if last, lastMin := s.lastBooked(existing, startMin); last != nil {
		lastDuration, err := s.serviceDuration(ctx, last.ServiceTypeID)
		if err != nil {
			return nil, err
		}
		if next := lastMin + lastDuration; next > candidate {
			candidate = next
		}
	}

	now := s.now().In(s.loc)
	if timeutil.SameDay(day, now, s.loc) {
		floor := timeutil.CeilToStep(now.Add(time.Duration(s.leadTimeMinutes)*time.Minute), time.Duration(s.roundingMinutes)*time.Minute)
		floorMin := floor.Hour()*60 + floor.Minute()
		if floorMin < startMin {
			// Relative to an overnight window, early-morning clock times
			// belong to the tail of the previous day's window
			if startMin+duration > 24*60 {
				floorMin += 24 * 60
			}
		}
		if floorMin > candidate {
			candidate = floorMin
		}
	}

	if candidate+duration > endMin {
		return nil, apperrors.NewScheduleFullError(fmt.Sprintf("no room left in the doctor's schedule on %s", date))
	}

	return &Slot{
		Time:          timeutil.FormatClock(candidate),
		QueuePosition: len(existing) + 1,
	}, nil
}

// lastBooked returns the chronologically last upcoming appointment and its
// start in minutes since midnight, normalized onto an overnight window.
func (s *SlotService) lastBooked(existing []*entities.Appointment, startMin int) (*entities.Appointment, int) {
	var last *entities.Appointment
	lastMin := -1
	for _, ap := range existing {
		minutes, err := timeutil.ParseClock(ap.Time)
		if err != nil {
			continue
		}
		if minutes < startMin {
			minutes += 24 * 60
		}
		if minutes > lastMin {
			last = ap
			lastMin = minutes
		}
	}
	return last, lastMin
}

func (s *SlotService) serviceDuration(ctx context.Context, serviceTypeID string) (int, error) {
	serviceType, err := s.hospitalRepo.GetServiceType(ctx, serviceTypeID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return s.avgConsultationMinutes, nil
		}
		return 0, err
	}
	if serviceType.DurationMinutes <= 0 {
		return s.avgConsultationMinutes, nil
	}
	return serviceType.DurationMinutes, nil
}
