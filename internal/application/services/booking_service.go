package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/providers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/Zubair-mohamed/myclinic-backend/pkg/timeutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// defaultSoftConflictBufferMinutes is the same-patient fairness buffer: a new
// booking within this many minutes of another upcoming booking on the same
// day is rejected unless the caller overrides.
const defaultSoftConflictBufferMinutes = 60

// BookInput describes a booking request
type BookInput struct {
	PatientID     string
	DoctorID      string
	HospitalID    string
	ServiceTypeID string
	Date          string
	Time          string

	// Override skips the soft same-patient conflict check. It never skips
	// the exact-duplicate or slot-uniqueness checks.
	Override bool

	// CollectedInCash records the fee as collected at the desk: a deposit
	// for the exact amount is applied before the debit.
	CollectedInCash bool

	ActorID string
}

// ResolveAction is the patient's chosen resolution for a doctor-cancelled
// appointment
type ResolveAction string

const (
	ResolveRefund     ResolveAction = "refund"
	ResolveRedirect   ResolveAction = "redirect"
	ResolveReschedule ResolveAction = "reschedule"
)

// ResolveInput describes a cancellation resolution request
type ResolveInput struct {
	Action      ResolveAction
	NewDoctorID string
	NewDate     string
	NewTime     string
	ActorID     string
}

// BookingService owns the appointment lifecycle. Compound mutations
// (ledger debit, appointment write, queue seeding) run inside one unit of
// work; notification dispatch happens after commit and never gates it.
type BookingService struct {
	txManager       repositories.TxManager
	appointmentRepo repositories.AppointmentRepository
	queueRepo       repositories.QueueRepository
	ticketRepo      repositories.TicketRepository
	userRepo        repositories.UserRepository
	hospitalRepo    repositories.HospitalRepository
	ledger          *LedgerService
	dispatcher      providers.Dispatcher
	eventBus        providers.EventBus

	softConflictBufferMinutes int
	loc                       *time.Location
	now                       func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(
	txManager repositories.TxManager,
	appointmentRepo repositories.AppointmentRepository,
	queueRepo repositories.QueueRepository,
	ticketRepo repositories.TicketRepository,
	userRepo repositories.UserRepository,
	hospitalRepo repositories.HospitalRepository,
	ledger *LedgerService,
	dispatcher providers.Dispatcher,
	eventBus providers.EventBus,
	softConflictBufferMinutes int,
	loc *time.Location,
) *BookingService {
	if loc == nil {
		loc = time.Local
	}
	if softConflictBufferMinutes <= 0 {
		softConflictBufferMinutes = defaultSoftConflictBufferMinutes
	}
	return &BookingService{
		txManager:                 txManager,
		appointmentRepo:           appointmentRepo,
		queueRepo:                 queueRepo,
		ticketRepo:                ticketRepo,
		userRepo:                  userRepo,
		hospitalRepo:              hospitalRepo,
		ledger:                    ledger,
		dispatcher:                dispatcher,
		eventBus:                  eventBus,
		softConflictBufferMinutes: softConflictBufferMinutes,
		loc:                       loc,
		now:                       time.Now,
	}
}

// Book creates an appointment: validates all references, checks conflicts,
// assigns a ticket number, debits the fee and seeds the live queue for
// same-day bookings, all atomically.
func (s *BookingService) Book(ctx context.Context, in BookInput) (*entities.Appointment, error) {
	if in.PatientID == "" || in.DoctorID == "" || in.HospitalID == "" || in.ServiceTypeID == "" || in.Date == "" || in.Time == "" {
		return nil, apperrors.NewValidationError("patient, doctor, hospital, service type, date and time are required")
	}
	if _, err := timeutil.ParseDate(in.Date, s.loc); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	requestedMin, err := timeutil.ParseClock(in.Time)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	actor, err := s.userRepo.GetByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != in.PatientID && !isStaff(actor.Role) {
		return nil, apperrors.NewUnauthorizedError("only staff may book on behalf of another patient")
	}
	if in.CollectedInCash && !isStaff(actor.Role) {
		return nil, apperrors.NewUnauthorizedError("only staff may record a cash-collected fee")
	}

	patient, err := s.userRepo.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !patient.IsUsable() {
		return nil, apperrors.NewValidationError("patient account is disabled")
	}

	doctor, err := s.userRepo.GetByID(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != entities.RoleDoctor {
		return nil, apperrors.NewValidationError("referenced user is not a doctor")
	}
	if !doctor.IsUsable() {
		return nil, apperrors.NewValidationError("doctor account is disabled")
	}
	if !doctor.PracticesAt(in.HospitalID) {
		return nil, apperrors.NewValidationError("doctor does not practice at this hospital")
	}
	if doctor.IsUnavailableOn(in.Date) {
		return nil, apperrors.NewNotAvailableError(fmt.Sprintf("doctor is unavailable on %s", in.Date))
	}

	if _, err := s.hospitalRepo.GetByID(ctx, in.HospitalID); err != nil {
		return nil, err
	}
	serviceType, err := s.hospitalRepo.GetServiceType(ctx, in.ServiceTypeID)
	if err != nil {
		return nil, err
	}
	if serviceType.HospitalID != in.HospitalID {
		return nil, apperrors.NewValidationError("service type does not belong to this hospital")
	}

	// Exact duplicate is a hard conflict, independent of the override flag
	occupying, err := s.appointmentRepo.GetUpcomingAt(ctx, in.DoctorID, in.Date, in.Time)
	if err != nil {
		return nil, err
	}
	if occupying != nil && occupying.PatientID == in.PatientID {
		return nil, apperrors.NewConflictError("an identical appointment is already booked")
	}

	sameDay, err := s.appointmentRepo.ListUpcomingByPatientDate(ctx, in.PatientID, in.Date)
	if err != nil {
		return nil, err
	}
	if !in.Override {
		if colliding := s.softConflict(sameDay, requestedMin); colliding != nil {
			return nil, apperrors.NewConflictError(
				fmt.Sprintf("patient already has an appointment within %d minutes of %s", s.softConflictBufferMinutes, in.Time),
			).WithDetails(map[string]interface{}{
				"appointment_id":  colliding.ID,
				"doctor_id":       colliding.DoctorID,
				"service_type_id": colliding.ServiceTypeID,
				"time":            colliding.Time,
				"overridable":     true,
			})
		}
	}

	now := s.now().In(s.loc)
	appointment := &entities.Appointment{
		ID:            uuid.New().String(),
		DoctorID:      in.DoctorID,
		PatientID:     in.PatientID,
		HospitalID:    in.HospitalID,
		ServiceTypeID: in.ServiceTypeID,
		Date:          in.Date,
		Time:          in.Time,
		Cost:          serviceType.Cost,
		Status:        entities.AppointmentStatusUpcoming,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var seeded *entities.QueueItem
	err = s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		ticket, err := s.assignTicket(ctx, uow, doctor, in.PatientID, in.Date, sameDay)
		if err != nil {
			return err
		}
		appointment.QueueNumber = ticket

		if in.CollectedInCash {
			if _, err := s.ledger.Apply(ctx, uow, ApplyInput{
				UserID:      in.PatientID,
				Amount:      serviceType.Cost,
				Direction:   entities.TransactionCredit,
				Category:    entities.CategoryDeposit,
				Description: fmt.Sprintf("cash collected at desk for %s", serviceType.Name),
				ReferenceID: appointment.ID,
				HospitalID:  &in.HospitalID,
			}); err != nil {
				return err
			}
		}

		if _, err := s.ledger.Apply(ctx, uow, ApplyInput{
			UserID:      in.PatientID,
			Amount:      serviceType.Cost,
			Direction:   entities.TransactionDebit,
			Category:    entities.CategoryAppointmentFee,
			Description: fmt.Sprintf("appointment fee for %s", serviceType.Name),
			ReferenceID: appointment.ID,
			HospitalID:  &in.HospitalID,
		}); err != nil {
			return err
		}

		if err := s.appointmentRepo.Create(ctx, uow, appointment); err != nil {
			return err
		}

		if s.isToday(in.Date, now) {
			active, err := s.queueRepo.GetActiveByPatient(ctx, in.PatientID)
			if err != nil {
				return err
			}
			if active == nil {
				seeded = s.newQueueItem(appointment, now)
				if err := s.queueRepo.Create(ctx, uow, seeded); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishQueueEvent(ctx, entities.QueueEventJoined, seeded)
	s.dispatcher.DispatchAsync(in.PatientID, entities.NotificationAppointmentConfirmed, &entities.NotificationContent{
		Title: entities.NewLocalizedText("Appointment confirmed", "تم تأكيد الموعد"),
		Body: entities.NewLocalizedText(
			fmt.Sprintf("Your appointment with Dr. %s on %s at %s is confirmed.", doctor.Name, in.Date, in.Time),
			fmt.Sprintf("تم تأكيد موعدك مع د. %s بتاريخ %s الساعة %s.", doctor.Name, in.Date, in.Time),
		),
		Data: map[string]string{"appointment_id": appointment.ID},
	})

	return appointment, nil
}

// Cancel is the patient-initiated cancellation: refunds per the hospital's
// refund policy, exactly once.
func (s *BookingService) Cancel(ctx context.Context, appointmentID, actorID string) (*entities.Appointment, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appointment.IsUpcoming() {
		return nil, apperrors.NewConflictError("only upcoming appointments can be cancelled")
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != appointment.PatientID && !isStaff(actor.Role) {
		return nil, apperrors.NewUnauthorizedError("caller may not cancel this appointment")
	}

	hospital, err := s.hospitalRepo.GetByID(ctx, appointment.HospitalID)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		// Re-read under lock: racing cancels must not both pass the status
		// guard and credit the refund twice.
		locked, err := s.appointmentRepo.GetByIDForUpdate(ctx, uow, appointmentID)
		if err != nil {
			return err
		}
		if !locked.IsUpcoming() {
			return apperrors.NewConflictError("only upcoming appointments can be cancelled")
		}
		appointment = locked

		appointment.Status = entities.AppointmentStatusCancelled
		appointment.UpdatedAt = s.now()

		refund := appointment.Cost.
			Mul(decimalFromInt(hospital.RefundPolicyPercentage)).
			Div(decimalFromInt(100))
		if !appointment.IsRefunded && refund.IsPositive() {
			if _, err := s.ledger.Apply(ctx, uow, ApplyInput{
				UserID:      appointment.PatientID,
				Amount:      refund,
				Direction:   entities.TransactionCredit,
				Category:    entities.CategoryRefund,
				Description: fmt.Sprintf("%d%% refund for cancelled appointment", hospital.RefundPolicyPercentage),
				ReferenceID: appointment.ID,
				HospitalID:  &appointment.HospitalID,
			}); err != nil {
				return err
			}
			appointment.IsRefunded = true
		}

		return s.appointmentRepo.Update(ctx, uow, appointment)
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.DispatchAsync(appointment.PatientID, entities.NotificationAppointmentCancelled, &entities.NotificationContent{
		Title: entities.NewLocalizedText("Appointment cancelled", "تم إلغاء الموعد"),
		Body: entities.NewLocalizedText(
			fmt.Sprintf("Your appointment on %s at %s has been cancelled.", appointment.Date, appointment.Time),
			fmt.Sprintf("تم إلغاء موعدك بتاريخ %s الساعة %s.", appointment.Date, appointment.Time),
		),
		Data: map[string]string{"appointment_id": appointment.ID},
	})

	return appointment, nil
}

// CancelByDoctor flips one appointment to doctor_cancelled/pending. No
// refund happens here; the patient chooses a resolution later.
func (s *BookingService) CancelByDoctor(ctx context.Context, appointmentID, actorID string) (*entities.Appointment, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appointment.IsUpcoming() {
		return nil, apperrors.NewConflictError("only upcoming appointments can be cancelled")
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != appointment.DoctorID && !isStaff(actor.Role) {
		return nil, apperrors.NewUnauthorizedError("caller may not cancel this appointment")
	}

	err = s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		locked, err := s.appointmentRepo.GetByIDForUpdate(ctx, uow, appointmentID)
		if err != nil {
			return err
		}
		if !locked.IsUpcoming() {
			return apperrors.NewConflictError("only upcoming appointments can be cancelled")
		}
		appointment = locked

		appointment.Status = entities.AppointmentStatusDoctorCancelled
		appointment.CancellationResolution = entities.ResolutionPending
		appointment.UpdatedAt = s.now()
		return s.appointmentRepo.Update(ctx, uow, appointment)
	})
	if err != nil {
		return nil, err
	}

	s.notifyDoctorCancelled(appointment)
	return appointment, nil
}

// CancelRangeByDoctor bulk-cancels a doctor's upcoming appointments in the
// date range, used when a doctor is marked unavailable. Each appointment is
// processed in its own unit of work so one failure does not void the rest.
func (s *BookingService) CancelRangeByDoctor(ctx context.Context, doctorID, fromDate, toDate, actorID string) (int, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return 0, err
	}
	if actor.ID != doctorID && !isStaff(actor.Role) {
		return 0, apperrors.NewUnauthorizedError("caller may not cancel this doctor's appointments")
	}

	appointments, err := s.appointmentRepo.ListUpcomingByDoctorRange(ctx, doctorID, fromDate, toDate)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, appointment := range appointments {
		ap := appointment
		err := s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
			locked, err := s.appointmentRepo.GetByIDForUpdate(ctx, uow, ap.ID)
			if err != nil {
				return err
			}
			if !locked.IsUpcoming() {
				return apperrors.NewConflictError("appointment is no longer upcoming")
			}
			ap = locked

			ap.Status = entities.AppointmentStatusDoctorCancelled
			ap.CancellationResolution = entities.ResolutionPending
			ap.UpdatedAt = s.now()
			return s.appointmentRepo.Update(ctx, uow, ap)
		})
		if err != nil {
			log.Printf("Failed to doctor-cancel appointment %s: %v", ap.ID, err)
			continue
		}
		cancelled++
		s.notifyDoctorCancelled(ap)
	}

	return cancelled, nil
}

func (s *BookingService) notifyDoctorCancelled(appointment *entities.Appointment) {
	s.dispatcher.DispatchAsync(appointment.PatientID, entities.NotificationDoctorCancelled, &entities.NotificationContent{
		Title: entities.NewLocalizedText("Appointment cancelled by clinic", "تم إلغاء الموعد من قبل العيادة"),
		Body: entities.NewLocalizedText(
			fmt.Sprintf("We are sorry: your appointment on %s at %s was cancelled by the doctor. Please choose a refund, another doctor, or a new time.", appointment.Date, appointment.Time),
			fmt.Sprintf("نعتذر: تم إلغاء موعدك بتاريخ %s الساعة %s من قبل الطبيب. يرجى اختيار استرداد المبلغ أو طبيب آخر أو موعد جديد.", appointment.Date, appointment.Time),
		),
		Data: map[string]string{"appointment_id": appointment.ID},
	})
}

// Resolve applies the patient's chosen resolution to a doctor-cancelled
// appointment. Each appointment can be resolved exactly once.
func (s *BookingService) Resolve(ctx context.Context, appointmentID string, in ResolveInput) (*entities.Appointment, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	// The resolution sub-state is checked first: a resolved appointment is no
	// longer doctor_cancelled, so the status guard alone would misreport a
	// repeat attempt as a validation failure.
	if appointment.CancellationResolution != "" && appointment.CancellationResolution != entities.ResolutionPending {
		return nil, apperrors.NewAlreadyResolvedError("cancellation has already been resolved")
	}
	if appointment.Status != entities.AppointmentStatusDoctorCancelled {
		return nil, apperrors.NewValidationError("appointment was not cancelled by the doctor")
	}

	actor, err := s.userRepo.GetByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != appointment.PatientID && !isStaff(actor.Role) {
		return nil, apperrors.NewUnauthorizedError("caller may not resolve this appointment")
	}

	switch in.Action {
	case ResolveRefund:
		err = s.resolveRefund(ctx, appointment)
	case ResolveRedirect:
		err = s.resolveRedirect(ctx, appointment, in)
	case ResolveReschedule:
		err = s.resolveReschedule(ctx, appointment, in)
	default:
		return nil, apperrors.NewValidationError("action must be refund, redirect or reschedule")
	}
	if err != nil {
		return nil, err
	}

	s.dispatcher.DispatchAsync(appointment.PatientID, entities.NotificationRescheduled, &entities.NotificationContent{
		Title: entities.NewLocalizedText("Cancellation resolved", "تمت معالجة الإلغاء"),
		Body: entities.NewLocalizedText(
			fmt.Sprintf("Your cancelled appointment has been resolved (%s).", in.Action),
			fmt.Sprintf("تمت معالجة موعدك الملغى (%s).", in.Action),
		),
		Data: map[string]string{"appointment_id": appointment.ID},
	})

	return appointment, nil
}

// lockPendingResolution locks the appointment row and verifies the
// cancellation is still awaiting the patient's choice. Concurrent resolve
// attempts serialize here; the loser sees the winner's committed sub-state.
func (s *BookingService) lockPendingResolution(ctx context.Context, uow repositories.UnitOfWork, appointmentID string) (*entities.Appointment, error) {
	locked, err := s.appointmentRepo.GetByIDForUpdate(ctx, uow, appointmentID)
	if err != nil {
		return nil, err
	}
	if locked.Status != entities.AppointmentStatusDoctorCancelled || locked.CancellationResolution != entities.ResolutionPending {
		return nil, apperrors.NewAlreadyResolvedError("cancellation has already been resolved")
	}
	return locked, nil
}

// resolveRefund credits 100% of the original cost, independent of the
// hospital's refund policy.
func (s *BookingService) resolveRefund(ctx context.Context, appointment *entities.Appointment) error {
	return s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		locked, err := s.lockPendingResolution(ctx, uow, appointment.ID)
		if err != nil {
			return err
		}
		*appointment = *locked

		if !appointment.IsRefunded && appointment.Cost.IsPositive() {
			if _, err := s.ledger.Apply(ctx, uow, ApplyInput{
				UserID:      appointment.PatientID,
				Amount:      appointment.Cost,
				Direction:   entities.TransactionCredit,
				Category:    entities.CategoryRefund,
				Description: "full refund for doctor-cancelled appointment",
				ReferenceID: appointment.ID,
				HospitalID:  &appointment.HospitalID,
			}); err != nil {
				return err
			}
			appointment.IsRefunded = true
		}
		appointment.Status = entities.AppointmentStatusCancelled
		appointment.CancellationResolution = entities.ResolutionRefunded
		appointment.UpdatedAt = s.now()
		return s.appointmentRepo.Update(ctx, uow, appointment)
	})
}

func (s *BookingService) resolveRedirect(ctx context.Context, appointment *entities.Appointment, in ResolveInput) error {
	if in.NewDoctorID == "" {
		return apperrors.NewValidationError("redirect requires a replacement doctor")
	}

	replacement, err := s.userRepo.GetByID(ctx, in.NewDoctorID)
	if err != nil {
		return err
	}
	date := appointment.Date
	if in.NewDate != "" {
		date = in.NewDate
	}
	if err := s.checkReplacementFits(replacement, appointment.HospitalID, date); err != nil {
		return err
	}

	return s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		locked, err := s.lockPendingResolution(ctx, uow, appointment.ID)
		if err != nil {
			return err
		}
		*appointment = *locked

		appointment.DoctorID = in.NewDoctorID
		if in.NewDate != "" {
			appointment.Date = in.NewDate
		}
		if in.NewTime != "" {
			appointment.Time = in.NewTime
		}

		// The ticket sequence is per doctor, so a redirect always needs a
		// fresh number.
		seq, err := s.ticketRepo.Next(ctx, uow, appointment.DoctorID, appointment.Date)
		if err != nil {
			return err
		}
		appointment.QueueNumber = formatTicket(replacement.Name, seq)

		appointment.Status = entities.AppointmentStatusUpcoming
		appointment.CancellationResolution = entities.ResolutionRedirected
		appointment.UpdatedAt = s.now()
		return s.appointmentRepo.Update(ctx, uow, appointment)
	})
}

func (s *BookingService) resolveReschedule(ctx context.Context, appointment *entities.Appointment, in ResolveInput) error {
	if in.NewDate == "" || in.NewTime == "" {
		return apperrors.NewValidationError("reschedule requires a new date and time")
	}

	doctor, err := s.userRepo.GetByID(ctx, appointment.DoctorID)
	if err != nil {
		return err
	}
	if doctor.IsUnavailableOn(in.NewDate) {
		return apperrors.NewNotAvailableError(fmt.Sprintf("doctor is unavailable on %s", in.NewDate))
	}

	return s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		locked, err := s.lockPendingResolution(ctx, uow, appointment.ID)
		if err != nil {
			return err
		}
		*appointment = *locked

		dayChanged := appointment.Date != in.NewDate
		appointment.Date = in.NewDate
		appointment.Time = in.NewTime
		if dayChanged {
			seq, err := s.ticketRepo.Next(ctx, uow, appointment.DoctorID, appointment.Date)
			if err != nil {
				return err
			}
			appointment.QueueNumber = formatTicket(doctor.Name, seq)
		}
		appointment.Status = entities.AppointmentStatusUpcoming
		appointment.CancellationResolution = entities.ResolutionRescheduled
		appointment.UpdatedAt = s.now()
		return s.appointmentRepo.Update(ctx, uow, appointment)
	})
}

// EligibleReplacements lists doctors that could take over a doctor-cancelled
// appointment: same hospital, same specialty, active, available on the
// appointment's weekday at that hospital, not under an unavailability episode.
func (s *BookingService) EligibleReplacements(ctx context.Context, appointmentID string) ([]*entities.User, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	original, err := s.userRepo.GetByID(ctx, appointment.DoctorID)
	if err != nil {
		return nil, err
	}
	if original.SpecialtyID == "" {
		return nil, nil
	}

	candidates, err := s.userRepo.ListDoctorsBySpecialty(ctx, appointment.HospitalID, original.SpecialtyID)
	if err != nil {
		return nil, err
	}

	var eligible []*entities.User
	for _, candidate := range candidates {
		if candidate.ID == appointment.DoctorID {
			continue
		}
		if err := s.checkReplacementFits(candidate, appointment.HospitalID, appointment.Date); err != nil {
			continue
		}
		eligible = append(eligible, candidate)
	}
	return eligible, nil
}

func (s *BookingService) checkReplacementFits(doctor *entities.User, hospitalID, date string) error {
	if doctor.Role != entities.RoleDoctor || !doctor.IsUsable() {
		return apperrors.NewValidationError("replacement doctor is not usable")
	}
	if !doctor.PracticesAt(hospitalID) {
		return apperrors.NewValidationError("replacement doctor does not practice at this hospital")
	}
	if doctor.IsUnavailableOn(date) {
		return apperrors.NewNotAvailableError("replacement doctor is unavailable on this date")
	}
	day, err := timeutil.ParseDate(date, s.loc)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	window := doctor.AvailabilityOn(day.Weekday())
	if window == nil || !window.Available || window.HospitalID != hospitalID {
		return apperrors.NewNotAvailableError("replacement doctor has no working window that day")
	}
	return nil
}

// Reschedule moves an upcoming appointment to a new date/time. When the
// calendar day changes the ticket number is regenerated and live queue
// membership moves with it.
func (s *BookingService) Reschedule(ctx context.Context, appointmentID, newDate, newTime, actorID string) (*entities.Appointment, error) {
	if newDate == "" || newTime == "" {
		return nil, apperrors.NewValidationError("new date and time are required")
	}
	if _, err := timeutil.ParseDate(newDate, s.loc); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if _, err := timeutil.ParseClock(newTime); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	appointment, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appointment.IsUpcoming() {
		return nil, apperrors.NewConflictError("only upcoming appointments can be rescheduled")
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != appointment.PatientID && !isStaff(actor.Role) {
		return nil, apperrors.NewUnauthorizedError("caller may not reschedule this appointment")
	}

	doctor, err := s.userRepo.GetByID(ctx, appointment.DoctorID)
	if err != nil {
		return nil, err
	}
	if doctor.IsUnavailableOn(newDate) {
		return nil, apperrors.NewNotAvailableError(fmt.Sprintf("doctor is unavailable on %s", newDate))
	}

	now := s.now().In(s.loc)

	var seeded *entities.QueueItem
	var removed *entities.QueueItem
	err = s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		locked, err := s.appointmentRepo.GetByIDForUpdate(ctx, uow, appointmentID)
		if err != nil {
			return err
		}
		if !locked.IsUpcoming() {
			return apperrors.NewConflictError("only upcoming appointments can be rescheduled")
		}
		appointment = locked
		oldDate := appointment.Date
		dayChanged := oldDate != newDate

		appointment.Date = newDate
		appointment.Time = newTime
		appointment.UpdatedAt = s.now()

		if dayChanged {
			seq, err := s.ticketRepo.Next(ctx, uow, appointment.DoctorID, newDate)
			if err != nil {
				return err
			}
			appointment.QueueNumber = formatTicket(doctor.Name, seq)

			active, err := s.queueRepo.GetActiveByPatient(ctx, appointment.PatientID)
			if err != nil {
				return err
			}
			linked := active != nil && active.AppointmentID != nil && *active.AppointmentID == appointment.ID

			if linked && s.isToday(oldDate, now) && !s.isToday(newDate, now) {
				active.Status = entities.QueueStatusRemovedByAdmin
				active.UpdatedAt = s.now()
				if err := s.queueRepo.Update(ctx, uow, active); err != nil {
					return err
				}
				removed = active
			}
			if active == nil && s.isToday(newDate, now) {
				seeded = s.newQueueItem(appointment, now)
				if err := s.queueRepo.Create(ctx, uow, seeded); err != nil {
					return err
				}
			}
		}

		return s.appointmentRepo.Update(ctx, uow, appointment)
	})
	if err != nil {
		return nil, err
	}

	s.publishQueueEvent(ctx, entities.QueueEventLeft, removed)
	s.publishQueueEvent(ctx, entities.QueueEventJoined, seeded)
	s.dispatcher.DispatchAsync(appointment.PatientID, entities.NotificationRescheduled, &entities.NotificationContent{
		Title: entities.NewLocalizedText("Appointment rescheduled", "تم تغيير الموعد"),
		Body: entities.NewLocalizedText(
			fmt.Sprintf("Your appointment has been moved to %s at %s.", newDate, newTime),
			fmt.Sprintf("تم نقل موعدك إلى %s الساعة %s.", newDate, newTime),
		),
		Data: map[string]string{"appointment_id": appointment.ID},
	})

	return appointment, nil
}

// Complete marks an upcoming appointment completed, used by queue call-next
func (s *BookingService) Complete(ctx context.Context, appointmentID string) error {
	return s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		return s.completeWithin(ctx, uow, appointmentID)
	})
}

// completeWithin flips an upcoming appointment to completed inside an
// enclosing unit of work.
func (s *BookingService) completeWithin(ctx context.Context, uow repositories.UnitOfWork, appointmentID string) error {
	appointment, err := s.appointmentRepo.GetByIDForUpdate(ctx, uow, appointmentID)
	if err != nil {
		return err
	}
	if !appointment.IsUpcoming() {
		return apperrors.NewConflictError("only upcoming appointments can be completed")
	}

	appointment.Status = entities.AppointmentStatusCompleted
	appointment.UpdatedAt = s.now()
	return s.appointmentRepo.Update(ctx, uow, appointment)
}

// SetReminder toggles the patient's one-off reminder request flag
func (s *BookingService) SetReminder(ctx context.Context, appointmentID string, on bool) (*entities.Appointment, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		appointment.ReminderSet = on
		appointment.UpdatedAt = s.now()
		return s.appointmentRepo.Update(ctx, uow, appointment)
	})
	if err != nil {
		return nil, err
	}
	return appointment, nil
}

// Get retrieves one appointment
func (s *BookingService) Get(ctx context.Context, appointmentID string) (*entities.Appointment, error) {
	return s.appointmentRepo.GetByID(ctx, appointmentID)
}

// ListByPatient retrieves a patient's appointments
func (s *BookingService) ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return s.appointmentRepo.ListByPatient(ctx, patientID, filter)
}

// ListByDoctor retrieves a doctor's appointments
func (s *BookingService) ListByDoctor(ctx context.Context, doctorID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return s.appointmentRepo.ListByDoctor(ctx, doctorID, filter)
}

// softConflict returns the first same-day appointment within the fairness
// buffer of the requested start time, ignoring unparseable stored times.
func (s *BookingService) softConflict(sameDay []*entities.Appointment, requestedMin int) *entities.Appointment {
	for _, ap := range sameDay {
		existingMin, err := timeutil.ParseClock(ap.Time)
		if err != nil {
			continue
		}
		diff := existingMin - requestedMin
		if diff < 0 {
			diff = -diff
		}
		if diff < s.softConflictBufferMinutes {
			return ap
		}
	}
	return nil
}

// assignTicket reuses the patient's same-day ticket for this doctor when one
// exists, otherwise draws the next number from the per-(doctor, day) sequence.
func (s *BookingService) assignTicket(ctx context.Context, uow repositories.UnitOfWork, doctor *entities.User, patientID, date string, sameDay []*entities.Appointment) (string, error) {
	for _, ap := range sameDay {
		if ap.DoctorID == doctor.ID && ap.QueueNumber != "" {
			return ap.QueueNumber, nil
		}
	}
	seq, err := s.ticketRepo.Next(ctx, uow, doctor.ID, date)
	if err != nil {
		return "", err
	}
	return formatTicket(doctor.Name, seq), nil
}

func (s *BookingService) newQueueItem(appointment *entities.Appointment, now time.Time) *entities.QueueItem {
	appointmentID := appointment.ID
	patientID := appointment.PatientID
	return &entities.QueueItem{
		ID:            uuid.New().String(),
		DoctorID:      appointment.DoctorID,
		HospitalID:    appointment.HospitalID,
		PatientID:     &patientID,
		AppointmentID: &appointmentID,
		TicketNumber:  appointment.QueueNumber,
		Status:        entities.QueueStatusWaiting,
		CheckInTime:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *BookingService) isToday(date string, now time.Time) bool {
	day, err := timeutil.ParseDate(date, s.loc)
	if err != nil {
		return false
	}
	return timeutil.SameDay(day, now, s.loc)
}

func (s *BookingService) publishQueueEvent(ctx context.Context, eventType entities.QueueEventType, item *entities.QueueItem) {
	if item == nil || s.eventBus == nil {
		return
	}
	channel := providers.GetDoctorQueueChannel(item.DoctorID)
	if err := s.eventBus.Publish(ctx, channel, entities.NewQueueEvent(eventType, item)); err != nil {
		log.Printf("Failed to publish queue event for doctor %s: %v", item.DoctorID, err)
	}
}

// formatTicket renders a queue ticket as the doctor's initial plus a
// zero-padded per-day sequence, e.g. "A007".
func formatTicket(doctorName string, seq int) string {
	initial := "Q"
	trimmed := strings.TrimSpace(doctorName)
	if trimmed != "" {
		initial = strings.ToUpper(string([]rune(trimmed)[0]))
	}
	return fmt.Sprintf("%s%03d", initial, seq)
}

func decimalFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}

func isStaff(role entities.UserRole) bool {
	switch role {
	case entities.RoleStaff, entities.RoleManager, entities.RoleAdmin:
		return true
	}
	return false
}
