package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/providers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/Zubair-mohamed/myclinic-backend/pkg/timeutil"
	"github.com/google/uuid"
)

// JoinInput describes a patient joining a doctor's line
type JoinInput struct {
	PatientID  string
	DoctorID   string
	HospitalID string
}

// QueueService owns the live per-doctor waiting line. Every mutation
// publishes a queue event on the doctor's channel, best effort.
type QueueService struct {
	txManager       repositories.TxManager
	queueRepo       repositories.QueueRepository
	ticketRepo      repositories.TicketRepository
	appointmentRepo repositories.AppointmentRepository
	userRepo        repositories.UserRepository
	booking         *BookingService
	dispatcher      providers.Dispatcher
	eventBus        providers.EventBus

	avgConsultationMinutes int
	loc                    *time.Location
	now                    func() time.Time
}

// NewQueueService creates a new queue service
func NewQueueService(
	txManager repositories.TxManager,
	queueRepo repositories.QueueRepository,
	ticketRepo repositories.TicketRepository,
	appointmentRepo repositories.AppointmentRepository,
	userRepo repositories.UserRepository,
	booking *BookingService,
	dispatcher providers.Dispatcher,
	eventBus providers.EventBus,
	avgConsultationMinutes int,
	loc *time.Location,
) *QueueService {
	if loc == nil {
		loc = time.Local
	}
	return &QueueService{
		txManager:              txManager,
		queueRepo:              queueRepo,
		ticketRepo:             ticketRepo,
		appointmentRepo:        appointmentRepo,
		userRepo:               userRepo,
		booking:                booking,
		dispatcher:             dispatcher,
		eventBus:               eventBus,
		avgConsultationMinutes: avgConsultationMinutes,
		loc:                    loc,
		now:                    time.Now,
	}
}

// Join inserts a registered patient into a doctor's waiting line
func (s *QueueService) Join(ctx context.Context, in JoinInput) (*entities.QueueItem, error) {
	if in.PatientID == "" || in.DoctorID == "" || in.HospitalID == "" {
		return nil, apperrors.NewValidationError("patient, doctor and hospital are required")
	}

	if _, err := s.userRepo.GetByID(ctx, in.PatientID); err != nil {
		return nil, err
	}
	doctor, err := s.userRepo.GetByID(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}

	active, err := s.queueRepo.GetActiveByPatient(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperrors.NewConflictError("patient already has an active queue entry")
	}

	var item *entities.QueueItem
	err = s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		ticket, err := s.patientTicket(ctx, uow, doctor, in.PatientID)
		if err != nil {
			return err
		}

		now := s.now()
		patientID := in.PatientID
		item = &entities.QueueItem{
			ID:           uuid.New().String(),
			DoctorID:     in.DoctorID,
			HospitalID:   in.HospitalID,
			PatientID:    &patientID,
			TicketNumber: ticket,
			Status:       entities.QueueStatusWaiting,
			CheckInTime:  now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return s.queueRepo.Create(ctx, uow, item)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entities.QueueEventJoined, item)
	return item, nil
}

// Leave removes the patient's waiting or held entry from the line. It is a
// no-op when the patient is not queued.
func (s *QueueService) Leave(ctx context.Context, patientID string) (*entities.QueueItem, error) {
	active, err := s.queueRepo.GetActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	if active.Status == entities.QueueStatusServing {
		return nil, apperrors.NewConflictError("patient is currently being served")
	}

	active.Status = entities.QueueStatusLeft
	now := s.now()
	active.FinishedAt = &now
	active.UpdatedAt = now
	if err := s.queueRepo.Update(ctx, nil, active); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.QueueEventLeft, active)
	return active, nil
}

// CallNext finishes the doctor's current consultation and promotes the
// earliest waiting entry to serving, as one unit of work: the done flip,
// the linked appointment's completion and the promotion commit together or
// not at all. It returns the newly serving entry, or nil when the line is
// empty.
func (s *QueueService) CallNext(ctx context.Context, doctorID string) (*entities.QueueItem, error) {
	var finished, next, upNext *entities.QueueItem
	err := s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		serving, err := s.queueRepo.GetServingByDoctor(ctx, doctorID)
		if err != nil {
			return err
		}
		if serving != nil {
			// Complete the appointment before touching the queue entry, so a
			// rejected completion leaves the entry serving.
			if serving.AppointmentID != nil {
				if err := s.booking.completeWithin(ctx, uow, *serving.AppointmentID); err != nil {
					return err
				}
			}

			serving.Status = entities.QueueStatusDone
			now := s.now()
			serving.FinishedAt = &now
			serving.UpdatedAt = now
			if err := s.queueRepo.Update(ctx, uow, serving); err != nil {
				return err
			}
			finished = serving
		}

		waiting, err := s.queueRepo.ListWaitingByDoctor(ctx, doctorID)
		if err != nil {
			return err
		}
		if len(waiting) == 0 {
			return nil
		}

		next = waiting[0]
		next.Status = entities.QueueStatusServing
		now := s.now()
		next.ServedAt = &now
		next.UpdatedAt = now
		if err := s.queueRepo.Update(ctx, uow, next); err != nil {
			return err
		}
		if len(waiting) > 1 {
			upNext = waiting[1]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entities.QueueEventCompleted, finished)
	if next == nil {
		return nil, nil
	}
	s.publish(ctx, entities.QueueEventCalled, next)

	// Best effort heads-up to whoever is now first in line
	if upNext != nil && upNext.PatientID != nil {
		s.dispatcher.DispatchAsync(*upNext.PatientID, entities.NotificationQueueCalled, &entities.NotificationContent{
			Title: entities.NewLocalizedText("You are next", "أنت التالي"),
			Body: entities.NewLocalizedText(
				fmt.Sprintf("Ticket %s: please be ready, you are next in line.", upNext.TicketNumber),
				fmt.Sprintf("التذكرة %s: يرجى الاستعداد، أنت التالي في الطابور.", upNext.TicketNumber),
			),
			Data: map[string]string{"queue_item_id": upNext.ID},
		})
	}

	return next, nil
}

// Hold temporarily skips a waiting or serving entry
func (s *QueueService) Hold(ctx context.Context, queueItemID string) (*entities.QueueItem, error) {
	item, err := s.queueRepo.GetByID(ctx, queueItemID)
	if err != nil {
		return nil, err
	}
	if item.Status != entities.QueueStatusWaiting && item.Status != entities.QueueStatusServing {
		return nil, apperrors.NewValidationError("only waiting or serving entries can be held")
	}

	item.Status = entities.QueueStatusHeld
	item.UpdatedAt = s.now()
	if err := s.queueRepo.Update(ctx, nil, item); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.QueueEventHeld, item)
	return item, nil
}

// Resume puts a held entry back into the waiting line. The original
// check-in time is kept, so the patient loses no fairness priority.
func (s *QueueService) Resume(ctx context.Context, queueItemID string) (*entities.QueueItem, error) {
	item, err := s.queueRepo.GetByID(ctx, queueItemID)
	if err != nil {
		return nil, err
	}
	if item.Status != entities.QueueStatusHeld {
		return nil, apperrors.NewValidationError("only held entries can be resumed")
	}

	item.Status = entities.QueueStatusWaiting
	item.UpdatedAt = s.now()
	if err := s.queueRepo.Update(ctx, nil, item); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.QueueEventResumed, item)
	return item, nil
}

// AddWalkIn inserts a walk-in visitor into a doctor's line, resolving the
// hospital from the doctor's schedule for today.
func (s *QueueService) AddWalkIn(ctx context.Context, name, doctorID string) (*entities.QueueItem, error) {
	if name == "" {
		return nil, apperrors.NewValidationError("visitor name is required")
	}

	doctor, err := s.userRepo.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	hospitalID := ""
	if window := doctor.AvailabilityOn(s.now().In(s.loc).Weekday()); window != nil && window.HospitalID != "" {
		hospitalID = window.HospitalID
	} else if len(doctor.HospitalIDs) > 0 {
		hospitalID = doctor.HospitalIDs[0]
	}
	if hospitalID == "" {
		return nil, apperrors.NewValidationError("doctor has no hospital assignment")
	}

	return s.addWalkInEntry(ctx, name, doctorID, hospitalID)
}

// AddWalkInBySpecialty routes a walk-in to whichever doctor of the specialty
// at the hospital currently has the fewest waiting entries.
func (s *QueueService) AddWalkInBySpecialty(ctx context.Context, name, specialtyID, hospitalID string) (*entities.QueueItem, error) {
	if name == "" {
		return nil, apperrors.NewValidationError("visitor name is required")
	}

	doctors, err := s.userRepo.ListDoctorsBySpecialty(ctx, hospitalID, specialtyID)
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, apperrors.NewNotFoundError("no doctors with this specialty at the hospital")
	}

	var chosen *entities.User
	least := -1
	for _, doctor := range doctors {
		count, err := s.queueRepo.CountWaitingByDoctor(ctx, doctor.ID)
		if err != nil {
			return nil, err
		}
		if least < 0 || count < least {
			chosen = doctor
			least = count
		}
	}

	return s.addWalkInEntry(ctx, name, chosen.ID, hospitalID)
}

func (s *QueueService) addWalkInEntry(ctx context.Context, name, doctorID, hospitalID string) (*entities.QueueItem, error) {
	var item *entities.QueueItem
	err := s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		now := s.now()
		seq, err := s.ticketRepo.Next(ctx, uow, doctorID, now.In(s.loc).Format(timeutil.DateLayout))
		if err != nil {
			return err
		}

		item = &entities.QueueItem{
			ID:           uuid.New().String(),
			DoctorID:     doctorID,
			HospitalID:   hospitalID,
			VisitorName:  name,
			TicketNumber: fmt.Sprintf("W%03d", seq),
			Status:       entities.QueueStatusWaiting,
			CheckInTime:  now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return s.queueRepo.Create(ctx, uow, item)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entities.QueueEventWalkIn, item)
	return item, nil
}

// CheckIn converts a scheduled appointment into a live queue entry
func (s *QueueService) CheckIn(ctx context.Context, appointmentID string) (*entities.QueueItem, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appointment.IsUpcoming() {
		return nil, apperrors.NewValidationError("only upcoming appointments can check in")
	}

	active, err := s.queueRepo.GetActiveByPatient(ctx, appointment.PatientID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperrors.NewConflictError("patient already has an active queue entry")
	}

	var item *entities.QueueItem
	err = s.txManager.WithinTx(ctx, func(uow repositories.UnitOfWork) error {
		if appointment.QueueNumber == "" {
			doctor, err := s.userRepo.GetByID(ctx, appointment.DoctorID)
			if err != nil {
				return err
			}
			seq, err := s.ticketRepo.Next(ctx, uow, appointment.DoctorID, appointment.Date)
			if err != nil {
				return err
			}
			appointment.QueueNumber = formatTicket(doctor.Name, seq)
			appointment.UpdatedAt = s.now()
			if err := s.appointmentRepo.Update(ctx, uow, appointment); err != nil {
				return err
			}
		}

		now := s.now()
		patientID := appointment.PatientID
		appointmentRef := appointment.ID
		item = &entities.QueueItem{
			ID:            uuid.New().String(),
			DoctorID:      appointment.DoctorID,
			HospitalID:    appointment.HospitalID,
			PatientID:     &patientID,
			AppointmentID: &appointmentRef,
			TicketNumber:  appointment.QueueNumber,
			Status:        entities.QueueStatusWaiting,
			CheckInTime:   now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return s.queueRepo.Create(ctx, uow, item)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entities.QueueEventCheckedIn, item)
	return item, nil
}

// Status returns the patient's live queue position. A patient with no
// active entry but an upcoming appointment dated within the skew tolerance
// of today is transparently joined first.
func (s *QueueService) Status(ctx context.Context, patientID string) (*entities.QueuePosition, error) {
	active, err := s.queueRepo.GetActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if active == nil {
		active, err = s.autoJoin(ctx, patientID)
		if err != nil {
			return nil, err
		}
	}
	if active == nil {
		return nil, apperrors.NewNotFoundError("patient is not in any queue")
	}

	position := 0
	if active.Status == entities.QueueStatusWaiting {
		waiting, err := s.queueRepo.ListWaitingByDoctor(ctx, active.DoctorID)
		if err != nil {
			return nil, err
		}
		for i, item := range waiting {
			if item.ID == active.ID {
				position = i + 1
				break
			}
		}
	}

	estimated := 0
	if position > 0 {
		estimated = (position - 1) * s.avgConsultationMinutes
	}

	return &entities.QueuePosition{
		Item:                 active,
		Position:             position,
		EstimatedWaitMinutes: estimated,
	}, nil
}

// autoJoin creates a waiting entry for a patient with an upcoming
// appointment dated today, within the configured day skew tolerance.
func (s *QueueService) autoJoin(ctx context.Context, patientID string) (*entities.QueueItem, error) {
	now := s.now().In(s.loc)
	for offset := -timeutil.QueueDateSkewToleranceDays; offset <= timeutil.QueueDateSkewToleranceDays; offset++ {
		date := now.AddDate(0, 0, offset).Format(timeutil.DateLayout)
		appointments, err := s.appointmentRepo.ListUpcomingByPatientDate(ctx, patientID, date)
		if err != nil {
			return nil, err
		}
		if len(appointments) == 0 {
			continue
		}

		item, err := s.CheckIn(ctx, appointments[0].ID)
		if err != nil {
			// The single-active-entry invariant decides races; a loss here
			// means the patient got queued some other way meanwhile.
			if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
				return s.queueRepo.GetActiveByPatient(ctx, patientID)
			}
			return nil, err
		}
		return item, nil
	}
	return nil, nil
}

// Board returns the doctor-facing view of the whole line
func (s *QueueService) Board(ctx context.Context, doctorID string) (*entities.QueueBoard, error) {
	serving, err := s.queueRepo.GetServingByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	waiting, err := s.queueRepo.ListWaitingByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	held, err := s.queueRepo.ListHeldByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	if waiting == nil {
		waiting = []*entities.QueueItem{}
	}
	if held == nil {
		held = []*entities.QueueItem{}
	}

	return &entities.QueueBoard{
		DoctorID: doctorID,
		Serving:  serving,
		Waiting:  waiting,
		Held:     held,
	}, nil
}

// patientTicket reuses the ticket from the patient's same-day upcoming
// appointment with this doctor, or draws a new sequence number.
func (s *QueueService) patientTicket(ctx context.Context, uow repositories.UnitOfWork, doctor *entities.User, patientID string) (string, error) {
	today := s.now().In(s.loc).Format(timeutil.DateLayout)
	sameDay, err := s.appointmentRepo.ListUpcomingByPatientDate(ctx, patientID, today)
	if err != nil {
		return "", err
	}
	for _, ap := range sameDay {
		if ap.DoctorID == doctor.ID && ap.QueueNumber != "" {
			return ap.QueueNumber, nil
		}
	}

	seq, err := s.ticketRepo.Next(ctx, uow, doctor.ID, today)
	if err != nil {
		return "", err
	}
	return formatTicket(doctor.Name, seq), nil
}

func (s *QueueService) publish(ctx context.Context, eventType entities.QueueEventType, item *entities.QueueItem) {
	if item == nil || s.eventBus == nil {
		return
	}
	channel := providers.GetDoctorQueueChannel(item.DoctorID)
	if err := s.eventBus.Publish(ctx, channel, entities.NewQueueEvent(eventType, item)); err != nil {
		log.Printf("Failed to publish queue event for doctor %s: %v", item.DoctorID, err)
	}
}
