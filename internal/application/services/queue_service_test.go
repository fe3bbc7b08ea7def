package services

import (
	"context"
	"testing"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queueFixture struct {
	svc             *QueueService
	booking         *BookingService
	queueRepo       *fakeQueueRepo
	appointmentRepo *fakeAppointmentRepo
	userRepo        *fakeUserRepo
	dispatcher      *fakeDispatcher
	bus             *fakeEventBus

	clock time.Time
}

// 2026-03-01 is a Sunday; both doctors hold a Sunday window.
func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()

	sunday := []entities.DayAvailability{
		{Weekday: time.Sunday, Available: true, Start: "09:00", End: "15:00", HospitalID: "hospital-1"},
	}
	patient1 := &entities.User{ID: "patient-1", Name: "Sara", Role: entities.RolePatient, Active: true}
	patient2 := &entities.User{ID: "patient-2", Name: "Omar", Role: entities.RolePatient, Active: true}
	patient3 := &entities.User{ID: "patient-3", Name: "Nour", Role: entities.RolePatient, Active: true}
	doctor1 := &entities.User{
		ID: "doctor-1", Name: "Ahmed", Role: entities.RoleDoctor, Active: true,
		SpecialtyID: "cardiology", HospitalIDs: []string{"hospital-1"}, Availability: sunday,
	}
	doctor2 := &entities.User{
		ID: "doctor-2", Name: "Basma", Role: entities.RoleDoctor, Active: true,
		SpecialtyID: "cardiology", HospitalIDs: []string{"hospital-1"}, Availability: sunday,
	}

	hospitalRepo := newFakeHospitalRepo()
	hospitalRepo.hospitals["hospital-1"] = &entities.Hospital{ID: "hospital-1", Name: "Central", RefundPolicyPercentage: 80}
	hospitalRepo.services["service-1"] = &entities.ServiceType{
		ID: "service-1", HospitalID: "hospital-1", Name: "Consultation",
		DurationMinutes: 15, Cost: decimal.NewFromInt(50),
	}

	walletRepo := newFakeWalletRepo()
	appointmentRepo := newFakeAppointmentRepo()
	queueRepo := newFakeQueueRepo()
	ticketRepo := newFakeTicketRepo()
	userRepo := newFakeUserRepo(patient1, patient2, patient3, doctor1, doctor2)
	dispatcher := &fakeDispatcher{}
	bus := &fakeEventBus{}

	ledger := NewLedgerService(walletRepo, fakeTxManager{}, "EGP")
	booking := NewBookingService(
		fakeTxManager{}, appointmentRepo, queueRepo, ticketRepo,
		userRepo, hospitalRepo, ledger, dispatcher, bus, 60, time.UTC,
	)
	svc := NewQueueService(
		fakeTxManager{}, queueRepo, ticketRepo, appointmentRepo,
		userRepo, booking, dispatcher, bus, 15, time.UTC,
	)

	f := &queueFixture{
		svc: svc, booking: booking, queueRepo: queueRepo, appointmentRepo: appointmentRepo,
		userRepo: userRepo, dispatcher: dispatcher, bus: bus,
		clock: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	booking.now = func() time.Time { return f.clock }
	svc.now = func() time.Time { return f.clock }
	return f
}

// advance moves the fixture clock so later joins sort after earlier ones
func (f *queueFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *queueFixture) join(t *testing.T, patientID string) *entities.QueueItem {
	t.Helper()
	item, err := f.svc.Join(context.Background(), JoinInput{
		PatientID: patientID, DoctorID: "doctor-1", HospitalID: "hospital-1",
	})
	require.NoError(t, err)
	return item
}

func TestQueueService_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("joins the line with a fresh ticket", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)

		// Act
		item := f.join(t, "patient-1")

		// Assert
		assert.Equal(t, entities.QueueStatusWaiting, item.Status)
		assert.Equal(t, "A001", item.TicketNumber)
		require.Len(t, f.bus.events, 1)
		assert.Equal(t, entities.QueueEventJoined, f.bus.events[0].EventType)
	})

	t.Run("a patient can hold only one active entry", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)
		f.join(t, "patient-1")

		// Act: second join, even with another doctor
		_, err := f.svc.Join(ctx, JoinInput{
			PatientID: "patient-1", DoctorID: "doctor-2", HospitalID: "hospital-1",
		})

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})

	t.Run("reuses the ticket of a same-day appointment with the doctor", func(t *testing.T) {
		// Arrange: an upcoming appointment today already carries A007
		f := newQueueFixture(t)
		require.NoError(t, f.appointmentRepo.Create(ctx, nil, &entities.Appointment{
			ID: "ap-1", DoctorID: "doctor-1", PatientID: "patient-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-01", Time: "11:00",
			Status: entities.AppointmentStatusUpcoming, QueueNumber: "A007",
		}))

		// Act
		item := f.join(t, "patient-1")

		// Assert
		assert.Equal(t, "A007", item.TicketNumber)
	})
}

func TestQueueService_Leave(t *testing.T) {
	ctx := context.Background()

	t.Run("waiting patient leaves the line", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)
		f.join(t, "patient-1")

		// Act
		left, err := f.svc.Leave(ctx, "patient-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, entities.QueueStatusLeft, left.Status)
		assert.NotNil(t, left.FinishedAt)

		active, err := f.queueRepo.GetActiveByPatient(ctx, "patient-1")
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("leaving while not queued is a no-op", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)

		// Act
		left, err := f.svc.Leave(ctx, "patient-1")

		// Assert
		assert.NoError(t, err)
		assert.Nil(t, left)
	})

	t.Run("a patient being served cannot leave", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)
		f.join(t, "patient-1")
		_, err := f.svc.CallNext(ctx, "doctor-1")
		require.NoError(t, err)

		// Act
		_, err = f.svc.Leave(ctx, "patient-1")

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestQueueService_CallNext(t *testing.T) {
	ctx := context.Background()

	t.Run("finishes the consultation, completes the appointment and promotes FIFO", func(t *testing.T) {
		// Arrange: patient-1 is being served against an appointment,
		// patient-2 and patient-3 wait behind in join order
		f := newQueueFixture(t)
		require.NoError(t, f.appointmentRepo.Create(ctx, nil, &entities.Appointment{
			ID: "ap-1", DoctorID: "doctor-1", PatientID: "patient-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-01", Time: "10:00",
			Status: entities.AppointmentStatusUpcoming, QueueNumber: "A001",
		}))
		served, err := f.svc.CheckIn(ctx, "ap-1")
		require.NoError(t, err)
		_, err = f.svc.CallNext(ctx, "doctor-1")
		require.NoError(t, err)

		f.advance(time.Minute)
		second := f.join(t, "patient-2")
		f.advance(time.Minute)
		f.join(t, "patient-3")

		// Act
		next, err := f.svc.CallNext(ctx, "doctor-1")

		// Assert: the earliest waiting entry is now serving
		require.NoError(t, err)
		assert.Equal(t, second.ID, next.ID)
		assert.Equal(t, entities.QueueStatusServing, next.Status)
		assert.NotNil(t, next.ServedAt)

		// The finished entry is done and its appointment completed
		finished, err := f.queueRepo.GetByID(ctx, served.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.QueueStatusDone, finished.Status)
		completed, err := f.appointmentRepo.GetByID(ctx, "ap-1")
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusCompleted, completed.Status)

		// Whoever is now first in line gets a heads-up
		assert.Equal(t, 1, f.dispatcher.count(entities.NotificationQueueCalled))
	})

	t.Run("a consultation that cannot be completed leaves the entry serving", func(t *testing.T) {
		// Arrange: the linked appointment was cancelled out from under the
		// serving entry
		f := newQueueFixture(t)
		require.NoError(t, f.appointmentRepo.Create(ctx, nil, &entities.Appointment{
			ID: "ap-1", DoctorID: "doctor-1", PatientID: "patient-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-01", Time: "10:00",
			Status: entities.AppointmentStatusUpcoming, QueueNumber: "A001",
		}))
		served, err := f.svc.CheckIn(ctx, "ap-1")
		require.NoError(t, err)
		_, err = f.svc.CallNext(ctx, "doctor-1")
		require.NoError(t, err)

		stored, err := f.appointmentRepo.GetByID(ctx, "ap-1")
		require.NoError(t, err)
		stored.Status = entities.AppointmentStatusCancelled
		require.NoError(t, f.appointmentRepo.Update(ctx, nil, stored))

		f.advance(time.Minute)
		f.join(t, "patient-2")

		// Act
		_, err = f.svc.CallNext(ctx, "doctor-1")

		// Assert: nothing half-applied, the consultation is still open
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		current, err := f.queueRepo.GetByID(ctx, served.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.QueueStatusServing, current.Status)

		waiting, err := f.queueRepo.ListWaitingByDoctor(ctx, "doctor-1")
		require.NoError(t, err)
		require.Len(t, waiting, 1)
		assert.Equal(t, entities.QueueStatusWaiting, waiting[0].Status)
	})

	t.Run("empty line returns nothing", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)

		// Act
		next, err := f.svc.CallNext(ctx, "doctor-1")

		// Assert
		assert.NoError(t, err)
		assert.Nil(t, next)
	})
}

func TestQueueService_HoldResume(t *testing.T) {
	ctx := context.Background()

	t.Run("resume keeps the original check-in time", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)
		first := f.join(t, "patient-1")
		f.advance(time.Minute)
		f.join(t, "patient-2")

		// Act
		held, err := f.svc.Hold(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.QueueStatusHeld, held.Status)

		f.advance(10 * time.Minute)
		resumed, err := f.svc.Resume(ctx, first.ID)

		// Assert: back in the line at the original position
		require.NoError(t, err)
		assert.Equal(t, entities.QueueStatusWaiting, resumed.Status)
		assert.True(t, resumed.CheckInTime.Equal(first.CheckInTime))

		waiting, err := f.queueRepo.ListWaitingByDoctor(ctx, "doctor-1")
		require.NoError(t, err)
		require.Len(t, waiting, 2)
		assert.Equal(t, first.ID, waiting[0].ID)
	})

	t.Run("only held entries can be resumed", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)
		item := f.join(t, "patient-1")

		// Act
		_, err := f.svc.Resume(ctx, item.ID)

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestQueueService_WalkIns(t *testing.T) {
	ctx := context.Background()

	t.Run("walk-in gets a W ticket at the doctor's hospital for today", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)

		// Act
		item, err := f.svc.AddWalkIn(ctx, "Walk In Visitor", "doctor-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "W001", item.TicketNumber)
		assert.Equal(t, "hospital-1", item.HospitalID)
		assert.Equal(t, "Walk In Visitor", item.VisitorName)
		assert.Nil(t, item.PatientID)
	})

	t.Run("specialty walk-in routes to the least loaded doctor", func(t *testing.T) {
		// Arrange: doctor-1 already has two waiting, doctor-2 none
		f := newQueueFixture(t)
		f.join(t, "patient-1")
		f.advance(time.Minute)
		f.join(t, "patient-2")

		// Act
		item, err := f.svc.AddWalkInBySpecialty(ctx, "Walk In Visitor", "cardiology", "hospital-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "doctor-2", item.DoctorID)
	})

	t.Run("unknown specialty at the hospital is not found", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)

		// Act
		_, err := f.svc.AddWalkInBySpecialty(ctx, "Walk In Visitor", "dermatology", "hospital-1")

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("walk-in requires a name", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)

		// Act
		_, err := f.svc.AddWalkIn(ctx, "", "doctor-1")

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestQueueService_CheckIn(t *testing.T) {
	ctx := context.Background()

	t.Run("generates and persists a ticket when the appointment has none", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)
		require.NoError(t, f.appointmentRepo.Create(ctx, nil, &entities.Appointment{
			ID: "ap-1", DoctorID: "doctor-1", PatientID: "patient-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-01", Time: "11:00",
			Status: entities.AppointmentStatusUpcoming,
		}))

		// Act
		item, err := f.svc.CheckIn(ctx, "ap-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "A001", item.TicketNumber)
		stored, err := f.appointmentRepo.GetByID(ctx, "ap-1")
		require.NoError(t, err)
		assert.Equal(t, "A001", stored.QueueNumber)
	})

	t.Run("rejects a second active entry", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)
		f.join(t, "patient-1")
		require.NoError(t, f.appointmentRepo.Create(ctx, nil, &entities.Appointment{
			ID: "ap-1", DoctorID: "doctor-2", PatientID: "patient-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-01", Time: "11:00",
			Status: entities.AppointmentStatusUpcoming,
		}))

		// Act
		_, err := f.svc.CheckIn(ctx, "ap-1")

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})

	t.Run("only upcoming appointments can check in", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)
		require.NoError(t, f.appointmentRepo.Create(ctx, nil, &entities.Appointment{
			ID: "ap-1", DoctorID: "doctor-1", PatientID: "patient-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-01", Time: "11:00",
			Status: entities.AppointmentStatusCancelled,
		}))

		// Act
		_, err := f.svc.CheckIn(ctx, "ap-1")

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestQueueService_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("reports the 1-based position among waiting entries", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)
		f.join(t, "patient-1")
		f.advance(time.Minute)
		f.join(t, "patient-2")

		// Act
		position, err := f.svc.Status(ctx, "patient-2")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 2, position.Position)
		assert.Equal(t, 15, position.EstimatedWaitMinutes)
	})

	t.Run("auto-joins a patient with an appointment dated today", func(t *testing.T) {
		// Arrange: upcoming appointment today, no queue entry yet
		f := newQueueFixture(t)
		require.NoError(t, f.appointmentRepo.Create(ctx, nil, &entities.Appointment{
			ID: "ap-1", DoctorID: "doctor-1", PatientID: "patient-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-01", Time: "11:00",
			Status: entities.AppointmentStatusUpcoming, QueueNumber: "A004",
		}))

		// Act
		position, err := f.svc.Status(ctx, "patient-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, position.Position)
		assert.Equal(t, 0, position.EstimatedWaitMinutes)
		assert.Equal(t, "A004", position.Item.TicketNumber)
	})

	t.Run("tolerates one day of date skew when auto-joining", func(t *testing.T) {
		// Arrange: the appointment is dated tomorrow relative to the server clock
		f := newQueueFixture(t)
		require.NoError(t, f.appointmentRepo.Create(ctx, nil, &entities.Appointment{
			ID: "ap-1", DoctorID: "doctor-1", PatientID: "patient-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-02", Time: "11:00",
			Status: entities.AppointmentStatusUpcoming, QueueNumber: "A004",
		}))

		// Act
		position, err := f.svc.Status(ctx, "patient-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, position.Position)
	})

	t.Run("not queued and nothing to auto-join is not found", func(t *testing.T) {
		// Arrange
		f := newQueueFixture(t)

		// Act
		_, err := f.svc.Status(ctx, "patient-1")

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}

func TestQueueService_Board(t *testing.T) {
	t.Run("splits the line into serving, waiting and held", func(t *testing.T) {
		// Arrange
		ctx := context.Background()
		f := newQueueFixture(t)
		f.join(t, "patient-1")
		f.advance(time.Minute)
		_, err := f.svc.CallNext(ctx, "doctor-1")
		require.NoError(t, err)
		second := f.join(t, "patient-2")
		f.advance(time.Minute)
		f.join(t, "patient-3")
		_, err = f.svc.Hold(ctx, second.ID)
		require.NoError(t, err)

		// Act
		board, err := f.svc.Board(ctx, "doctor-1")

		// Assert
		require.NoError(t, err)
		require.NotNil(t, board.Serving)
		assert.Equal(t, "patient-1", *board.Serving.PatientID)
		require.Len(t, board.Waiting, 1)
		assert.Equal(t, "patient-3", *board.Waiting[0].PatientID)
		require.Len(t, board.Held, 1)
		assert.Equal(t, "patient-2", *board.Held[0].PatientID)
	})
}
