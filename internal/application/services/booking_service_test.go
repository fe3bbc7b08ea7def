package services

import (
	"context"
	"testing"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	svc             *BookingService
	ledger          *LedgerService
	walletRepo      *fakeWalletRepo
	appointmentRepo *fakeAppointmentRepo
	queueRepo       *fakeQueueRepo
	userRepo        *fakeUserRepo
	hospitalRepo    *fakeHospitalRepo
	dispatcher      *fakeDispatcher
	bus             *fakeEventBus
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	patient := &entities.User{ID: "patient-1", Name: "Sara", Role: entities.RolePatient, Active: true, Language: "en"}
	doctor := &entities.User{
		ID: "doctor-1", Name: "Ahmed", Role: entities.RoleDoctor, Active: true,
		SpecialtyID: "cardiology", HospitalIDs: []string{"hospital-1"},
		Availability: []entities.DayAvailability{
			{Weekday: time.Monday, Available: true, Start: "09:00", End: "15:00", HospitalID: "hospital-1"},
		},
	}
	staff := &entities.User{ID: "staff-1", Name: "Desk", Role: entities.RoleStaff, Active: true}

	hospitalRepo := newFakeHospitalRepo()
	hospitalRepo.hospitals["hospital-1"] = &entities.Hospital{ID: "hospital-1", Name: "Central", RefundPolicyPercentage: 80}
	hospitalRepo.services["service-1"] = &entities.ServiceType{
		ID: "service-1", HospitalID: "hospital-1", Name: "Consultation",
		DurationMinutes: 15, Cost: decimal.NewFromInt(50),
	}

	walletRepo := newFakeWalletRepo()
	appointmentRepo := newFakeAppointmentRepo()
	queueRepo := newFakeQueueRepo()
	userRepo := newFakeUserRepo(patient, doctor, staff)
	dispatcher := &fakeDispatcher{}
	bus := &fakeEventBus{}

	ledger := NewLedgerService(walletRepo, fakeTxManager{}, "EGP")
	svc := NewBookingService(
		fakeTxManager{}, appointmentRepo, queueRepo, newFakeTicketRepo(),
		userRepo, hospitalRepo, ledger, dispatcher, bus, 60, time.UTC,
	)
	// Fixed clock: the day before the usual booking date
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	return &bookingFixture{
		svc: svc, ledger: ledger, walletRepo: walletRepo, appointmentRepo: appointmentRepo,
		queueRepo: queueRepo, userRepo: userRepo, hospitalRepo: hospitalRepo,
		dispatcher: dispatcher, bus: bus,
	}
}

func (f *bookingFixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.ledger.Deposit(context.Background(), userID, decimal.NewFromInt(amount), "test deposit")
	require.NoError(t, err)
}

func (f *bookingFixture) book(t *testing.T, date, clock string) *entities.Appointment {
	t.Helper()
	appointment, err := f.svc.Book(context.Background(), BookInput{
		PatientID: "patient-1", DoctorID: "doctor-1", HospitalID: "hospital-1",
		ServiceTypeID: "service-1", Date: date, Time: clock, ActorID: "patient-1",
	})
	require.NoError(t, err)
	return appointment
}

func TestBookingService_Book(t *testing.T) {
	ctx := context.Background()

	t.Run("successfully books and debits the fee", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)

		// Act
		appointment := f.book(t, "2026-03-02", "10:00")

		// Assert
		assert.Equal(t, entities.AppointmentStatusUpcoming, appointment.Status)
		assert.Equal(t, "A001", appointment.QueueNumber)
		assert.True(t, appointment.Cost.Equal(decimal.NewFromInt(50)))
		assert.True(t, f.walletRepo.balanceOf("patient-1").Equal(decimal.NewFromInt(50)))
		assert.True(t, f.walletRepo.signedSum("patient-1").Equal(decimal.NewFromInt(50)))
		assert.Equal(t, 1, f.dispatcher.count(entities.NotificationAppointmentConfirmed))
	})

	t.Run("insufficient balance leaves no appointment behind", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 10)

		// Act
		_, err := f.svc.Book(ctx, BookInput{
			PatientID: "patient-1", DoctorID: "doctor-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-02", Time: "10:00", ActorID: "patient-1",
		})

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInsufficientFunds))
		occupying, lookupErr := f.appointmentRepo.GetUpcomingAt(ctx, "doctor-1", "2026-03-02", "10:00")
		require.NoError(t, lookupErr)
		assert.Nil(t, occupying)
		assert.True(t, f.walletRepo.balanceOf("patient-1").Equal(decimal.NewFromInt(10)))
	})

	t.Run("identical booking is a hard conflict even with override", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 200)
		f.book(t, "2026-03-02", "10:00")

		// Act
		_, err := f.svc.Book(ctx, BookInput{
			PatientID: "patient-1", DoctorID: "doctor-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-02", Time: "10:00",
			Override: true, ActorID: "patient-1",
		})

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})

	t.Run("nearby same-day booking is a soft conflict the caller can override", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 200)
		f.book(t, "2026-03-02", "10:00")

		// Act
		_, err := f.svc.Book(ctx, BookInput{
			PatientID: "patient-1", DoctorID: "doctor-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-02", Time: "10:30", ActorID: "patient-1",
		})

		// Assert: rejected with enough detail to offer an override
		require.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, true, appErr.Details["overridable"])
		assert.Equal(t, "10:00", appErr.Details["time"])

		// Act again with the override
		appointment, err := f.svc.Book(ctx, BookInput{
			PatientID: "patient-1", DoctorID: "doctor-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-02", Time: "10:30",
			Override: true, ActorID: "patient-1",
		})

		// Assert: same-day same-doctor rebooking reuses the ticket
		require.NoError(t, err)
		assert.Equal(t, "A001", appointment.QueueNumber)
	})

	t.Run("cash collected at the desk nets to zero", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)

		// Act
		appointment, err := f.svc.Book(ctx, BookInput{
			PatientID: "patient-1", DoctorID: "doctor-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-02", Time: "10:00",
			CollectedInCash: true, ActorID: "staff-1",
		})

		// Assert: a deposit and a debit for the exact fee, balance untouched
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusUpcoming, appointment.Status)
		assert.True(t, f.walletRepo.balanceOf("patient-1").IsZero())
		entries, err := f.walletRepo.ListTransactions(ctx, "patient-1", repositories.TransactionFilter{})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("patients may not book for someone else", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		other := &entities.User{ID: "patient-2", Name: "Omar", Role: entities.RolePatient, Active: true}
		f.userRepo.users["patient-2"] = other

		// Act
		_, err := f.svc.Book(ctx, BookInput{
			PatientID: "patient-2", DoctorID: "doctor-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-02", Time: "10:00", ActorID: "patient-1",
		})

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	})

	t.Run("same-day booking seeds the live queue", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)

		// Act: book for the fixture's "today"
		f.book(t, "2026-03-01", "11:00")

		// Assert
		active, err := f.queueRepo.GetActiveByPatient(ctx, "patient-1")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, entities.QueueStatusWaiting, active.Status)
		assert.Equal(t, "A001", active.TicketNumber)
		require.Len(t, f.bus.events, 1)
		assert.Equal(t, entities.QueueEventJoined, f.bus.events[0].EventType)
	})

	t.Run("doctor under an unavailability episode is not bookable", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		doctor := f.userRepo.users["doctor-1"]
		doctor.Unavailability = []entities.UnavailabilityEpisode{
			{DoctorID: "doctor-1", FromDate: "2026-03-02", ToDate: "2026-03-02"},
		}

		// Act
		_, err := f.svc.Book(ctx, BookInput{
			PatientID: "patient-1", DoctorID: "doctor-1", HospitalID: "hospital-1",
			ServiceTypeID: "service-1", Date: "2026-03-02", Time: "10:00", ActorID: "patient-1",
		})

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotAvailable))
	})
}

func TestBookingService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("refunds per the hospital policy exactly once", func(t *testing.T) {
		// Arrange: fee 50, refund policy 80%
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		appointment := f.book(t, "2026-03-02", "10:00")

		// Act
		cancelled, err := f.svc.Cancel(ctx, appointment.ID, "patient-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusCancelled, cancelled.Status)
		assert.True(t, cancelled.IsRefunded)
		assert.True(t, f.walletRepo.balanceOf("patient-1").Equal(decimal.NewFromInt(90)))

		// A second cancel is rejected, no double refund
		_, err = f.svc.Cancel(ctx, appointment.ID, "patient-1")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		assert.True(t, f.walletRepo.balanceOf("patient-1").Equal(decimal.NewFromInt(90)))
	})

	t.Run("cancels racing past the snapshot read refund once", func(t *testing.T) {
		// Arrange: both callers read the appointment while it is still
		// upcoming; the competing cancel commits before this caller's unit
		// of work begins.
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		appointment := f.book(t, "2026-03-02", "10:00")

		var interleave func()
		f.svc.txManager = txManagerFunc(func(ctx context.Context, fn func(uow repositories.UnitOfWork) error) error {
			if interleave != nil {
				run := interleave
				interleave = nil
				run()
			}
			return fn(struct{}{})
		})
		interleave = func() {
			_, err := f.svc.Cancel(context.Background(), appointment.ID, "patient-1")
			require.NoError(t, err)
		}

		// Act
		_, err := f.svc.Cancel(ctx, appointment.ID, "patient-1")

		// Assert: the loser is rejected and the refund is credited once
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		assert.True(t, f.walletRepo.balanceOf("patient-1").Equal(decimal.NewFromInt(90)))
		refunds, err := f.walletRepo.ListTransactions(ctx, "patient-1", repositories.TransactionFilter{Category: entities.CategoryRefund})
		require.NoError(t, err)
		assert.Len(t, refunds, 1)
	})

	t.Run("strangers may not cancel", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		appointment := f.book(t, "2026-03-02", "10:00")
		f.userRepo.users["patient-2"] = &entities.User{ID: "patient-2", Role: entities.RolePatient, Active: true}

		// Act
		_, err := f.svc.Cancel(ctx, appointment.ID, "patient-2")

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	})
}

func TestBookingService_DoctorCancellation(t *testing.T) {
	ctx := context.Background()

	t.Run("bulk cancel flips each appointment to pending and notifies each patient", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 200)
		first := f.book(t, "2026-03-02", "10:00")
		second := f.book(t, "2026-03-04", "11:00")

		// Act
		cancelled, err := f.svc.CancelRangeByDoctor(ctx, "doctor-1", "2026-03-02", "2026-03-05", "doctor-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 2, cancelled)
		for _, id := range []string{first.ID, second.ID} {
			ap, err := f.appointmentRepo.GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, entities.AppointmentStatusDoctorCancelled, ap.Status)
			assert.Equal(t, entities.ResolutionPending, ap.CancellationResolution)
			assert.False(t, ap.IsRefunded, "no refund until the patient resolves")
		}
		assert.Equal(t, 2, f.dispatcher.count(entities.NotificationDoctorCancelled))
	})

	t.Run("resolving with refund credits the full cost once", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		appointment := f.book(t, "2026-03-02", "10:00")
		_, err := f.svc.CancelByDoctor(ctx, appointment.ID, "doctor-1")
		require.NoError(t, err)

		// Act
		resolved, err := f.svc.Resolve(ctx, appointment.ID, ResolveInput{Action: ResolveRefund, ActorID: "patient-1"})

		// Assert: full cost back regardless of the 80% policy
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusCancelled, resolved.Status)
		assert.Equal(t, entities.ResolutionRefunded, resolved.CancellationResolution)
		assert.True(t, f.walletRepo.balanceOf("patient-1").Equal(decimal.NewFromInt(100)))

		// A second resolution attempt is rejected
		_, err = f.svc.Resolve(ctx, appointment.ID, ResolveInput{Action: ResolveRefund, ActorID: "patient-1"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAlreadyResolved))
		assert.True(t, f.walletRepo.balanceOf("patient-1").Equal(decimal.NewFromInt(100)))
	})

	t.Run("resolutions racing past the snapshot read credit once", func(t *testing.T) {
		// Arrange: the competing refund resolution commits between this
		// caller's guard checks and its unit of work.
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		appointment := f.book(t, "2026-03-02", "10:00")
		_, err := f.svc.CancelByDoctor(ctx, appointment.ID, "doctor-1")
		require.NoError(t, err)

		var interleave func()
		f.svc.txManager = txManagerFunc(func(ctx context.Context, fn func(uow repositories.UnitOfWork) error) error {
			if interleave != nil {
				run := interleave
				interleave = nil
				run()
			}
			return fn(struct{}{})
		})
		interleave = func() {
			_, err := f.svc.Resolve(context.Background(), appointment.ID, ResolveInput{Action: ResolveRefund, ActorID: "patient-1"})
			require.NoError(t, err)
		}

		// Act
		_, err = f.svc.Resolve(ctx, appointment.ID, ResolveInput{Action: ResolveRefund, ActorID: "patient-1"})

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAlreadyResolved))
		assert.True(t, f.walletRepo.balanceOf("patient-1").Equal(decimal.NewFromInt(100)))
		refunds, err := f.walletRepo.ListTransactions(ctx, "patient-1", repositories.TransactionFilter{Category: entities.CategoryRefund})
		require.NoError(t, err)
		assert.Len(t, refunds, 1)
	})

	t.Run("resolving with redirect moves the appointment and draws a fresh ticket", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		replacement := &entities.User{
			ID: "doctor-2", Name: "Basma", Role: entities.RoleDoctor, Active: true,
			SpecialtyID: "cardiology", HospitalIDs: []string{"hospital-1"},
			Availability: []entities.DayAvailability{
				{Weekday: time.Monday, Available: true, Start: "09:00", End: "17:00", HospitalID: "hospital-1"},
			},
		}
		f.userRepo.users["doctor-2"] = replacement
		appointment := f.book(t, "2026-03-02", "10:00")
		_, err := f.svc.CancelByDoctor(ctx, appointment.ID, "doctor-1")
		require.NoError(t, err)

		// Act
		resolved, err := f.svc.Resolve(ctx, appointment.ID, ResolveInput{
			Action: ResolveRedirect, NewDoctorID: "doctor-2", ActorID: "patient-1",
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusUpcoming, resolved.Status)
		assert.Equal(t, entities.ResolutionRedirected, resolved.CancellationResolution)
		assert.Equal(t, "doctor-2", resolved.DoctorID)
		assert.Equal(t, "B001", resolved.QueueNumber)

		// The appointment is upcoming again, yet a repeat resolve still
		// reports the resolved state
		_, err = f.svc.Resolve(ctx, appointment.ID, ResolveInput{Action: ResolveRefund, ActorID: "patient-1"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAlreadyResolved))
	})

	t.Run("eligible replacements exclude the cancelling doctor and unavailable peers", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		available := &entities.User{
			ID: "doctor-2", Name: "Basma", Role: entities.RoleDoctor, Active: true,
			SpecialtyID: "cardiology", HospitalIDs: []string{"hospital-1"},
			Availability: []entities.DayAvailability{
				{Weekday: time.Monday, Available: true, Start: "09:00", End: "17:00", HospitalID: "hospital-1"},
			},
		}
		away := &entities.User{
			ID: "doctor-3", Name: "Karim", Role: entities.RoleDoctor, Active: true,
			SpecialtyID: "cardiology", HospitalIDs: []string{"hospital-1"},
			Availability: []entities.DayAvailability{
				{Weekday: time.Monday, Available: true, Start: "09:00", End: "17:00", HospitalID: "hospital-1"},
			},
			Unavailability: []entities.UnavailabilityEpisode{
				{DoctorID: "doctor-3", FromDate: "2026-03-02", ToDate: "2026-03-02"},
			},
		}
		f.userRepo.users["doctor-2"] = available
		f.userRepo.users["doctor-3"] = away
		appointment := f.book(t, "2026-03-02", "10:00")
		_, err := f.svc.CancelByDoctor(ctx, appointment.ID, "doctor-1")
		require.NoError(t, err)

		// Act
		eligible, err := f.svc.EligibleReplacements(ctx, appointment.ID)

		// Assert
		require.NoError(t, err)
		require.Len(t, eligible, 1)
		assert.Equal(t, "doctor-2", eligible[0].ID)
	})
}

func TestBookingService_Reschedule(t *testing.T) {
	ctx := context.Background()

	t.Run("moving to another day regenerates the ticket", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		appointment := f.book(t, "2026-03-02", "10:00")
		require.Equal(t, "A001", appointment.QueueNumber)

		// Act: 2026-03-09 is also a Monday
		moved, err := f.svc.Reschedule(ctx, appointment.ID, "2026-03-09", "11:00", "patient-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "2026-03-09", moved.Date)
		assert.Equal(t, "11:00", moved.Time)
		assert.Equal(t, "A001", moved.QueueNumber, "fresh per-day sequence starts over")
		assert.Equal(t, entities.AppointmentStatusUpcoming, moved.Status)
		assert.Equal(t, 1, f.dispatcher.count(entities.NotificationRescheduled))
	})

	t.Run("same-day time change keeps the ticket", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		appointment := f.book(t, "2026-03-02", "10:00")

		// Act
		moved, err := f.svc.Reschedule(ctx, appointment.ID, "2026-03-02", "12:00", "patient-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "A001", moved.QueueNumber)
	})

	t.Run("completed appointments cannot be rescheduled", func(t *testing.T) {
		// Arrange
		f := newBookingFixture(t)
		f.fund(t, "patient-1", 100)
		appointment := f.book(t, "2026-03-02", "10:00")
		require.NoError(t, f.svc.Complete(ctx, appointment.ID))

		// Act
		_, err := f.svc.Reschedule(ctx, appointment.ID, "2026-03-09", "11:00", "patient-1")

		// Assert
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestFormatTicket(t *testing.T) {
	tests := []struct {
		name       string
		doctorName string
		seq        int
		want       string
	}{
		{"latin initial", "Ahmed", 7, "A007"},
		{"lowercase is uppercased", "basma", 1, "B001"},
		{"arabic initial survives", "محمد", 12, "م012"},
		{"blank name falls back", "  ", 3, "Q003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTicket(tt.doctorName, tt.seq))
		})
	}
}
