package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/providers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/Zubair-mohamed/myclinic-backend/pkg/timeutil"
)

// reminderLockKey guards against overlapping scheduler passes between the
// periodic tick and the manual trigger endpoint.
const reminderLockKey = "reminders:run"

// PassSummary reports one reminder window's pass
type PassSummary struct {
	Window     string `json:"window"`
	Candidates int    `json:"candidates"`
	Sent       int    `json:"sent"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// RunSummary reports a full scheduler run (both windows)
type RunSummary struct {
	Pass24h         PassSummary `json:"pass_24h"`
	Pass1h          PassSummary `json:"pass_1h"`
	TotalCandidates int         `json:"total_candidates"`
	TotalSent       int         `json:"total_sent"`
	TotalSkipped    int         `json:"total_skipped"`
	TotalFailed     int         `json:"total_failed"`
	StartedAt       time.Time   `json:"started_at"`
	ElapsedMS       int64       `json:"elapsed_ms"`
}

type reminderPass struct {
	class     repositories.ReminderClass
	category  entities.NotificationCategory
	lead      time.Duration
	tolerance time.Duration
	enabled   func(*entities.User) bool
}

// ReminderService is the periodic job that fires 24h and 1h appointment
// reminders, at most once per window per appointment. It has an explicit
// start/stop lifecycle; RunOnce serves the operator's manual trigger.
type ReminderService struct {
	appointmentRepo repositories.AppointmentRepository
	userRepo        repositories.UserRepository
	dispatcher      providers.Dispatcher
	locker          providers.Locker

	tickInterval       time.Duration
	window24hTolerance time.Duration
	window1hTolerance  time.Duration

	// observe, when set, receives each completed run summary (metrics hook)
	observe func(context.Context, *RunSummary)

	loc *time.Location
	now func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewReminderService creates a new reminder service
func NewReminderService(
	appointmentRepo repositories.AppointmentRepository,
	userRepo repositories.UserRepository,
	dispatcher providers.Dispatcher,
	locker providers.Locker,
	tickInterval, window24hTolerance, window1hTolerance time.Duration,
	observe func(context.Context, *RunSummary),
	loc *time.Location,
) *ReminderService {
	if loc == nil {
		loc = time.Local
	}
	if tickInterval <= 0 {
		tickInterval = 15 * time.Minute
	}
	return &ReminderService{
		appointmentRepo:    appointmentRepo,
		userRepo:           userRepo,
		dispatcher:         dispatcher,
		locker:             locker,
		tickInterval:       tickInterval,
		window24hTolerance: window24hTolerance,
		window1hTolerance:  window1hTolerance,
		observe:            observe,
		loc:                loc,
		now:                time.Now,
	}
}

// Start launches the periodic ticker. It is a no-op if already running.
func (s *ReminderService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(ctx, s.stop, s.done)
	log.Printf("Reminder scheduler started (tick every %s)", s.tickInterval)
}

// Stop halts the ticker and waits for an in-flight pass to finish
func (s *ReminderService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	log.Println("Reminder scheduler stopped")
}

func (s *ReminderService) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := s.RunOnce(ctx)
			if err != nil {
				// Another pass holding the lock is not an error for the ticker
				if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
					continue
				}
				log.Printf("Reminder pass failed: %v", err)
				continue
			}
			log.Printf("Reminder pass: %d candidates, %d sent, %d skipped, %d failed in %dms",
				summary.TotalCandidates, summary.TotalSent, summary.TotalSkipped, summary.TotalFailed, summary.ElapsedMS)
		}
	}
}

// RunOnce executes one full scheduler run (both windows) and returns its
// summary. Concurrent runs are excluded by a single-flight lock.
func (s *ReminderService) RunOnce(ctx context.Context) (*RunSummary, error) {
	if s.locker != nil {
		token, acquired, err := s.locker.Acquire(ctx, reminderLockKey, 2*s.tickInterval)
		if err != nil {
			log.Printf("Reminder lock unavailable, proceeding without it: %v", err)
		} else if !acquired {
			return nil, apperrors.NewConflictError("a reminder run is already in progress")
		} else {
			defer func() {
				if err := s.locker.Release(ctx, reminderLockKey, token); err != nil {
					log.Printf("Failed to release reminder lock: %v", err)
				}
			}()
		}
	}

	started := s.now()
	summary := &RunSummary{StartedAt: started}

	passes := []reminderPass{
		{
			class:     repositories.Reminder24h,
			category:  entities.NotificationReminder24h,
			lead:      24 * time.Hour,
			tolerance: s.window24hTolerance,
			enabled:   func(d *entities.User) bool { return d.Reminder24hEnabled },
		},
		{
			class:     repositories.Reminder1h,
			category:  entities.NotificationReminder1h,
			lead:      time.Hour,
			tolerance: s.window1hTolerance,
			enabled:   func(d *entities.User) bool { return d.Reminder1hEnabled },
		},
	}

	for _, pass := range passes {
		result, err := s.runPass(ctx, pass)
		if err != nil {
			return nil, err
		}
		if pass.class == repositories.Reminder24h {
			summary.Pass24h = *result
		} else {
			summary.Pass1h = *result
		}
	}

	summary.TotalCandidates = summary.Pass24h.Candidates + summary.Pass1h.Candidates
	summary.TotalSent = summary.Pass24h.Sent + summary.Pass1h.Sent
	summary.TotalSkipped = summary.Pass24h.Skipped + summary.Pass1h.Skipped
	summary.TotalFailed = summary.Pass24h.Failed + summary.Pass1h.Failed
	summary.ElapsedMS = s.now().Sub(started).Milliseconds()

	if s.observe != nil {
		s.observe(ctx, summary)
	}

	return summary, nil
}

func (s *ReminderService) runPass(ctx context.Context, pass reminderPass) (*PassSummary, error) {
	result := &PassSummary{Window: string(pass.class)}

	candidates, err := s.appointmentRepo.ListReminderCandidates(ctx, pass.class)
	if err != nil {
		return nil, err
	}
	result.Candidates = len(candidates)

	now := s.now().In(s.loc)
	lower := now.Add(pass.lead - pass.tolerance)
	upper := now.Add(pass.lead + pass.tolerance)

	for _, appointment := range candidates {
		slotTime, err := timeutil.CombineDateTime(appointment.Date, appointment.Time, s.loc)
		if err != nil {
			log.Printf("Reminder %s: cannot parse appointment %s schedule: %v", pass.class, appointment.ID, err)
			result.Failed++
			continue
		}

		// Out-of-window and already-past candidates are skips, not errors
		if slotTime.Before(now) || slotTime.Before(lower) || slotTime.After(upper) {
			result.Skipped++
			continue
		}

		doctor, err := s.userRepo.GetByID(ctx, appointment.DoctorID)
		if err != nil {
			log.Printf("Reminder %s: cannot load doctor for appointment %s: %v", pass.class, appointment.ID, err)
			result.Failed++
			continue
		}
		if !doctor.IsUsable() {
			result.Skipped++
			continue
		}
		if !doctor.RemindersEnabled {
			result.Skipped++
			continue
		}
		if !pass.enabled(doctor) {
			result.Skipped++
			continue
		}

		// Dispatch, then flag. The flag write is the idempotency guard; a
		// crash in between may double-send on the next tick, bounded by the
		// window tolerance.
		s.dispatcher.DispatchAsync(appointment.PatientID, pass.category, s.reminderContent(appointment, doctor, pass.lead))

		if err := s.appointmentRepo.MarkReminderSent(ctx, appointment.ID, pass.class, s.now()); err != nil {
			log.Printf("Reminder %s: failed to flag appointment %s as sent: %v", pass.class, appointment.ID, err)
			result.Failed++
			continue
		}
		result.Sent++
	}

	return result, nil
}

func (s *ReminderService) reminderContent(appointment *entities.Appointment, doctor *entities.User, lead time.Duration) *entities.NotificationContent {
	when := "tomorrow"
	whenAr := "غدًا"
	if lead < 24*time.Hour {
		when = "in about an hour"
		whenAr = "خلال ساعة تقريبًا"
	}
	return &entities.NotificationContent{
		Title: entities.NewLocalizedText("Appointment reminder", "تذكير بالموعد"),
		Body: entities.NewLocalizedText(
			fmt.Sprintf("Reminder: your appointment with Dr. %s is %s, on %s at %s.", doctor.Name, when, appointment.Date, appointment.Time),
			fmt.Sprintf("تذكير: موعدك مع د. %s %s، بتاريخ %s الساعة %s.", doctor.Name, whenAr, appointment.Date, appointment.Time),
		),
		Data: map[string]string{"appointment_id": appointment.ID},
	}
}
