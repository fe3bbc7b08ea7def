package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/providers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	"github.com/google/uuid"
)

const defaultNotificationQueueSize = 256

type dispatchJob struct {
	userID   string
	category entities.NotificationCategory
	content  *entities.NotificationContent
}

// NotificationService is the multi-channel dispatcher. It resolves the
// recipient's language and channel preferences, records a delivery-log
// entry per enabled channel, and never surfaces an error to a caller:
// dispatch failures are logged and swallowed.
type NotificationService struct {
	userRepo repositories.UserRepository
	logRepo  repositories.NotificationLogRepository
	senders  map[entities.NotificationChannel]providers.ChannelSender

	queue chan dispatchJob

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	userRepo repositories.UserRepository,
	logRepo repositories.NotificationLogRepository,
	senders []providers.ChannelSender,
	queueSize int,
) *NotificationService {
	if queueSize <= 0 {
		queueSize = defaultNotificationQueueSize
	}

	byChannel := make(map[entities.NotificationChannel]providers.ChannelSender, len(senders))
	for _, sender := range senders {
		byChannel[sender.Channel()] = sender
	}

	return &NotificationService{
		userRepo: userRepo,
		logRepo:  logRepo,
		senders:  byChannel,
		queue:    make(chan dispatchJob, queueSize),
	}
}

// Start launches the async dispatch worker. No-op if already running.
func (s *NotificationService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for job := range s.queue {
			s.Dispatch(context.Background(), job.userID, job.category, job.content)
		}
	}()
	log.Println("Notification dispatch worker started")
}

// Stop drains and stops the async dispatch worker
func (s *NotificationService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.queue)
	done := s.done
	s.mu.Unlock()

	<-done
	log.Println("Notification dispatch worker stopped")
}

// Dispatch sends synchronously over every channel the recipient has enabled
// and reports the per-channel outcome. Disabled channels are silent no-ops.
func (s *NotificationService) Dispatch(ctx context.Context, userID string, category entities.NotificationCategory, content *entities.NotificationContent) *entities.DispatchResult {
	result := &entities.DispatchResult{Delivered: make(map[entities.NotificationChannel]bool)}
	if content == nil {
		return result
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("Notification dropped: cannot resolve recipient %s (category %s): %v", userID, category, err)
		return result
	}

	title := content.Title.Resolve(user.Language)
	body := content.Body.Resolve(user.Language)

	for _, channel := range s.enabledChannels(user) {
		sender, ok := s.senders[channel]
		if !ok {
			continue
		}

		_, sendErr := sender.Send(ctx, userID, title, body, content.Data)
		result.Delivered[channel] = sendErr == nil

		record := &entities.NotificationRecord{
			ID:        uuid.New().String(),
			UserID:    userID,
			Category:  category,
			Channel:   channel,
			Title:     title,
			Body:      body,
			Status:    entities.NotificationStatusSent,
			CreatedAt: time.Now(),
		}
		if sendErr != nil {
			log.Printf("Notification send failed: user=%s category=%s channel=%s: %v", userID, category, channel, sendErr)
			record.Status = entities.NotificationStatusFailed
			msg := sendErr.Error()
			record.Error = &msg
		} else {
			sentAt := time.Now()
			record.SentAt = &sentAt
		}

		if s.logRepo != nil {
			if err := s.logRepo.Create(ctx, record); err != nil {
				log.Printf("Failed to record notification for %s: %v", userID, err)
			}
		}
	}

	return result
}

// DispatchAsync enqueues the send and returns immediately. When the queue
// is full the notification is dropped and logged; delivery is best effort.
func (s *NotificationService) DispatchAsync(userID string, category entities.NotificationCategory, content *entities.NotificationContent) {
	select {
	case s.queue <- dispatchJob{userID: userID, category: category, content: content}:
	default:
		log.Printf("Notification queue full, dropping: user=%s category=%s", userID, category)
	}
}

func (s *NotificationService) enabledChannels(user *entities.User) []entities.NotificationChannel {
	var channels []entities.NotificationChannel
	if user.PushEnabled {
		channels = append(channels, entities.ChannelPush)
	}
	if user.SMSEnabled {
		channels = append(channels, entities.ChannelSMS)
	}
	if user.EmailEnabled {
		channels = append(channels, entities.ChannelEmail)
	}
	return channels
}
