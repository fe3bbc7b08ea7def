package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/adapters/cache"
	"github.com/Zubair-mohamed/myclinic-backend/internal/adapters/database"
	"github.com/Zubair-mohamed/myclinic-backend/internal/adapters/events"
	"github.com/Zubair-mohamed/myclinic-backend/internal/adapters/locking"
	"github.com/Zubair-mohamed/myclinic-backend/internal/api/handlers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/api/routes"
	"github.com/Zubair-mohamed/myclinic-backend/internal/application/services"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/providers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/postgres"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/redis"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/notifications"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/observability"
	"github.com/Zubair-mohamed/myclinic-backend/pkg/config"
	"github.com/joho/godotenv"
)

func main() {

	// Load .env if present (development convenience)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Load configuration

	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Run schema migrations
	if err := database.Migrate(ctx, pgClient); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	log.Println("Database migrations applied")

	// Initialize Redis client. The service degrades gracefully without it:
	// no cache, no live queue stream and an unguarded reminder scheduler.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	var locker providers.Locker
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		locker = locking.NewRedisLocker(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available)")
	}

	// Initialize adapters

	baseUserAdapter := database.NewUserAdapter(pgClient)

	var userAdapter repositories.UserRepository
	if cacheProvider != nil {
		userAdapter = database.NewCachedUserAdapter(baseUserAdapter, cacheProvider)
		log.Println("User adapter wrapped with caching layer")
	} else {
		userAdapter = baseUserAdapter
	}

	hospitalAdapter := database.NewHospitalAdapter(pgClient)
	appointmentAdapter := database.NewAppointmentAdapter(pgClient)
	queueAdapter := database.NewQueueAdapter(pgClient)
	ticketAdapter := database.NewTicketAdapter(pgClient)
	walletAdapter := database.NewWalletAdapter(pgClient)
	notificationLogAdapter := database.NewNotificationLogAdapter(pgClient)
	txManager := database.NewTxManager(pgClient)

	// Initialize channel senders. Without a configured gateway every channel
	// falls back to the log sender.
	var pushSender providers.ChannelSender
	if cfg.Notifications.GatewayURL != "" {
		sender, err := notifications.NewPushGatewaySender(cfg.Notifications)
		if err != nil {
			log.Printf("Warning: Failed to initialize push gateway sender: %v", err)
			pushSender = notifications.NewLogSender(entities.ChannelPush)
		} else {
			pushSender = sender
			log.Println("Push gateway sender initialized successfully")
		}
	} else {
		log.Println("PUSH_GATEWAY_URL is not set; push notifications are logged only")
		pushSender = notifications.NewLogSender(entities.ChannelPush)
	}
	senders := []providers.ChannelSender{
		pushSender,
		notifications.NewLogSender(entities.ChannelSMS),
		notifications.NewLogSender(entities.ChannelEmail),
	}

	// Initialize services

	notificationService := services.NewNotificationService(
		userAdapter,
		notificationLogAdapter,
		senders,
		cfg.Notifications.QueueSize,
	)
	notificationService.Start()
	defer notificationService.Stop()

	ledgerService := services.NewLedgerService(walletAdapter, txManager, cfg.Clinic.Currency)

	slotService := services.NewSlotService(
		userAdapter,
		hospitalAdapter,
		appointmentAdapter,
		cfg.Clinic.AverageConsultationMinutes,
		cfg.Clinic.BookingLeadTimeMinutes,
		cfg.Clinic.SlotRoundingMinutes,
		time.Local,
	)

	bookingService := services.NewBookingService(
		txManager,
		appointmentAdapter,
		queueAdapter,
		ticketAdapter,
		userAdapter,
		hospitalAdapter,
		ledgerService,
		notificationService,
		eventBus,
		cfg.Clinic.SoftConflictBufferMinutes,
		time.Local,
	)

	queueService := services.NewQueueService(
		txManager,
		queueAdapter,
		ticketAdapter,
		appointmentAdapter,
		userAdapter,
		bookingService,
		notificationService,
		eventBus,
		cfg.Clinic.AverageConsultationMinutes,
		time.Local,
	)

	reminderService := services.NewReminderService(
		appointmentAdapter,
		userAdapter,
		notificationService,
		locker,
		cfg.Scheduler.TickInterval,
		cfg.Scheduler.Window24hTolerance,
		cfg.Scheduler.Window1hTolerance,
		func(ctx context.Context, summary *services.RunSummary) {
			observability.RecordReminderRun(ctx, metrics, "24h", summary.Pass24h.Sent, summary.Pass24h.Failed)
			observability.RecordReminderRun(ctx, metrics, "1h", summary.Pass1h.Sent, summary.Pass1h.Failed)
		},
		time.Local,
	)
	reminderService.Start(ctx)
	defer reminderService.Stop()

	// Initialize handlers

	appointmentHandler := handlers.NewAppointmentHandler(bookingService, slotService)
	queueHandler := handlers.NewQueueHandler(queueService)
	walletHandler := handlers.NewWalletHandler(ledgerService, userAdapter)
	adminHandler := handlers.NewAdminHandler(reminderService)

	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
		log.Println("Live queue stream enabled")
	} else {
		log.Println("Live queue stream disabled (Redis not available)")
	}

	// Set up router

	router := routes.NewRouter(
		appointmentHandler,
		queueHandler,
		walletHandler,
		adminHandler,
		sseHandler,
		metrics,
	)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the queue stream endpoint holds connections open
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	log.Println("Server stopped")
}
