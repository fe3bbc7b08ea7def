package routes

import (
	"net/http"

	"github.com/Zubair-mohamed/myclinic-backend/internal/api/handlers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/api/middleware"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/observability"
)

// Router holds all route handlers

type Router struct {
	mux *http.ServeMux

	appointmentHandler *handlers.AppointmentHandler

	queueHandler *handlers.QueueHandler

	walletHandler *handlers.WalletHandler

	adminHandler *handlers.AdminHandler

	sseHandler *handlers.SSEHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router

func NewRouter(

	appointmentHandler *handlers.AppointmentHandler,

	queueHandler *handlers.QueueHandler,

	walletHandler *handlers.WalletHandler,

	adminHandler *handlers.AdminHandler,

	sseHandler *handlers.SSEHandler,

	metrics *observability.Metrics,

) *Router {

	return &Router{

		mux: http.NewServeMux(),

		appointmentHandler: appointmentHandler,

		queueHandler: queueHandler,

		walletHandler: walletHandler,

		adminHandler: adminHandler,

		sseHandler: sseHandler,

		metrics: metrics,
	}

}

// SetupRoutes configures all application routes

func (r *Router) SetupRoutes() http.Handler {

	// Health check endpoint

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {

		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}

	})

	// Appointment endpoints

	r.mux.HandleFunc("POST /api/appointments", r.appointmentHandler.Book)

	r.mux.HandleFunc("GET /api/appointments/{id}", r.appointmentHandler.Get)

	r.mux.HandleFunc("POST /api/appointments/{id}/cancel", r.appointmentHandler.Cancel)

	r.mux.HandleFunc("POST /api/appointments/{id}/doctor-cancel", r.appointmentHandler.CancelByDoctor)

	r.mux.HandleFunc("POST /api/appointments/{id}/resolve", r.appointmentHandler.Resolve)

	r.mux.HandleFunc("GET /api/appointments/{id}/replacements", r.appointmentHandler.Replacements)

	r.mux.HandleFunc("POST /api/appointments/{id}/reschedule", r.appointmentHandler.Reschedule)

	r.mux.HandleFunc("POST /api/appointments/{id}/reminder", r.appointmentHandler.SetReminder)

	r.mux.HandleFunc("POST /api/appointments/{id}/check-in", r.queueHandler.CheckIn)

	// Patient endpoints

	r.mux.HandleFunc("GET /api/patients/{id}/appointments", r.appointmentHandler.ListByPatient)

	r.mux.HandleFunc("GET /api/patients/{id}/queue", r.queueHandler.Status)

	r.mux.HandleFunc("GET /api/patients/{id}/wallet", r.walletHandler.Balance)

	r.mux.HandleFunc("GET /api/patients/{id}/wallet/transactions", r.walletHandler.Transactions)

	r.mux.HandleFunc("POST /api/patients/{id}/wallet/deposit", r.walletHandler.Deposit)

	r.mux.HandleFunc("POST /api/patients/{id}/wallet/credit", r.walletHandler.AdminCredit)

	// Doctor endpoints

	r.mux.HandleFunc("GET /api/doctors/{id}/appointments", r.appointmentHandler.ListByDoctor)

	r.mux.HandleFunc("GET /api/doctors/{id}/next-slot", r.appointmentHandler.NextSlot)

	r.mux.HandleFunc("POST /api/doctors/{id}/cancel-range", r.appointmentHandler.CancelRangeByDoctor)

	r.mux.HandleFunc("GET /api/doctors/{id}/queue", r.queueHandler.Board)

	r.mux.HandleFunc("POST /api/doctors/{id}/queue/call-next", r.queueHandler.CallNext)

	// Queue endpoints

	r.mux.HandleFunc("POST /api/queue/join", r.queueHandler.Join)

	r.mux.HandleFunc("POST /api/queue/leave", r.queueHandler.Leave)

	r.mux.HandleFunc("POST /api/queue/walk-in", r.queueHandler.WalkIn)

	r.mux.HandleFunc("POST /api/queue/walk-in/by-specialty", r.queueHandler.WalkInBySpecialty)

	r.mux.HandleFunc("POST /api/queue/{id}/hold", r.queueHandler.Hold)

	r.mux.HandleFunc("POST /api/queue/{id}/resume", r.queueHandler.Resume)

	// Live queue stream

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/doctors/{id}/queue", r.sseHandler.StreamDoctorQueue)
	}

	// Operator endpoints

	r.mux.HandleFunc("POST /api/admin/reminders/run", r.adminHandler.RunReminders)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so error responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// CORS wraps everything
	handler = middleware.CORSMiddleware(handler)

	return handler
}
