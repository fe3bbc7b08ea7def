package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Zubair-mohamed/myclinic-backend/internal/application/services"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
)

// BookingService defines the appointment lifecycle operations the API exposes
type BookingService interface {
	Book(ctx context.Context, in services.BookInput) (*entities.Appointment, error)
	Cancel(ctx context.Context, appointmentID, actorID string) (*entities.Appointment, error)
	CancelByDoctor(ctx context.Context, appointmentID, actorID string) (*entities.Appointment, error)
	CancelRangeByDoctor(ctx context.Context, doctorID, fromDate, toDate, actorID string) (int, error)
	Resolve(ctx context.Context, appointmentID string, in services.ResolveInput) (*entities.Appointment, error)
	EligibleReplacements(ctx context.Context, appointmentID string) ([]*entities.User, error)
	Reschedule(ctx context.Context, appointmentID, newDate, newTime, actorID string) (*entities.Appointment, error)
	SetReminder(ctx context.Context, appointmentID string, on bool) (*entities.Appointment, error)
	Get(ctx context.Context, appointmentID string) (*entities.Appointment, error)
	ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error)
}

// SlotService defines the next-slot computation the API exposes
type SlotService interface {
	ComputeNextSlot(ctx context.Context, doctorID, date, serviceTypeID, hospitalID string) (*services.Slot, error)
}

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	booking BookingService
	slots   SlotService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(booking BookingService, slots SlotService) *AppointmentHandler {
	return &AppointmentHandler{
		booking: booking,
		slots:   slots,
	}
}

type bookRequest struct {
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	HospitalID      string `json:"hospital_id"`
	ServiceTypeID   string `json:"service_type_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Override        bool   `json:"override"`
	CollectedInCash bool   `json:"collected_in_cash"`
}

// Book handles POST /api/appointments
func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respondWithError(w, http.StatusUnauthorized, "X-Actor-ID header is required")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	appointment, err := h.booking.Book(r.Context(), services.BookInput{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		HospitalID:      req.HospitalID,
		ServiceTypeID:   req.ServiceTypeID,
		Date:            req.Date,
		Time:            req.Time,
		Override:        req.Override,
		CollectedInCash: req.CollectedInCash,
		ActorID:         actor,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, appointment)
}

// Get handles GET /api/appointments/{id}
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.booking.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

// ListByPatient handles GET /api/patients/{id}/appointments
func (h *AppointmentHandler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.booking.ListByPatient(r.Context(), r.PathValue("id"), appointmentFilter(r))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

// ListByDoctor handles GET /api/doctors/{id}/appointments
func (h *AppointmentHandler) ListByDoctor(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.booking.ListByDoctor(r.Context(), r.PathValue("id"), appointmentFilter(r))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

// Cancel handles POST /api/appointments/{id}/cancel
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respondWithError(w, http.StatusUnauthorized, "X-Actor-ID header is required")
		return
	}

	appointment, err := h.booking.Cancel(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

// CancelByDoctor handles POST /api/appointments/{id}/doctor-cancel
func (h *AppointmentHandler) CancelByDoctor(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respondWithError(w, http.StatusUnauthorized, "X-Actor-ID header is required")
		return
	}

	appointment, err := h.booking.CancelByDoctor(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

type cancelRangeRequest struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

// CancelRangeByDoctor handles POST /api/doctors/{id}/cancel-range
func (h *AppointmentHandler) CancelRangeByDoctor(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respondWithError(w, http.StatusUnauthorized, "X-Actor-ID header is required")
		return
	}

	var req cancelRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.FromDate == "" || req.ToDate == "" {
		respondWithError(w, http.StatusBadRequest, "from_date and to_date are required")
		return
	}

	cancelled, err := h.booking.CancelRangeByDoctor(r.Context(), r.PathValue("id"), req.FromDate, req.ToDate, actor)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
}

type resolveRequest struct {
	Action      string `json:"action"`
	NewDoctorID string `json:"new_doctor_id"`
	NewDate     string `json:"new_date"`
	NewTime     string `json:"new_time"`
}

// Resolve handles POST /api/appointments/{id}/resolve
func (h *AppointmentHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respondWithError(w, http.StatusUnauthorized, "X-Actor-ID header is required")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	appointment, err := h.booking.Resolve(r.Context(), r.PathValue("id"), services.ResolveInput{
		Action:      services.ResolveAction(req.Action),
		NewDoctorID: req.NewDoctorID,
		NewDate:     req.NewDate,
		NewTime:     req.NewTime,
		ActorID:     actor,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

// Replacements handles GET /api/appointments/{id}/replacements
func (h *AppointmentHandler) Replacements(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.booking.EligibleReplacements(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if doctors == nil {
		doctors = []*entities.User{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctors": doctors,
		"count":   len(doctors),
	})
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Reschedule handles POST /api/appointments/{id}/reschedule
func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respondWithError(w, http.StatusUnauthorized, "X-Actor-ID header is required")
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	appointment, err := h.booking.Reschedule(r.Context(), r.PathValue("id"), req.Date, req.Time, actor)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

type reminderRequest struct {
	On bool `json:"on"`
}

// SetReminder handles POST /api/appointments/{id}/reminder
func (h *AppointmentHandler) SetReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	appointment, err := h.booking.SetReminder(r.Context(), r.PathValue("id"), req.On)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

// NextSlot handles GET /api/doctors/{id}/next-slot
func (h *AppointmentHandler) NextSlot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	date := query.Get("date")
	serviceTypeID := query.Get("service_type_id")
	hospitalID := query.Get("hospital_id")
	if date == "" || serviceTypeID == "" || hospitalID == "" {
		respondWithError(w, http.StatusBadRequest, "date, service_type_id and hospital_id query parameters are required")
		return
	}

	slot, err := h.slots.ComputeNextSlot(r.Context(), r.PathValue("id"), date, serviceTypeID, hospitalID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, slot)
}

func appointmentFilter(r *http.Request) repositories.AppointmentFilter {
	query := r.URL.Query()
	filter := repositories.AppointmentFilter{
		Status:   entities.AppointmentStatus(query.Get("status")),
		FromDate: query.Get("from"),
		ToDate:   query.Get("to"),
	}
	if limit := query.Get("limit"); limit != "" {
		if parsed, err := parsePositiveInt(limit); err == nil {
			filter.Limit = parsed
		}
	}
	return filter
}
