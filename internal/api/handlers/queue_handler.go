package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Zubair-mohamed/myclinic-backend/internal/application/services"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
)

// QueueService defines the live waiting-line operations the API exposes
type QueueService interface {
	Join(ctx context.Context, in services.JoinInput) (*entities.QueueItem, error)
	Leave(ctx context.Context, patientID string) (*entities.QueueItem, error)
	CallNext(ctx context.Context, doctorID string) (*entities.QueueItem, error)
	Hold(ctx context.Context, queueItemID string) (*entities.QueueItem, error)
	Resume(ctx context.Context, queueItemID string) (*entities.QueueItem, error)
	AddWalkIn(ctx context.Context, name, doctorID string) (*entities.QueueItem, error)
	AddWalkInBySpecialty(ctx context.Context, name, specialtyID, hospitalID string) (*entities.QueueItem, error)
	CheckIn(ctx context.Context, appointmentID string) (*entities.QueueItem, error)
	Status(ctx context.Context, patientID string) (*entities.QueuePosition, error)
	Board(ctx context.Context, doctorID string) (*entities.QueueBoard, error)
}

// QueueHandler handles live queue requests
type QueueHandler struct {
	service QueueService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(service QueueService) *QueueHandler {
	return &QueueHandler{
		service: service,
	}
}

type joinRequest struct {
	PatientID  string `json:"patient_id"`
	DoctorID   string `json:"doctor_id"`
	HospitalID string `json:"hospital_id"`
}

// Join handles POST /api/queue/join
func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	item, err := h.service.Join(r.Context(), services.JoinInput{
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		HospitalID: req.HospitalID,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

type leaveRequest struct {
	PatientID string `json:"patient_id"`
}

// Leave handles POST /api/queue/leave
func (h *QueueHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.PatientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient_id is required")
		return
	}

	item, err := h.service.Leave(r.Context(), req.PatientID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

// CallNext handles POST /api/doctors/{id}/queue/call-next
func (h *QueueHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.CallNext(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if item == nil {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"serving": nil})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"serving": item})
}

// Hold handles POST /api/queue/{id}/hold
func (h *QueueHandler) Hold(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Hold(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

// Resume handles POST /api/queue/{id}/resume
func (h *QueueHandler) Resume(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

type walkInRequest struct {
	Name        string `json:"name"`
	DoctorID    string `json:"doctor_id"`
	SpecialtyID string `json:"specialty_id"`
	HospitalID  string `json:"hospital_id"`
}

// WalkIn handles POST /api/queue/walk-in
func (h *QueueHandler) WalkIn(w http.ResponseWriter, r *http.Request) {
	var req walkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	item, err := h.service.AddWalkIn(r.Context(), req.Name, req.DoctorID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

// WalkInBySpecialty handles POST /api/queue/walk-in/by-specialty
func (h *QueueHandler) WalkInBySpecialty(w http.ResponseWriter, r *http.Request) {
	var req walkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	item, err := h.service.AddWalkInBySpecialty(r.Context(), req.Name, req.SpecialtyID, req.HospitalID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

// CheckIn handles POST /api/appointments/{id}/check-in
func (h *QueueHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.CheckIn(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

// Status handles GET /api/patients/{id}/queue
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	position, err := h.service.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, position)
}

// Board handles GET /api/doctors/{id}/queue
func (h *QueueHandler) Board(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Board(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, board)
}
