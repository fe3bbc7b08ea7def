package handlers

import (
	"context"
	"net/http"

	"github.com/Zubair-mohamed/myclinic-backend/internal/application/services"
)

// ReminderRunner defines the manual scheduler trigger the API exposes
type ReminderRunner interface {
	RunOnce(ctx context.Context) (*services.RunSummary, error)
}

// AdminHandler handles operator endpoints
type AdminHandler struct {
	reminders ReminderRunner
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(reminders ReminderRunner) *AdminHandler {
	return &AdminHandler{
		reminders: reminders,
	}
}

// RunReminders handles POST /api/admin/reminders/run. A run already in
// flight surfaces as 409.
func (h *AdminHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reminders.RunOnce(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
