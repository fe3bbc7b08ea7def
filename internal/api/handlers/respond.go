package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
)

// actorHeader identifies the caller. Authentication itself lives in front of
// this service; the header carries the already-authenticated user id.
const actorHeader = "X-Actor-ID"

func actorID(r *http.Request) string {
	return r.Header.Get(actorHeader)
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps a service error onto an HTTP status. Conflict
// details (e.g. the colliding appointment for an overridable booking) are
// passed through to the client.
func respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrorTypeConflict, apperrors.ErrorTypeAlreadyResolved:
		status = http.StatusConflict
	case apperrors.ErrorTypeInsufficientFunds:
		status = http.StatusPaymentRequired
	case apperrors.ErrorTypeNotAvailable, apperrors.ErrorTypeScheduleFull:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrorTypeUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.ErrorTypeExternal:
		status = http.StatusBadGateway
	}

	body := map[string]interface{}{
		"error": appErr.Message,
		"code":  string(appErr.Type),
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	respondWithJSON(w, status, body)
}

func parsePositiveInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("value must be positive, got %d", v)
	}
	return v, nil
}
