package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/rohankatakam/paperwalk/internal/analytics"
	"github.com/rohankatakam/paperwalk/internal/errors"
	"github.com/rohankatakam/paperwalk/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure maps an error from the lower layers to a response.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var e *errors.Error
	if stderrors.As(err, &e) {
		resp.Type = e.Type.String()
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	if stderrors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	var e *errors.Error
	if stderrors.As(err, &e) && e == analytics.ErrEmptyProjection {
		return http.StatusConflict
	}

	switch errors.GetType(err) {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeProviderRejected:
		if errors.StatusCode(err) == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.ErrorTypeProviderUnavailable, errors.ErrorTypeNormalization:
		return http.StatusBadGateway
	case errors.ErrorTypeAnalyticsUnavailable, errors.ErrorTypeDatabase:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
