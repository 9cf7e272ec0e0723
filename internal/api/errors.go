package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
	"github.com/kalambet/procura/internal/vendors"
	"github.com/kalambet/procura/internal/workflow"
)

const maxRequestBodySize = 1 << 20 // 1MB

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// failure maps a workflow error to a status code and error type.
func failure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrStale):
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	case errors.Is(err, rfp.ErrInvalidTransition),
		errors.Is(err, workflow.ErrInvalidInput),
		errors.Is(err, workflow.ErrNoVendors),
		errors.Is(err, workflow.ErrRFPClosed),
		errors.Is(err, vendors.ErrInvalid):
		httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
	case errors.Is(err, workflow.ErrNotConfigured):
		httpError(w, http.StatusServiceUnavailable, "not_configured", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}
