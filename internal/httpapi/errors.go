package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"llmed/internal/manager"
	"llmed/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// classify maps manager errors to an HTTP status and a machine-readable kind.
// Cancellation is checked before the pipeline case because a cancelled
// generation surfaces as a PipelineError carrying ErrCancelled.
func classify(err error) (int, string) {
	switch {
	case manager.IsModelNotFound(err):
		return http.StatusNotFound, "not_found"
	case manager.IsWrongKind(err):
		return http.StatusConflict, "wrong_kind"
	case manager.IsInvalidInput(err):
		return http.StatusBadRequest, "invalid_input"
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests, "too_busy"
	case manager.IsCancelled(err):
		return http.StatusConflict, "cancelled"
	case manager.IsNotImplemented(err):
		return http.StatusNotImplemented, "not_implemented"
	case manager.IsDependencyUnavailable(err), errors.Is(err, manager.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case manager.IsResourceError(err):
		return http.StatusInternalServerError, "resource"
	case manager.IsPipelineError(err):
		return http.StatusInternalServerError, "pipeline"
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode(), ""
	}
	return http.StatusInternalServerError, ""
}

// writeError writes err as an ErrorResponse. partial, when empty, defaults
// to the output produced before a pipeline failure.
func writeError(w http.ResponseWriter, err error, partial string) int {
	status, kind := classify(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("queue")
	}
	if partial == "" {
		partial = manager.PartialOutput(err)
	}
	writeJSON(w, status, types.ErrorResponse{Error: err.Error(), Code: status, Kind: kind, Partial: partial})
	return status
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
