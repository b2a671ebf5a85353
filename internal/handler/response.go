package handler

// Every error response from the API has the same shape:
//
//	{"error": "not_found", "message": "profile not found with id abc123"}
//
// so the frontend can handle a 400 and a 503 with the same code path.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/fitai/internal/apperror"
	"github.com/sakif/fitai/internal/auth"
)

// retryAfterSeconds is sent with 503 responses when storage is unavailable.
const retryAfterSeconds = "5"

// ErrorResponse is the standard error body returned by all API endpoints.
type ErrorResponse struct {
	Error     string `json:"error"`               // machine-readable type, e.g. "not_found"
	Message   string `json:"message"`             // human-readable description
	Field     string `json:"field,omitempty"`     // offending input field, for validation errors
	Retryable bool   `json:"retryable,omitempty"` // the same request may succeed later
}

// writeJSON sends data as JSON with the given status. Headers must be set
// before WriteHeader; anything after is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}
	// Encode before the status goes out so a failure can still become a 500.
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal_error","message":"An internal error occurred"}` + "\n"))
		return
	}
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// writeError maps a domain error to an HTTP status and sends it.
//
// The service layer never knows about status codes. errors.Is walks the
// wrapped chain, so fmt.Errorf("...: %w", apperror.NotFound(...)) still
// maps to 404.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// Unknown errors can carry SQL or file paths; never echo them.
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	resp := ErrorResponse{Error: "internal_error", Message: appErr.Message, Field: appErr.Field}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		resp.Error = "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		resp.Error = "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		resp.Error = "conflict"
	case errors.Is(err, apperror.ErrPersistence):
		status = http.StatusServiceUnavailable
		resp.Error = "persistence_failure"
		resp.Retryable = true
		w.Header().Set("Retry-After", retryAfterSeconds)
	case errors.Is(err, apperror.ErrInvariant):
		slog.Error("invariant violation", slog.String("error", err.Error()))
		resp.Message = "An internal error occurred"
	}

	writeJSON(w, status, resp)
}

// writeUnauthorized matches the body RequireAuth sends.
func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:   "unauthorized",
		Message: "valid authentication required",
	})
}

// userID returns the authenticated user or writes 401. Every /api route is
// behind RequireAuth, so the 401 branch only fires on a wiring mistake.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
	}
	return id, ok
}

// decodeJSON reads the request body into dst. Malformed JSON and unknown
// fields are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return nil
}
