package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	validation "github.com/go-ozzo/ozzo-validation"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ExistsResponse is returned by the availability checks.
type ExistsResponse struct {
	Exists  bool   `json:"exists"`
	Message string `json:"message"`
}

var (
	errBadRequest = errors.New("invalid request body")
	errNotFound   = errors.New("user not found")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr validation.Errors
	switch {
	case errors.As(err, &verr), errors.Is(err, errBadRequest), errors.Is(err, goSession.ErrPasswordMismatch):
		return http.StatusBadRequest
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, goSession.ErrInvalidCredentials),
		errors.Is(err, goSession.ErrInvalidClientCredentials),
		errors.Is(err, goSession.ErrInvalidRefreshToken),
		errors.Is(err, goSession.ErrUserNotFound),
		errors.Is(err, goSession.ErrTokenNotFound),
		errors.Is(err, goSession.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, goSession.ErrUsernameTaken), errors.Is(err, goSession.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, goSession.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, goSession.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error(r.Context(), "httpapi: request failed", "path", r.URL.Path, "status", status, "error", err)
		msg = http.StatusText(status)
	case errors.Is(err, goSession.ErrUserNotFound):
		// Never reveal whether an account exists.
		msg = goSession.ErrInvalidCredentials.Error()
	}
	writeMessage(w, status, msg)
}
