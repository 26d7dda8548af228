package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/lightspeed-asi/internal/driver"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest    = string(driver.CodeInvalidRequest)
	ErrCodeNotFound      = string(driver.CodeNotFound)
	ErrCodeConflict      = string(driver.CodeConflict)
	ErrCodeHardware      = string(driver.CodeHardware)
	ErrCodeUnavailable   = string(driver.CodeUnavailable)
	ErrCodeInternal      = string(driver.CodeInternal)
	ErrCodeNotSupported  = string(driver.CodeNotSupported)
	ErrCodeUnauthorized  = "unauthorised"
	ErrCodeNotConfigured = "not_configured"
	ErrCodeRateLimited   = "rate_limited"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// statusByCode maps device error codes to HTTP statuses.
var statusByCode = map[driver.Code]int{
	driver.CodeNotFound:       http.StatusNotFound,
	driver.CodeInvalidRequest: http.StatusBadRequest,
	driver.CodeNotSupported:   http.StatusBadRequest,
	driver.CodeConflict:       http.StatusConflict,
	driver.CodeHardware:       http.StatusBadGateway,
	driver.CodeUnavailable:    http.StatusServiceUnavailable,
	driver.CodeInternal:       http.StatusInternalServerError,
}

// ErrorStatus classifies a device operation error into an HTTP status, an
// error code and a client-safe message.
func ErrorStatus(err error) (status int, code, message string) {
	c, message := driver.Classify(err)
	status, ok := statusByCode[c]
	if !ok {
		status = http.StatusInternalServerError
	}
	return status, string(c), message
}

// writeDeviceError maps a device operation error to a response.
func (s *Server) writeDeviceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("device operation failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	}
	writeError(w, status, code, message)
}
