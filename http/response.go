package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/swiftpath"
)

// Error codes carried in ErrorResponse.Error. Clients map them back to the
// swiftpath sentinels.
const (
	CodeNotFound     = "not_found"
	CodeExists       = "exists"
	CodeNotEmpty     = "not_empty"
	CodeInvalidPath  = "invalid_path"
	CodeUnsupported  = "unsupported"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal_error"
)

// ErrUnauthorized wraps every verifier failure. HandleError answers it
// with 401.
var ErrUnauthorized = errors.New("unauthorized")

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError picks the status for err from the swiftpath sentinels.
func HandleError(w http.ResponseWriter, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request error", "error", err)
	} else {
		slog.Debug("request rejected", "status", status, "error", err)
	}
	WriteError(w, status, code, message)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, swiftpath.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "Object not found"
	case errors.Is(err, swiftpath.ErrExists):
		return http.StatusConflict, CodeExists, "Already exists"
	case errors.Is(err, swiftpath.ErrDirectoryNotEmpty):
		return http.StatusConflict, CodeNotEmpty, "Container not empty"
	case errors.Is(err, swiftpath.ErrInvalidPath):
		return http.StatusBadRequest, CodeInvalidPath, "Invalid path"
	case errors.Is(err, swiftpath.ErrUnsupported):
		return http.StatusNotImplemented, CodeUnsupported, "Not supported by this backend"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized, err.Error()
	default:
		return http.StatusInternalServerError, CodeInternal, "Internal server error"
	}
}

func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
