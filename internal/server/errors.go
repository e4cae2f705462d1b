package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/core/tasks"
	"github.com/fbz-tec/chxport/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		queryErr  *errs.QueryFailedError
		transport *errs.TransportError
		notFound  *errs.ColumnNotFoundError
		format    *errs.FormatError
		ioErr     *errs.IOError
	)

	switch {
	case errors.Is(err, errs.ErrQueueFull), errors.Is(err, tasks.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.As(err, &notFound), errors.As(err, &format):
		return http.StatusBadRequest
	case errors.As(err, &queryErr):
		return http.StatusBadGateway
	case errors.As(err, &transport):
		return http.StatusServiceUnavailable
	case errors.As(err, &ioErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it with the status its type maps to.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger.Error("%s %s -> %d: %v", r.Method, r.URL.Path, status, err)
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: message}); err != nil {
		logger.Debug("json encode error: %v", err)
	}
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeError(w, http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("json encode error: %v", err)
	}
}
