package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/streamhub/internal/apperror"
)

// dataResponse is the success envelope every endpoint returns.
type dataResponse struct {
	Status  int    `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// errorResponse is the error envelope. Errors carries field-level
// validation details when the request shape was the problem.
type errorResponse struct {
	Status  int          `json:"status"`
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Errors  []fieldError `json:"errors"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, dataResponse{Status: status, Data: data, Message: message})
}

// writeError maps a domain error to its HTTP status and sends the error
// envelope. Untyped errors become a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Status:  http.StatusInternalServerError,
			Message: "An internal error occurred",
			Errors:  []fieldError{},
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperror.ErrUnauthenticated), errors.Is(err, apperror.ErrInvalidCredential):
		status = http.StatusUnauthorized
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrUpstream):
		status = http.StatusInternalServerError
	}

	fields := []fieldError{}
	if appErr.Field != "" {
		fields = append(fields, fieldError{Field: appErr.Field, Message: appErr.Message})
	}

	message := appErr.Message
	if status == http.StatusInternalServerError {
		message = "An internal error occurred"
	}

	writeJSON(w, status, errorResponse{
		Status:  status,
		Message: message,
		Errors:  fields,
	})
}

// writeValidationErrors sends a 400 envelope carrying every failed field.
func writeValidationErrors(w http.ResponseWriter, fields []fieldError) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Status:  http.StatusBadRequest,
		Message: "validation failed",
		Errors:  fields,
	})
}
