package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	if err := WriteJSON(w, status, errorBody{Error: msg, Code: code}, nil); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "Internal Server Error")
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	writeError(w, http.StatusBadRequest, "validation", msg)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	writeError(w, http.StatusNotFound, "not_found", msg)
}

func Unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
}

// WriteError maps domain errors onto HTTP responses. Anything unrecognised is
// a 500 and is logged with its full chain.
func WriteError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, bracket.ErrValidation):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, bracket.ErrNotFound):
		NotFound(w, msg, err)
	case errors.Is(err, bracket.ErrForbidden):
		slog.Warn("forbidden", "message", msg, "error", err)
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, bracket.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, bracket.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, bracket.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "already_registered", err.Error())
	case errors.Is(err, bracket.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "capacity_exceeded", err.Error())
	case errors.Is(err, bracket.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "insufficient_funds", err.Error())
	case errors.Is(err, bracket.ErrInvariant):
		slog.Error("bracket invariant violated", "message", msg, "error", err)
		writeError(w, http.StatusInternalServerError, "invariant", "Internal Server Error")
	default:
		InternalServerError(w, msg, err)
	}
}
