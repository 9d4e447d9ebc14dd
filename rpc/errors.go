package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"habitledger/native/habits"
)

const (
	codeInvalidRequest = "invalid_request"
	codeInvalidParams  = "invalid_params"
	codeUnauthorized   = "unauthorized"
	codeForbidden      = "forbidden"
	codeConflict       = "conflict"
	codeUnavailable    = "unavailable"
	codeInternal       = "internal"
)

// APIError is the error body returned by every endpoint.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type errorResponse struct {
	Error *APIError `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: &APIError{Code: code, Message: message, Data: data}})
}

func writeResult(w http.ResponseWriter, status int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(result)
}

// writeLedgerError maps engine failures onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, habits.ErrInvalidStartDate),
		errors.Is(err, habits.ErrLookaheadExceeded),
		errors.Is(err, habits.ErrIncorrectDeposit):
		writeError(w, http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, habits.ErrNotRegistered),
		errors.Is(err, habits.ErrOwnerExists):
		writeError(w, http.StatusConflict, codeConflict, err.Error(), nil)
	case errors.Is(err, habits.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error(), nil)
	case errors.Is(err, habits.ErrOwnerNotSet):
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error", nil)
	}
}
