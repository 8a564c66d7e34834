package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
	"github.com/joelkehle/disclosure-drafter/internal/store"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeRejected    = "rejected"
	CodeConflict    = "conflict"
	CodeTooLarge    = "too_large"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

type Error struct {
	Code    string
	Message string
	Status  int
	// Validation is set when a disclosure was rejected by the gate.
	Validation *disclosure.ValidationResult
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRejected:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	case CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code)}
}

// asError maps domain errors onto API errors.
func asError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var gateErr *disclosure.GateError
	if errors.As(err, &gateErr) {
		e := newError(CodeRejected, disclosure.FailureReport(gateErr.Result))
		e.Validation = &gateErr.Result
		return e
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return newError(CodeTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(CodeNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		return newError(CodeConflict, err.Error())
	case errors.Is(err, disclosure.ErrNilDisclosure):
		return newError(CodeValidation, err.Error())
	default:
		return newError(CodeInternal, err.Error())
	}
}
