// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationMessage is the top-level message of every validation response.
const ValidationMessage = "Form Validation Error"

// ValidationError carries per-field messages. It unwraps to ErrValidation.
type ValidationError struct {
	Fields map[string][]string
}

// FieldError builds a ValidationError for a single field.
func FieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Empty reports whether no field has a message.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

type messageBody struct {
	Message string `json:"message"`
}

type validationBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// RespondError maps domain errors to HTTP responses.
func RespondError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		JSON(w, http.StatusBadRequest, validationBody{Message: ValidationMessage, Errors: verr.Fields})
	case errors.Is(err, ErrValidation):
		JSON(w, http.StatusBadRequest, validationBody{Message: ValidationMessage, Errors: map[string][]string{}})
	case errors.Is(err, ErrNotFound):
		JSON(w, http.StatusNotFound, messageBody{Message: "Not Found"})
	case errors.Is(err, ErrDuplicate):
		JSON(w, http.StatusConflict, messageBody{Message: "Duplicate"})
	case errors.Is(err, ErrForbidden):
		JSON(w, http.StatusForbidden, messageBody{Message: "This action is unauthorized."})
	case errors.Is(err, ErrUnauthorized):
		JSON(w, http.StatusUnauthorized, messageBody{Message: "Unauthenticated."})
	default:
		JSON(w, http.StatusInternalServerError, messageBody{Message: "Server Error"})
	}
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthorized)
}
