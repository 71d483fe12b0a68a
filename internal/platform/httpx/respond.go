package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Data wraps a resource as {"data": ...}.
func Data(w http.ResponseWriter, status int, data any) {
	JSON(w, status, map[string]any{"data": data})
}

// Success writes {"success": true} with status 200.
func Success(w http.ResponseWriter) {
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DecodeJSON decodes the request body into target. An empty body leaves
// target untouched; malformed JSON is reported as a validation error.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return FieldError(typeErr.Field, "The "+typeErr.Field+" field is invalid.")
		}
		return FieldError("body", "The request body must be valid JSON.")
	}
	return nil
}

// URLParamID parses a positive integer route parameter. Anything else is
// reported as ErrNotFound since no record can match it.
func URLParamID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

// WantsJSON reports whether the client asked for a JSON response rather than
// a browser redirect.
func WantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "json")
}

// IDList is the body of bulk delete requests.
type IDList struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}
