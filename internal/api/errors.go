package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/timada-org/todos/internal/auth"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists the offending input fields. Field is empty for
// errors about the document as a whole.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// Message returns the message of field, or "" if the field is valid.
func (e *ValidationError) Message(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}

	return ""
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

type errorBody struct {
	Error    string       `json:"error"`
	Message  string       `json:"message"`
	Fields   []FieldError `json:"fields,omitempty"`
	Redirect string       `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func (app *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:    "unauthenticated",
			Message:  "Sign in to continue.",
			Redirect: landingPath,
		})

	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "validation",
			Message: ve.Error(),
			Fields:  ve.Fields,
		})

	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:   "invalid_credentials",
			Message: err.Error(),
		})

	case errors.Is(err, auth.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorBody{
			Error:   "conflict",
			Message: err.Error(),
			Fields:  []FieldError{{Field: "email", Message: err.Error()}},
		})

	default:
		app.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "internal",
			Message: "Internal server error.",
		})
	}
}
