package client

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status   int          `json:"-"`
	Code     string       `json:"error"`
	Message  string       `json:"message"`
	Fields   []FieldError `json:"fields"`
	Redirect string       `json:"redirect"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("todos: %d %s", e.Status, http.StatusText(e.Status))
	}

	return fmt.Sprintf("todos: %d %s", e.Status, e.Message)
}

// Is reports 401 answers as ErrUnauthenticated, whatever reason the server
// gave.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthenticated && e.Status == http.StatusUnauthorized
}
