// Package apierr classifies failures shared by the function and REST
// handlers and defines the JSON body they answer with.
package apierr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindInput         Kind = "input"
	KindConfig        Kind = "config"
	KindUpstream      Kind = "upstream"
	KindResponseShape Kind = "response_shape"
	KindPersistence   Kind = "persistence"
)

// HTTPStatus maps a kind to its response status. Only input problems are the
// caller's fault; everything else collapses to 500.
func (k Kind) HTTPStatus() int {
	if k == KindInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error is a classified failure. Op names the operation that failed, for
// example "extract-prescription".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Input returns a KindInput error whose message is shown to the caller as is.
func Input(op, msg string) *Error {
	return &Error{Kind: KindInput, Op: op, Err: errors.New(msg)}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Response is the body of every non-2xx response. Input errors carry only
// Error.
type Response struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
}
