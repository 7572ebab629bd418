package core

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrSessionExpired is returned once the access token was rejected and could not be refreshed.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrMalformedResponse is returned by clients when a response body does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// ConflictError is a uniqueness or state conflict; errors.Is(err, ErrConflict) holds for it.
type ConflictError struct {
	Message string
}

func NewConflictError(msg string) error { return &ConflictError{Message: msg} }

func (err *ConflictError) Error() string { return err.Message }

func (err *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError names the missing resource; errors.Is(err, ErrNotFound) holds for it.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error { return &NotFoundError{Resource: resource} }

func (err *NotFoundError) Error() string { return err.Resource + " not found" }

func (err *NotFoundError) Unwrap() error { return ErrNotFound }

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shorthand for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{
		Err:    errors.New(field + ": " + msg),
		Fields: []FieldError{{Field: field, Error: msg}},
	}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	if len(err.Fields) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, fe := range err.Fields {
		msgs = append(msgs, fe.Field+": "+fe.Error)
	}
	return strings.Join(msgs, "; ")
}

func (err ValidationError) Unwrap() error { return err.Err }

// FieldMap returns the field errors keyed by field name, sorted for stable output.
func (err ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(err.Fields))
	for _, fe := range err.Fields {
		if prev, ok := m[fe.Field]; ok {
			m[fe.Field] = prev + " " + fe.Error
			continue
		}
		m[fe.Field] = fe.Error
	}
	return m
}

// SortFields orders field errors by field name.
func (err *ValidationError) SortFields() {
	sort.SliceStable(err.Fields, func(i, j int) bool { return err.Fields[i].Field < err.Fields[j].Field })
}

// TransportError is returned by HTTP clients when a request could not complete
// or the server answered with an unexpected status.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Err        error
}

func (err *TransportError) Error() string {
	if err.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", err.Method, err.Path, err.Err)
	}
	status := fmt.Sprintf("%d %s", err.StatusCode, http.StatusText(err.StatusCode))
	if err.Err == nil {
		return fmt.Sprintf("%s %s: %s", err.Method, err.Path, status)
	}
	return fmt.Sprintf("%s %s: %s: %v", err.Method, err.Path, status, err.Err)
}

func (err *TransportError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
