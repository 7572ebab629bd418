package mapping

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/outcome"
)

var (
	ErrNoSession      = errors.New("not logged in")
	ErrDeclined       = errors.New("deletion not confirmed")
	ErrStaleResponse  = errors.New("response discarded: the selected course changed")
	ErrInvalidKind    = errors.New("unknown mapping kind")
	errNoConfirmation = errors.New("no confirmation prompt configured")
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransport
	KindValidation
	KindConflict
	KindNotFound
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	case KindAuth:
		return "auth"
	}
	return "unknown"
}

// Error is the single user-facing shape every mapping operation fails with.
// Cause keeps the original error for logging.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Fields  map[string]string
	Cause   error
}

func (err *Error) Error() string { return err.Message }

func (err *Error) Unwrap() error { return err.Cause }

// Normalize turns transport, validation and domain errors into an *Error.
// It returns nil for a nil err and leaves an *Error untouched.
func Normalize(op string, err error) error {
	if err == nil {
		return nil
	}
	var nErr *Error
	if errors.As(err, &nErr) {
		return nErr
	}

	e := &Error{Op: op, Cause: err}
	var (
		vErr *core.ValidationError
		cErr *core.ConflictError
		tErr *core.TransportError
	)
	switch {
	case errors.Is(err, ErrNoSession), errors.Is(err, core.ErrSessionExpired):
		e.Kind = KindAuth
		e.Message = "your session has expired, please log in again"
	case errors.As(err, &vErr):
		e.Kind = KindValidation
		e.Fields = vErr.FieldMap()
		e.Message = fieldsMessage(e.Fields, vErr)
	case errors.Is(err, outcome.ErrMappingExists):
		e.Kind = KindConflict
		e.Message = outcome.ErrMappingExists.Error()
	case errors.As(err, &cErr):
		e.Kind = KindConflict
		e.Message = cErr.Message
	case errors.Is(err, core.ErrNotFound):
		e.Kind = KindNotFound
		e.Message = "this mapping no longer exists"
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTransport
		e.Message = "the server took too long to respond"
	case errors.Is(err, context.Canceled):
		e.Kind = KindTransport
		e.Message = "the request was cancelled"
	case errors.As(err, &tErr):
		e.Kind = KindTransport
		if tErr.StatusCode == 0 {
			e.Message = "could not reach the server"
		} else {
			e.Message = fmt.Sprintf("the server could not process the request (%d)", tErr.StatusCode)
		}
	default:
		e.Message = "something went wrong: " + err.Error()
	}
	return e
}

func fieldsMessage(fields map[string]string, vErr *core.ValidationError) string {
	if len(fields) == 0 {
		return vErr.Error()
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+fields[name])
	}
	return strings.Join(parts, "; ")
}
