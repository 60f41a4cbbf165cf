// Package apperr defines the typed error kinds core operations return and
// their translation to the HTTP error envelope {status, message, details}.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
)

var EKind = Kind(0)

// Kind discriminates the error variants core operations return. Modeling
// these as an enum rather than sentinel error values lets the HTTP
// boundary do a single table lookup instead of a chain of errors.Is
// checks.
type Kind uint32

func (Kind) InvalidInput() Kind    { return Kind(0) }
func (Kind) JobNotFound() Kind     { return Kind(1) }
func (Kind) JobNotCompleted() Kind { return Kind(2) }
func (Kind) TransportError() Kind  { return Kind(3) }
func (Kind) StoreError() Kind      { return Kind(4) }
func (Kind) InternalError() Kind   { return Kind(5) }

func (k Kind) String() string {
	return enum.StringInt(k, reflect.TypeOf(k))
}

// HTTPStatus returns the status code this kind maps to at the boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case EKind.InvalidInput():
		return http.StatusBadRequest
	case EKind.JobNotFound():
		return http.StatusNotFound
	case EKind.JobNotCompleted():
		return http.StatusBadRequest
	case EKind.TransportError(), EKind.StoreError(), EKind.InternalError():
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error variant returned from core operations. The HTTP
// boundary translates it to the {status, message, details} envelope;
// nothing below the boundary should format HTTP responses directly.
type Error struct {
	Kind    Kind
	Message string
	Details string
	cause   error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, message, details string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

func Wrap(kind Kind, message string, cause error) *Error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Details: details, cause: cause}
}

func InvalidInput(message, details string) *Error {
	return New(EKind.InvalidInput(), message, details)
}

func JobNotFound(jobID string) *Error {
	return New(EKind.JobNotFound(), "job not found", "jobId="+jobID)
}

func JobNotCompleted(jobID string) *Error {
	return New(EKind.JobNotCompleted(), "Job not completed", "jobId="+jobID)
}

func TransportError(message string, cause error) *Error {
	return Wrap(EKind.TransportError(), message, cause)
}

func StoreError(message string, cause error) *Error {
	return Wrap(EKind.StoreError(), message, cause)
}

func Internal(message string, cause error) *Error {
	return Wrap(EKind.InternalError(), message, cause)
}

// As extracts an *Error from err, if any, mirroring the errors.As contract.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
