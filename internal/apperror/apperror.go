// Package apperror defines the small, fixed set of failure kinds the service
// reports to its callers.
//
// THE TAXONOMY:
// Every error that leaves a service method carries exactly one of these
// sentinels somewhere in its chain:
//
//	ErrValidation     the input was rejected before any I/O happened
//	ErrNotFound       the identity exists neither locally nor on GitHub
//	ErrRemoteService  GitHub was reachable but failed, timed out or rate-limited us
//	ErrStorage        the local database failed
//
// Transport layers (HTTP handlers, the CLI) map these with errors.Is. It is a
// pure lookup with no string matching.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrRemoteService = errors.New("remote service error")
	ErrStorage       = errors.New("storage error")
)

type AppError struct {
	Err     error  // sentinel kind, one of the Err* values above
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: the underlying driver/transport error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause, so errors.Is(err, ErrStorage)
// and errors.Is(err, context.DeadlineExceeded) can both hold for one error.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// RemoteService reports a failed call to an external API. cause may be nil
// when the failure is a status code rather than a transport error.
func RemoteService(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrRemoteService,
		Message: message,
		Cause:   cause,
	}
}

// Storage reports a database fault. op names what was being attempted,
// e.g. "creating user".
func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: fmt.Sprintf("storage: %s", op),
		Cause:   cause,
	}
}

// Kind returns the sentinel carried by err, or nil if err is unclassified.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrRemoteService, ErrStorage} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
