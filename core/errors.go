package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrForbidden is returned when a user lacks the role or the ownership required by an operation.
var ErrForbidden = errors.New("permission denied")

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

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError signals a missing entity. Each domain package exposes its own sentinel values.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found"
}

// IsNotFound reports whether the cause of err is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// CountLimitError is returned when a request would push a counted resource over its limit.
// Nothing is persisted when it is returned.
type CountLimitError struct {
	Field     string
	Limit     int
	Current   int
	Requested int
	Subject   string // what is being counted
}

func (err CountLimitError) Error() string {
	return fmt.Sprintf(
		"%s limit exceeded: at most %d allowed, %d already assigned, %d requested",
		err.Subject, err.Limit, err.Current, err.Requested)
}

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
