package status

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyProcessed
	KindForbidden
	KindInvalidTransition
	KindScheduleConflict
	KindValidation
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyProcessed:
		return "already_processed"
	case KindForbidden:
		return "forbidden"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindScheduleConflict:
		return "schedule_conflict"
	case KindValidation:
		return "validation_error"
	case KindStore:
		return "store_error"
	}
	return "unknown"
}

// GenericFailure is the only message a store fault ever shows to a caller.
const GenericFailure = "Something went wrong. Please try again."

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAlreadyProcessed  = &Error{Kind: KindAlreadyProcessed}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrScheduleConflict  = &Error{Kind: KindScheduleConflict}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrStore             = &Error{Kind: KindStore}
)

// Error is a business outcome that did not succeed. Current carries the
// record status that blocked an AlreadyProcessed transition.
type Error struct {
	Kind    Kind
	Message string
	Current string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found.", what)}
}

func AlreadyProcessed(current string) *Error {
	return &Error{
		Kind:    KindAlreadyProcessed,
		Message: fmt.Sprintf("Request already %s.", strings.ToLower(current)),
		Current: current,
	}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func InvalidTransition(msg string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: msg}
}

func ScheduleConflict(msg string) *Error {
	return &Error{Kind: KindScheduleConflict, Message: msg}
}

func Validation(fields map[string]string) *Error {
	msg := "Please check the submitted fields."
	if len(fields) == 1 {
		for _, m := range fields {
			msg = m
		}
	}
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Store hides a persistence failure behind the generic message.
func Store(cause error) *Error {
	return &Error{Kind: KindStore, Message: GenericFailure, cause: cause}
}

// KindOf returns the kind of err, KindStore for foreign errors and
// KindUnknown for nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStore
}

// Outcome is the result shape handed to the presentation layer.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func Succeeded(msg string) Outcome {
	return Outcome{Success: true, Message: msg}
}

// OutcomeOf turns a lifecycle error into a failed outcome. Errors outside
// the taxonomy are reported with the generic message.
func OutcomeOf(err error) Outcome {
	var se *Error
	if errors.As(err, &se) {
		return Outcome{Success: false, Message: se.Error()}
	}
	return Outcome{Success: false, Message: GenericFailure}
}

func HTTPCode(err error) int {
	switch KindOf(err) {
	case KindUnknown:
		return http.StatusOK
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindAlreadyProcessed, KindInvalidTransition, KindScheduleConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusServiceUnavailable
}
