// Package apierr defines the structured errors surfaced by the inference client.
package apierr

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes.
const (
	CodeMissingRequiredFields = "MISSING_REQUIRED_FIELDS"
	CodeUnknownField          = "UNKNOWN_FIELD"
	CodeTypeValidation        = "TYPE_VALIDATION_FAILURE"
	CodeUnsupportedDataKind   = "UNSUPPORTED_DATA_KIND"
	CodeInvalidMethodName     = "INVALID_METHOD_NAME"
	CodeIncompatibleResource  = "INCOMPATIBLE_RESOURCE"
	CodeRemoteStatus          = "REMOTE_STATUS_FAILURE"
	CodeTransport             = "TRANSPORT_FAILURE"
	CodeInvalidConfig         = "INVALID_CONFIG"
	CodeTooManyInputs         = "TOO_MANY_INPUTS"
)

// Sentinels for errors.Is. They match any *Error carrying the same code.
var (
	ErrMissingRequiredFields = &Error{Code: CodeMissingRequiredFields}
	ErrUnknownField          = &Error{Code: CodeUnknownField}
	ErrTypeValidation        = &Error{Code: CodeTypeValidation}
	ErrUnsupportedDataKind   = &Error{Code: CodeUnsupportedDataKind}
	ErrInvalidMethodName     = &Error{Code: CodeInvalidMethodName}
	ErrIncompatibleResource  = &Error{Code: CodeIncompatibleResource}
	ErrRemoteStatus          = &Error{Code: CodeRemoteStatus}
	ErrTransport             = &Error{Code: CodeTransport}
	ErrInvalidConfig         = &Error{Code: CodeInvalidConfig}
	ErrTooManyInputs         = &Error{Code: CodeTooManyInputs}
)

// Error is a structured client error.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Cause   error       `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Code + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new Error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// FieldKind names a field and the data kind it was expected to satisfy.
type FieldKind struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
}

// MissingRequiredFields reports every required field that was absent.
func MissingRequiredFields(names []string) *Error {
	return &Error{
		Code:    CodeMissingRequiredFields,
		Message: fmt.Sprintf("Missing required fields: %s", strings.Join(names, ", ")),
		Details: append([]string(nil), names...),
	}
}

// UnknownField reports an argument key that the method signature does not declare.
func UnknownField(name string) *Error {
	return &Error{
		Code:    CodeUnknownField,
		Message: fmt.Sprintf("Field %s not found in input fields list", name),
		Details: name,
	}
}

// TypeValidation reports a value that does not satisfy its declared kind.
func TypeValidation(field, expected string, cause error) *Error {
	return &Error{
		Code:    CodeTypeValidation,
		Message: fmt.Sprintf("Validation failed for field %s: expected %s", field, expected),
		Details: FieldKind{Field: field, Expected: expected},
		Cause:   cause,
	}
}

// UnsupportedDataKind reports a declared kind with no validator or codec.
func UnsupportedDataKind(field string, kind string) *Error {
	return &Error{
		Code:    CodeUnsupportedDataKind,
		Message: fmt.Sprintf("No validator found for data type %s", kind),
		Details: FieldKind{Field: field, Expected: kind},
	}
}

// MissingFields returns the missing field names carried by a MISSING_REQUIRED_FIELDS error.
func MissingFields(err error) []string {
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeMissingRequiredFields {
		return nil
	}
	names, _ := e.Details.([]string)
	return names
}

// RemoteStatus reports a completed call whose status is not success. The
// final status is carried in Details.
func RemoteStatus(op, description string, status interface{}) *Error {
	return &Error{
		Code:    CodeRemoteStatus,
		Message: fmt.Sprintf("%s failed with response %s", op, description),
		Details: status,
	}
}

// Transport reports a call that did not complete. The transport error is kept
// as the cause.
func Transport(op string, cause error) *Error {
	return &Error{
		Code:    CodeTransport,
		Message: fmt.Sprintf("%s failed with error", op),
		Cause:   cause,
	}
}
