package domain

import "fmt"

// ErrorCode is the machine-readable code of an error surfaced to callers.
type ErrorCode string

const (
	CodeMissingParameter     ErrorCode = "MissingParameter"
	CodeUnknownMeasurementID ErrorCode = "UnknownMeasurementId"
	CodeMalformedCurve       ErrorCode = "MalformedCurve"
	CodeInsufficientData     ErrorCode = "InsufficientData"
	CodeModelNotFound        ErrorCode = "ModelNotFound"
)

// Error is a structured error with a code and a human-readable message.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Errorf builds an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks.
var (
	ErrMissingParameter     = &Error{Code: CodeMissingParameter, Message: "missing parameter"}
	ErrUnknownMeasurementID = &Error{Code: CodeUnknownMeasurementID, Message: "unknown measurement id"}
	ErrMalformedCurve       = &Error{Code: CodeMalformedCurve, Message: "malformed curve"}
	ErrInsufficientData     = &Error{Code: CodeInsufficientData, Message: "insufficient data"}
	ErrModelNotFound        = &Error{Code: CodeModelNotFound, Message: "no calibration model trained"}
)
