package transit

import (
	"errors"
	"fmt"
)

// ErrorClass classifies scan failures.
type ErrorClass string

const (
	// ErrorClassPrecondition indicates the caller passed inputs the scan cannot honour.
	ErrorClassPrecondition ErrorClass = "precondition"

	// ErrorClassNumerical indicates the root bracket could not be refined safely.
	ErrorClassNumerical ErrorClass = "numerical"

	// ErrorClassIntegrator indicates the N-body integrator failed. Never retried.
	ErrorClassIntegrator ErrorClass = "integrator"
)

// Error codes.
const (
	CodeInvalidRange      = "INVALID_RANGE"
	CodeCapacityExceeded  = "CAPACITY_EXCEEDED"
	CodeAmbiguousCrossing = "AMBIGUOUS_CROSSING"
	CodeIntegratorFailure = "INTEGRATOR_FAILURE"
	CodeInvalidBody       = "INVALID_BODY"
	CodeInsufficientData  = "INSUFFICIENT_DATA"
)

// Sentinel errors for use with errors.Is. Matching compares class and code.
var (
	ErrInvalidRange      = &ScanError{Class: ErrorClassPrecondition, Code: CodeInvalidRange}
	ErrInvalidBody       = &ScanError{Class: ErrorClassPrecondition, Code: CodeInvalidBody}
	ErrCapacityExceeded  = &ScanError{Class: ErrorClassPrecondition, Code: CodeCapacityExceeded}
	ErrAmbiguousCrossing = &ScanError{Class: ErrorClassNumerical, Code: CodeAmbiguousCrossing}
	ErrIntegrator        = &ScanError{Class: ErrorClassIntegrator, Code: CodeIntegratorFailure}
	ErrInsufficientData  = &ScanError{Class: ErrorClassPrecondition, Code: CodeInsufficientData}
)

// ScanError is a classified error raised by Compute.
type ScanError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code identifies the failure programmatically.
	Code string `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Body is the name (or index) of the body involved, if any.
	Body string `json:"body,omitempty"`

	// Time is the simulated time at which the failure was detected.
	Time float64 `json:"time,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s (body=%s, t=%g)", msg, e.Body, e.Time)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Class, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ScanError with the same class and code.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithBody records the body and time involved in the error.
func (e *ScanError) WithBody(name string, t float64) *ScanError {
	e.Body = name
	e.Time = t
	return e
}

// WithDetail adds a detail field to the error context.
func (e *ScanError) WithDetail(key string, value interface{}) *ScanError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(class ErrorClass, code, format string, args ...interface{}) *ScanError {
	return &ScanError{
		Class:   class,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func invalidRange(format string, args ...interface{}) *ScanError {
	return newError(ErrorClassPrecondition, CodeInvalidRange, format, args...)
}

func integratorFailure(err error) *ScanError {
	return &ScanError{
		Class:   ErrorClassIntegrator,
		Code:    CodeIntegratorFailure,
		Message: "integration failed",
		Err:     err,
	}
}

// IsPrecondition returns true if err is a precondition violation.
func IsPrecondition(err error) bool {
	return classOf(err) == ErrorClassPrecondition
}

// IsNumerical returns true if err is a bisection or bracketing failure.
func IsNumerical(err error) bool {
	return classOf(err) == ErrorClassNumerical
}

// IsIntegratorFailure returns true if err came from the integrator.
func IsIntegratorFailure(err error) bool {
	return classOf(err) == ErrorClassIntegrator
}

// ClassOf returns the class of err, or "" if err is not a ScanError.
func ClassOf(err error) ErrorClass {
	return classOf(err)
}

func classOf(err error) ErrorClass {
	var e *ScanError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}
