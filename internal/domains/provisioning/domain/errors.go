package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a step failure. The orchestrator and the presentation
// layer branch on kinds only, never on transport-specific error types.
type ErrorKind string

const (
	// ErrorValidation is a local, pre-call rejection; the input never reached a remote.
	ErrorValidation ErrorKind = "validation"
	// ErrorRejected means the remote call succeeded in transport but the
	// domain answer was negative (incompatible device, bad MMQR payload).
	ErrorRejected ErrorKind = "rejected_by_service"
	// ErrorTransport covers timeouts, network failures, and malformed responses.
	ErrorTransport ErrorKind = "transport"
	// ErrorVerificationTimeout means polling exceeded its bound without a
	// terminal status; the backend may still complete out-of-band.
	ErrorVerificationTimeout ErrorKind = "verification_timeout"
	// ErrorFatal is an unrecoverable collaborator condition; the flow ends.
	ErrorFatal ErrorKind = "fatal"
)

// Recoverable reports whether the user may correct input and resubmit the
// same step. Transport errors are retried at the user's discretion.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case ErrorValidation, ErrorRejected, ErrorTransport:
		return true
	default:
		return false
	}
}

// StepError is the single failure shape every step surfaces, regardless of
// whether the cause was local validation, a domain rejection, or transport.
type StepError struct {
	Kind    ErrorKind
	Step    string
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s: %s", e.Step, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StepError) Unwrap() error { return e.Err }

// NewValidationError reports a local pre-call rejection.
func NewValidationError(step, message string) *StepError {
	return &StepError{Kind: ErrorValidation, Step: step, Message: message}
}

// NewRejection reports a domain-level rejection from a collaborator.
func NewRejection(step, message string) *StepError {
	return &StepError{Kind: ErrorRejected, Step: step, Message: message}
}

// NewTransportError wraps a transport-level failure.
func NewTransportError(step, message string, cause error) *StepError {
	return &StepError{Kind: ErrorTransport, Step: step, Message: message, Err: cause}
}

// NewVerificationTimeout reports an exhausted poll budget.
func NewVerificationTimeout(step, message string) *StepError {
	return &StepError{Kind: ErrorVerificationTimeout, Step: step, Message: message}
}

// NewFatal reports an unrecoverable collaborator condition.
func NewFatal(step, message string) *StepError {
	return &StepError{Kind: ErrorFatal, Step: step, Message: message}
}

// AsStepError extracts a StepError from an error chain.
func AsStepError(err error) (*StepError, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}

// KindOf returns the classified kind, or ErrorTransport for unclassified errors.
func KindOf(err error) ErrorKind {
	if stepErr, ok := AsStepError(err); ok {
		return stepErr.Kind
	}
	return ErrorTransport
}
