package asyncstep

import (
	"errors"
	"fmt"
)

type StepErrorCode string

const (
	ErrConfiguration       StepErrorCode = "ConfigurationError"
	ErrTimeoutExceeded     StepErrorCode = "TimeoutExceeded"
	ErrProducerFailure     StepErrorCode = "ProducerFailure"
	ErrEmptyResult         StepErrorCode = "EmptyResult"
	ErrCancelled           StepErrorCode = "Cancelled"
	ErrResourceStopFailure StepErrorCode = "ResourceStopFailure"

	ErrRegisterOnSealedBus StepErrorCode = "RegisterOnSealedBus"
	MsgRegisterOnSealedBus string        = "trying to register %s on a sealed bus"

	MsgBlankDescription string = "description should not be empty"
	MsgNilProducer      string = "producer of step %q should be defined"
	MsgNegativeDuration string = "%s should not be negative, got %s"
	MsgCriterionType    string = "criterion %q does not accept values of type %s"
	MsgResourceBusy     string = "resource %s is busy and cannot be stopped"
)

func (code StepErrorCode) Error() string {
	return string(code)
}

func (code StepErrorCode) WithMessage(msg string) *MessageError {
	return &MessageError{Code: code, Message: msg}
}

type MessageError struct {
	Code    StepErrorCode
	Message string
}

func (me *MessageError) Error() string {
	return me.Code.Error() + ": " + me.Message
}

func (me *MessageError) Unwrap() error {
	return me.Code
}

// StepError is the terminal failure of a step invocation.
type StepError struct {
	Code        StepErrorCode
	Description string
	Mismatch    MismatchDescriber
	Cause       error
	Attempts    uint
}

func newStepError(code StepErrorCode, description string, cause error) *StepError {
	return &StepError{Code: code, Description: description, Cause: cause}
}

func (se *StepError) Error() string {
	switch {
	case se.Cause != nil && se.Mismatch != nil:
		return fmt.Sprintf("step %q: %s: %s. Last mismatch: %s", se.Description, se.Code, se.Cause.Error(), se.Mismatch.DescribeMismatch())
	case se.Cause != nil:
		return fmt.Sprintf("step %q: %s: %s", se.Description, se.Code, se.Cause.Error())
	case se.Mismatch != nil:
		return fmt.Sprintf("step %q: %s after %d attempt(s): %s", se.Description, se.Code, se.Attempts, se.Mismatch.DescribeMismatch())
	}
	return fmt.Sprintf("step %q: %s", se.Description, se.Code)
}

func (se *StepError) Unwrap() error {
	return se.Cause
}

// Is reports a match on the error code, so errors.Is(err, ErrTimeoutExceeded) works through wrapping.
func (se *StepError) Is(target error) bool {
	code, ok := target.(StepErrorCode)
	return ok && code == se.Code
}

// RootCause tracks the chain of nested step failures and returns the innermost step error.
func (se *StepError) RootCause() error {
	// a producer that failed because a nested step failed, track to the root
	if se.Code == ErrProducerFailure {
		nested := &StepError{}
		if errors.As(se.Cause, &nested) {
			return nested.RootCause()
		}
	}

	return se
}

func fmtNilProducer(description string) string {
	return fmt.Sprintf(MsgNilProducer, description)
}
