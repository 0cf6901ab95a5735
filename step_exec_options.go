package asyncstep

import (
	"errors"
	"time"
)

type EmptyPolicy string

const (
	// EmptyIgnored evaluates an empty result like any other value.
	EmptyIgnored EmptyPolicy = "ignored"
	// EmptyIsMismatch keeps polling while the result is empty.
	EmptyIsMismatch EmptyPolicy = "mismatch"
	// EmptyFails keeps polling while the result is empty, and returns the policy error at timeout.
	EmptyFails EmptyPolicy = "fails"
)

type StepExecutionOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	EmptyPolicy  EmptyPolicy
	EmptyError   error
	ErrorPolicy  StepErrorPolicy

	CaptureOnSuccess bool
	CaptureOnFailure bool

	// Subject the step acts on, captured on failure.
	Subject any
	// subjectOf resolves the subject when it is only known once the producer ran.
	subjectOf func() any

	criteria []typeErasedCriterion

	// which fields were set on the step, the others are taken from the executor defaults.
	timeoutSet          bool
	pollIntervalSet     bool
	captureOnSuccessSet bool
	captureOnFailureSet bool
}

// StepErrorPolicy decides whether a producer error is worth another poll attempt.
type StepErrorPolicy interface {
	IsTransient(err error) bool
}

type ErrorPolicyFunc func(err error) bool

func (f ErrorPolicyFunc) IsTransient(err error) bool {
	return f(err)
}

type ExecutionOptionPreparer func(*StepExecutionOptions) *StepExecutionOptions

// WithTimeout sets the total duration budget of the polling loop, 0 evaluates once.
func WithTimeout(timeout time.Duration) ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.Timeout = timeout
		options.timeoutSet = true
		return options
	}
}

func PollingEvery(interval time.Duration) ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.PollInterval = interval
		options.pollIntervalSet = true
		return options
	}
}

// Matching adds criteria the step result has to satisfy, they are concatenated with AND.
func Matching[T any](criteria ...Criterion[T]) ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		for _, c := range criteria {
			options.criteria = append(options.criteria, &erasedCriterion[T]{criterion: c})
		}
		return options
	}
}

func WithEmptyIgnored() ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.EmptyPolicy = EmptyIgnored
		options.EmptyError = nil
		return options
	}
}

func WithEmptyIsMismatch() ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.EmptyPolicy = EmptyIsMismatch
		options.EmptyError = nil
		return options
	}
}

func WithEmptyFails(err error) ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.EmptyPolicy = EmptyFails
		options.EmptyError = err
		return options
	}
}

func WithErrorPolicy(policy StepErrorPolicy) ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.ErrorPolicy = policy
		return options
	}
}

// RetryOnError treats every producer error matched by isTransient as a transient mismatch.
func RetryOnError(isTransient func(error) bool) ExecutionOptionPreparer {
	return WithErrorPolicy(ErrorPolicyFunc(isTransient))
}

// RetryOnErrors treats producer errors wrapping one of targets as transient.
func RetryOnErrors(targets ...error) ExecutionOptionPreparer {
	return RetryOnError(func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	})
}

func CaptureOnSuccess(enabled bool) ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.CaptureOnSuccess = enabled
		options.captureOnSuccessSet = true
		return options
	}
}

func CaptureOnFailure(enabled bool) ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.CaptureOnFailure = enabled
		options.captureOnFailureSet = true
		return options
	}
}

func WithSubject(subject any) ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.Subject = subject
		options.subjectOf = nil
		return options
	}
}

func withSubjectOf(subjectOf func() any) ExecutionOptionPreparer {
	return func(options *StepExecutionOptions) *StepExecutionOptions {
		options.Subject = nil
		options.subjectOf = subjectOf
		return options
	}
}

func (o *StepExecutionOptions) subject() any {
	if o.subjectOf != nil {
		return o.subjectOf()
	}
	return o.Subject
}

func (o *StepExecutionOptions) isTransient(err error) bool {
	return o.ErrorPolicy != nil && o.ErrorPolicy.IsTransient(err)
}

// withDefaults resolves the fields the step left unset from the executor defaults.
func (o *StepExecutionOptions) withDefaults(defaults *ExecutorOptions) *StepExecutionOptions {
	resolved := *o
	if !resolved.timeoutSet {
		resolved.Timeout = defaults.Timeout
	}
	if !resolved.pollIntervalSet {
		resolved.PollInterval = defaults.PollInterval
	}
	if !resolved.captureOnSuccessSet {
		resolved.CaptureOnSuccess = defaults.CaptureOnSuccess
	}
	if !resolved.captureOnFailureSet {
		resolved.CaptureOnFailure = defaults.CaptureOnFailure
	}
	return &resolved
}
