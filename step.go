package asyncstep

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

type StepState string

const StepStatePending StepState = "pending"
const StepStateEvaluating StepState = "evaluating"
const StepStateSucceeded StepState = "succeeded"
const StepStateTimedOut StepState = "timed_out"
const StepStateFailed StepState = "failed"

// Producer computes a step value, it may be invoked several times by the polling loop.
type Producer[R any] func(ctx context.Context) (R, error)

type StepMeta interface {
	Description() string
	ExecutionPolicy() *StepExecutionOptions
	// Composite steps are built out of other steps, their intermediate results are not captured.
	Composite() bool
}

// Step is an immutable, reusable definition: a description, a producer and its execution options.
type Step[R any] struct {
	description      string
	producer         Producer[R]
	executionOptions *StepExecutionOptions
	composite        bool
}

// compiler check
var _ StepMeta = &Step[string]{}

// NewStep validates and builds a step definition. Negative durations, a blank description,
// a missing producer or criteria over an unrelated type are reported here, never at evaluation.
func NewStep[R any](description string, producer Producer[R], optionDecorators ...ExecutionOptionPreparer) (*Step[R], error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrConfiguration.WithMessage(MsgBlankDescription)
	}
	if producer == nil {
		return nil, ErrConfiguration.WithMessage(fmt.Sprintf(MsgNilProducer, description))
	}

	options := &StepExecutionOptions{EmptyPolicy: EmptyIgnored}
	for _, decorator := range optionDecorators {
		options = decorator(options)
	}

	if err := validateExecutionOptions[R](options); err != nil {
		return nil, err
	}

	return &Step[R]{
		description:      description,
		producer:         producer,
		executionOptions: options,
	}, nil
}

// Then chains a step on the value of parent, the new step is described as "description from (parent)".
// Every attempt of the new step evaluates parent as a nested step, with its own polling.
func Then[P, R any](description string, parent *Step[P], fn func(ctx context.Context, from P) (R, error), optionDecorators ...ExecutionOptionPreparer) (*Step[R], error) {
	if parent == nil {
		return nil, ErrConfiguration.WithMessage(fmt.Sprintf("parent of step %q should be defined", description))
	}
	if strings.TrimSpace(description) == "" {
		return nil, ErrConfiguration.WithMessage(MsgBlankDescription)
	}
	if fn == nil {
		return nil, ErrConfiguration.WithMessage(fmt.Sprintf(MsgNilProducer, description))
	}

	chained, err := NewStep(fmt.Sprintf("%s from (%s)", description, parent.Description()), func(ctx context.Context) (R, error) {
		from, err := runNested(ctx, parent)
		if err != nil {
			var zero R
			return zero, err
		}
		return fn(ctx, from)
	}, optionDecorators...)
	if err != nil {
		return nil, err
	}

	chained.composite = true
	return chained, nil
}

func (s *Step[R]) Description() string {
	return s.description
}

func (s *Step[R]) ExecutionPolicy() *StepExecutionOptions {
	return s.executionOptions
}

func (s *Step[R]) Composite() bool {
	return s.composite
}

func validateExecutionOptions[R any](options *StepExecutionOptions) error {
	if options.Timeout < 0 {
		return ErrConfiguration.WithMessage(fmt.Sprintf(MsgNegativeDuration, "timeout", options.Timeout))
	}
	if options.PollInterval < 0 {
		return ErrConfiguration.WithMessage(fmt.Sprintf(MsgNegativeDuration, "polling interval", options.PollInterval))
	}

	switch options.EmptyPolicy {
	case EmptyIgnored, EmptyIsMismatch:
	case EmptyFails:
		if options.EmptyError == nil {
			return ErrConfiguration.WithMessage("empty result policy 'fails' needs an error to fail with")
		}
	default:
		return ErrConfiguration.WithMessage(fmt.Sprintf("unknown empty result policy %q", options.EmptyPolicy))
	}

	resultType := reflect.TypeFor[R]()
	for _, c := range options.criteria {
		if err := c.validate(); err != nil {
			return err
		}
		if !c.accepts(resultType) {
			return ErrConfiguration.WithMessage(fmt.Sprintf(MsgCriterionType, c.description(), resultType))
		}
	}
	return nil
}
