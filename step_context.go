package asyncstep

import (
	"context"
)

// Refreshable resources get back to a clean state on StepContext.Refresh, e.g. clearing cookies.
type Refreshable interface {
	Refresh() error
}

// StepContext routes calls on a managed resource through the executor: every call marks the
// container busy, runs as a step with the resource as subject, then frees the container.
type StepContext[R any] struct {
	container *Container[R]
	executor  *Executor
}

func NewStepContext[R any](executor *Executor, container *Container[R]) *StepContext[R] {
	return &StepContext[R]{container: container, executor: executor}
}

func (sc *StepContext[R]) Container() *Container[R] {
	return sc.container
}

func (sc *StepContext[R]) Executor() *Executor {
	return sc.executor
}

// GetFrom evaluates fn against the resource of sc, polling per optionDecorators. The resource is
// fetched on every attempt, so a failing build is polled like any producer error. The resource
// becomes the subject of the step once it is built.
func GetFrom[R, T any](ctx context.Context, sc *StepContext[R], description string, fn func(ctx context.Context, resource R) (T, error), optionDecorators ...ExecutionOptionPreparer) (T, error) {
	var zero T
	if fn == nil {
		return zero, ErrConfiguration.WithMessage(fmtNilProducer(description))
	}

	var resource R
	built := false
	subject := func() any {
		if !built {
			return nil
		}
		return resource
	}

	step, err := NewStep(description, func(ctx context.Context) (T, error) {
		r, err := sc.container.Get(ctx)
		if err != nil {
			return zero, err
		}
		resource, built = r, true
		return fn(ctx, r)
	}, append([]ExecutionOptionPreparer{withSubjectOf(subject)}, optionDecorators...)...)
	if err != nil {
		return zero, err
	}

	sc.container.MarkBusy()
	defer sc.container.MarkFree()

	return Get(ctx, sc.executor, step)
}

// PerformOn runs an action against the resource of sc.
func PerformOn[R any](ctx context.Context, sc *StepContext[R], description string, action func(ctx context.Context, resource R) error, optionDecorators ...ExecutionOptionPreparer) error {
	if action == nil {
		return ErrConfiguration.WithMessage(fmtNilProducer(description))
	}

	_, err := GetFrom(ctx, sc, description, func(ctx context.Context, resource R) (struct{}, error) {
		return struct{}{}, action(ctx, resource)
	}, optionDecorators...)
	return err
}

// Refresh brings a Refreshable resource back to a clean state, other resources are left as they are.
func (sc *StepContext[R]) Refresh(ctx context.Context) error {
	return sc.container.Use(ctx, func(ctx context.Context, resource R) error {
		if r, ok := any(resource).(Refreshable); ok {
			return r.Refresh()
		}
		return nil
	})
}

func (sc *StepContext[R]) Stop() error {
	return sc.container.Stop()
}
