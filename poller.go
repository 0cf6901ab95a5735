package asyncstep

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// internal poller to evaluate a producer until it matches, or the step timeout is exhausted.
type poller[T any] struct {
	description string
	options     *StepExecutionOptions
	pollReport  *PollReport
	function    Producer[T]
}

func newPoller[T any](description string, options *StepExecutionOptions, report *PollReport, toPoll Producer[T]) *poller[T] {
	return &poller[T]{description: description, options: options, pollReport: report, function: toPoll}
}

type panicError struct {
	recovered any
	stack     []byte
}

func (pe *panicError) Error() string {
	return fmt.Sprintf("Panic caught: %v, StackTrace: %s", pe.recovered, pe.stack)
}

func (p *poller[T]) funcWithPanicHandled(ctx context.Context) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{recovered: r, stack: debug.Stack()}
		}
	}()
	result, err = p.function(ctx)

	return result, err
}

// match evaluates the criteria, a panicking criterion is reported as a *panicError.
func (p *poller[T]) match(value T) (ok bool, mismatch MismatchDescriber, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, mismatch, err = false, nil, &panicError{recovered: r, stack: debug.Stack()}
		}
	}()

	for _, c := range p.options.criteria {
		if ok, mismatch := c.match(value); !ok {
			return false, mismatch, nil
		}
	}
	return true, nil, nil
}

// Run evaluates the producer at least once. Durations are compared at millisecond granularity,
// the clock starts once and the sleep between attempts never overshoots the timeout.
func (p *poller[T]) Run(ctx context.Context) (T, error) {
	var zero T
	timeout := p.options.Timeout.Truncate(time.Millisecond)
	start := time.Now()

	var lastMismatch MismatchDescriber
	var lastErr error
	lastEmpty := false
	for {
		p.pollReport.Attempts++
		value, err := p.funcWithPanicHandled(ctx)
		lastErr, lastEmpty = nil, false

		switch {
		case err != nil:
			if _, panicked := err.(*panicError); panicked || !p.options.isTransient(err) {
				return zero, p.failure(ErrProducerFailure, err, nil)
			}
			p.pollReport.TransientErrors++
			lastErr = err
			lastMismatch = &ErrorMismatch{Err: err}
		case p.options.EmptyPolicy != EmptyIgnored && IsEmpty(value):
			lastEmpty = true
			lastMismatch = EmptyMismatch{}
		default:
			ok, mismatch, err := p.match(value)
			if err != nil {
				return zero, p.failure(ErrProducerFailure, err, nil)
			}
			if ok {
				return value, nil
			}
			lastMismatch = mismatch
		}

		elapsed := time.Since(start).Truncate(time.Millisecond)
		if elapsed >= timeout {
			if timeout > 0 {
				lastMismatch = &MismatchWithTime{Waited: elapsed, Mismatch: lastMismatch}
			}
			if lastEmpty && p.options.EmptyPolicy == EmptyFails {
				return zero, p.failure(ErrEmptyResult, p.options.EmptyError, lastMismatch)
			}
			return zero, p.failure(ErrTimeoutExceeded, lastErr, lastMismatch)
		}

		if err := sleepContext(ctx, min(p.options.PollInterval, timeout-elapsed)); err != nil {
			return zero, p.failure(ErrCancelled, err, lastMismatch)
		}
	}
}

func (p *poller[T]) failure(code StepErrorCode, cause error, mismatch MismatchDescriber) *StepError {
	se := newStepError(code, p.description, cause)
	se.Mismatch = mismatch
	se.Attempts = p.pollReport.Attempts
	return se
}

// sleepContext waits for d, or until ctx is done. A zero wait still reports a done context.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
