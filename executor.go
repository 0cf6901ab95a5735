package asyncstep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/go-asynctask"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/haitch/go-asyncstep/config"
)

// ExecutorOptions are the defaults applied to steps that leave an option unset.
type ExecutorOptions struct {
	Timeout          time.Duration
	PollInterval     time.Duration
	CaptureOnSuccess bool
	CaptureOnFailure bool
}

type ExecutorOptionPreparer func(*ExecutorOptions) *ExecutorOptions

func WithDefaultTimeout(timeout time.Duration) ExecutorOptionPreparer {
	return func(options *ExecutorOptions) *ExecutorOptions {
		options.Timeout = timeout
		return options
	}
}

func WithDefaultPollInterval(interval time.Duration) ExecutorOptionPreparer {
	return func(options *ExecutorOptions) *ExecutorOptions {
		options.PollInterval = interval
		return options
	}
}

func WithCapture(onSuccess, onFailure bool) ExecutorOptionPreparer {
	return func(options *ExecutorOptions) *ExecutorOptions {
		options.CaptureOnSuccess = onSuccess
		options.CaptureOnFailure = onFailure
		return options
	}
}

// Executor runs steps through the polling loop, and reports them on its bus.
type Executor struct {
	bus     *Bus
	logger  logr.Logger
	options *ExecutorOptions
}

func NewExecutor(bus *Bus, logger logr.Logger, optionDecorators ...ExecutorOptionPreparer) (*Executor, error) {
	options := &ExecutorOptions{CaptureOnFailure: true}
	for _, decorator := range optionDecorators {
		options = decorator(options)
	}

	if options.Timeout < 0 {
		return nil, ErrConfiguration.WithMessage(fmt.Sprintf(MsgNegativeDuration, "default timeout", options.Timeout))
	}
	if options.PollInterval < 0 {
		return nil, ErrConfiguration.WithMessage(fmt.Sprintf(MsgNegativeDuration, "default polling interval", options.PollInterval))
	}

	if bus == nil {
		bus = NewBus(logger)
	}

	return &Executor{
		bus:     bus,
		logger:  logger.WithName("executor"),
		options: options,
	}, nil
}

// NewExecutorFromConfig reads the step defaults and capture flags once from cfg.
func NewExecutorFromConfig(bus *Bus, logger logr.Logger, cfg *config.Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return NewExecutor(bus, logger,
		WithDefaultTimeout(cfg.Step.Timeout),
		WithDefaultPollInterval(cfg.Step.PollInterval),
		WithCapture(cfg.Capture.OnSuccess, cfg.Capture.OnFailure))
}

func (e *Executor) Bus() *Bus {
	return e.bus
}

func (e *Executor) Options() ExecutorOptions {
	return *e.options
}

// Result of one step invocation.
type Result[R any] struct {
	ID            uuid.UUID
	Value         R
	State         StepState
	Err           error
	ExecutionData StepExecutionData
}

type stepFrameKey struct{}

// stepFrame is stored in the context handed to producers, so nested steps know their parent.
type stepFrame struct {
	executor *Executor
	id       uuid.UUID
	depth    int
}

func frameFromContext(ctx context.Context) (*stepFrame, bool) {
	frame, ok := ctx.Value(stepFrameKey{}).(*stepFrame)
	return frame, ok
}

// Run evaluates step until it matches, fails or times out. Start and finish fire exactly once,
// success or failure at most once in between, whatever the number of attempts.
func Run[R any](ctx context.Context, ex *Executor, step *Step[R]) *Result[R] {
	if !ex.bus.Sealed() {
		ex.bus.Seal()
	}

	options := step.ExecutionPolicy().withDefaults(ex.options)
	event := StepEvent{
		ID:          uuid.New(),
		Description: step.Description(),
		Subject:     options.subject(),
		Composite:   step.Composite(),
	}
	if parent, ok := frameFromContext(ctx); ok {
		event.ParentID = parent.id
		event.Depth = parent.depth + 1
	}

	result := &Result[R]{
		ID:    event.ID,
		State: StepStateEvaluating,
		ExecutionData: StepExecutionData{
			StartTime: time.Now(),
			Polled:    &PollReport{},
		},
	}
	event.Started = result.ExecutionData.StartTime
	event.Time = event.Started

	ex.bus.fireStart(event)
	defer func() {
		event.Time = time.Now()
		ex.bus.fireFinish(event)
	}()

	stepCtx := context.WithValue(ctx, stepFrameKey{}, &stepFrame{executor: ex, id: event.ID, depth: event.Depth})
	value, err := newPoller(step.Description(), options, result.ExecutionData.Polled, step.producer).Run(stepCtx)

	result.ExecutionData.Duration = time.Since(result.ExecutionData.StartTime)
	event.Time = time.Now()
	event.Elapsed = result.ExecutionData.Duration
	event.Attempts = result.ExecutionData.Polled.Attempts
	event.Subject = options.subject()

	// nested steps are intermediate results of the step they run in.
	topLevel := event.Depth == 0
	if err != nil {
		result.Err = err
		result.State = StateOf(err)
		if topLevel && options.CaptureOnFailure && event.Subject != nil {
			ex.capture(ctx, event, event.Subject)
		}
		ex.bus.fireFailure(event, err)
		return result
	}

	result.Value = value
	result.State = StepStateSucceeded
	if topLevel && options.CaptureOnSuccess {
		ex.capture(ctx, event, value)
	}
	ex.bus.fireSuccess(event, value)
	return result
}

// CaptureArtifact publishes an artifact produced by a step built with optionDecorators, following
// the capture policy of that step: on success with CaptureOnSuccess, on failure with CaptureOnFailure.
// Steps nested in another step never capture. It reports whether the artifact was published.
func (e *Executor) CaptureArtifact(ctx context.Context, description string, succeeded bool, artifact any, optionDecorators ...ExecutionOptionPreparer) bool {
	if _, nested := frameFromContext(ctx); nested {
		return false
	}

	options := &StepExecutionOptions{}
	for _, decorator := range optionDecorators {
		options = decorator(options)
	}
	options = options.withDefaults(e.options)
	if (succeeded && !options.CaptureOnSuccess) || (!succeeded && !options.CaptureOnFailure) {
		return false
	}

	e.capture(ctx, StepEvent{Description: description}, artifact)
	return true
}

func (e *Executor) capture(ctx context.Context, event StepEvent, artifact any) {
	if captured := e.bus.Capture(ctx, artifact); captured == 0 {
		e.logger.V(2).Info("no captor for artifact", "step", event.Description, "type", fmt.Sprintf("%T", artifact))
	}
}

// Get runs step and returns its value or terminal error.
func Get[R any](ctx context.Context, ex *Executor, step *Step[R]) (R, error) {
	result := Run(ctx, ex, step)
	return result.Value, result.Err
}

// Start runs step on its own goroutine.
func Start[R any](ctx context.Context, ex *Executor, step *Step[R]) *asynctask.Task[R] {
	return asynctask.Start(ctx, func(ctx context.Context) (*R, error) {
		value, err := Get(ctx, ex, step)
		if err != nil {
			return nil, err
		}
		return &value, nil
	})
}

// Perform runs an action that produces no value, polling it while it fails with a transient error.
func (e *Executor) Perform(ctx context.Context, description string, action func(ctx context.Context) error, optionDecorators ...ExecutionOptionPreparer) error {
	if action == nil {
		return ErrConfiguration.WithMessage(fmt.Sprintf(MsgNilProducer, description))
	}

	step, err := NewStep(description, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	}, optionDecorators...)
	if err != nil {
		return err
	}

	_, err = Get(ctx, e, step)
	return err
}

// runNested evaluates step from within the producer of another step, on the same executor.
func runNested[R any](ctx context.Context, step *Step[R]) (R, error) {
	frame, ok := frameFromContext(ctx)
	if !ok {
		ex, err := NewExecutor(nil, logr.Discard())
		if err != nil {
			var zero R
			return zero, err
		}
		return Get(ctx, ex, step)
	}
	return Get(ctx, frame.executor, step)
}

// StateOf maps the terminal error of a step to its state.
func StateOf(err error) StepState {
	if err == nil {
		return StepStateSucceeded
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) && (stepErr.Code == ErrTimeoutExceeded || stepErr.Code == ErrEmptyResult) {
		return StepStateTimedOut
	}
	return StepStateFailed
}
