package asyncstep

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/haitch/go-asyncstep/config"
)

// Stoppable resources are stopped when their container is stopped or reaped.
// io.Closer is accepted as well.
type Stoppable interface {
	Stop() error
}

// Factory builds the resource of a container, it is called again after every stop.
type Factory[T any] func(ctx context.Context) (T, error)

// StopHook is told about every stop of a built resource, reaped tells whether the reaper stopped it.
// Hooks run after the container lock is released, they may call back into the container.
type StopHook func(container string, reaped bool, err error)

type ContainerOptions struct {
	// InactivityThreshold is how long the container stays free before the reaper stops the resource, 0 disables the reaper.
	InactivityThreshold time.Duration
	Logger              logr.Logger
	StopHooks           []StopHook
}

type ContainerOptionPreparer func(*ContainerOptions) *ContainerOptions

func WithInactivityThreshold(threshold time.Duration) ContainerOptionPreparer {
	return func(options *ContainerOptions) *ContainerOptions {
		options.InactivityThreshold = threshold
		return options
	}
}

func WithContainerLogger(logger logr.Logger) ContainerOptionPreparer {
	return func(options *ContainerOptions) *ContainerOptions {
		options.Logger = logger
		return options
	}
}

func WithStopHook(hook StopHook) ContainerOptionPreparer {
	return func(options *ContainerOptions) *ContainerOptions {
		options.StopHooks = append(options.StopHooks, hook)
		return options
	}
}

// FromConfig reads the inactivity threshold once from cfg.
func FromConfig(cfg *config.Config) ContainerOptionPreparer {
	return WithInactivityThreshold(cfg.Resources.InactivityThreshold)
}

// Container owns one lazily built resource, and stops it once it has been free for longer than
// the inactivity threshold. Callers bracket their use of the resource with MarkBusy / MarkFree.
type Container[T any] struct {
	name    string
	factory Factory[T]
	options *ContainerOptions
	logger  logr.Logger

	// mu guards everything below, and is the unit of mutual exclusion between Stop and the reaper.
	mu         sync.Mutex
	resource   T
	built      bool
	busy       int
	generation uint64
	lastAccess time.Time
	reaper     *reaper
}

func NewContainer[T any](name string, factory Factory[T], optionDecorators ...ContainerOptionPreparer) (*Container[T], error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrConfiguration.WithMessage("container name should not be empty")
	}
	if factory == nil {
		return nil, ErrConfiguration.WithMessage(fmt.Sprintf("factory of container %q should be defined", name))
	}

	options := &ContainerOptions{Logger: logr.Discard()}
	for _, decorator := range optionDecorators {
		options = decorator(options)
	}
	if options.InactivityThreshold < 0 {
		return nil, ErrConfiguration.WithMessage(fmt.Sprintf(MsgNegativeDuration, "inactivity threshold", options.InactivityThreshold))
	}

	return &Container[T]{
		name:       name,
		factory:    factory,
		options:    options,
		logger:     options.Logger.WithName("container").WithValues("container", name),
		lastAccess: time.Now(),
	}, nil
}

func (c *Container[T]) Name() string {
	return c.name
}

// Get returns the resource, building it when there is none.
func (c *Container[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastAccess = time.Now()
	if c.built {
		return c.resource, nil
	}

	resource, err := c.factory(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("building resource of container %q: %w", c.name, err)
	}

	c.resource = resource
	c.built = true
	c.logger.V(1).Info("resource built")

	// built outside of a busy bracket, reap it like a freed one.
	if c.busy == 0 {
		c.generation++
		c.startReaperIfStoppableLocked()
	}
	return resource, nil
}

// MarkBusy may be nested, the container is free again once every MarkBusy got its MarkFree.
func (c *Container[T]) MarkBusy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.busy++
	c.generation++
	c.lastAccess = time.Now()
	c.cancelReaperLocked()
}

func (c *Container[T]) MarkFree() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy == 0 {
		c.logger.Info("container marked free while not busy")
		return
	}

	c.busy--
	c.lastAccess = time.Now()
	if c.busy > 0 {
		return
	}

	c.generation++
	c.startReaperIfStoppableLocked()
}

func (c *Container[T]) startReaperIfStoppableLocked() {
	if c.built && c.options.InactivityThreshold > 0 && isStoppable(c.resource) {
		c.startReaperLocked(c.generation)
	}
}

func (c *Container[T]) IsBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy > 0
}

// Built reports whether the container currently holds a resource.
func (c *Container[T]) Built() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.built
}

// Use marks the container busy while fn works with the resource.
func (c *Container[T]) Use(ctx context.Context, fn func(ctx context.Context, resource T) error) error {
	c.MarkBusy()
	defer c.MarkFree()

	resource, err := c.Get(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, resource)
}

// Stop stops the resource if one is built, the next Get builds a new one.
// A busy container is never stopped.
func (c *Container[T]) Stop() error {
	c.mu.Lock()
	if c.busy > 0 {
		c.mu.Unlock()
		return ErrResourceStopFailure.WithMessage(fmt.Sprintf(MsgResourceBusy, c.name))
	}

	c.cancelReaperLocked()
	outcome := c.stopLocked(false)
	c.mu.Unlock()

	return c.notifyStop(outcome)
}

// WaitReaper blocks until the pending reaper, if any, is done.
func (c *Container[T]) WaitReaper(ctx context.Context) error {
	c.mu.Lock()
	r := c.reaper
	c.mu.Unlock()

	if r == nil {
		return nil
	}
	return r.task.Wait(ctx)
}

type stopOutcome struct {
	reaped bool
	err    error
}

// stopLocked stops the built resource. The caller runs notifyStop with the outcome once the
// mutex is released, nil means there was nothing to stop.
func (c *Container[T]) stopLocked(reaped bool) *stopOutcome {
	if !c.built {
		return nil
	}

	resource := c.resource
	var zero T
	c.resource = zero
	c.built = false
	c.generation++

	err := stopResource(resource)
	if err == nil {
		c.logger.V(1).Info("resource stopped", "reaped", reaped)
	}
	return &stopOutcome{reaped: reaped, err: err}
}

// notifyStop runs the stop hooks, without holding the container mutex.
func (c *Container[T]) notifyStop(outcome *stopOutcome) error {
	if outcome == nil {
		return nil
	}

	for _, hook := range c.options.StopHooks {
		hook(c.name, outcome.reaped, outcome.err)
	}
	if outcome.err != nil {
		return newStepError(ErrResourceStopFailure, c.name, outcome.err)
	}
	return nil
}

func isStoppable(resource any) bool {
	switch resource.(type) {
	case Stoppable, io.Closer:
		return true
	}
	return false
}

func stopResource(resource any) error {
	switch r := resource.(type) {
	case Stoppable:
		return r.Stop()
	case io.Closer:
		return r.Close()
	}
	return nil
}
