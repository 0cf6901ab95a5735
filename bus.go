package asyncstep

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/go-logr/logr"
)

// Captor receives artifacts of type A published through Bus.Capture.
type Captor[A any] func(ctx context.Context, artifact A) error

type captorEntry struct {
	name         string
	artifactType reflect.Type
	capture      func(ctx context.Context, artifact any) error
}

type BusOptions struct {
	Observers []Observer
}

type BusOptionPreparer func(*BusOptions) *BusOptions

func WithObserver(observer Observer) BusOptionPreparer {
	return func(options *BusOptions) *BusOptions {
		options.Observers = append(options.Observers, observer)
		return options
	}
}

// Bus dispatches step events to observers and artifacts to captors.
//
//	register everything on process start, the bus is sealed on first use and read-only afterwards.
type Bus struct {
	logger logr.Logger

	mu        sync.RWMutex
	sealed    bool
	observers []Observer
	captors   []*captorEntry
}

func NewBus(logger logr.Logger, optionDecorators ...BusOptionPreparer) *Bus {
	options := &BusOptions{}
	for _, decorator := range optionDecorators {
		options = decorator(options)
	}

	return &Bus{
		logger:    logger.WithName("bus"),
		observers: options.Observers,
	}
}

func (b *Bus) AddObserver(observer Observer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return ErrRegisterOnSealedBus.WithMessage(fmt.Sprintf(MsgRegisterOnSealedBus, fmt.Sprintf("observer %T", observer)))
	}

	b.observers = append(b.observers, observer)
	return nil
}

// RegisterCaptor subscribes captor to artifacts assignable to A.
func RegisterCaptor[A any](b *Bus, name string, captor Captor[A]) error {
	if captor == nil {
		return ErrConfiguration.WithMessage(fmt.Sprintf("captor %q should be defined", name))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return ErrRegisterOnSealedBus.WithMessage(fmt.Sprintf(MsgRegisterOnSealedBus, fmt.Sprintf("captor %q", name)))
	}

	b.captors = append(b.captors, &captorEntry{
		name:         name,
		artifactType: reflect.TypeFor[A](),
		capture: func(ctx context.Context, artifact any) error {
			return captor(ctx, artifact.(A))
		},
	})
	return nil
}

func (b *Bus) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
}

func (b *Bus) Sealed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sealed
}

// Capture hands artifact to every captor registered for its type, and returns how many received it.
// Artifacts nobody registered for are dropped.
func (b *Bus) Capture(ctx context.Context, artifact any) int {
	if artifact == nil {
		return 0
	}

	artifactType := reflect.TypeOf(artifact)
	captured := 0
	for _, entry := range b.snapshotCaptors() {
		if !artifactType.AssignableTo(entry.artifactType) {
			continue
		}

		captured++
		b.safeInvoke("captor "+entry.name, func() error {
			return entry.capture(ctx, artifact)
		})
	}
	return captured
}

func (b *Bus) fireStart(event StepEvent) {
	b.logger.V(1).Info("step started", "step", event.Description, "id", event.ID, "depth", event.Depth)
	for _, o := range b.snapshotObservers() {
		b.safeInvoke(fmt.Sprintf("%T.OnStart", o), func() error { return o.OnStart(event) })
	}
}

func (b *Bus) fireSuccess(event StepEvent, value any) {
	b.logger.V(1).Info("step succeeded", "step", event.Description, "id", event.ID, "elapsed", event.Elapsed, "attempts", event.Attempts)
	for _, o := range b.snapshotObservers() {
		b.safeInvoke(fmt.Sprintf("%T.OnSuccess", o), func() error { return o.OnSuccess(event, value) })
	}
}

func (b *Bus) fireFailure(event StepEvent, err error) {
	b.logger.V(1).Info("step failed", "step", event.Description, "id", event.ID, "elapsed", event.Elapsed, "attempts", event.Attempts, "error", err.Error())
	for _, o := range b.snapshotObservers() {
		b.safeInvoke(fmt.Sprintf("%T.OnFailure", o), func() error { return o.OnFailure(event, err) })
	}
}

func (b *Bus) fireFinish(event StepEvent) {
	for _, o := range b.snapshotObservers() {
		b.safeInvoke(fmt.Sprintf("%T.OnFinish", o), func() error { return o.OnFinish(event) })
	}
}

func (b *Bus) snapshotObservers() []Observer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.observers
}

func (b *Bus) snapshotCaptors() []*captorEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.captors
}

// safeInvoke swallows panics and errors of a listener, so that the step and the other listeners go on.
func (b *Bus) safeInvoke(listener string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(fmt.Errorf("panic caught: %v", r), "listener panicked", "listener", listener, "stack", string(debug.Stack()))
		}
	}()

	if err := fn(); err != nil {
		b.logger.Error(err, "listener failed", "listener", listener)
	}
}
