package asyncstep_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/haitch/go-asyncstep"
)

// eventRecorder records every callback as "<kind>:<description>".
type eventRecorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
	values []any
}

func (er *eventRecorder) record(kind string, event asyncstep.StepEvent) {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.events = append(er.events, fmt.Sprintf("%s:%s", kind, event.Description))
}

func (er *eventRecorder) OnStart(event asyncstep.StepEvent) error {
	er.record("start", event)
	return nil
}

func (er *eventRecorder) OnSuccess(event asyncstep.StepEvent, value any) error {
	er.record("success", event)
	er.mu.Lock()
	er.values = append(er.values, value)
	er.mu.Unlock()
	return nil
}

func (er *eventRecorder) OnFailure(event asyncstep.StepEvent, err error) error {
	er.record("failure", event)
	er.mu.Lock()
	er.errs = append(er.errs, err)
	er.mu.Unlock()
	return nil
}

func (er *eventRecorder) OnFinish(event asyncstep.StepEvent) error {
	er.record("finish", event)
	return nil
}

func (er *eventRecorder) Events() []string {
	er.mu.Lock()
	defer er.mu.Unlock()
	return append([]string(nil), er.events...)
}

func newTestExecutor(t *testing.T, observers ...asyncstep.Observer) *asyncstep.Executor {
	t.Helper()
	var decorators []asyncstep.BusOptionPreparer
	for _, o := range observers {
		decorators = append(decorators, asyncstep.WithObserver(o))
	}

	ex, err := asyncstep.NewExecutor(asyncstep.NewBus(logr.Discard(), decorators...), logr.Discard())
	require.NoError(t, err)
	return ex
}

// countingProducer returns failures (or empty values) for its first n calls.
type countingProducer struct {
	calls atomic.Int32
}

func (cp *countingProducer) Calls() int {
	return int(cp.calls.Load())
}

func (cp *countingProducer) valueAfter(n int, value string) asyncstep.Producer[string] {
	return func(ctx context.Context) (string, error) {
		if int(cp.calls.Add(1)) <= n {
			return "", nil
		}
		return value, nil
	}
}

func (cp *countingProducer) errorFor(n int, err error, value string) asyncstep.Producer[string] {
	return func(ctx context.Context) (string, error) {
		if int(cp.calls.Add(1)) <= n {
			return "", err
		}
		return value, nil
	}
}

var errTransient = errors.New("transient error")

// testResource is a Stoppable resource counting its stops.
type testResource struct {
	id        int
	stopped   atomic.Int32
	refreshed atomic.Int32
	stopErr   error
}

func (tr *testResource) Stop() error {
	tr.stopped.Add(1)
	return tr.stopErr
}

func (tr *testResource) Refresh() error {
	tr.refreshed.Add(1)
	return nil
}

func (tr *testResource) Stops() int {
	return int(tr.stopped.Load())
}

// resourceFactory builds numbered testResources and remembers them.
type resourceFactory struct {
	mu      sync.Mutex
	built   []*testResource
	stopErr error
}

func (rf *resourceFactory) Build(ctx context.Context) (*testResource, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	r := &testResource{id: len(rf.built) + 1, stopErr: rf.stopErr}
	rf.built = append(rf.built, r)
	return r, nil
}

func (rf *resourceFactory) Built() []*testResource {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return append([]*testResource(nil), rf.built...)
}
