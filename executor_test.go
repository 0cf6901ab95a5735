package asyncstep_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haitch/go-asyncstep"
	"github.com/haitch/go-asyncstep/config"
)

func TestPollingUntilMatch(t *testing.T) {
	t.Parallel()

	ex := newTestExecutor(t)
	start := time.Now()
	step, err := asyncstep.NewStep("wait for job", func(ctx context.Context) (string, error) {
		if time.Since(start) < 300*time.Millisecond {
			return "running", nil
		}
		return "done", nil
	},
		asyncstep.WithTimeout(500*time.Millisecond),
		asyncstep.PollingEvery(50*time.Millisecond),
		asyncstep.Matching(asyncstep.Condition("is done", func(s string) bool { return s == "done" })))
	require.NoError(t, err)

	result := asyncstep.Run(context.Background(), ex, step)
	elapsed := time.Since(start)

	require.NoError(t, result.Err)
	assert.Equal(t, "done", result.Value)
	assert.Equal(t, asyncstep.StepStateSucceeded, result.State)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 450*time.Millisecond)
	assert.GreaterOrEqual(t, result.ExecutionData.Polled.Attempts, uint(6))
}

func TestPollingTimesOutWithLastMismatch(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	ex := newTestExecutor(t, recorder)
	producer := &countingProducer{}
	step, err := asyncstep.NewStep("wait for job", producer.valueAfter(0, "running"),
		asyncstep.WithTimeout(200*time.Millisecond),
		asyncstep.PollingEvery(50*time.Millisecond),
		asyncstep.Matching(asyncstep.Condition("is done", func(s string) bool { return s == "done" })))
	require.NoError(t, err)

	start := time.Now()
	result := asyncstep.Run(context.Background(), ex, step)
	elapsed := time.Since(start)

	require.Error(t, result.Err)
	assert.True(t, errors.Is(result.Err, asyncstep.ErrTimeoutExceeded))
	assert.Equal(t, asyncstep.StepStateTimedOut, result.State)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 350*time.Millisecond, "the last sleep never overshoots the timeout")
	assert.GreaterOrEqual(t, producer.Calls(), 4)

	var stepErr *asyncstep.StepError
	require.True(t, errors.As(result.Err, &stepErr))
	assert.Equal(t, "wait for job", stepErr.Description)
	assert.Equal(t, uint(producer.Calls()), stepErr.Attempts)
	assert.Contains(t, stepErr.Mismatch.DescribeMismatch(), "Not expected: is done. Value: running (waited for")
	assert.Contains(t, result.Err.Error(), "step \"wait for job\": TimeoutExceeded after")

	assert.Equal(t, []string{"start:wait for job", "failure:wait for job", "finish:wait for job"}, recorder.Events())
}

func TestZeroTimeoutEvaluatesOnce(t *testing.T) {
	t.Parallel()

	ex := newTestExecutor(t)
	producer := &countingProducer{}
	step, err := asyncstep.NewStep("read counter", producer.valueAfter(0, "1"),
		asyncstep.PollingEvery(time.Second),
		asyncstep.Matching(asyncstep.Condition("is 2", func(s string) bool { return s == "2" })))
	require.NoError(t, err)

	start := time.Now()
	_, err = asyncstep.Get(context.Background(), ex, step)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	assert.True(t, errors.Is(err, asyncstep.ErrTimeoutExceeded))
	assert.Equal(t, 1, producer.Calls())
	assert.EqualError(t, err, "step \"read counter\": TimeoutExceeded after 1 attempt(s): Not expected: is 2. Value: 1")
}

func TestZeroIntervalStillHonoursTimeout(t *testing.T) {
	t.Parallel()

	ex := newTestExecutor(t)
	producer := &countingProducer{}
	step, err := asyncstep.NewStep("spin", producer.valueAfter(0, "never"),
		asyncstep.WithTimeout(50*time.Millisecond),
		asyncstep.Matching(asyncstep.Condition("is ever", func(s string) bool { return s == "ever" })))
	require.NoError(t, err)

	start := time.Now()
	_, err = asyncstep.Get(context.Background(), ex, step)
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, asyncstep.ErrTimeoutExceeded))
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
	assert.Greater(t, producer.Calls(), 1)
}

func TestNegativeDurationsAreRejectedAtConstruction(t *testing.T) {
	t.Parallel()

	called := false
	producer := func(ctx context.Context) (int, error) { called = true; return 1, nil }

	_, err := asyncstep.NewStep("negative timeout", producer, asyncstep.WithTimeout(-time.Millisecond))
	assert.True(t, errors.Is(err, asyncstep.ErrConfiguration))
	assert.EqualError(t, err, "ConfigurationError: timeout should not be negative, got -1ms")

	_, err = asyncstep.NewStep("negative interval", producer, asyncstep.PollingEvery(-time.Second))
	assert.EqualError(t, err, "ConfigurationError: polling interval should not be negative, got -1s")

	_, err = asyncstep.NewExecutor(nil, logr.Discard(), asyncstep.WithDefaultTimeout(-time.Second))
	assert.True(t, errors.Is(err, asyncstep.ErrConfiguration))

	assert.False(t, called, "producer is never evaluated for an invalid step")
}

func TestStepConstructionErrors(t *testing.T) {
	t.Parallel()

	producer := func(ctx context.Context) (string, error) { return "", nil }

	_, err := asyncstep.NewStep(" ", producer)
	assert.EqualError(t, err, "ConfigurationError: description should not be empty")

	_, err = asyncstep.NewStep[string]("nil producer", nil)
	assert.EqualError(t, err, "ConfigurationError: producer of step \"nil producer\" should be defined")

	_, err = asyncstep.NewStep("wrong criterion", producer, asyncstep.Matching(positive))
	assert.EqualError(t, err, "ConfigurationError: criterion \"is positive\" does not accept values of type string")

	_, err = asyncstep.NewStep("blank criterion", producer, asyncstep.Matching(asyncstep.Condition("", func(string) bool { return true })))
	assert.EqualError(t, err, "ConfigurationError: description should not be empty")

	_, err = asyncstep.NewStep("empty fails without error", producer, asyncstep.WithEmptyFails(nil))
	assert.True(t, errors.Is(err, asyncstep.ErrConfiguration))
}

func TestCriteriaOverInterfaceTypes(t *testing.T) {
	t.Parallel()

	ex := newTestExecutor(t)
	notNil := asyncstep.Condition("is set", func(v any) bool { return v != nil })
	step, err := asyncstep.NewStep("read number", func(ctx context.Context) (int, error) { return 7, nil },
		asyncstep.Matching(notNil), asyncstep.Matching(positive))
	require.NoError(t, err)

	value, err := asyncstep.Get(context.Background(), ex, step)
	require.NoError(t, err)
	assert.Equal(t, 7, value)
}

func TestFatalProducerErrorAbortsImmediately(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	ex := newTestExecutor(t, recorder)
	errNotAllowed := errors.New("not allowed")
	producer := &countingProducer{}
	step, err := asyncstep.NewStep("login", producer.errorFor(10, errNotAllowed, "token"),
		asyncstep.WithTimeout(time.Second),
		asyncstep.PollingEvery(10*time.Millisecond))
	require.NoError(t, err)

	result := asyncstep.Run(context.Background(), ex, step)
	assert.Equal(t, 1, producer.Calls())
	assert.Equal(t, asyncstep.StepStateFailed, result.State)
	assert.True(t, errors.Is(result.Err, asyncstep.ErrProducerFailure))
	assert.True(t, errors.Is(result.Err, errNotAllowed))
	assert.EqualError(t, result.Err, "step \"login\": ProducerFailure: not allowed")
	assert.Equal(t, []string{"start:login", "failure:login", "finish:login"}, recorder.Events())
}

func TestTransientErrorsKeepPolling(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	ex := newTestExecutor(t, recorder)
	producer := &countingProducer{}
	step, err := asyncstep.NewStep("login", producer.errorFor(3, errTransient, "token"),
		asyncstep.WithTimeout(time.Second),
		asyncstep.PollingEvery(10*time.Millisecond),
		asyncstep.RetryOnErrors(errTransient))
	require.NoError(t, err)

	result := asyncstep.Run(context.Background(), ex, step)
	require.NoError(t, result.Err)
	assert.Equal(t, "token", result.Value)
	assert.Equal(t, uint(4), result.ExecutionData.Polled.Attempts)
	assert.Equal(t, uint(3), result.ExecutionData.Polled.TransientErrors)
	assert.Equal(t, []string{"start:login", "success:login", "finish:login"}, recorder.Events())
}

func TestTransientErrorUntilTimeout(t *testing.T) {
	t.Parallel()

	ex := newTestExecutor(t)
	producer := &countingProducer{}
	step, err := asyncstep.NewStep("login", producer.errorFor(1000, errTransient, "token"),
		asyncstep.WithTimeout(50*time.Millisecond),
		asyncstep.PollingEvery(10*time.Millisecond),
		asyncstep.RetryOnError(func(err error) bool { return errors.Is(err, errTransient) }))
	require.NoError(t, err)

	_, err = asyncstep.Get(context.Background(), ex, step)
	assert.True(t, errors.Is(err, asyncstep.ErrTimeoutExceeded))
	assert.True(t, errors.Is(err, errTransient), "the last transient error is the cause")
	assert.Contains(t, err.Error(), "Attempt failed: transient error")
}

func TestProducerPanicIsRecovered(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	ex := newTestExecutor(t, recorder)
	step, err := asyncstep.NewStep("explode", func(ctx context.Context) (int, error) {
		panic("boom")
	}, asyncstep.WithTimeout(time.Second), asyncstep.RetryOnError(func(error) bool { return true }))
	require.NoError(t, err)

	result := asyncstep.Run(context.Background(), ex, step)
	assert.True(t, errors.Is(result.Err, asyncstep.ErrProducerFailure))
	assert.Contains(t, result.Err.Error(), "Panic caught: boom")
	assert.Equal(t, uint(1), result.ExecutionData.Polled.Attempts, "a panic is never transient")
	assert.Equal(t, []string{"start:explode", "failure:explode", "finish:explode"}, recorder.Events())
}

func TestCriterionPanicIsRecovered(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	ex := newTestExecutor(t, recorder)
	step, err := asyncstep.NewStep("read size", func(ctx context.Context) (int, error) {
		return 3, nil
	}, asyncstep.WithTimeout(time.Second), asyncstep.Matching(asyncstep.Condition("is readable", func(int) bool {
		panic("criterion blew")
	})))
	require.NoError(t, err)

	result := asyncstep.Run(context.Background(), ex, step)
	require.Error(t, result.Err)
	assert.True(t, errors.Is(result.Err, asyncstep.ErrProducerFailure))
	assert.Contains(t, result.Err.Error(), "Panic caught: criterion blew")
	assert.Equal(t, asyncstep.StepStateFailed, result.State)
	assert.Equal(t, uint(1), result.ExecutionData.Polled.Attempts)
	assert.Equal(t, []string{"start:read size", "failure:read size", "finish:read size"}, recorder.Events())
}

func TestEmptyResultPolicies(t *testing.T) {
	t.Parallel()

	errNotFound := errors.New("element not found")
	tests := []struct {
		name      string
		policy    asyncstep.ExecutionOptionPreparer
		emptyFor  int
		wantValue string
		wantCalls int
		wantErr   []error
	}{
		{
			name:      "ignored returns the empty value",
			policy:    asyncstep.WithEmptyIgnored(),
			emptyFor:  2,
			wantValue: "",
			wantCalls: 1,
		},
		{
			name:      "mismatch polls until a value shows up",
			policy:    asyncstep.WithEmptyIsMismatch(),
			emptyFor:  2,
			wantValue: "ready",
			wantCalls: 3,
		},
		{
			name:      "mismatch times out",
			policy:    asyncstep.WithEmptyIsMismatch(),
			emptyFor:  1000,
			wantErr:   []error{asyncstep.ErrTimeoutExceeded},
		},
		{
			name:      "fails polls until a value shows up",
			policy:    asyncstep.WithEmptyFails(errNotFound),
			emptyFor:  2,
			wantValue: "ready",
			wantCalls: 3,
		},
		{
			name:     "fails with the policy error",
			policy:   asyncstep.WithEmptyFails(errNotFound),
			emptyFor: 1000,
			wantErr:  []error{asyncstep.ErrEmptyResult, errNotFound},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ex := newTestExecutor(t)
			producer := &countingProducer{}
			step, err := asyncstep.NewStep("find element", producer.valueAfter(tt.emptyFor, "ready"),
				asyncstep.WithTimeout(100*time.Millisecond),
				asyncstep.PollingEvery(5*time.Millisecond),
				tt.policy)
			require.NoError(t, err)

			result := asyncstep.Run(context.Background(), ex, step)
			if len(tt.wantErr) > 0 {
				require.Error(t, result.Err)
				for _, target := range tt.wantErr {
					assert.True(t, errors.Is(result.Err, target), "expected %v in %v", target, result.Err)
				}
				assert.Equal(t, asyncstep.StepStateTimedOut, result.State)
				assert.Contains(t, result.Err.Error(), "Result is empty")
				return
			}

			require.NoError(t, result.Err)
			assert.Equal(t, tt.wantValue, result.Value)
			assert.Equal(t, tt.wantCalls, producer.Calls())
		})
	}
}

func TestCancellationDuringSleep(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	ex := newTestExecutor(t, recorder)
	step, err := asyncstep.NewStep("wait forever", func(ctx context.Context) (bool, error) { return false, nil },
		asyncstep.WithEmptyIsMismatch(),
		asyncstep.WithTimeout(5*time.Second),
		asyncstep.PollingEvery(time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	result := asyncstep.Run(ctx, ex, step)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, errors.Is(result.Err, asyncstep.ErrCancelled))
	assert.True(t, errors.Is(result.Err, context.Canceled))
	assert.Equal(t, asyncstep.StepStateFailed, result.State)
	assert.Equal(t, []string{"start:wait forever", "failure:wait forever", "finish:wait forever"}, recorder.Events())
}

func TestEventsFireOncePerInvocation(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	ex := newTestExecutor(t, recorder)
	producer := &countingProducer{}
	step, err := asyncstep.NewStep("flaky", producer.errorFor(5, errTransient, "ok"),
		asyncstep.WithTimeout(time.Second),
		asyncstep.RetryOnErrors(errTransient))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = asyncstep.Get(context.Background(), ex, step)
		}()
	}
	wg.Wait()

	counts := map[string]int{}
	for _, e := range recorder.Events() {
		counts[e]++
	}
	assert.Equal(t, map[string]int{"start:flaky": 2, "success:flaky": 2, "finish:flaky": 2}, counts)
}

type orderObserver struct {
	asyncstep.BaseObserver
	finishAfterFailure atomic.Bool
	failed             atomic.Bool
}

func (o *orderObserver) OnFailure(asyncstep.StepEvent, error) error {
	o.failed.Store(true)
	return nil
}

func (o *orderObserver) OnFinish(asyncstep.StepEvent) error {
	o.finishAfterFailure.Store(o.failed.Load())
	return nil
}

func TestFinishFiresAfterFailure(t *testing.T) {
	t.Parallel()

	observer := &orderObserver{}
	ex := newTestExecutor(t, observer)
	err := ex.Perform(context.Background(), "fail", func(ctx context.Context) error { return errors.New("nope") })

	require.Error(t, err)
	assert.True(t, observer.finishAfterFailure.Load())
}

func TestThenChainsDescriptionsAndNests(t *testing.T) {
	t.Parallel()

	recorder := &eventRecorder{}
	ex := newTestExecutor(t, recorder)
	open, err := asyncstep.NewStep("open page", func(ctx context.Context) (string, error) { return "<title>Home</title>", nil })
	require.NoError(t, err)

	title, err := asyncstep.Then("title", open, func(ctx context.Context, page string) (int, error) {
		return len(page), nil
	}, asyncstep.Matching(positive))
	require.NoError(t, err)
	assert.Equal(t, "title from (open page)", title.Description())
	assert.True(t, title.Composite())
	assert.False(t, open.Composite())

	value, err := asyncstep.Get(context.Background(), ex, title)
	require.NoError(t, err)
	assert.Equal(t, 19, value)

	assert.Equal(t, []string{
		"start:title from (open page)",
		"start:open page",
		"success:open page",
		"finish:open page",
		"success:title from (open page)",
		"finish:title from (open page)",
	}, recorder.Events())

	_, err = asyncstep.Then[string, int]("", open, func(ctx context.Context, page string) (int, error) { return 0, nil })
	assert.EqualError(t, err, "ConfigurationError: description should not be empty")
}

func TestNestedFailureRootCause(t *testing.T) {
	t.Parallel()

	ex := newTestExecutor(t)
	find, err := asyncstep.NewStep("find button", func(ctx context.Context) (string, error) { return "", nil },
		asyncstep.WithEmptyIsMismatch(), asyncstep.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	click, err := asyncstep.Then("click", find, func(ctx context.Context, button string) (bool, error) { return true, nil })
	require.NoError(t, err)

	result := asyncstep.Run(context.Background(), ex, click)
	require.Error(t, result.Err)
	assert.Equal(t, asyncstep.StepStateFailed, result.State)

	var stepErr *asyncstep.StepError
	require.True(t, errors.As(result.Err, &stepErr))
	assert.Equal(t, asyncstep.ErrProducerFailure, stepErr.Code)

	root := stepErr.RootCause()
	assert.True(t, errors.Is(root, asyncstep.ErrTimeoutExceeded))
	assert.Contains(t, root.Error(), "find button")
}

func TestStartRunsAsynchronously(t *testing.T) {
	t.Parallel()

	ex := newTestExecutor(t)
	step, err := asyncstep.NewStep("slow read", func(ctx context.Context) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	})
	require.NoError(t, err)

	task := asyncstep.Start(context.Background(), ex, step)
	value, err := task.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "value", *value)

	failing, err := asyncstep.NewStep("failing read", func(ctx context.Context) (string, error) { return "", errors.New("io") })
	require.NoError(t, err)
	err = asyncstep.Start(context.Background(), ex, failing).Wait(context.Background())
	assert.True(t, errors.Is(err, asyncstep.ErrProducerFailure))
}

func TestPerform(t *testing.T) {
	t.Parallel()

	ex := newTestExecutor(t)
	attempts := 0
	err := ex.Perform(context.Background(), "click", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	}, asyncstep.WithTimeout(time.Second), asyncstep.RetryOnErrors(errTransient))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	err = ex.Perform(context.Background(), "nothing", nil)
	assert.True(t, errors.Is(err, asyncstep.ErrConfiguration))
}

func TestCapturePolicy(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var captured []any
	bus := asyncstep.NewBus(logr.Discard())
	require.NoError(t, asyncstep.RegisterCaptor(bus, "all", func(ctx context.Context, artifact any) error {
		mu.Lock()
		defer mu.Unlock()
		captured = append(captured, artifact)
		return nil
	}))
	ex, err := asyncstep.NewExecutor(bus, logr.Discard(), asyncstep.WithCapture(true, true))
	require.NoError(t, err)
	ctx := context.Background()

	open, err := asyncstep.NewStep("open page", func(ctx context.Context) (string, error) { return "page", nil })
	require.NoError(t, err)
	length, err := asyncstep.Then("length", open, func(ctx context.Context, page string) (int, error) { return len(page), nil })
	require.NoError(t, err)

	_, err = asyncstep.Get(ctx, ex, length)
	require.NoError(t, err)

	failing, err := asyncstep.NewStep("read", func(ctx context.Context) (string, error) { return "", errors.New("closed") },
		asyncstep.WithSubject("browser"))
	require.NoError(t, err)
	_, err = asyncstep.Get(ctx, ex, failing)
	require.Error(t, err)

	silent, err := asyncstep.NewStep("silent", func(ctx context.Context) (string, error) { return "secret", nil },
		asyncstep.CaptureOnSuccess(false))
	require.NoError(t, err)
	_, err = asyncstep.Get(ctx, ex, silent)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{4, "browser"}, captured, "intermediate results of composite steps are not captured")
}

func TestNewExecutorFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Step.Timeout = 100 * time.Millisecond
	cfg.Step.PollInterval = 10 * time.Millisecond
	ex, err := asyncstep.NewExecutorFromConfig(nil, logr.Discard(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, ex.Options().Timeout)
	assert.True(t, ex.Options().CaptureOnFailure)

	producer := &countingProducer{}
	step, err := asyncstep.NewStep("eventually", producer.valueAfter(2, "ready"), asyncstep.WithEmptyIsMismatch())
	require.NoError(t, err)
	value, err := asyncstep.Get(context.Background(), ex, step)
	require.NoError(t, err)
	assert.Equal(t, "ready", value)

	// step options win over executor defaults
	once, err := asyncstep.NewStep("once", (&countingProducer{}).valueAfter(2, "ready"), asyncstep.WithEmptyIsMismatch(), asyncstep.WithTimeout(0))
	require.NoError(t, err)
	_, err = asyncstep.Get(context.Background(), ex, once)
	assert.True(t, errors.Is(err, asyncstep.ErrTimeoutExceeded))

	cfg.Step.PollInterval = -time.Second
	_, err = asyncstep.NewExecutorFromConfig(nil, logr.Discard(), cfg)
	assert.True(t, errors.Is(err, asyncstep.ErrConfiguration))
}

func TestCaptureArtifact(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var captured []string
	bus := asyncstep.NewBus(logr.Discard())
	require.NoError(t, asyncstep.RegisterCaptor(bus, "text", func(ctx context.Context, artifact string) error {
		mu.Lock()
		defer mu.Unlock()
		captured = append(captured, artifact)
		return nil
	}))
	ex, err := asyncstep.NewExecutor(bus, logr.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, ex.CaptureArtifact(ctx, "read", true, "success by default"))
	assert.True(t, ex.CaptureArtifact(ctx, "read", false, "failure by default"))
	assert.True(t, ex.CaptureArtifact(ctx, "read", true, "success on demand", asyncstep.CaptureOnSuccess(true)))
	assert.False(t, ex.CaptureArtifact(ctx, "read", false, "failure turned off", asyncstep.CaptureOnFailure(false)))

	err = ex.Perform(ctx, "outer", func(ctx context.Context) error {
		assert.False(t, ex.CaptureArtifact(ctx, "inner", false, "nested"))
		return nil
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"failure by default", "success on demand"}, captured)
}
