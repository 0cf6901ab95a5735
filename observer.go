package asyncstep

import (
	"time"

	"github.com/google/uuid"
)

// StepEvent is handed to observers on every lifecycle transition of a step invocation.
type StepEvent struct {
	ID          uuid.UUID
	ParentID    uuid.UUID
	Description string
	Subject     any
	Depth       int
	Composite   bool

	// Started is the time the invocation started, Time the time of this event.
	Started  time.Time
	Time     time.Time
	Elapsed  time.Duration
	Attempts uint
}

// IsNested reports whether the step runs inside the producer of another step.
func (e StepEvent) IsNested() bool {
	return e.ParentID != uuid.Nil
}

// Observer is notified of step lifecycle events. For each invocation OnStart and OnFinish
// fire exactly once, and at most one of OnSuccess / OnFailure fires in between.
type Observer interface {
	OnStart(event StepEvent) error
	OnSuccess(event StepEvent, value any) error
	OnFailure(event StepEvent, err error) error
	OnFinish(event StepEvent) error
}

// BaseObserver can be embedded to implement only the callbacks of interest.
type BaseObserver struct{}

var _ Observer = BaseObserver{}

func (BaseObserver) OnStart(StepEvent) error          { return nil }
func (BaseObserver) OnSuccess(StepEvent, any) error   { return nil }
func (BaseObserver) OnFailure(StepEvent, error) error { return nil }
func (BaseObserver) OnFinish(StepEvent) error         { return nil }
