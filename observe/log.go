package observe

import (
	"github.com/go-logr/logr"

	"github.com/haitch/go-asyncstep"
)

// LogObserver writes a structured log line per finished step, failures as errors.
type LogObserver struct {
	asyncstep.BaseObserver
	logger logr.Logger
}

func NewLogObserver(logger logr.Logger) *LogObserver {
	return &LogObserver{logger: logger.WithName("steps")}
}

func (lo *LogObserver) OnStart(event asyncstep.StepEvent) error {
	lo.logger.V(1).Info("step started", lo.keysAndValues(event)...)
	return nil
}

func (lo *LogObserver) OnSuccess(event asyncstep.StepEvent, value any) error {
	kv := append(lo.keysAndValues(event), "elapsed", event.Elapsed.String(), "attempts", event.Attempts, "value", asyncstep.DescribeValue(value))
	lo.logger.Info("step succeeded", kv...)
	return nil
}

func (lo *LogObserver) OnFailure(event asyncstep.StepEvent, err error) error {
	kv := append(lo.keysAndValues(event), "elapsed", event.Elapsed.String(), "attempts", event.Attempts, "state", string(asyncstep.StateOf(err)))
	lo.logger.Error(err, "step failed", kv...)
	return nil
}

func (lo *LogObserver) keysAndValues(event asyncstep.StepEvent) []any {
	kv := []any{"step", event.Description, "id", event.ID.String(), "depth", event.Depth}
	if event.IsNested() {
		kv = append(kv, "parent", event.ParentID.String())
	}
	return kv
}
