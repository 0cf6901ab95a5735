package asyncstep

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haitch/go-asyncstep/graph"
)

// StepRecord is what a TraceRecorder knows about one step invocation.
type StepRecord struct {
	ID            uuid.UUID
	ParentID      uuid.UUID
	Description   string
	Depth         int
	Composite     bool
	State         StepState
	ExecutionData StepExecutionData
	Err           error
}

// TraceRecorder is an observer keeping every step it saw, nested steps linked to their parent.
type TraceRecorder struct {
	BaseObserver

	mu      sync.Mutex
	records []*StepRecord
	byID    map[uuid.UUID]*StepRecord
}

func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{byID: make(map[uuid.UUID]*StepRecord)}
}

func (tr *TraceRecorder) OnStart(event StepEvent) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	record := &StepRecord{
		ID:          event.ID,
		ParentID:    event.ParentID,
		Description: event.Description,
		Depth:       event.Depth,
		Composite:   event.Composite,
		State:       StepStateEvaluating,
		ExecutionData: StepExecutionData{
			StartTime: event.Started,
			Polled:    &PollReport{},
		},
	}
	tr.records = append(tr.records, record)
	tr.byID[event.ID] = record
	return nil
}

func (tr *TraceRecorder) OnSuccess(event StepEvent, _ any) error {
	return tr.complete(event, StepStateSucceeded, nil)
}

func (tr *TraceRecorder) OnFailure(event StepEvent, err error) error {
	return tr.complete(event, StateOf(err), err)
}

func (tr *TraceRecorder) complete(event StepEvent, state StepState, err error) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	record, ok := tr.byID[event.ID]
	if !ok {
		return fmt.Errorf("step %q (%s) completed without being started", event.Description, event.ID)
	}
	record.State = state
	record.Err = err
	record.ExecutionData.Duration = event.Elapsed
	record.ExecutionData.Polled.Attempts = event.Attempts
	return nil
}

// Steps returns a copy of the records, in start order. The copies share nothing with the recorder.
func (tr *TraceRecorder) Steps() []StepRecord {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	steps := make([]StepRecord, 0, len(tr.records))
	for _, record := range tr.records {
		step := *record
		if record.ExecutionData.Polled != nil {
			polled := *record.ExecutionData.Polled
			step.ExecutionData.Polled = &polled
		}
		steps = append(steps, step)
	}
	return steps
}

func (tr *TraceRecorder) Reset() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.records = nil
	tr.byID = make(map[uuid.UUID]*StepRecord)
}

// Visualize renders the recorded steps in DOT, each nested step connected from its parent.
func (tr *TraceRecorder) Visualize() (string, error) {
	steps := tr.Steps()

	g := graph.NewGraph[*stepNode](stepConn)
	for i := range steps {
		if err := g.AddNode(&stepNode{StepRecord: &steps[i]}); err != nil {
			return "", err
		}
	}
	for _, step := range steps {
		if step.ParentID == uuid.Nil {
			continue
		}
		if err := g.Connect(nodeID(step.ParentID), nodeID(step.ID)); err != nil {
			return "", err
		}
	}

	return g.ToDotGraph()
}

type stepNode struct {
	*StepRecord
}

func nodeID(id uuid.UUID) string {
	return fmt.Sprintf("step_%s", id)
}

func (sn *stepNode) DotSpec() *graph.DotNodeSpec {
	return &graph.DotNodeSpec{
		ID:        nodeID(sn.ID),
		Name:      sn.Description,
		Shape:     sn.getShape(),
		Style:     "filled",
		FillColor: sn.getFillColor(),
		Tooltip:   sn.getTooltip(),
	}
}

func (sn *stepNode) getShape() string {
	switch {
	case sn.Composite:
		return "hexagon"
	case sn.Depth == 0:
		return "box"
	default:
		return "ellipse"
	}
}

func (sn *stepNode) getFillColor() string {
	switch sn.State {
	case StepStatePending:
		return "gray"
	case StepStateEvaluating:
		return "yellow"
	case StepStateSucceeded:
		return "green"
	case StepStateTimedOut:
		return "orange"
	case StepStateFailed:
		return "red"
	default:
		return "white"
	}
}

func (sn *stepNode) getTooltip() string {
	if sn.State == StepStatePending {
		return fmt.Sprintf("Step: %s", sn.Description)
	}

	return fmt.Sprintf("Step: %s\\nState: %s\\nStartAt: %s\\nDuration: %s\\nAttempts: %d", sn.Description, sn.State, sn.ExecutionData.StartTime.Format(time.RFC3339Nano), sn.ExecutionData.Duration, sn.ExecutionData.Polled.Attempts)
}

func stepConn(snFrom, snTo *stepNode) *graph.DotEdgeSpec {
	edgeSpec := &graph.DotEdgeSpec{
		FromNodeID: snFrom.DotSpec().ID,
		ToNodeID:   snTo.DotSpec().ID,
		Color:      "black",
		Style:      "bold",
		Tooltip:    fmt.Sprintf("Time: %s", snTo.ExecutionData.StartTime.Format(time.RFC3339Nano)),
	}

	switch snTo.State {
	case StepStateSucceeded:
		edgeSpec.Color = "green"
	case StepStateFailed, StepStateTimedOut:
		edgeSpec.Color = "red"
	}

	return edgeSpec
}
