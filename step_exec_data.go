package asyncstep

import (
	"time"
)

// StepExecutionData would measure the step execution time and poll report.
type StepExecutionData struct {
	StartTime time.Time
	Duration  time.Duration
	Polled    *PollReport
}

// PollReport records how many times the producer was invoked, and how many of those failed transiently.
type PollReport struct {
	Attempts        uint
	TransientErrors uint
}
