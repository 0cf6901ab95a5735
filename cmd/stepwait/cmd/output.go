package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/haitch/go-asyncstep"
)

type stepRow struct {
	Step     string        `json:"step"`
	Depth    int           `json:"depth"`
	State    string        `json:"state"`
	Attempts uint          `json:"attempts"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

func stepRows(steps []asyncstep.StepRecord) []stepRow {
	rows := make([]stepRow, 0, len(steps))
	for _, step := range steps {
		row := stepRow{
			Step:     step.Description,
			Depth:    step.Depth,
			State:    string(step.State),
			Duration: step.ExecutionData.Duration,
		}
		if step.ExecutionData.Polled != nil {
			row.Attempts = step.ExecutionData.Polled.Attempts
		}
		if step.Err != nil {
			row.Error = step.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

func renderSteps(w io.Writer, recorder *asyncstep.TraceRecorder, format string) error {
	switch format {
	case "dot":
		dot, err := recorder.Visualize()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, dot)
		return err
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stepRows(recorder.Steps()))
	case "table", "":
		table := tablewriter.NewWriter(w)
		table.Header("Step", "State", "Attempts", "Duration", "Error")
		for _, row := range stepRows(recorder.Steps()) {
			table.Append(
				strings.Repeat("  ", row.Depth)+row.Step,
				row.State,
				fmt.Sprintf("%d", row.Attempts),
				row.Duration.Truncate(time.Millisecond).String(),
				truncate(row.Error, 80),
			)
		}
		return table.Render()
	}
	return fmt.Errorf("unknown output format %q", format)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
