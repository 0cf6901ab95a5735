package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Plan is a YAML list of checks run in order.
type Plan struct {
	Name   string  `yaml:"name"`
	Checks []Check `yaml:"checks"`
}

func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading plan: %w", err)
	}

	plan := &Plan{}
	if err := yaml.Unmarshal(data, plan); err != nil {
		return nil, fmt.Errorf("error parsing plan: %w", err)
	}
	if len(plan.Checks) == 0 {
		return nil, fmt.Errorf("plan %s has no checks", path)
	}
	for i := range plan.Checks {
		if err := plan.Checks[i].validate(); err != nil {
			return nil, err
		}
	}
	if plan.Name == "" {
		plan.Name = path
	}
	return plan, nil
}

var continueOnFailure bool

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Run every check of a plan",
	Long: `Run every check of a YAML plan, in order. The plan runs as one step, each check as a
nested step of it.

  name: deploy
  checks:
    - name: api healthy
      timeout: 1m
      interval: 2s
      http:
        url: http://localhost:8080/healthz
    - name: migrations applied
      sql:
        driver: postgres
        dsn: postgres://app@localhost/app?sslmode=disable
        query: SELECT version FROM schema_migrations WHERE version = '42'
        min_rows: 1`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&continueOnFailure, "continue", false, "run the remaining checks after a failure")
}

func runPlan(cmd *cobra.Command, args []string) error {
	plan, err := LoadPlan(args[0])
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	err = rt.executor.Perform(cmd.Context(), plan.Name, func(ctx context.Context) error {
		var failed []string
		for i := range plan.Checks {
			check := &plan.Checks[i]
			if err := check.run(ctx, rt); err != nil {
				if !continueOnFailure {
					return err
				}
				failed = append(failed, check.Name)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d check(s) failed: %v", len(failed), failed)
		}
		return nil
	})
	return rt.finish(cmd, err)
}
