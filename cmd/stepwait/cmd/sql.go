package cmd

import (
	"github.com/spf13/cobra"
)

var sqlCheck SQLCheck

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Poll a SQL database until a query returns enough rows",
	Example: `  stepwait sql "SELECT 1" --driver postgres --dsn "postgres://app@localhost/app?sslmode=disable" --timeout 1m
  stepwait sql "SELECT id FROM jobs WHERE state = 'done'" --driver sqlite3 --dsn jobs.db --min-rows 1`,
	Args: cobra.ExactArgs(1),
	RunE: runSQL,
}

func init() {
	rootCmd.AddCommand(sqlCmd)

	sqlCmd.Flags().StringVar(&sqlCheck.Driver, "driver", "postgres", "database driver: postgres or sqlite3")
	sqlCmd.Flags().StringVar(&sqlCheck.DSN, "dsn", "", "data source name")
	sqlCmd.Flags().IntVar(&sqlCheck.MinRows, "min-rows", 0, "minimum number of rows the query should return")
	_ = sqlCmd.MarkFlagRequired("dsn")
}

func runSQL(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	sqlCheck.Query = args[0]
	check := &Check{Name: args[0], SQL: &sqlCheck}
	return rt.finish(cmd, check.run(cmd.Context(), rt))
}
