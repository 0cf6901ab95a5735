package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/time/rate"

	"github.com/haitch/go-asyncstep"
	"github.com/haitch/go-asyncstep/backend/dbstep"
	"github.com/haitch/go-asyncstep/backend/httpstep"
)

// HTTPCheck waits for an endpoint to answer with the expected status, and optionally a body fragment.
type HTTPCheck struct {
	URL               string            `yaml:"url"`
	Method            string            `yaml:"method"`
	Headers           map[string]string `yaml:"headers"`
	Body              string            `yaml:"body"`
	Status            int               `yaml:"status"`
	Contains          string            `yaml:"contains"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
}

// SQLCheck waits for a query to return at least MinRows rows.
type SQLCheck struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Query   string `yaml:"query"`
	MinRows int    `yaml:"min_rows"`
}

// Check is one entry of a plan, exactly one of HTTP and SQL is set.
type Check struct {
	Name     string        `yaml:"name"`
	Timeout  time.Duration `yaml:"timeout"`
	Interval time.Duration `yaml:"interval"`
	HTTP     *HTTPCheck    `yaml:"http"`
	SQL      *SQLCheck     `yaml:"sql"`
}

func (c *Check) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("check name should not be empty")
	}
	if (c.HTTP == nil) == (c.SQL == nil) {
		return fmt.Errorf("check %q should define exactly one of http and sql", c.Name)
	}
	if c.HTTP != nil && c.HTTP.URL == "" {
		return fmt.Errorf("check %q: http.url should not be empty", c.Name)
	}
	if c.SQL != nil && (c.SQL.Driver == "" || c.SQL.Query == "") {
		return fmt.Errorf("check %q: sql.driver and sql.query should not be empty", c.Name)
	}
	return nil
}

// executionOptions leaves unset durations to the executor defaults.
func (c *Check) executionOptions() []asyncstep.ExecutionOptionPreparer {
	var options []asyncstep.ExecutionOptionPreparer
	if c.Timeout > 0 {
		options = append(options, asyncstep.WithTimeout(c.Timeout))
	}
	if c.Interval > 0 {
		options = append(options, asyncstep.PollingEvery(c.Interval))
	}
	return options
}

func (c *Check) run(ctx context.Context, rt *runtime) error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.HTTP != nil {
		return c.HTTP.run(ctx, rt, c.Name, c.executionOptions())
	}
	return c.SQL.run(ctx, rt, c.Name, c.executionOptions())
}

func (hc *HTTPCheck) run(ctx context.Context, rt *runtime, name string, options []asyncstep.ExecutionOptionPreparer) error {
	var clientOptions []httpstep.ClientOptionPreparer
	if hc.RequestsPerSecond > 0 {
		clientOptions = append(clientOptions, httpstep.WithRequestRate(rate.Limit(hc.RequestsPerSecond), 1))
	}

	sc, err := httpstep.NewContext(rt.executor, clientOptions, rt.containerOptions()...)
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Stop(); err != nil {
			rt.logger.Error(err, "stopping http client", "check", name)
		}
	}()

	method := hc.Method
	if method == "" {
		method = http.MethodGet
	}
	header := http.Header{}
	for key, value := range hc.Headers {
		header.Set(key, value)
	}

	status := hc.Status
	if status == 0 {
		status = http.StatusOK
	}
	criteria := []asyncstep.Criterion[*httpstep.Response]{httpstep.StatusIs(status)}
	if hc.Contains != "" {
		criteria = append(criteria, httpstep.BodyContains(hc.Contains))
	}

	_, err = httpstep.ResponseOf(ctx, sc, name, httpstep.NewRequest(method, hc.URL, hc.Body, header),
		append(options, asyncstep.Matching(criteria...), asyncstep.RetryOnError(isDialError))...)
	return err
}

// isDialError keeps polling endpoints and databases that are not listening yet.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func (qc *SQLCheck) run(ctx context.Context, rt *runtime, name string, options []asyncstep.ExecutionOptionPreparer) error {
	sc, err := dbstep.NewContext(rt.executor, qc.Driver, qc.DSN, rt.containerOptions()...)
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Stop(); err != nil {
			rt.logger.Error(err, "closing database", "check", name)
		}
	}()

	if qc.MinRows > 0 {
		options = append(options,
			asyncstep.WithEmptyIsMismatch(),
			asyncstep.Matching(asyncstep.Condition(fmt.Sprintf("has at least %d row(s)", qc.MinRows), func(rows [][]string) bool {
				return len(rows) >= qc.MinRows
			})))
	}

	options = append(options, asyncstep.RetryOnError(isDialError))
	_, err = dbstep.Query(ctx, sc, name, qc.Query, scanStrings, nil, options...)
	return err
}

// scanStrings reads every column of the current row as text, NULL as an empty string.
func scanStrings(rows *sql.Rows) ([]string, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	row := make([]string, len(columns))
	for i, v := range values {
		row[i] = v.String
	}
	return row, nil
}
