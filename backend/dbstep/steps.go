// Package dbstep polls SQL databases through steps, the connection pool is closed once idle.
package dbstep

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/haitch/go-asyncstep"
)

// Context runs steps against a lazily opened *sql.DB.
type Context = asyncstep.StepContext[*sql.DB]

// Open returns a factory that opens and pings a database.
func Open(driver, dsn string) asyncstep.Factory[*sql.DB] {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("opening %s database: %w", driver, err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
		}
		return db, nil
	}
}

func NewContext(ex *asyncstep.Executor, driver, dsn string, containerOptions ...asyncstep.ContainerOptionPreparer) (*Context, error) {
	container, err := asyncstep.NewContainer(driver+" database", Open(driver, dsn), containerOptions...)
	if err != nil {
		return nil, err
	}
	return asyncstep.NewStepContext(ex, container), nil
}

// Query runs query until the rows read by scan match the step criteria. scan reads the current row.
// An empty result set is an empty value, see the empty result policies.
func Query[T any](ctx context.Context, sc *Context, description, query string, scan func(rows *sql.Rows) (T, error), args []any, optionDecorators ...asyncstep.ExecutionOptionPreparer) ([]T, error) {
	if scan == nil {
		return nil, asyncstep.ErrConfiguration.WithMessage(fmt.Sprintf("row scanner of step %q should be defined", description))
	}

	return asyncstep.GetFrom(ctx, sc, description, func(ctx context.Context, db *sql.DB) ([]T, error) {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var result []T
		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return nil, err
			}
			result = append(result, item)
		}
		return result, rows.Err()
	}, optionDecorators...)
}

// Value runs a single column, single row query. No row yields the zero value of T.
func Value[T any](ctx context.Context, sc *Context, description, query string, args []any, optionDecorators ...asyncstep.ExecutionOptionPreparer) (T, error) {
	return asyncstep.GetFrom(ctx, sc, description, func(ctx context.Context, db *sql.DB) (T, error) {
		var value T
		err := db.QueryRowContext(ctx, query, args...).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return value, nil
		}
		return value, err
	}, optionDecorators...)
}

// Exec runs a statement and returns the number of affected rows.
func Exec(ctx context.Context, sc *Context, description, statement string, args []any, optionDecorators ...asyncstep.ExecutionOptionPreparer) (int64, error) {
	return asyncstep.GetFrom(ctx, sc, description, func(ctx context.Context, db *sql.DB) (int64, error) {
		res, err := db.ExecContext(ctx, statement, args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}, optionDecorators...)
}
