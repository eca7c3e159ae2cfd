package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kraabmod/profiles-service/internal/logging"
	"github.com/kraabmod/profiles-service/internal/metrics"
)

// Executor is the statement surface handed to request-handling code.
// *Manager runs each statement on its own pooled connection; *Tx runs them
// inside one transaction.
type Executor interface {
	Select(ctx context.Context, query string, args ...any) ([]Row, error)
	SelectOne(ctx context.Context, query string, args ...any) (Row, error)
	Insert(ctx context.Context, query string, args ...any) ([]Row, error)
	Update(ctx context.Context, query string, args ...any) (bool, error)
	Delete(ctx context.Context, query string, args ...any) (bool, error)
}

// Transactor runs fn inside a single transaction, committing once.
type Transactor interface {
	WithTx(ctx context.Context, fn func(Executor) error) error
}

const (
	opSelect    = "select"
	opSelectOne = "select_one"
	opInsert    = "insert"
	opUpdate    = "update"
	opDelete    = "delete"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// runner executes statements on a queryer and reports failures to onError.
type runner struct {
	q       queryer
	onError func(error)
}

func (r runner) fail(ctx context.Context, op string, err error) error {
	metrics.DBQueryErrors.WithLabelValues(op).Inc()
	logging.Ctx(ctx).Error().Err(err).Str("operation", op).Msg("Error during database operation")
	if r.onError != nil {
		r.onError(err)
	}
	return &ExecError{Op: op, Err: err}
}

func (r runner) query(ctx context.Context, op, query string, args []any) ([]Row, error) {
	start := time.Now()
	defer func() { metrics.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}
	return result, nil
}

func (r runner) exec(ctx context.Context, op, query string, args []any) (bool, error) {
	start := time.Now()
	defer func() { metrics.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, r.fail(ctx, op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, r.fail(ctx, op, err)
	}
	return affected > 0, nil
}

func (r runner) Select(ctx context.Context, query string, args ...any) ([]Row, error) {
	return r.query(ctx, opSelect, query, args)
}

func (r runner) SelectOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := r.query(ctx, opSelectOne, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

func (r runner) Insert(ctx context.Context, query string, args ...any) ([]Row, error) {
	return r.query(ctx, opInsert, query, args)
}

func (r runner) Update(ctx context.Context, query string, args ...any) (bool, error) {
	return r.exec(ctx, opUpdate, query, args)
}

func (r runner) Delete(ctx context.Context, query string, args ...any) (bool, error) {
	return r.exec(ctx, opDelete, query, args)
}

// Tx is an Executor bound to an open transaction.
type Tx struct {
	runner
}

var errNilTxFunc = errors.New("database: nil transaction function")
