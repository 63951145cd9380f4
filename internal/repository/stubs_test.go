package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// stubQuerier returns canned results without a database
type stubQuerier struct {
	execTag  pgconn.CommandTag
	execErr  error
	execArgs []any
	execs    int

	row    []any
	rowErr error

	rows     [][]any
	rowsErr  error
	scanErr  error
	queryErr error
	opened   []*stubRows
}

func (q *stubQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs++
	q.execArgs = args
	return q.execTag, q.execErr
}

func (q *stubQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	rows := &stubRows{rows: q.rows, err: q.rowsErr, scanErr: q.scanErr}
	q.opened = append(q.opened, rows)
	return rows, nil
}

func (q *stubQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return stubRow{values: q.row, err: q.rowErr}
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

// stubRows iterates canned rows
type stubRows struct {
	rows    [][]any
	pos     int
	err     error
	scanErr error
	closed  bool
}

func (r *stubRows) Close()                                       { r.closed = true }
func (r *stubRows) Err() error                                   { return r.err }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.closed || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return assign(r.rows[r.pos-1], dest)
}

func (r *stubRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

// assign copies canned values into scan destinations of the same type
func assign(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan: column %d is %s, destination is %s", i, val.Type(), target.Type())
		}
		target.Set(val)
	}
	return nil
}

// stubTx is a transaction over a stubQuerier. Methods the store never
// calls are left to the embedded nil pgx.Tx.
type stubTx struct {
	pgx.Tx
	q          *stubQuerier
	commitErr  error
	committed  bool
	rolledBack bool
}

func (tx *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return tx.q.Exec(ctx, sql, args...)
}

func (tx *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return tx.q.Query(ctx, sql, args...)
}

func (tx *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return tx.q.QueryRow(ctx, sql, args...)
}

func (tx *stubTx) Commit(ctx context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *stubTx) Rollback(ctx context.Context) error {
	if tx.committed || tx.rolledBack {
		return pgx.ErrTxClosed
	}
	tx.rolledBack = true
	return nil
}

// stubPool hands out a single stubTx
type stubPool struct {
	stubQuerier
	tx       *stubTx
	beginErr error
	begun    int
}

func (p *stubPool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	if p.tx == nil {
		return nil, errors.New("no transaction configured")
	}
	p.begun++
	return p.tx, nil
}

func (p *stubPool) Ping(ctx context.Context) error { return nil }

func (p *stubPool) Close() {}
