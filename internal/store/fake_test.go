package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/stock-prices/internal/model"
)

var errTxAborted = errors.New("current transaction is aborted, commands ignored until end of transaction block")

type storedRow struct {
	row       model.PriceRow
	updatedAt int // logical clock, stands in for NOW()
}

// fakeDB is an in-memory table keyed by (symbol, ts) that mimics Postgres
// transaction rules closely enough to exercise the sink: an error aborts the
// transaction it happened in, and committing an aborted transaction rolls back.
type fakeDB struct {
	mu        sync.Mutex
	rows      map[string]storedRow
	clock     int
	failKeys  map[string]bool
	beginErr  error
	commitErr error
	begins    int
	execs     int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		rows:     make(map[string]storedRow),
		failKeys: make(map[string]bool),
	}
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.begins++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	return &fakeTx{db: db, pending: make(map[string]storedRow)}, nil
}

func (db *fakeDB) get(key string) (storedRow, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.rows[key]
	return r, ok
}

func (db *fakeDB) count() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.rows)
}

// fakeTx implements the parts of pgx.Tx the sink uses. A non-nil parent
// makes it a savepoint.
type fakeTx struct {
	pgx.Tx

	db      *fakeDB
	parent  *fakeTx
	pending map[string]storedRow
	aborted bool
	closed  bool
}

func (tx *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	if tx.closed {
		return nil, pgx.ErrTxClosed
	}
	if tx.aborted {
		return nil, errTxAborted
	}
	return &fakeTx{db: tx.db, parent: tx, pending: make(map[string]storedRow)}, nil
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx.closed {
		return pgconn.CommandTag{}, pgx.ErrTxClosed
	}
	if tx.aborted {
		return pgconn.CommandTag{}, errTxAborted
	}
	if err := ctx.Err(); err != nil {
		tx.aborted = true
		return pgconn.CommandTag{}, err
	}

	row := model.PriceRow{
		Symbol: args[0].(string),
		Date:   args[1].(time.Time),
		Open:   args[2].(float64),
		High:   args[3].(float64),
		Low:    args[4].(float64),
		Close:  args[5].(float64),
		Volume: args[6].(int64),
	}

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	tx.db.execs++
	if tx.db.failKeys[row.Key()] {
		tx.aborted = true
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "22003", Message: "value out of range"}
	}

	tx.db.clock++
	tx.pending[row.Key()] = storedRow{row: row, updatedAt: tx.db.clock}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return &fakeBatchResults{ctx: ctx, tx: tx, queued: b.QueuedQueries}
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	if tx.aborted {
		return pgx.ErrTxCommitRollback
	}

	if tx.parent != nil {
		for k, v := range tx.pending {
			tx.parent.pending[k] = v
		}
		return nil
	}

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	if tx.db.commitErr != nil {
		return tx.db.commitErr
	}
	for k, v := range tx.pending {
		tx.db.rows[k] = v
	}
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	tx.pending = nil
	return nil
}

type fakeBatchResults struct {
	pgx.BatchResults

	ctx    context.Context
	tx     *fakeTx
	queued []*pgx.QueuedQuery
	next   int
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	if r.next >= len(r.queued) {
		return pgconn.CommandTag{}, errors.New("no more results in batch")
	}
	q := r.queued[r.next]
	r.next++
	return r.tx.Exec(r.ctx, q.SQL, q.Arguments...)
}

func (r *fakeBatchResults) Close() error {
	return nil
}
