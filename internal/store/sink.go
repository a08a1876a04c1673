package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/stock-prices/internal/database"
	"github.com/rickgao/stock-prices/internal/model"
)

// WriteMode selects how row failures inside a batch are handled.
type WriteMode string

const (
	BestEffort WriteMode = "best_effort"
	Atomic     WriteMode = "atomic"
)

// Beginner starts a transaction. Satisfied by *pgxpool.Pool and *pgx.Conn.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config contains configuration for the sink.
type Config struct {
	// Table is the target table name.
	Table string

	// Mode is the failure policy for a batch.
	Mode WriteMode
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table: "stock_prices",
		Mode:  BestEffort,
	}
}

// Metrics tracks sink activity since start.
type Metrics struct {
	Calls   int64 `json:"calls"`   // Upsert calls with at least one row
	Written int64 `json:"written"` // Rows committed
	Failed  int64 `json:"failed"`  // Rows rejected or rolled back
	Errors  int64 `json:"errors"`  // Calls that returned an error
}

// Sink upserts PriceRows into Postgres.
type Sink struct {
	cfg       Config
	db        Beginner
	logger    *slog.Logger
	upsertSQL string

	mu      sync.Mutex
	metrics Metrics
}

// NewSink creates a new Sink.
func NewSink(cfg Config, db Beginner, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Table == "" {
		cfg.Table = DefaultConfig().Table
	}
	if cfg.Mode == "" {
		cfg.Mode = BestEffort
	}
	return &Sink{
		cfg:       cfg,
		db:        db,
		logger:    logger,
		upsertSQL: UpsertSQL(cfg.Table),
	}
}

// UpsertSQL returns the single-row upsert statement for a table.
func UpsertSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (symbol, ts, open, high, low, close, volume, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (symbol, ts) DO UPDATE SET
			open       = EXCLUDED.open,
			high       = EXCLUDED.high,
			low        = EXCLUDED.low,
			close      = EXCLUDED.close,
			volume     = EXCLUDED.volume,
			updated_at = NOW()
	`, database.QuoteTable(table))
}

// Mode returns the configured write mode.
func (s *Sink) Mode() WriteMode {
	return s.cfg.Mode
}

// Stats returns current metrics.
func (s *Sink) Stats() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Upsert writes rows in one transaction. Attempted is always len(rows).
// An empty input returns a zero result without touching the database.
// When an error is returned nothing from this call was committed.
func (s *Sink) Upsert(ctx context.Context, rows []model.PriceRow) (model.UpsertResult, error) {
	if len(rows) == 0 {
		return model.UpsertResult{}, nil
	}

	start := time.Now()

	var (
		res model.UpsertResult
		err error
	)
	switch s.cfg.Mode {
	case Atomic:
		res, err = s.upsertAtomic(ctx, rows)
	default:
		res, err = s.upsertBestEffort(ctx, rows)
	}

	s.mu.Lock()
	s.metrics.Calls++
	s.metrics.Written += int64(res.Written)
	s.metrics.Failed += int64(res.Failed)
	if err != nil {
		s.metrics.Errors++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("upsert batch failed",
			"mode", s.cfg.Mode,
			"count", len(rows),
			"error", err,
		)
		return res, err
	}

	s.logger.Debug("upserted rows",
		"mode", s.cfg.Mode,
		"attempted", res.Attempted,
		"written", res.Written,
		"failed", res.Failed,
		"duration", time.Since(start),
	)

	return res, nil
}

// upsertBestEffort runs each row inside a savepoint so one bad row cannot
// poison the transaction for the rows after it.
func (s *Sink) upsertBestEffort(ctx context.Context, rows []model.PriceRow) (model.UpsertResult, error) {
	failed := model.UpsertResult{Attempted: len(rows), Failed: len(rows)}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return failed, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	res := model.UpsertResult{Attempted: len(rows)}
	for _, r := range rows {
		if err := s.upsertRow(ctx, tx, r); err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			s.logger.Error("upsert failed",
				"symbol", r.Symbol,
				"ts", r.Day(),
				"error", err,
			)
			res.Failed++
			continue
		}
		res.Written++
	}

	if err := tx.Commit(ctx); err != nil {
		return failed, fmt.Errorf("commit: %w", err)
	}

	return res, nil
}

func (s *Sink) upsertRow(ctx context.Context, tx pgx.Tx, r model.PriceRow) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	if _, err := sp.Exec(ctx, s.upsertSQL, rowArgs(r)...); err != nil {
		sp.Rollback(ctx)
		return err
	}

	return sp.Commit(ctx)
}

// upsertAtomic queues every row in one pgx.Batch; the first failure rolls back all of them.
func (s *Sink) upsertAtomic(ctx context.Context, rows []model.PriceRow) (model.UpsertResult, error) {
	failed := model.UpsertResult{Attempted: len(rows), Failed: len(rows)}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return failed, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(s.upsertSQL, rowArgs(r)...)
	}

	results := tx.SendBatch(ctx, batch)
	for _, r := range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return failed, fmt.Errorf("upsert %s: %w", r.Key(), err)
		}
	}
	if err := results.Close(); err != nil {
		return failed, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return failed, fmt.Errorf("commit: %w", err)
	}

	return model.UpsertResult{Attempted: len(rows), Written: len(rows)}, nil
}

func rowArgs(r model.PriceRow) []any {
	return []any{r.Symbol, r.Date, r.Open, r.High, r.Low, r.Close, r.Volume}
}
