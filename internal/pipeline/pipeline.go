package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/stock-prices/internal/alphavantage"
	"github.com/rickgao/stock-prices/internal/model"
	"github.com/rickgao/stock-prices/internal/normalize"
)

//go:generate mockgen -package=pipeline_test -destination=mock_pipeline_test.go -source=pipeline.go Fetcher,Normalizer,Sink

// ErrPanic marks a failure recovered from a panic.
var ErrPanic = errors.New("panic")

// Fetcher retrieves raw records for a symbol.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) ([]model.RawRecord, error)
}

// Normalizer converts raw records into price rows.
type Normalizer interface {
	Normalize(symbol string, records []model.RawRecord) normalize.Result
}

// Sink persists price rows.
type Sink interface {
	Upsert(ctx context.Context, rows []model.PriceRow) (model.UpsertResult, error)
}

// Config holds runner configuration.
type Config struct {
	Concurrency int // Symbols processed at once (default: 1)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 1,
	}
}

// Runner executes ingestion passes.
type Runner struct {
	cfg        Config
	fetcher    Fetcher
	normalizer Normalizer
	sink       Sink
	logger     *slog.Logger

	mu   sync.RWMutex
	last *Report
}

// New creates a new Runner.
func New(cfg Config, fetcher Fetcher, normalizer Normalizer, sink Sink, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: normalizer,
		sink:       sink,
		logger:     logger,
	}
}

// LastReport returns the report of the most recent completed run.
func (r *Runner) LastReport() (Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Report{}, false
	}
	return *r.last, true
}

// RunOnce processes every symbol once. Symbols are trimmed, upper-cased and
// de-duplicated first. Outcomes follow the order of the cleaned symbol list.
func (r *Runner) RunOnce(ctx context.Context, symbols []string) Report {
	symbols = model.NormalizeSymbols(symbols)

	report := Report{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
		Outcomes:  make([]Outcome, len(symbols)),
	}
	logger := r.logger.With("run_id", report.RunID.String())

	logger.Info("run started",
		"symbols", len(symbols),
		"concurrency", r.cfg.Concurrency,
	)

	if r.cfg.Concurrency == 1 {
		for i, symbol := range symbols {
			report.Outcomes[i] = r.runSymbol(ctx, logger, symbol)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.cfg.Concurrency)
		for i, symbol := range symbols {
			g.Go(func() error {
				report.Outcomes[i] = r.runSymbol(ctx, logger, symbol)
				return nil
			})
		}
		g.Wait()
	}

	report.FinishedAt = time.Now()

	logger.Info("run complete",
		"ok", report.Count(StatusOK),
		"no_data", report.Count(StatusNoData),
		"failed", report.Count(StatusFailed),
		"rows_written", report.RowsWritten(),
		"duration", report.Duration(),
	)

	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()

	return report
}

// runSymbol drives one symbol through the pipeline. It never panics.
func (r *Runner) runSymbol(ctx context.Context, logger *slog.Logger, symbol string) (out Outcome) {
	start := time.Now()
	out = Outcome{Symbol: symbol, State: StatePending}

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, p)
			out.fail(err, ClassifyError(out.State, err))
		}
		out.Duration = time.Since(start)
		logOutcome(logger, out)
	}()

	if err := ctx.Err(); err != nil {
		out.fail(err, ClassifyError(out.State, err))
		return out
	}

	out.State = StateFetching
	records, err := r.fetcher.Fetch(ctx, symbol)
	if err != nil {
		out.fail(err, ClassifyError(out.State, err))
		return out
	}
	out.State = StateFetched
	out.Fetched = len(records)

	if len(records) == 0 {
		out.State = StateDone
		out.Status = StatusNoData
		return out
	}

	out.State = StateNormalizing
	res := r.normalizer.Normalize(symbol, records)
	out.State = StateNormalized
	out.Normalized = len(res.Rows)
	out.Skipped = len(res.Skipped)

	if len(res.Rows) == 0 {
		out.State = StateDone
		out.Status = StatusNoData
		return out
	}

	out.State = StateUpserting
	result, err := r.sink.Upsert(ctx, res.Rows)
	out.Upsert = result
	if err != nil {
		out.fail(err, ClassifyError(out.State, err))
		return out
	}

	out.State = StateDone
	out.Status = StatusOK
	return out
}

// ClassifyError maps a failure in the given stage to an ErrorKind.
func ClassifyError(stage State, err error) ErrorKind {
	var (
		retryErr *alphavantage.RetryError
		softErr  *alphavantage.SoftError
	)

	switch {
	case errors.Is(err, ErrPanic):
		return KindInternal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case stage == StateUpserting:
		return KindPersistence
	case errors.As(err, &retryErr):
		return KindExhausted
	case errors.As(err, &softErr):
		return KindSoft
	case stage == StateFetching:
		return KindTransport
	default:
		return KindInternal
	}
}

func logOutcome(logger *slog.Logger, o Outcome) {
	if o.Status == StatusFailed {
		logger.Error("symbol failed",
			"symbol", o.Symbol,
			"stage", o.FailedStage,
			"kind", o.ErrorKind,
			"error", o.Err,
			"duration", o.Duration,
		)
		return
	}

	logger.Info("symbol complete",
		"symbol", o.Symbol,
		"status", o.Status,
		"fetched", o.Fetched,
		"normalized", o.Normalized,
		"skipped", o.Skipped,
		"written", o.Upsert.Written,
		"failed", o.Upsert.Failed,
		"duration", o.Duration,
	)
}
