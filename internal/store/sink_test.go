package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/stock-prices/internal/model"
)

var modes = []WriteMode{BestEffort, Atomic}

func row(symbol string, day int, close float64, volume int64) model.PriceRow {
	return model.PriceRow{
		Symbol: symbol,
		Date:   time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Open:   close - 1,
		High:   close + 1,
		Low:    close - 2,
		Close:  close,
		Volume: volume,
	}
}

func TestUpsertSQL(t *testing.T) {
	sql := UpsertSQL("daily prices")

	for _, want := range []string{
		`INSERT INTO "daily prices"`,
		"ON CONFLICT (symbol, ts) DO UPDATE SET",
		"close      = EXCLUDED.close",
		"volume     = EXCLUDED.volume",
		"updated_at = NOW()",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("UpsertSQL missing %q:\n%s", want, sql)
		}
	}
}

func TestUpsertSQL_SchemaQualified(t *testing.T) {
	sql := UpsertSQL("market.stock_prices")
	if !strings.Contains(sql, `INSERT INTO "market"."stock_prices"`) {
		t.Errorf("schema-qualified table not split:\n%s", sql)
	}
}

func TestNewSink_Defaults(t *testing.T) {
	s := NewSink(Config{}, newFakeDB(), nil)

	if s.Mode() != BestEffort {
		t.Errorf("Mode = %s, want %s", s.Mode(), BestEffort)
	}
	if !strings.Contains(s.upsertSQL, `"stock_prices"`) {
		t.Errorf("upsertSQL should target stock_prices:\n%s", s.upsertSQL)
	}
	if s.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
}

func TestSink_EmptyIsNoop(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			db := newFakeDB()
			s := NewSink(Config{Mode: mode}, db, nil)

			res, err := s.Upsert(context.Background(), nil)
			if err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
			if res != (model.UpsertResult{}) {
				t.Errorf("result = %+v, want zero", res)
			}
			if db.begins != 0 {
				t.Errorf("begins = %d, want 0", db.begins)
			}
			if s.Stats().Calls != 0 {
				t.Errorf("Calls = %d, want 0", s.Stats().Calls)
			}
		})
	}
}

func TestSink_Idempotent(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			db := newFakeDB()
			s := NewSink(Config{Mode: mode}, db, nil)
			rows := []model.PriceRow{row("AAPL", 2, 185.5, 1000), row("AAPL", 3, 184.25, 2000)}

			for i := 0; i < 2; i++ {
				res, err := s.Upsert(context.Background(), rows)
				if err != nil {
					t.Fatalf("Upsert() #%d error = %v", i+1, err)
				}
				want := model.UpsertResult{Attempted: 2, Written: 2}
				if res != want {
					t.Errorf("Upsert() #%d = %+v, want %+v", i+1, res, want)
				}
			}
			first, _ := db.get(rows[0].Key())

			if db.count() != 2 {
				t.Errorf("rows = %d, want 2", db.count())
			}
			for _, r := range rows {
				got, ok := db.get(r.Key())
				if !ok {
					t.Fatalf("row %s missing", r.Key())
				}
				if got.row != r {
					t.Errorf("row %s = %+v, want %+v", r.Key(), got.row, r)
				}
			}

			// A third write of the same values only moves updated_at.
			if _, err := s.Upsert(context.Background(), rows[:1]); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
			again, _ := db.get(rows[0].Key())
			if again.row != first.row {
				t.Errorf("values changed: %+v -> %+v", first.row, again.row)
			}
			if again.updatedAt <= first.updatedAt {
				t.Errorf("updated_at = %d, want > %d", again.updatedAt, first.updatedAt)
			}
		})
	}
}

func TestSink_MergeOverwrites(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			db := newFakeDB()
			s := NewSink(Config{Mode: mode}, db, nil)

			if _, err := s.Upsert(context.Background(), []model.PriceRow{row("IBM", 2, 160, 100)}); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
			updated := row("IBM", 2, 161.5, 250)
			if _, err := s.Upsert(context.Background(), []model.PriceRow{updated}); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}

			if db.count() != 1 {
				t.Errorf("rows = %d, want 1", db.count())
			}
			got, _ := db.get(updated.Key())
			if got.row != updated {
				t.Errorf("row = %+v, want %+v", got.row, updated)
			}
		})
	}
}

func TestSink_BestEffortSkipsFailedRow(t *testing.T) {
	db := newFakeDB()
	s := NewSink(Config{Mode: BestEffort}, db, nil)
	rows := []model.PriceRow{row("MSFT", 2, 370, 10), row("MSFT", 3, 371, 11), row("MSFT", 4, 372, 12)}
	db.failKeys[rows[1].Key()] = true

	res, err := s.Upsert(context.Background(), rows)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	want := model.UpsertResult{Attempted: 3, Written: 2, Failed: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if _, ok := db.get(rows[1].Key()); ok {
		t.Error("failed row should not be persisted")
	}
	for _, r := range []model.PriceRow{rows[0], rows[2]} {
		if _, ok := db.get(r.Key()); !ok {
			t.Errorf("row %s should be persisted", r.Key())
		}
	}
	if db.begins != 1 {
		t.Errorf("begins = %d, want one transaction", db.begins)
	}
}

func TestSink_AtomicRollsBack(t *testing.T) {
	db := newFakeDB()
	s := NewSink(Config{Mode: Atomic}, db, nil)
	rows := []model.PriceRow{row("MSFT", 2, 370, 10), row("MSFT", 3, 371, 11), row("MSFT", 4, 372, 12)}
	db.failKeys[rows[1].Key()] = true

	res, err := s.Upsert(context.Background(), rows)
	if err == nil {
		t.Fatal("Upsert() expected error")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Errorf("error should wrap *pgconn.PgError, got %v", err)
	}
	if !strings.Contains(err.Error(), rows[1].Key()) {
		t.Errorf("error should name the failing row: %v", err)
	}

	want := model.UpsertResult{Attempted: 3, Failed: 3}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if db.count() != 0 {
		t.Errorf("rows = %d, want 0 after rollback", db.count())
	}
}

func TestSink_TransactionErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(db *fakeDB)
	}{
		{"begin", func(db *fakeDB) { db.beginErr = errors.New("connection refused") }},
		{"commit", func(db *fakeDB) { db.commitErr = errors.New("connection reset") }},
	}

	for _, tt := range tests {
		for _, mode := range modes {
			t.Run(tt.name+"/"+string(mode), func(t *testing.T) {
				db := newFakeDB()
				tt.setup(db)
				s := NewSink(Config{Mode: mode}, db, nil)

				res, err := s.Upsert(context.Background(), []model.PriceRow{row("AAPL", 2, 1, 1), row("AAPL", 3, 2, 2)})
				if err == nil {
					t.Fatal("Upsert() expected error")
				}
				if !strings.HasPrefix(err.Error(), tt.name+":") {
					t.Errorf("error = %q, want %q prefix", err, tt.name+":")
				}
				want := model.UpsertResult{Attempted: 2, Failed: 2}
				if res != want {
					t.Errorf("result = %+v, want %+v", res, want)
				}
				if db.count() != 0 {
					t.Errorf("rows = %d, want 0", db.count())
				}
				if s.Stats().Errors != 1 {
					t.Errorf("Errors = %d, want 1", s.Stats().Errors)
				}
			})
		}
	}
}

func TestSink_Canceled(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			db := newFakeDB()
			s := NewSink(Config{Mode: mode}, db, nil)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			res, err := s.Upsert(ctx, []model.PriceRow{row("AAPL", 2, 1, 1)})
			if !errors.Is(err, context.Canceled) {
				t.Errorf("error = %v, want context.Canceled", err)
			}
			if res.Written != 0 {
				t.Errorf("Written = %d, want 0", res.Written)
			}
		})
	}
}

func TestSink_Stats(t *testing.T) {
	db := newFakeDB()
	s := NewSink(Config{Mode: BestEffort}, db, nil)
	rows := []model.PriceRow{row("AAPL", 2, 1, 1), row("AAPL", 3, 2, 2)}
	db.failKeys[rows[0].Key()] = true

	s.Upsert(context.Background(), rows)
	s.Upsert(context.Background(), rows[1:])

	stats := s.Stats()
	if stats.Calls != 2 {
		t.Errorf("Calls = %d, want 2", stats.Calls)
	}
	if stats.Written != 2 {
		t.Errorf("Written = %d, want 2", stats.Written)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}
}
