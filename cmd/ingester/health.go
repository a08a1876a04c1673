package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/stock-prices/internal/pipeline"
	"github.com/rickgao/stock-prices/internal/store"
)

// Pinger checks database connectivity. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReportSource exposes the most recent run. Satisfied by *pipeline.Runner.
type ReportSource interface {
	LastReport() (pipeline.Report, bool)
}

// StatsSource exposes sink counters. Satisfied by *store.Sink.
type StatsSource interface {
	Stats() store.Metrics
}

// NextRunSource exposes the next scheduled run. Satisfied by *scheduler.Scheduler.
type NextRunSource interface {
	NextRun() time.Time
}

type healthDeps struct {
	db        Pinger
	reports   ReportSource
	sink      StatsSource
	scheduler NextRunSource // nil in -once mode
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(deps healthDeps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Check database
		if err := deps.db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		// Last run summary
		if report, ok := deps.reports.LastReport(); ok {
			failed := report.Count(pipeline.StatusFailed)
			health.Components["last_run"] = map[string]any{
				"run_id":       report.RunID,
				"finished_at":  report.FinishedAt,
				"symbols":      len(report.Outcomes),
				"failed":       failed,
				"rows_written": report.RowsWritten(),
			}
			if failed > 0 && health.Status == "healthy" {
				health.Status = "degraded"
			}
		} else {
			health.Components["last_run"] = "pending"
		}

		if deps.sink != nil {
			health.Components["sink"] = deps.sink.Stats()
		}
		if deps.scheduler != nil {
			health.Components["next_run"] = deps.scheduler.NextRun()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})

	mux.HandleFunc("/debug/last-run", func(w http.ResponseWriter, r *http.Request) {
		report, ok := deps.reports.LastReport()
		if !ok {
			http.Error(w, "no run completed yet", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.Warn("failed to write last-run response", "error", err)
		}
	})

	return mux
}
