// Package scheduler triggers ingestion runs on a cron schedule.
//
// At most one run is in flight at a time. A tick that arrives while the
// previous run is still working is dropped and counted (see Scheduler.Skipped);
// the next run starts on a later tick boundary, never straight after a slow run.
package scheduler
