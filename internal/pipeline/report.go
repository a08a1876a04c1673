package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/stock-prices/internal/model"
)

// State is the position of a symbol in the pipeline.
type State string

const (
	StatePending     State = "pending"
	StateFetching    State = "fetching"
	StateFetched     State = "fetched"
	StateNormalizing State = "normalizing"
	StateNormalized  State = "normalized"
	StateUpserting   State = "upserting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Status is the final verdict for a symbol.
type Status string

const (
	StatusOK     Status = "ok"
	StatusNoData Status = "no_data"
	StatusFailed Status = "failed"
)

// ErrorKind classifies a symbol failure.
type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"   // network or non-2xx response
	KindSoft        ErrorKind = "soft"        // provider error inside a 200 body
	KindExhausted   ErrorKind = "exhausted"   // every fetch attempt failed
	KindPersistence ErrorKind = "persistence" // sink returned an error
	KindCanceled    ErrorKind = "canceled"    // run context ended
	KindInternal    ErrorKind = "internal"    // recovered panic or unexpected error
)

// Outcome is the result of one symbol within a run.
type Outcome struct {
	Symbol      string             `json:"symbol"`
	State       State              `json:"state"`
	FailedStage State              `json:"failed_stage,omitempty"`
	Status      Status             `json:"status"`
	Fetched     int                `json:"fetched"`
	Normalized  int                `json:"normalized"`
	Skipped     int                `json:"skipped"`
	Upsert      model.UpsertResult `json:"upsert"`
	ErrorKind   ErrorKind          `json:"error_kind,omitempty"`
	Error       string             `json:"error,omitempty"`
	Duration    time.Duration      `json:"duration_ns"`

	Err error `json:"-"`
}

// fail moves the outcome into StateFailed, remembering where it happened.
func (o *Outcome) fail(err error, kind ErrorKind) {
	o.FailedStage = o.State
	o.State = StateFailed
	o.Status = StatusFailed
	o.Err = err
	o.Error = err.Error()
	o.ErrorKind = kind
}

// Report summarizes one run.
type Report struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Duration returns the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns the number of outcomes with the given status.
func (r Report) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// RowsWritten returns the number of rows committed across all symbols.
func (r Report) RowsWritten() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Upsert.Written
	}
	return n
}

// Outcome returns the outcome for a symbol.
func (r Report) Outcome(symbol string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Symbol == symbol {
			return o, true
		}
	}
	return Outcome{}, false
}
