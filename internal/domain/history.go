package domain

import (
	"context"
	"time"
)

// RunRecord is one row of the audit history: a deployment run and its
// final disposition. FinishedAt is zero while the run is open.
type RunRecord struct {
	RunID       string
	Environment Environment
	Status      RunStatus
	StartedAt   time.Time
	FinishedAt  time.Time
}

// PhaseEvent records one phase transition of a run.
type PhaseEvent struct {
	RunID  string
	Phase  PhaseID
	Status RunStatus
	Detail string
	At     time.Time
}

// RunHistoryRepository persists the audit history of deployment runs.
// History is append-mostly: runs are upserted as their status changes,
// phase events only ever accumulate.
type RunHistoryRepository interface {
	// PutRun inserts or updates the run row keyed by run ID.
	PutRun(ctx context.Context, rec RunRecord) error
	// AppendPhaseEvent appends one phase transition.
	AppendPhaseEvent(ctx context.Context, ev PhaseEvent) error
	GetRun(ctx context.Context, runID string) (RunRecord, error)
	// ListRuns returns up to limit runs, most recent first. A non-positive
	// limit returns all runs.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	// ListPhaseEvents returns a run's phase transitions in order.
	ListPhaseEvents(ctx context.Context, runID string) ([]PhaseEvent, error)
}
