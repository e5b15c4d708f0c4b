package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shiplock/shiplock/internal/domain"
)

// RunHistoryRepo implements [domain.RunHistoryRepository] backed by SQLite.
type RunHistoryRepo struct {
	DB *sql.DB
}

func (r *RunHistoryRepo) PutRun(ctx context.Context, rec domain.RunRecord) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO runs (run_id, environment, status, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		     environment = excluded.environment,
		     status = excluded.status,
		     started_at = excluded.started_at,
		     finished_at = excluded.finished_at`,
		rec.RunID, string(rec.Environment), string(rec.Status),
		formatTime(rec.StartedAt), nullTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

func (r *RunHistoryRepo) GetRun(ctx context.Context, runID string) (domain.RunRecord, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT run_id, environment, status, started_at, finished_at
		 FROM runs WHERE run_id = ?`,
		runID,
	)
	return scanRun(row)
}

func (r *RunHistoryRepo) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		// SQLite treats a negative limit as unlimited.
		limit = -1
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT run_id, environment, status, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

func (r *RunHistoryRepo) AppendPhaseEvent(ctx context.Context, ev domain.PhaseEvent) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO phase_events (run_id, phase, status, detail, at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.RunID, string(ev.Phase), string(ev.Status), ev.Detail, formatTime(ev.At),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("run %q: %w", ev.RunID, domain.ErrNotFound)
		}
		return fmt.Errorf("insert phase event: %w", err)
	}
	return nil
}

func (r *RunHistoryRepo) ListPhaseEvents(ctx context.Context, runID string) ([]domain.PhaseEvent, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT run_id, phase, status, detail, at
		 FROM phase_events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list phase events: %w", err)
	}
	defer rows.Close()

	var events []domain.PhaseEvent
	for rows.Next() {
		var ev domain.PhaseEvent
		var phase, status, at string
		if err := rows.Scan(&ev.RunID, &phase, &status, &ev.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan phase event: %w", err)
		}
		ev.Phase = domain.PhaseID(phase)
		ev.Status = domain.RunStatus(status)
		ev.At, err = parseTime(at)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.RunRecord, error) {
	var rec domain.RunRecord
	var env, status, startedAt string
	var finishedAt sql.NullString
	if err := s.Scan(&rec.RunID, &env, &status, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, fmt.Errorf("%w", domain.ErrNotFound)
		}
		return rec, fmt.Errorf("scan run: %w", err)
	}
	rec.Environment = domain.Environment(env)
	rec.Status = domain.RunStatus(status)

	var err error
	rec.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return rec, err
	}
	if finishedAt.Valid {
		rec.FinishedAt, err = parseTime(finishedAt.String)
		if err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}
