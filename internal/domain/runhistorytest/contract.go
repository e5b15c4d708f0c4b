// Package runhistorytest provides contract tests for
// [domain.RunHistoryRepository] implementations.
package runhistorytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shiplock/shiplock/internal/domain"
)

// Factory creates a fresh [domain.RunHistoryRepository] for each test.
type Factory func(t *testing.T) domain.RunHistoryRepository

// Run exercises the [domain.RunHistoryRepository] contract.
func Run(t *testing.T, factory Factory) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	sampleRun := func(id string, startedAt time.Time) domain.RunRecord {
		return domain.RunRecord{
			RunID:       id,
			Environment: domain.EnvProduction,
			Status:      domain.StatusInProgress,
			StartedAt:   startedAt,
		}
	}

	t.Run("PutAndGet", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		if err := repo.PutRun(ctx, sampleRun("run-1", now)); err != nil {
			t.Fatalf("PutRun: %v", err)
		}

		got, err := repo.GetRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if got.Environment != domain.EnvProduction {
			t.Errorf("Environment = %q", got.Environment)
		}
		if !got.StartedAt.Equal(now) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, now)
		}
		if !got.FinishedAt.IsZero() {
			t.Errorf("FinishedAt = %v, want zero for an open run", got.FinishedAt)
		}
	})

	t.Run("PutUpserts", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		rec := sampleRun("run-1", now)
		_ = repo.PutRun(ctx, rec)

		rec.Status = domain.StatusSucceeded
		rec.FinishedAt = now.Add(5 * time.Minute)
		if err := repo.PutRun(ctx, rec); err != nil {
			t.Fatalf("second PutRun: %v", err)
		}

		got, err := repo.GetRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if got.Status != domain.StatusSucceeded {
			t.Errorf("Status = %q, want succeeded", got.Status)
		}
		if got.FinishedAt.IsZero() {
			t.Error("FinishedAt must round-trip")
		}

		runs, err := repo.ListRuns(ctx, 10)
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("ListRuns after upsert: got %d, want 1", len(runs))
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		repo := factory(t)
		_, err := repo.GetRun(context.Background(), "nonexistent")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetRun: got %v, want ErrNotFound", err)
		}
	})

	t.Run("ListRecentFirst", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		_ = repo.PutRun(ctx, sampleRun("run-1", now))
		_ = repo.PutRun(ctx, sampleRun("run-2", now.Add(time.Hour)))
		_ = repo.PutRun(ctx, sampleRun("run-3", now.Add(2*time.Hour)))

		runs, err := repo.ListRuns(ctx, 2)
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("ListRuns: got %d, want limit of 2", len(runs))
		}
		if runs[0].RunID != "run-3" || runs[1].RunID != "run-2" {
			t.Errorf("order = [%s, %s], want most recent first", runs[0].RunID, runs[1].RunID)
		}
	})

	t.Run("PhaseEvents", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		_ = repo.PutRun(ctx, sampleRun("run-1", now))

		events := []domain.PhaseEvent{
			{RunID: "run-1", Phase: domain.PhaseCheckEnvVars, Status: domain.StatusInProgress, At: now},
			{RunID: "run-1", Phase: domain.PhaseCheckBuild, Status: domain.StatusFailed, Detail: "build exited 2", At: now.Add(time.Minute)},
		}
		for _, ev := range events {
			if err := repo.AppendPhaseEvent(ctx, ev); err != nil {
				t.Fatalf("AppendPhaseEvent: %v", err)
			}
		}

		got, err := repo.ListPhaseEvents(ctx, "run-1")
		if err != nil {
			t.Fatalf("ListPhaseEvents: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("ListPhaseEvents: got %d, want 2", len(got))
		}
		if got[0].Phase != domain.PhaseCheckEnvVars || got[1].Phase != domain.PhaseCheckBuild {
			t.Errorf("order = [%s, %s], want append order", got[0].Phase, got[1].Phase)
		}
		if got[1].Detail != "build exited 2" {
			t.Errorf("Detail = %q", got[1].Detail)
		}
	})

	t.Run("PhaseEventsEmpty", func(t *testing.T) {
		repo := factory(t)
		got, err := repo.ListPhaseEvents(context.Background(), "nonexistent")
		if err != nil {
			t.Fatalf("ListPhaseEvents: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ListPhaseEvents: got %d, want 0", len(got))
		}
	})
}
