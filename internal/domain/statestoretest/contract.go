// Package statestoretest provides contract tests for
// [domain.StateStore] implementations.
package statestoretest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shiplock/shiplock/internal/domain"
)

// Factory creates a fresh [domain.StateStore] for each test.
type Factory func(t *testing.T) domain.StateStore

// Run exercises the [domain.StateStore] contract.
func Run(t *testing.T, factory Factory) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	sampleState := func() domain.RunState {
		s := domain.NewRunState("run-1", domain.EnvProduction, false, now)
		s.Touch(domain.PhaseCheckEnvVars, now)
		s.RecordPreCheck(domain.GateEnvVars, domain.CheckResult{
			Status: domain.CheckPass,
			Detail: "2 required variables present",
		})
		return s
	}

	t.Run("LoadEmpty", func(t *testing.T) {
		store := factory(t)
		_, err := store.Load(context.Background())
		if !errors.Is(err, domain.ErrStateNotFound) {
			t.Fatalf("Load: got %v, want ErrStateNotFound", err)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		s := sampleState()

		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.RunID != "run-1" {
			t.Errorf("RunID = %q, want run-1", got.RunID)
		}
		if got.Environment != domain.EnvProduction {
			t.Errorf("Environment = %q, want %q", got.Environment, domain.EnvProduction)
		}
		if got.CurrentPhase != domain.PhaseCheckEnvVars {
			t.Errorf("CurrentPhase = %q, want %q", got.CurrentPhase, domain.PhaseCheckEnvVars)
		}
		res, ok := got.PreCheckResults[domain.GateEnvVars]
		if !ok || res.Status != domain.CheckPass {
			t.Errorf("pre-check result = %+v, want recorded pass", res)
		}
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		s := sampleState()
		_ = store.Save(ctx, s)

		s.MarkFailed(domain.PhaseCheckBuild, "build exited 2", now.Add(time.Minute))
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("second Save: %v", err)
		}

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.Status != domain.StatusFailed {
			t.Errorf("Status = %q, want failed", got.Status)
		}
		if got.FailureReason != "build exited 2" {
			t.Errorf("FailureReason = %q", got.FailureReason)
		}
	})

	t.Run("RoundTripsTimestamps", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		s := sampleState()
		s.MarkRolledBack(now.Add(time.Hour))
		_ = store.Save(ctx, s)

		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !got.StartedAt.Equal(now) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, now)
		}
		if got.RolledBackAt == nil || !got.RolledBackAt.Equal(now.Add(time.Hour)) {
			t.Errorf("RolledBackAt = %v", got.RolledBackAt)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		_ = store.Save(ctx, sampleState())

		if err := store.Reset(ctx); err != nil {
			t.Fatalf("Reset: %v", err)
		}
		_, err := store.Load(ctx)
		if !errors.Is(err, domain.ErrStateNotFound) {
			t.Fatalf("Load after Reset: got %v, want ErrStateNotFound", err)
		}
	})

	t.Run("ResetEmpty", func(t *testing.T) {
		store := factory(t)
		if err := store.Reset(context.Background()); err != nil {
			t.Fatalf("Reset on empty store: %v", err)
		}
	})
}
