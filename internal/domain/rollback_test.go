package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shiplock/shiplock/internal/domain"
)

func newRollbackManager(h *harness) *domain.RollbackManager {
	return &domain.RollbackManager{
		Deploy:               h.deploy,
		Backup:               h.backup,
		Now:                  fixedNow,
		RetryInitialInterval: time.Millisecond,
	}
}

// failedAfterDeploy builds the state of a run that deployed and migrated,
// then failed.
func failedAfterDeploy(env domain.Environment) domain.RunState {
	s := domain.NewRunState("run-1", env, false, fixedTime)
	s.DeploymentRecord.BackupLocation = "s3://backups/2026-08-24"
	s.DeploymentRecord.PreviousVersion = "v41"
	s.DeploymentRecord.NewVersion = "v42"
	s.AppendMigration("20260824_add_invoices")
	s.MarkFailed(domain.PhaseCheckHealth, "health endpoint returned 503", fixedTime)
	return s
}

func TestRollback_RevertsVersionAndRestoresBackup(t *testing.T) {
	h := passingHarness()
	m := newRollbackManager(h)

	state, err := m.Rollback(context.Background(), failedAfterDeploy(domain.EnvProduction))
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if state.Status != domain.StatusRolledBack {
		t.Fatalf("Status = %q, want rolled_back", state.Status)
	}
	if state.RolledBackAt == nil {
		t.Error("RolledBackAt must be set")
	}
	if len(state.DeploymentRecord.AppliedMigrations) != 0 {
		t.Errorf("AppliedMigrations = %v, want cleared after restore", state.DeploymentRecord.AppliedMigrations)
	}
	if len(h.deploy.reverted) != 1 || h.deploy.reverted[0] != "v41" {
		t.Errorf("reverted = %v, want [v41]", h.deploy.reverted)
	}
	if len(h.backup.restored) != 1 || h.backup.restored[0] != "s3://backups/2026-08-24" {
		t.Errorf("restored = %v", h.backup.restored)
	}
}

func TestRollback_SkipsRestoreWithoutMigrations(t *testing.T) {
	h := passingHarness()
	m := newRollbackManager(h)

	state := failedAfterDeploy(domain.EnvProduction)
	state.DeploymentRecord.AppliedMigrations = nil

	state, err := m.Rollback(context.Background(), state)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if state.Status != domain.StatusRolledBack {
		t.Fatalf("Status = %q, want rolled_back", state.Status)
	}
	if len(h.backup.restored) != 0 {
		t.Errorf("restored = %v, want no restore without applied migrations", h.backup.restored)
	}
}

func TestRollback_NoOpBeforeDeploymentActions(t *testing.T) {
	h := passingHarness()
	m := newRollbackManager(h)

	state := freshState(domain.EnvProduction)
	state.MarkFailed(domain.PhaseCheckBuild, "build exited 2", fixedTime)

	got, err := m.Rollback(context.Background(), state)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Errorf("Status = %q, want failed left in place", got.Status)
	}
	if len(h.deploy.reverted) != 0 || len(h.backup.restored) != 0 {
		t.Error("nothing may be reverted for a run that never deployed")
	}
}

func TestRollback_AlreadyRolledBack(t *testing.T) {
	h := passingHarness()
	m := newRollbackManager(h)

	state := failedAfterDeploy(domain.EnvProduction)
	state.MarkRolledBack(fixedTime)

	_, err := m.Rollback(context.Background(), state)
	if !errIs(err, domain.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

func TestRollback_NoPriorVersion(t *testing.T) {
	h := passingHarness()
	m := newRollbackManager(h)

	state := failedAfterDeploy(domain.EnvProduction)
	state.DeploymentRecord.PreviousVersion = ""

	_, err := m.Rollback(context.Background(), state)
	if !errIs(err, domain.ErrNoPriorVersion) {
		t.Fatalf("got %v, want ErrNoPriorVersion", err)
	}
}

func TestRollback_ManualRequiredWithoutBackup(t *testing.T) {
	h := passingHarness()
	m := newRollbackManager(h)

	state := failedAfterDeploy(domain.EnvStaging)
	state.DeploymentRecord.BackupLocation = ""

	_, err := m.Rollback(context.Background(), state)
	var manual *domain.ManualRollbackRequiredError
	if !errors.As(err, &manual) {
		t.Fatalf("got %v, want ManualRollbackRequiredError", err)
	}
	if len(manual.AppliedMigrations) != 1 {
		t.Errorf("AppliedMigrations = %v", manual.AppliedMigrations)
	}
	if len(h.backup.restored) != 0 {
		t.Error("automated restore must never run without a snapshot")
	}
}

func TestRollback_RetriesTransientRevertFailures(t *testing.T) {
	h := passingHarness()
	h.deploy.revertErrs = []error{errBoom, errBoom}
	m := newRollbackManager(h)

	state, err := m.Rollback(context.Background(), failedAfterDeploy(domain.EnvProduction))
	if err != nil {
		t.Fatalf("Rollback after transient failures: %v", err)
	}
	if state.Status != domain.StatusRolledBack {
		t.Fatalf("Status = %q, want rolled_back", state.Status)
	}
	if len(h.deploy.reverted) != 1 {
		t.Errorf("reverted = %v, want one successful revert", h.deploy.reverted)
	}
}

func TestRollback_GivesUpAfterBoundedAttempts(t *testing.T) {
	h := passingHarness()
	h.deploy.revertErrs = []error{errBoom, errBoom, errBoom}
	m := newRollbackManager(h)

	input := failedAfterDeploy(domain.EnvProduction)
	state, err := m.Rollback(context.Background(), input)
	if err == nil {
		t.Fatal("three failed attempts must surface an error")
	}
	if state.Status != domain.StatusFailed {
		t.Errorf("Status = %q, want the input state unchanged", state.Status)
	}
	if len(h.deploy.reverted) != 0 {
		t.Errorf("reverted = %v, want none", h.deploy.reverted)
	}
	if len(h.deploy.revertErrs) != 0 {
		t.Errorf("attempts consumed = %d of 3", 3-len(h.deploy.revertErrs))
	}
}
