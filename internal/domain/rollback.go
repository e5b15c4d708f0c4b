package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RollbackManager reverses the effects of the execution phases: the
// application is reverted to the previous version pointer, and the database
// is restored from backup when migrations were applied. It never re-runs
// pre-checks.
type RollbackManager struct {
	Deploy DeployTool
	Backup BackupTool
	Now    func() time.Time

	// RetryInitialInterval seeds the exponential backoff between attempts
	// of a single rollback step. Zero means the backoff default.
	RetryInitialInterval time.Duration
}

// rollbackAttempts bounds each rollback step: transient external-tool
// failures get three attempts before the whole rollback fails.
const rollbackAttempts = 3

func (m *RollbackManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Rollback reverts the deployment recorded in state and returns the updated
// state. The input state is returned unchanged on every error path.
//
// Preconditions: a previous version pointer must be recorded, and the run
// must not already be rolled back. A failed run that never reached the
// execution phases has nothing to revert; rollback is then a no-op.
func (m *RollbackManager) Rollback(ctx context.Context, state RunState) (RunState, error) {
	if state.Status == StatusRolledBack {
		return state, fmt.Errorf("%w: run already rolled back", ErrInvalidTransition)
	}
	if state.Status == StatusFailed && !state.CurrentPhase.AtOrPastDeploymentActions() {
		// Failed before any deployment action: nothing was deployed.
		return state, nil
	}
	if state.DeploymentRecord.PreviousVersion == "" {
		return state, ErrNoPriorVersion
	}

	if err := m.retryStep(ctx, func() error {
		return m.Deploy.RevertTo(ctx, state.DeploymentRecord.PreviousVersion)
	}); err != nil {
		return state, fmt.Errorf("revert application to %s: %w", state.DeploymentRecord.PreviousVersion, err)
	}

	if len(state.DeploymentRecord.AppliedMigrations) > 0 {
		if state.DeploymentRecord.BackupLocation == "" {
			// Automated restoration requires a snapshot.
			return state, &ManualRollbackRequiredError{
				AppliedMigrations: state.DeploymentRecord.AppliedMigrations,
			}
		}
		if err := m.retryStep(ctx, func() error {
			return m.Backup.Restore(ctx, state.DeploymentRecord.BackupLocation)
		}); err != nil {
			return state, fmt.Errorf("restore backup %s: %w", state.DeploymentRecord.BackupLocation, err)
		}
		state.DeploymentRecord.AppliedMigrations = nil
	}

	state.MarkRolledBack(m.now())
	return state, nil
}

func (m *RollbackManager) retryStep(ctx context.Context, step func() error) error {
	eb := backoff.NewExponentialBackOff()
	if m.RetryInitialInterval > 0 {
		eb.InitialInterval = m.RetryInitialInterval
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, rollbackAttempts-1), ctx)
	return backoff.Retry(step, b)
}
