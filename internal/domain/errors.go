package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStateNotFound indicates that no deployment state has been persisted
	// for this project.
	ErrStateNotFound = errors.New("no deployment state")

	// ErrCorruptState indicates that the persisted state could not be decoded
	// into a valid run state. Recovery requires an explicit forced reset.
	ErrCorruptState = errors.New("corrupt deployment state")

	// ErrAlreadyInProgress indicates that a deployment run is already
	// in progress for this project.
	ErrAlreadyInProgress = errors.New("deployment already in progress")

	// ErrNoFailedRun indicates that resume was requested but no failed run
	// exists to resume.
	ErrNoFailedRun = errors.New("no failed run to resume")

	// ErrInvalidTransition indicates an operation that is not permitted from
	// the current run status, e.g. resuming a run that already succeeded.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNoPriorVersion indicates that rollback was requested but no previous
	// version pointer was recorded before the deployment.
	ErrNoPriorVersion = errors.New("no prior version recorded")

	// ErrInvalidArgument indicates that a caller-provided value violates
	// a precondition.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates that a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// GateFailureError reports a failed pre-check gate. It halts the run; the
// operator fixes the underlying cause and resumes.
type GateFailureError struct {
	Gate   GateName
	Detail string
}

func (e *GateFailureError) Error() string {
	return fmt.Sprintf("gate %s failed: %s", e.Gate, e.Detail)
}

// ActionError reports a failed execution-phase action (backup, migration,
// deploy) or a gate that could not be evaluated at all.
type ActionError struct {
	Phase  PhaseID
	Detail string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("phase %s failed: %s", e.Phase, e.Detail)
}

// ManualRollbackRequiredError indicates that migrations were applied but no
// backup exists to restore from. Automated restoration is never attempted in
// that situation; the applied migrations are listed for the operator.
type ManualRollbackRequiredError struct {
	AppliedMigrations []MigrationID
}

func (e *ManualRollbackRequiredError) Error() string {
	ids := make([]string, len(e.AppliedMigrations))
	for i, id := range e.AppliedMigrations {
		ids[i] = string(id)
	}
	return fmt.Sprintf("manual rollback required: no backup recorded for applied migrations [%s]",
		strings.Join(ids, ", "))
}
