package domain

import (
	"fmt"
	"time"
)

// Environment names the deployment target environment. It is immutable once
// a run starts.
type Environment string

const (
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// ParseEnvironment validates an operator-provided environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvStaging, EnvProduction:
		return Environment(s), nil
	default:
		return "", fmt.Errorf("%w: unknown environment %q", ErrInvalidArgument, s)
	}
}

// RunStatus is the lifecycle state of a deployment run.
type RunStatus string

const (
	StatusNotStarted RunStatus = "not_started"
	StatusInProgress RunStatus = "in_progress"
	StatusFailed     RunStatus = "failed"
	StatusSucceeded  RunStatus = "succeeded"
	StatusRolledBack RunStatus = "rolled_back"
)

// CheckStatus is the recorded outcome of a single gate or post-check.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckFail    CheckStatus = "fail"
	CheckPending CheckStatus = "pending"
)

// CheckResult records one gate or post-check outcome. ResponseTimeMs is set
// only for post-checks.
type CheckResult struct {
	Status         CheckStatus `json:"status"`
	Detail         string      `json:"detail,omitempty"`
	ResponseTimeMs int64       `json:"response_time_ms,omitempty"`
}

// DeploymentRecord captures what the execution phases did, and is the input
// to rollback.
type DeploymentRecord struct {
	BackupLocation    string        `json:"backup_location,omitempty"`
	PreviousVersion   string        `json:"previous_version,omitempty"`
	NewVersion        string        `json:"new_version,omitempty"`
	AppliedMigrations []MigrationID `json:"applied_migrations"`
}

// StateSchemaVersion is embedded in the persisted state for forward
// compatibility. A mismatch on load is treated as corrupt state.
const StateSchemaVersion = 1

// RunState is the single persisted aggregate for a deployment run. It is
// the wire format of the state file and must remain stable across versions
// of the tool.
type RunState struct {
	Version          int                       `json:"version"`
	RunID            string                    `json:"run_id"`
	Environment      Environment               `json:"environment"`
	CurrentPhase     PhaseID                   `json:"current_phase,omitempty"`
	Status           RunStatus                 `json:"status"`
	SkipMigrations   bool                      `json:"skip_migrations,omitempty"`
	StartedAt        time.Time                 `json:"started_at"`
	LastUpdatedAt    time.Time                 `json:"last_updated_at"`
	PreCheckResults  map[GateName]CheckResult  `json:"pre_check_results"`
	PostCheckResults map[CheckName]CheckResult `json:"post_check_results"`
	DeploymentRecord DeploymentRecord          `json:"deployment_record"`
	FailureReason    string                    `json:"failure_reason,omitempty"`
	RolledBackAt     *time.Time                `json:"rolled_back_at,omitempty"`
}

// NewRunState creates the aggregate for a fresh deployment run.
func NewRunState(runID string, env Environment, skipMigrations bool, now time.Time) RunState {
	return RunState{
		Version:          StateSchemaVersion,
		RunID:            runID,
		Environment:      env,
		Status:           StatusNotStarted,
		SkipMigrations:   skipMigrations,
		StartedAt:        now,
		LastUpdatedAt:    now,
		PreCheckResults:  make(map[GateName]CheckResult),
		PostCheckResults: make(map[CheckName]CheckResult),
	}
}

// Touch advances the run to the given phase and marks it in progress.
func (s *RunState) Touch(phase PhaseID, now time.Time) {
	s.CurrentPhase = phase
	s.Status = StatusInProgress
	s.FailureReason = ""
	s.LastUpdatedAt = now
}

// RecordPreCheck stores a gate outcome.
func (s *RunState) RecordPreCheck(name GateName, r CheckResult) {
	if s.PreCheckResults == nil {
		s.PreCheckResults = make(map[GateName]CheckResult)
	}
	s.PreCheckResults[name] = r
}

// RecordPostCheck stores a post-check outcome.
func (s *RunState) RecordPostCheck(name CheckName, r CheckResult) {
	if s.PostCheckResults == nil {
		s.PostCheckResults = make(map[CheckName]CheckResult)
	}
	s.PostCheckResults[name] = r
}

// AppendMigration records an applied migration. The list is append-only;
// only rollback may clear it.
func (s *RunState) AppendMigration(id MigrationID) {
	s.DeploymentRecord.AppliedMigrations = append(s.DeploymentRecord.AppliedMigrations, id)
}

// MarkFailed records a halt at the given phase with the operator-facing
// reason.
func (s *RunState) MarkFailed(phase PhaseID, reason string, now time.Time) {
	s.CurrentPhase = phase
	s.Status = StatusFailed
	s.FailureReason = reason
	s.LastUpdatedAt = now
}

// MarkSucceeded closes the run successfully.
func (s *RunState) MarkSucceeded(now time.Time) {
	s.Status = StatusSucceeded
	s.FailureReason = ""
	s.LastUpdatedAt = now
}

// MarkRolledBack records a completed rollback.
func (s *RunState) MarkRolledBack(now time.Time) {
	s.Status = StatusRolledBack
	s.RolledBackAt = &now
	s.LastUpdatedAt = now
}

// Terminal reports whether the run can no longer be resumed or re-run.
func (s RunState) Terminal() bool {
	return s.Status == StatusSucceeded || s.Status == StatusRolledBack
}

// Validate checks the aggregate's invariants. State stores call it on load;
// a violation means the persisted representation is corrupt.
func (s RunState) Validate() error {
	if s.Version != StateSchemaVersion {
		return fmt.Errorf("%w: schema version %d, tool supports %d", ErrCorruptState, s.Version, StateSchemaVersion)
	}
	if s.Environment != EnvStaging && s.Environment != EnvProduction {
		return fmt.Errorf("%w: unknown environment %q", ErrCorruptState, s.Environment)
	}
	switch s.Status {
	case StatusNotStarted, StatusInProgress, StatusFailed, StatusSucceeded, StatusRolledBack:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrCorruptState, s.Status)
	}
	if s.CurrentPhase != "" && !s.CurrentPhase.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrCorruptState, s.CurrentPhase)
	}
	if s.Status == StatusFailed {
		if s.FailureReason == "" {
			return fmt.Errorf("%w: failed run has no failure reason", ErrCorruptState)
		}
		if s.CurrentPhase == "" {
			return fmt.Errorf("%w: failed run has no failing phase", ErrCorruptState)
		}
	}
	if s.Status == StatusSucceeded {
		for name, r := range s.PreCheckResults {
			if r.Status != CheckPass {
				return fmt.Errorf("%w: succeeded run has non-passing pre-check %q", ErrCorruptState, name)
			}
		}
	}
	if s.Environment == EnvProduction &&
		len(s.DeploymentRecord.AppliedMigrations) > 0 &&
		s.DeploymentRecord.BackupLocation == "" &&
		s.Status != StatusRolledBack {
		return fmt.Errorf("%w: production migrations applied without a backup", ErrCorruptState)
	}
	return nil
}

// FailureError reconstructs the typed error for a failed run from its
// persisted state: a gate failure for pre-check phases, an action error
// otherwise. Returns nil when the run is not failed.
func FailureError(s RunState) error {
	if s.Status != StatusFailed {
		return nil
	}
	if s.CurrentPhase.Kind() == KindPreCheck {
		return &GateFailureError{Gate: s.CurrentPhase.GateName(), Detail: s.FailureReason}
	}
	return &ActionError{Phase: s.CurrentPhase, Detail: s.FailureReason}
}
