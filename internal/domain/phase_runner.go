package domain

import (
	"context"
	"fmt"
	"time"
)

// Outcome tells the orchestrator whether to advance past a phase.
type Outcome string

const (
	OutcomeContinue Outcome = "continue"
	OutcomeHalt     Outcome = "halt"
)

// PhaseRunner executes a single phase against the run state. Pre-check gate
// failures are a hard stop: the returned state is marked failed and no
// later phase may run. Post-check failures are recorded as WARN and the run
// continues. Execution phases halt only when the tool itself fails.
//
// The runner is the enforcement point for the one cross-phase data
// dependency in the model: production migrations may not begin until a
// backup location is recorded.
type PhaseRunner struct {
	Gates  *GateEvaluator
	Tools  Toolchain
	Probes []HealthProbe
	Now    func() time.Time
}

func (r *PhaseRunner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes one phase and returns the updated state. When the outcome is
// [OutcomeHalt] the state is already marked failed; [FailureError]
// reconstructs the typed error for reporting.
func (r *PhaseRunner) Run(ctx context.Context, phase PhaseID, state RunState) (RunState, Outcome) {
	state.Touch(phase, r.now())

	switch phase.Kind() {
	case KindPreCheck:
		return r.runPreCheck(ctx, phase, state)
	case KindExecution:
		return r.runExecution(ctx, phase, state)
	case KindPostCheck:
		return r.runPostCheck(ctx, phase, state)
	default:
		state.MarkSucceeded(r.now())
		return state, OutcomeContinue
	}
}

func (r *PhaseRunner) runPreCheck(ctx context.Context, phase PhaseID, state RunState) (RunState, Outcome) {
	name := phase.GateName()
	res, err := r.Gates.Evaluate(ctx, name)
	if err != nil {
		state.RecordPreCheck(name, CheckResult{Status: CheckFail, Detail: err.Error()})
		state.MarkFailed(phase, fmt.Sprintf("gate %s could not run: %v", name, err), r.now())
		return state, OutcomeHalt
	}
	if !res.Passed {
		state.RecordPreCheck(name, CheckResult{Status: CheckFail, Detail: res.Detail})
		state.MarkFailed(phase, res.Detail, r.now())
		return state, OutcomeHalt
	}
	state.RecordPreCheck(name, CheckResult{Status: CheckPass, Detail: res.Detail})
	return state, OutcomeContinue
}

func (r *PhaseRunner) runExecution(ctx context.Context, phase PhaseID, state RunState) (RunState, Outcome) {
	switch phase {
	case PhaseBackup:
		return r.runBackup(ctx, state)
	case PhaseMigrate:
		return r.runMigrate(ctx, state)
	default:
		return r.runDeploy(ctx, state)
	}
}

func (r *PhaseRunner) runBackup(ctx context.Context, state RunState) (RunState, Outcome) {
	if r.Tools.Backup == nil {
		if state.Environment == EnvProduction {
			state.MarkFailed(PhaseBackup, "production deployments require a configured backup tool", r.now())
			return state, OutcomeHalt
		}
		// Backup is optional on staging.
		return state, OutcomeContinue
	}
	location, err := r.Tools.Backup.Snapshot(ctx)
	if err != nil {
		state.MarkFailed(PhaseBackup, fmt.Sprintf("backup snapshot: %v", err), r.now())
		return state, OutcomeHalt
	}
	state.DeploymentRecord.BackupLocation = location
	return state, OutcomeContinue
}

func (r *PhaseRunner) runMigrate(ctx context.Context, state RunState) (RunState, Outcome) {
	if state.SkipMigrations {
		return state, OutcomeContinue
	}
	if state.Environment == EnvProduction && state.DeploymentRecord.BackupLocation == "" {
		state.MarkFailed(PhaseMigrate, "no backup recorded before production migrations", r.now())
		return state, OutcomeHalt
	}
	applied, err := r.Tools.Migrations.Apply(ctx)
	if err != nil {
		state.MarkFailed(PhaseMigrate, fmt.Sprintf("apply migrations: %v", err), r.now())
		return state, OutcomeHalt
	}
	for _, id := range applied {
		state.AppendMigration(id)
	}
	return state, OutcomeContinue
}

func (r *PhaseRunner) runDeploy(ctx context.Context, state RunState) (RunState, Outcome) {
	previous, err := r.Tools.Deploy.CurrentVersion(ctx)
	if err != nil {
		state.MarkFailed(PhaseDeploy, fmt.Sprintf("read current version: %v", err), r.now())
		return state, OutcomeHalt
	}
	state.DeploymentRecord.PreviousVersion = previous

	version, err := r.Tools.Deploy.Deploy(ctx)
	if err != nil {
		state.MarkFailed(PhaseDeploy, fmt.Sprintf("deploy application: %v", err), r.now())
		return state, OutcomeHalt
	}
	state.DeploymentRecord.NewVersion = version
	return state, OutcomeContinue
}

// runPostCheck never halts: failures are recorded as WARN and surfaced in
// the final state and report.
func (r *PhaseRunner) runPostCheck(ctx context.Context, phase PhaseID, state RunState) (RunState, Outcome) {
	name := phase.CheckName()
	probe, ok := r.probeFor(name)
	if !ok {
		return state, OutcomeContinue
	}

	res, err := r.Tools.Health.Check(ctx, probe)
	if err != nil {
		state.RecordPostCheck(name, CheckResult{Status: CheckFail, Detail: err.Error()})
		return state, OutcomeContinue
	}
	result := CheckResult{
		Status:         CheckPass,
		Detail:         res.Detail,
		ResponseTimeMs: res.ResponseTime.Milliseconds(),
	}
	if !res.Healthy {
		result.Status = CheckFail
	}
	state.RecordPostCheck(name, result)
	return state, OutcomeContinue
}

func (r *PhaseRunner) probeFor(name CheckName) (HealthProbe, bool) {
	for _, p := range r.Probes {
		if p.Name == name {
			return p, true
		}
	}
	return HealthProbe{}, false
}
