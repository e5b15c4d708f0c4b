package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shiplock/shiplock/internal/domain"
)

// StartDeployInput is the caller-provided input for starting a run.
type StartDeployInput struct {
	Environment    domain.Environment
	SkipMigrations bool
}

// DeployService manages deployment run lifecycle: starting and resuming
// runs, dry runs, rollback, status and history.
type DeployService struct {
	Store         domain.StateStore
	History       domain.RunHistoryRepository
	Gates         *domain.GateEvaluator
	Rollback      *domain.RollbackManager
	Orchestration *OrchestrationService

	Now      func() time.Time
	NewRunID func() string
}

func (s *DeployService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *DeployService) newRunID() string {
	if s.NewRunID != nil {
		return s.NewRunID()
	}
	return uuid.NewString()
}

// Start begins a fresh run. Any existing non-terminal run blocks a new
// start: an in-progress run must finish, a failed run must be resumed,
// rolled back, or reset first.
//
// The returned state is the final state of the run. When the run failed,
// the error is the typed failure reconstructed from that state.
func (s *DeployService) Start(ctx context.Context, in StartDeployInput) (domain.RunState, error) {
	existing, err := s.Store.Load(ctx)
	switch {
	case err == nil:
		if existing.Status == domain.StatusFailed {
			return domain.RunState{}, fmt.Errorf("%w: run %s failed at phase %s; resume, roll back, or reset it first",
				domain.ErrAlreadyInProgress, existing.RunID, existing.CurrentPhase)
		}
		if !existing.Terminal() {
			return domain.RunState{}, fmt.Errorf("%w: run %s is %s",
				domain.ErrAlreadyInProgress, existing.RunID, existing.Status)
		}
	case errors.Is(err, domain.ErrStateNotFound):
	default:
		return domain.RunState{}, err
	}

	state := domain.NewRunState(s.newRunID(), in.Environment, in.SkipMigrations, s.now())
	if err := s.Store.Save(ctx, state); err != nil {
		return domain.RunState{}, fmt.Errorf("persist initial state: %w", err)
	}

	final, err := s.Orchestration.Orchestrate(ctx, domain.StartInput{})
	if err != nil {
		return final, err
	}
	return final, domain.FailureError(final)
}

// Resume re-attempts the failed run recorded in the state file, starting
// at exactly the phase that failed.
func (s *DeployService) Resume(ctx context.Context) (domain.RunState, error) {
	final, err := s.Orchestration.Orchestrate(ctx, domain.StartInput{Resume: true})
	if err != nil {
		return final, err
	}
	return final, domain.FailureError(final)
}

// GateOutcome is one gate's dry-run result.
type GateOutcome struct {
	Gate   domain.GateName
	Result domain.GateResult
}

// DryRunReport is the outcome of evaluating all pre-deployment gates
// without any side effects.
type DryRunReport struct {
	Environment domain.Environment
	Outcomes    []GateOutcome
}

// Passed reports whether every gate passed.
func (r DryRunReport) Passed() bool {
	for _, o := range r.Outcomes {
		if !o.Result.Passed {
			return false
		}
	}
	return true
}

// DryRun evaluates every pre-deployment gate in phase order and reports
// the results. No state is written and no deployment action runs; unlike a
// real run, a failing gate does not stop evaluation of the rest.
func (s *DeployService) DryRun(ctx context.Context, env domain.Environment) (DryRunReport, error) {
	report := DryRunReport{Environment: env}
	for _, phase := range domain.PhaseSequence() {
		if phase.Kind() != domain.KindPreCheck {
			continue
		}
		name := phase.GateName()
		res, err := s.Gates.Evaluate(ctx, name)
		if err != nil {
			res = domain.GateResult{Passed: false, Detail: fmt.Sprintf("could not run: %v", err)}
		}
		report.Outcomes = append(report.Outcomes, GateOutcome{Gate: name, Result: res})
	}
	return report, nil
}

// Status returns the persisted state of the current or most recent run.
func (s *DeployService) Status(ctx context.Context) (domain.RunState, error) {
	return s.Store.Load(ctx)
}

// RollbackRun reverts the failed run recorded in the state file and
// persists the rolled-back state.
func (s *DeployService) RollbackRun(ctx context.Context) (domain.RunState, error) {
	state, err := s.Store.Load(ctx)
	if err != nil {
		return domain.RunState{}, err
	}

	rolled, err := s.Rollback.Rollback(ctx, state)
	if err != nil {
		return state, err
	}
	if err := s.Store.Save(ctx, rolled); err != nil {
		return rolled, fmt.Errorf("persist rolled-back state: %w", err)
	}
	s.recordRollback(ctx, rolled)
	return rolled, nil
}

// recordRollback is best-effort: history must never block a completed
// rollback.
func (s *DeployService) recordRollback(ctx context.Context, state domain.RunState) {
	if s.History == nil {
		return
	}
	_ = s.History.PutRun(ctx, domain.RunRecord{
		RunID:       state.RunID,
		Environment: state.Environment,
		Status:      state.Status,
		StartedAt:   state.StartedAt,
		FinishedAt:  state.LastUpdatedAt,
	})
	_ = s.History.AppendPhaseEvent(ctx, domain.PhaseEvent{
		RunID:  state.RunID,
		Phase:  state.CurrentPhase,
		Status: state.Status,
		At:     state.LastUpdatedAt,
	})
}

// ListHistory returns up to limit past runs, most recent first.
func (s *DeployService) ListHistory(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if s.History == nil {
		return nil, nil
	}
	return s.History.ListRuns(ctx, limit)
}

// PhaseEvents returns the recorded phase transitions of one run.
func (s *DeployService) PhaseEvents(ctx context.Context, runID string) ([]domain.PhaseEvent, error) {
	if s.History == nil {
		return nil, nil
	}
	return s.History.ListPhaseEvents(ctx, runID)
}

// Reset discards the persisted run state. A non-terminal run is only
// discarded when force is set; a corrupt state file likewise requires
// force.
func (s *DeployService) Reset(ctx context.Context, force bool) error {
	state, err := s.Store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrStateNotFound):
		return nil
	case err != nil:
		if !force {
			return err
		}
	default:
		if !state.Terminal() && !force {
			return fmt.Errorf("%w: run %s is %s, use force to discard it",
				domain.ErrInvalidTransition, state.RunID, state.Status)
		}
	}
	return s.Store.Reset(ctx)
}
