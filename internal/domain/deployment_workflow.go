package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StartInput selects the workflow entry mode. A fresh run expects the
// service to have persisted a not-started state; a resume re-attempts the
// exact phase that failed.
type StartInput struct {
	Resume bool `json:"resume"`
}

// RunPhaseInput carries one phase execution through the activity boundary.
// The full state travels with it so durable engines can replay
// deterministically from their journal.
type RunPhaseInput struct {
	Phase PhaseID  `json:"phase"`
	State RunState `json:"state"`
}

// RunPhaseOutput is the phase result. Halt means the state is marked failed
// and no later phase may run.
type RunPhaseOutput struct {
	State RunState `json:"state"`
	Halt  bool     `json:"halt"`
}

// DeploymentWorkflow drives the fixed phase sequence end to end. State is
// saved after every phase transition, before the outcome is reported, so a
// crash between phase completion and reporting still leaves a resumable,
// consistent state. History recording is best-effort and optional.
type DeploymentWorkflow struct {
	Store   StateStore
	Runner  *PhaseRunner
	History RunHistoryRepository
	Now     func() time.Time
}

// Name is the stable workflow registration name.
func (w *DeploymentWorkflow) Name() string { return "deployment-run" }

func (w *DeploymentWorkflow) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// LoadState loads and revalidates the persisted state for this run.
func (w *DeploymentWorkflow) LoadState() Activity[StartInput, RunState] {
	return NewActivity("load-state", func(ctx context.Context, in StartInput) (RunState, error) {
		state, err := w.Store.Load(ctx)
		if err != nil {
			if in.Resume && errors.Is(err, ErrStateNotFound) {
				return RunState{}, fmt.Errorf("%w: no deployment state", ErrNoFailedRun)
			}
			return RunState{}, err
		}
		if in.Resume {
			if state.Terminal() {
				return RunState{}, fmt.Errorf("%w: run already %s", ErrInvalidTransition, state.Status)
			}
			if state.Status != StatusFailed {
				return RunState{}, fmt.Errorf("%w: run is %s", ErrNoFailedRun, state.Status)
			}
		}
		return state, nil
	})
}

// RunPhase executes a single phase. Halts are reported through the output,
// not the error, so the failed state still flows through save-state.
func (w *DeploymentWorkflow) RunPhase() Activity[RunPhaseInput, RunPhaseOutput] {
	return NewActivity("run-phase", func(ctx context.Context, in RunPhaseInput) (RunPhaseOutput, error) {
		state, outcome := w.Runner.Run(ctx, in.Phase, in.State)
		return RunPhaseOutput{State: state, Halt: outcome == OutcomeHalt}, nil
	})
}

// SaveState persists the state after a phase transition.
func (w *DeploymentWorkflow) SaveState() Activity[RunState, struct{}] {
	return NewActivity("save-state", func(ctx context.Context, state RunState) (struct{}, error) {
		return struct{}{}, w.Store.Save(ctx, state)
	})
}

// RecordHistory appends the run's current disposition to the audit history.
func (w *DeploymentWorkflow) RecordHistory() Activity[RunState, struct{}] {
	return NewActivity("record-history", func(ctx context.Context, state RunState) (struct{}, error) {
		if w.History == nil {
			return struct{}{}, nil
		}
		rec := RunRecord{
			RunID:       state.RunID,
			Environment: state.Environment,
			Status:      state.Status,
			StartedAt:   state.StartedAt,
		}
		if state.Terminal() || state.Status == StatusFailed {
			rec.FinishedAt = state.LastUpdatedAt
		}
		if err := w.History.PutRun(ctx, rec); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, w.History.AppendPhaseEvent(ctx, PhaseEvent{
			RunID:  state.RunID,
			Phase:  state.CurrentPhase,
			Status: state.Status,
			Detail: state.FailureReason,
			At:     state.LastUpdatedAt,
		})
	})
}

// Run is the workflow body. A fresh run walks the sequence from the first
// phase; a resume re-attempts exactly the phase that failed, never the one
// after it and never the beginning.
func (w *DeploymentWorkflow) Run(runner DurableRunner, in StartInput) (RunState, error) {
	state, err := RunActivity(runner, w.LoadState(), in)
	if err != nil {
		return RunState{}, err
	}

	sequence := PhaseSequence()
	start := 0
	if in.Resume {
		start = PhaseIndex(state.CurrentPhase)
		if start < 0 {
			return RunState{}, fmt.Errorf("%w: unknown resume phase %q", ErrCorruptState, state.CurrentPhase)
		}
	}

	for _, phase := range sequence[start:] {
		out, err := RunActivity(runner, w.RunPhase(), RunPhaseInput{Phase: phase, State: state})
		if err != nil {
			return state, err
		}
		state = out.State

		if _, err := RunActivity(runner, w.SaveState(), state); err != nil {
			return state, err
		}
		if _, err := RunActivity(runner, w.RecordHistory(), state); err != nil {
			return state, err
		}
		if out.Halt {
			return state, nil
		}
	}
	return state, nil
}
