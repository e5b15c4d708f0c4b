package domain

import "context"

// StateStore persists the run state aggregate. Save must be atomic: either
// the full new state is visible to the next Load, or the previous state
// remains untouched. Implementations never leave a half-written record.
type StateStore interface {
	// Load reads the persisted state. It fails with [ErrStateNotFound] when
	// nothing is persisted and [ErrCorruptState] when the stored
	// representation cannot be decoded into a valid state.
	Load(ctx context.Context) (RunState, error)

	// Save atomically replaces the persisted state.
	Save(ctx context.Context, state RunState) error

	// Reset deletes the persisted state. Callers gate it behind an explicit
	// force flag.
	Reset(ctx context.Context) error
}
