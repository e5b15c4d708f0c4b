package application

import (
	"context"
	"fmt"

	"github.com/shiplock/shiplock/internal/domain"
)

// OrchestrationService executes the deployment run as a durable workflow.
type OrchestrationService struct {
	Workflow domain.DeploymentRunner
}

// Orchestrate starts the deployment workflow and waits for the final run
// state.
func (o *OrchestrationService) Orchestrate(ctx context.Context, in domain.StartInput) (domain.RunState, error) {
	handle, err := o.Workflow.Run(ctx, in)
	if err != nil {
		return domain.RunState{}, fmt.Errorf("start deployment workflow: %w", err)
	}
	return handle.AwaitResult(ctx)
}
