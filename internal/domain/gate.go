package domain

import (
	"context"
	"fmt"
)

// GateName identifies a built-in pre-deployment gate.
type GateName string

const (
	GateEnvVars       GateName = "env_vars"
	GateBuild         GateName = "build"
	GateMigrationRisk GateName = "migration_risk"
	GateSecurityScan  GateName = "security_scan"
)

// CheckName identifies a post-deployment check.
type CheckName string

const (
	CheckHealthEndpoint CheckName = "health_endpoint"
	CheckCriticalFlows  CheckName = "critical_flows"
	CheckResponseTime   CheckName = "response_time"
)

// GateResult is the outcome of evaluating a single gate. Detail carries the
// concrete remediation hint shown to the operator on failure.
type GateResult struct {
	Passed bool
	Detail string
}

// Gate is a named, independent pre-deployment check. Gates never mutate run
// state; they return a result that the phase runner records.
type Gate interface {
	Name() GateName
	Evaluate(ctx context.Context) (GateResult, error)
}

// GateEvaluator dispatches gate evaluation by name. Gates are independent
// and order-insensitive; the phase sequence decides when each one runs.
type GateEvaluator struct {
	gates map[GateName]Gate
}

// NewGateEvaluator builds an evaluator over the given gates.
func NewGateEvaluator(gates ...Gate) *GateEvaluator {
	m := make(map[GateName]Gate, len(gates))
	for _, g := range gates {
		m[g.Name()] = g
	}
	return &GateEvaluator{gates: m}
}

// Evaluate runs the named gate. Unknown names are a caller error, not a
// gate failure.
func (e *GateEvaluator) Evaluate(ctx context.Context, name GateName) (GateResult, error) {
	g, ok := e.gates[name]
	if !ok {
		return GateResult{}, fmt.Errorf("%w: unknown gate %q", ErrInvalidArgument, name)
	}
	return g.Evaluate(ctx)
}
