package domain

import (
	"context"
	"fmt"
	"strings"
)

// SecurityScanGate passes iff the audit finds no secret-pattern match in
// the working tree and no dependency flagged at critical severity.
type SecurityScanGate struct {
	Auditor SecurityAuditor
}

func (g *SecurityScanGate) Name() GateName { return GateSecurityScan }

func (g *SecurityScanGate) Evaluate(ctx context.Context) (GateResult, error) {
	report, err := g.Auditor.Audit(ctx)
	if err != nil {
		return GateResult{}, fmt.Errorf("security audit: %w", err)
	}

	var problems []string
	for _, m := range report.SecretMatches {
		problems = append(problems, fmt.Sprintf("secret pattern %s at %s:%d", m.Pattern, m.File, m.Line))
	}
	for _, f := range report.CriticalFindings {
		problems = append(problems, "critical dependency: "+f)
	}

	if len(problems) > 0 {
		return GateResult{Passed: false, Detail: strings.Join(problems, "; ")}, nil
	}
	return GateResult{Passed: true, Detail: "no secrets or critical findings"}, nil
}
