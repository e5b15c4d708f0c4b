package domain

import (
	"context"
	"fmt"
	"strings"
)

// MigrationRiskGate classifies every pending migration with the fixed risk
// rule table and passes iff no HIGH-risk migration lacks explicit operator
// approval.
type MigrationRiskGate struct {
	Tool     MigrationTool
	Approved map[MigrationID]bool
}

func (g *MigrationRiskGate) Name() GateName { return GateMigrationRisk }

func (g *MigrationRiskGate) Evaluate(ctx context.Context) (GateResult, error) {
	pending, err := g.Tool.Pending(ctx)
	if err != nil {
		return GateResult{}, fmt.Errorf("list pending migrations: %w", err)
	}
	if len(pending) == 0 {
		return GateResult{Passed: true, Detail: "no pending migrations"}, nil
	}

	var lines []string
	var unapproved []string
	for _, m := range pending {
		risk := ClassifyStatement(m.Statement)
		lines = append(lines, fmt.Sprintf("%s: %s", m.ID, risk))
		if risk == RiskHigh && !g.Approved[m.ID] {
			unapproved = append(unapproved, string(m.ID))
		}
	}

	if len(unapproved) > 0 {
		return GateResult{
			Passed: false,
			Detail: fmt.Sprintf("high-risk migrations lack approval: %s (%s)",
				strings.Join(unapproved, ", "), strings.Join(lines, "; ")),
		}, nil
	}
	return GateResult{
		Passed: true,
		Detail: fmt.Sprintf("%d pending (%s)", len(pending), strings.Join(lines, "; ")),
	}, nil
}
