package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/shiplock/shiplock/internal/domain"
)

// RenderReport formats a run's state for the terminal. Failed post-checks
// render as WARN because they never stop a run; failed pre-checks render
// as FAIL.
func RenderReport(state domain.RunState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", state.RunID)
	fmt.Fprintf(&b, "  environment: %s\n", state.Environment)
	fmt.Fprintf(&b, "  status:      %s\n", state.Status)
	if state.CurrentPhase != "" {
		fmt.Fprintf(&b, "  phase:       %s\n", state.CurrentPhase)
	}
	if state.FailureReason != "" {
		fmt.Fprintf(&b, "  failure:     %s\n", state.FailureReason)
	}
	if state.RolledBackAt != nil {
		fmt.Fprintf(&b, "  rolled back: %s\n", state.RolledBackAt.Format(time.RFC3339))
	}

	if len(state.PreCheckResults) > 0 {
		b.WriteString("pre-deployment checks:\n")
		for _, phase := range domain.PhaseSequence() {
			if phase.Kind() != domain.KindPreCheck {
				continue
			}
			name := phase.GateName()
			res, ok := state.PreCheckResults[name]
			if !ok {
				continue
			}
			label := "PASS"
			if res.Status == domain.CheckFail {
				label = "FAIL"
			}
			fmt.Fprintf(&b, "  %s %s: %s\n", label, name, res.Detail)
		}
	}

	rec := state.DeploymentRecord
	if rec.BackupLocation != "" || rec.NewVersion != "" || len(rec.AppliedMigrations) > 0 {
		b.WriteString("deployment:\n")
		if rec.BackupLocation != "" {
			fmt.Fprintf(&b, "  backup:     %s\n", rec.BackupLocation)
		}
		if rec.PreviousVersion != "" || rec.NewVersion != "" {
			fmt.Fprintf(&b, "  version:    %s -> %s\n", rec.PreviousVersion, rec.NewVersion)
		}
		if len(rec.AppliedMigrations) > 0 {
			fmt.Fprintf(&b, "  migrations: %d applied\n", len(rec.AppliedMigrations))
		}
	}

	if len(state.PostCheckResults) > 0 {
		b.WriteString("post-deployment checks:\n")
		for _, phase := range domain.PhaseSequence() {
			if phase.Kind() != domain.KindPostCheck {
				continue
			}
			name := phase.CheckName()
			res, ok := state.PostCheckResults[name]
			if !ok {
				continue
			}
			label := "PASS"
			if res.Status == domain.CheckFail {
				label = "WARN"
			}
			fmt.Fprintf(&b, "  %s %s: %s", label, name, res.Detail)
			if res.ResponseTimeMs > 0 {
				fmt.Fprintf(&b, " (%dms)", res.ResponseTimeMs)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderDryRun formats a dry-run report.
func RenderDryRun(report DryRunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "dry run (%s):\n", report.Environment)
	for _, o := range report.Outcomes {
		label := "PASS"
		if !o.Result.Passed {
			label = "FAIL"
		}
		fmt.Fprintf(&b, "  %s %s: %s\n", label, o.Gate, o.Result.Detail)
	}
	if report.Passed() {
		b.WriteString("all gates passed, deployment would proceed\n")
	} else {
		b.WriteString("gates failed, deployment would stop\n")
	}
	return b.String()
}

// RenderHistory formats past runs, most recent first.
func RenderHistory(runs []domain.RunRecord) string {
	if len(runs) == 0 {
		return "no recorded runs\n"
	}
	var b strings.Builder
	for _, r := range runs {
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%s  %-10s  %-12s  started %s  finished %s\n",
			r.RunID, r.Environment, r.Status,
			r.StartedAt.Format(time.RFC3339), finished)
	}
	return b.String()
}
