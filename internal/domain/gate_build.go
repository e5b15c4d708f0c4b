package domain

import (
	"context"
	"fmt"
	"time"
)

// BuildGate passes iff the build tool exits zero. Detail includes the build
// duration and artifact size on success, and the tail of the build output on
// failure.
type BuildGate struct {
	Tool BuildTool
}

func (g *BuildGate) Name() GateName { return GateBuild }

func (g *BuildGate) Evaluate(ctx context.Context) (GateResult, error) {
	res, err := g.Tool.Build(ctx)
	if err != nil {
		return GateResult{}, fmt.Errorf("run build: %w", err)
	}
	if res.ExitCode != 0 {
		return GateResult{
			Passed: false,
			Detail: fmt.Sprintf("build exited %d after %s: %s", res.ExitCode, res.Duration.Round(timeRound), tail(res.Output, 500)),
		}, nil
	}
	return GateResult{
		Passed: true,
		Detail: fmt.Sprintf("build ok in %s, artifact %d bytes", res.Duration.Round(timeRound), res.ArtifactSizeBytes),
	}, nil
}

const timeRound = time.Millisecond

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
