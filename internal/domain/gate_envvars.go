package domain

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvVarsGate passes iff every variable in the required list is present and
// non-empty in the process environment.
type EnvVarsGate struct {
	Required []string
	// Lookup defaults to os.LookupEnv; tests inject their own.
	Lookup func(key string) (string, bool)
}

func (g *EnvVarsGate) Name() GateName { return GateEnvVars }

func (g *EnvVarsGate) Evaluate(_ context.Context) (GateResult, error) {
	lookup := g.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var missing []string
	for _, key := range g.Required {
		v, ok := lookup(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return GateResult{
			Passed: false,
			Detail: "missing: " + strings.Join(missing, ", "),
		}, nil
	}
	return GateResult{
		Passed: true,
		Detail: fmt.Sprintf("%d required variables present", len(g.Required)),
	}, nil
}
