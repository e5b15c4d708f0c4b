package domain

// PhaseID identifies one step in the fixed deployment sequence. Phase IDs
// are opaque ordered identifiers; they are never compared numerically.
type PhaseID string

const (
	PhaseCheckEnvVars       PhaseID = "1.1"
	PhaseCheckBuild         PhaseID = "1.2"
	PhaseCheckMigrationRisk PhaseID = "1.3"
	PhaseCheckSecurity      PhaseID = "1.4"
	PhaseBackup             PhaseID = "2.1"
	PhaseMigrate            PhaseID = "2.2"
	PhaseDeploy             PhaseID = "2.3"
	PhaseCheckHealth        PhaseID = "3.1"
	PhaseCheckFlows         PhaseID = "3.2"
	PhaseCheckLatency       PhaseID = "3.3"
	PhaseFinalize           PhaseID = "4"
)

// PhaseKind classifies how a phase is executed and how its failure is handled.
type PhaseKind string

const (
	// KindPreCheck phases evaluate a gate; failure is a hard stop.
	KindPreCheck PhaseKind = "pre-check"
	// KindExecution phases run a deployment action; errors halt the run.
	KindExecution PhaseKind = "execution"
	// KindPostCheck phases probe the deployed system; failure is a WARN.
	KindPostCheck PhaseKind = "post-check"
	// KindFinalize closes the run and renders the report.
	KindFinalize PhaseKind = "finalize"
)

// phaseSequence is the fixed total order of the deployment pipeline.
var phaseSequence = []PhaseID{
	PhaseCheckEnvVars,
	PhaseCheckBuild,
	PhaseCheckMigrationRisk,
	PhaseCheckSecurity,
	PhaseBackup,
	PhaseMigrate,
	PhaseDeploy,
	PhaseCheckHealth,
	PhaseCheckFlows,
	PhaseCheckLatency,
	PhaseFinalize,
}

// PhaseSequence returns the fixed total order of phases.
func PhaseSequence() []PhaseID {
	out := make([]PhaseID, len(phaseSequence))
	copy(out, phaseSequence)
	return out
}

// NextPhase returns the phase after p, or false when p is the final phase
// or unknown.
func NextPhase(p PhaseID) (PhaseID, bool) {
	for i, id := range phaseSequence {
		if id == p && i+1 < len(phaseSequence) {
			return phaseSequence[i+1], true
		}
	}
	return "", false
}

// PhaseIndex returns the position of p in the sequence, or -1 when unknown.
func PhaseIndex(p PhaseID) int {
	for i, id := range phaseSequence {
		if id == p {
			return i
		}
	}
	return -1
}

// Kind returns the phase classification.
func (p PhaseID) Kind() PhaseKind {
	switch p {
	case PhaseCheckEnvVars, PhaseCheckBuild, PhaseCheckMigrationRisk, PhaseCheckSecurity:
		return KindPreCheck
	case PhaseBackup, PhaseMigrate, PhaseDeploy:
		return KindExecution
	case PhaseCheckHealth, PhaseCheckFlows, PhaseCheckLatency:
		return KindPostCheck
	default:
		return KindFinalize
	}
}

// Valid reports whether p names a phase in the sequence.
func (p PhaseID) Valid() bool {
	return PhaseIndex(p) >= 0
}

// GateName returns the gate evaluated by a pre-check phase. It is empty for
// all other phase kinds.
func (p PhaseID) GateName() GateName {
	switch p {
	case PhaseCheckEnvVars:
		return GateEnvVars
	case PhaseCheckBuild:
		return GateBuild
	case PhaseCheckMigrationRisk:
		return GateMigrationRisk
	case PhaseCheckSecurity:
		return GateSecurityScan
	default:
		return ""
	}
}

// CheckName returns the post-check recorded by a post-check phase. It is
// empty for all other phase kinds.
func (p PhaseID) CheckName() CheckName {
	switch p {
	case PhaseCheckHealth:
		return CheckHealthEndpoint
	case PhaseCheckFlows:
		return CheckCriticalFlows
	case PhaseCheckLatency:
		return CheckResponseTime
	default:
		return ""
	}
}

// AtOrPastDeploymentActions reports whether p is at or beyond the first
// execution phase. Rollback from a failed run is meaningful only then;
// before that, nothing was deployed.
func (p PhaseID) AtOrPastDeploymentActions() bool {
	i := PhaseIndex(p)
	return i >= 0 && i >= PhaseIndex(PhaseBackup)
}
