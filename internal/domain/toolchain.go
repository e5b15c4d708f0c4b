package domain

import (
	"context"
	"time"
)

// The deployment pipeline treats every external tool as an opaque capability
// returning a typed result. Implementations live in infrastructure packages;
// tests substitute stubs.

// BuildResult is the outcome of one build invocation. A non-zero exit code
// is a gate failure, not an error; errors mean the tool could not run.
type BuildResult struct {
	ExitCode          int           `json:"exit_code"`
	Duration          time.Duration `json:"duration"`
	ArtifactSizeBytes int64         `json:"artifact_size_bytes"`
	Output            string        `json:"output,omitempty"`
}

// BuildTool runs the project build.
type BuildTool interface {
	Build(ctx context.Context) (BuildResult, error)
}

// MigrationTool lists and applies schema migrations.
type MigrationTool interface {
	// Pending returns the migrations that would be applied, in order.
	Pending(ctx context.Context) ([]Migration, error)
	// Apply applies all pending migrations and returns the identifiers of
	// the migrations actually applied, in order.
	Apply(ctx context.Context) ([]MigrationID, error)
}

// DeployTool releases the application and reverts it during rollback.
// Version pointers are opaque strings (a tag, a release URL).
type DeployTool interface {
	CurrentVersion(ctx context.Context) (string, error)
	Deploy(ctx context.Context) (string, error)
	RevertTo(ctx context.Context, version string) error
}

// BackupTool snapshots and restores the database. Restore is destructive:
// it overwrites current database state with the snapshot.
type BackupTool interface {
	Snapshot(ctx context.Context) (string, error)
	Restore(ctx context.Context, location string) error
}

// HealthProbe configures one post-deployment check. MaxLatency of zero
// means no latency bound.
type HealthProbe struct {
	Name       CheckName
	URL        string
	MaxLatency time.Duration
}

// HealthResult is the outcome of probing a deployed endpoint.
type HealthResult struct {
	Healthy      bool
	StatusCode   int
	ResponseTime time.Duration
	Detail       string
}

// HealthChecker probes a deployed endpoint.
type HealthChecker interface {
	Check(ctx context.Context, probe HealthProbe) (HealthResult, error)
}

// SecretMatch is one secret-pattern hit in a scanned file.
type SecretMatch struct {
	File    string
	Line    int
	Pattern string
}

// AuditReport aggregates the security scan inputs: secret-pattern matches
// in the working tree and dependency findings at critical severity.
type AuditReport struct {
	SecretMatches    []SecretMatch
	CriticalFindings []string
}

// SecurityAuditor produces the audit report consumed by the security gate.
type SecurityAuditor interface {
	Audit(ctx context.Context) (AuditReport, error)
}

// Toolchain bundles the external collaborators the pipeline needs. Backup
// may be nil when no backup tool is configured; every other field is
// required for a full run.
type Toolchain struct {
	Build      BuildTool
	Migrations MigrationTool
	Deploy     DeployTool
	Backup     BackupTool
	Health     HealthChecker
	Auditor    SecurityAuditor
}
