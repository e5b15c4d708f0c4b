// Package toolexec adapts operator-configured shell commands to the
// deployment toolchain ports. Each tool runs one external command and
// interprets its exit code and output.
package toolexec

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/executor"

	"github.com/shiplock/shiplock/internal/domain"
)

// Command describes one external command invocation.
type Command struct {
	Program string
	Args    []string
	Dir     string
	Env     map[string]string
}

// IsZero reports whether no command is configured.
func (c Command) IsZero() bool { return c.Program == "" }

// run executes the command with combined output capture. A non-zero exit
// is reported through the result, not the error; the error is non-nil only
// when the process could not be spawned at all.
func (c Command) run(ctx context.Context, extraArgs ...string) (*executor.Result, error) {
	opts := []executor.Option{executor.WithCapture(false, false, true)}
	if c.Dir != "" {
		opts = append(opts, executor.WithWorkingDir(c.Dir))
	}
	if len(c.Env) > 0 {
		opts = append(opts, executor.WithEnv(c.Env))
	}

	args := append(append([]string{}, c.Args...), extraArgs...)
	res, err := executor.New(c.Program, args...).Execute(ctx, opts...)
	if res == nil || res.ExitCode < 0 {
		return nil, fmt.Errorf("spawn %s: %w", c.Program, err)
	}
	return res, nil
}

// runChecked is run plus an error on any non-zero exit.
func (c Command) runChecked(ctx context.Context, extraArgs ...string) (*executor.Result, error) {
	res, err := c.run(ctx, extraArgs...)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%s exited %d: %s", c.Program, res.ExitCode, strings.TrimSpace(res.Combined))
	}
	return res, nil
}

// ShellBuild implements [domain.BuildTool] over a build command. When
// ArtifactPath is set the produced artifact is measured after a clean exit.
type ShellBuild struct {
	Command      Command
	ArtifactPath string
}

func (b *ShellBuild) Build(ctx context.Context) (domain.BuildResult, error) {
	start := time.Now()
	res, err := b.Command.run(ctx)
	if err != nil {
		return domain.BuildResult{}, err
	}

	out := domain.BuildResult{
		ExitCode: res.ExitCode,
		Duration: time.Since(start),
		Output:   res.Combined,
	}
	if res.ExitCode == 0 && b.ArtifactPath != "" {
		info, err := os.Stat(b.ArtifactPath)
		if err != nil {
			return out, fmt.Errorf("stat build artifact: %w", err)
		}
		out.ArtifactSizeBytes = info.Size()
	}
	return out, nil
}

// ShellMigrations implements [domain.MigrationTool]. The pending command
// prints one migration per line as "id<TAB>statement"; the apply command
// prints the ID of each migration it applied, one per line.
type ShellMigrations struct {
	PendingCommand Command
	ApplyCommand   Command
}

func (m *ShellMigrations) Pending(ctx context.Context) ([]domain.Migration, error) {
	res, err := m.PendingCommand.runChecked(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending migrations: %w", err)
	}

	var pending []domain.Migration
	for _, line := range outputLines(res.Combined) {
		id, stmt, _ := strings.Cut(line, "\t")
		pending = append(pending, domain.Migration{
			ID:        domain.MigrationID(id),
			Statement: stmt,
		})
	}
	return pending, nil
}

func (m *ShellMigrations) Apply(ctx context.Context) ([]domain.MigrationID, error) {
	res, err := m.ApplyCommand.runChecked(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	var applied []domain.MigrationID
	for _, line := range outputLines(res.Combined) {
		applied = append(applied, domain.MigrationID(line))
	}
	return applied, nil
}

// ShellDeploy implements [domain.DeployTool]. The version command prints
// the currently deployed version; the deploy command deploys and prints the
// new version; the revert command receives the target version as its final
// argument.
type ShellDeploy struct {
	VersionCommand Command
	DeployCommand  Command
	RevertCommand  Command
}

func (d *ShellDeploy) CurrentVersion(ctx context.Context) (string, error) {
	res, err := d.VersionCommand.runChecked(ctx)
	if err != nil {
		return "", fmt.Errorf("read current version: %w", err)
	}
	return lastLine(res.Combined), nil
}

func (d *ShellDeploy) Deploy(ctx context.Context) (string, error) {
	res, err := d.DeployCommand.runChecked(ctx)
	if err != nil {
		return "", err
	}
	return lastLine(res.Combined), nil
}

func (d *ShellDeploy) RevertTo(ctx context.Context, version string) error {
	if _, err := d.RevertCommand.runChecked(ctx, version); err != nil {
		return fmt.Errorf("revert to %s: %w", version, err)
	}
	return nil
}

// ShellBackup implements [domain.BackupTool]. The snapshot command prints
// the backup location; the restore command receives the location as its
// final argument.
type ShellBackup struct {
	SnapshotCommand Command
	RestoreCommand  Command
}

func (b *ShellBackup) Snapshot(ctx context.Context) (string, error) {
	res, err := b.SnapshotCommand.runChecked(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	location := lastLine(res.Combined)
	if location == "" {
		return "", fmt.Errorf("snapshot command printed no backup location")
	}
	return location, nil
}

func (b *ShellBackup) Restore(ctx context.Context, location string) error {
	if _, err := b.RestoreCommand.runChecked(ctx, location); err != nil {
		return fmt.Errorf("restore %s: %w", location, err)
	}
	return nil
}

func outputLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func lastLine(s string) string {
	lines := outputLines(s)
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
