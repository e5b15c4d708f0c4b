package domain_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shiplock/shiplock/internal/domain"
)

var fixedTime = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

// stubBuild counts invocations so tests can assert that halted runs never
// reach later tools.
type stubBuild struct {
	res   domain.BuildResult
	err   error
	calls int
}

func (b *stubBuild) Build(_ context.Context) (domain.BuildResult, error) {
	b.calls++
	return b.res, b.err
}

type stubMigrations struct {
	pending    []domain.Migration
	applied    []domain.MigrationID
	pendingErr error
	applyErr   error
	applyCalls int
}

func (m *stubMigrations) Pending(_ context.Context) ([]domain.Migration, error) {
	return m.pending, m.pendingErr
}

func (m *stubMigrations) Apply(_ context.Context) ([]domain.MigrationID, error) {
	m.applyCalls++
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	return m.applied, nil
}

type stubDeploy struct {
	current     string
	next        string
	currentErr  error
	deployErr   error
	deployCalls int
	reverted    []string
	// revertErrs is consumed front to back; nil entries mean success.
	revertErrs []error
}

func (d *stubDeploy) CurrentVersion(_ context.Context) (string, error) {
	return d.current, d.currentErr
}

func (d *stubDeploy) Deploy(_ context.Context) (string, error) {
	d.deployCalls++
	if d.deployErr != nil {
		return "", d.deployErr
	}
	return d.next, nil
}

func (d *stubDeploy) RevertTo(_ context.Context, version string) error {
	if len(d.revertErrs) > 0 {
		err := d.revertErrs[0]
		d.revertErrs = d.revertErrs[1:]
		if err != nil {
			return err
		}
	}
	d.reverted = append(d.reverted, version)
	return nil
}

type stubBackup struct {
	location    string
	snapErr     error
	snapCalls   int
	restored    []string
	restoreErrs []error
}

func (b *stubBackup) Snapshot(_ context.Context) (string, error) {
	b.snapCalls++
	if b.snapErr != nil {
		return "", b.snapErr
	}
	return b.location, nil
}

func (b *stubBackup) Restore(_ context.Context, location string) error {
	if len(b.restoreErrs) > 0 {
		err := b.restoreErrs[0]
		b.restoreErrs = b.restoreErrs[1:]
		if err != nil {
			return err
		}
	}
	b.restored = append(b.restored, location)
	return nil
}

type stubHealth struct {
	results map[domain.CheckName]domain.HealthResult
	errs    map[domain.CheckName]error
	probed  []domain.CheckName
}

func (h *stubHealth) Check(_ context.Context, probe domain.HealthProbe) (domain.HealthResult, error) {
	h.probed = append(h.probed, probe.Name)
	if err := h.errs[probe.Name]; err != nil {
		return domain.HealthResult{}, err
	}
	if res, ok := h.results[probe.Name]; ok {
		return res, nil
	}
	return domain.HealthResult{Healthy: true, StatusCode: 200, ResponseTime: 20 * time.Millisecond}, nil
}

type stubAuditor struct {
	report domain.AuditReport
	err    error
}

func (a *stubAuditor) Audit(_ context.Context) (domain.AuditReport, error) {
	return a.report, a.err
}

// harness bundles the spy tools and the gate set wired over them.
type harness struct {
	build      *stubBuild
	migrations *stubMigrations
	deploy     *stubDeploy
	backup     *stubBackup
	health     *stubHealth
	auditor    *stubAuditor
	env        map[string]string
	approved   map[domain.MigrationID]bool
}

func passingHarness() *harness {
	return &harness{
		build:      &stubBuild{res: domain.BuildResult{ExitCode: 0, Duration: time.Second, ArtifactSizeBytes: 1024}},
		migrations: &stubMigrations{},
		deploy:     &stubDeploy{current: "v41", next: "v42"},
		backup:     &stubBackup{location: "s3://backups/2026-08-24"},
		health:     &stubHealth{},
		auditor:    &stubAuditor{},
		env:        map[string]string{"STRIPE_SECRET_KEY": "sk_test_x", "DATABASE_URL": "postgres://x"},
		approved:   map[domain.MigrationID]bool{},
	}
}

func (h *harness) lookup(key string) (string, bool) {
	v, ok := h.env[key]
	return v, ok
}

func (h *harness) toolchain() domain.Toolchain {
	tc := domain.Toolchain{
		Build:      h.build,
		Migrations: h.migrations,
		Deploy:     h.deploy,
		Health:     h.health,
		Auditor:    h.auditor,
	}
	if h.backup != nil {
		tc.Backup = h.backup
	}
	return tc
}

func (h *harness) gates() *domain.GateEvaluator {
	return domain.NewGateEvaluator(
		&domain.EnvVarsGate{Required: []string{"STRIPE_SECRET_KEY", "DATABASE_URL"}, Lookup: h.lookup},
		&domain.BuildGate{Tool: h.build},
		&domain.MigrationRiskGate{Tool: h.migrations, Approved: h.approved},
		&domain.SecurityScanGate{Auditor: h.auditor},
	)
}

func (h *harness) runner() *domain.PhaseRunner {
	return &domain.PhaseRunner{
		Gates: h.gates(),
		Tools: h.toolchain(),
		Probes: []domain.HealthProbe{
			{Name: domain.CheckHealthEndpoint, URL: "http://localhost/healthz"},
			{Name: domain.CheckCriticalFlows, URL: "http://localhost/smoke"},
			{Name: domain.CheckResponseTime, URL: "http://localhost/", MaxLatency: 500 * time.Millisecond},
		},
		Now: fixedNow,
	}
}

// memStore is an in-memory StateStore for workflow tests.
type memStore struct {
	state *domain.RunState
	saves int
}

func (s *memStore) Load(_ context.Context) (domain.RunState, error) {
	if s.state == nil {
		return domain.RunState{}, domain.ErrStateNotFound
	}
	return *s.state, nil
}

func (s *memStore) Save(_ context.Context, state domain.RunState) error {
	s.saves++
	cp := state
	s.state = &cp
	return nil
}

func (s *memStore) Reset(_ context.Context) error {
	s.state = nil
	return nil
}

func errIs(err, target error) bool { return errors.Is(err, target) }

func freshState(env domain.Environment) domain.RunState {
	return domain.NewRunState("run-1", env, false, fixedTime)
}

var errBoom = fmt.Errorf("boom")
