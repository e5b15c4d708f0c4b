package goworkflows_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cschleiden/go-workflows/backend"
	wfsqlite "github.com/cschleiden/go-workflows/backend/sqlite"
	"github.com/cschleiden/go-workflows/client"
	"github.com/cschleiden/go-workflows/worker"

	"github.com/shiplock/shiplock/internal/application"
	"github.com/shiplock/shiplock/internal/domain"
	"github.com/shiplock/shiplock/internal/infrastructure/goworkflows"
	"github.com/shiplock/shiplock/internal/infrastructure/healthhttp"
	"github.com/shiplock/shiplock/internal/infrastructure/secscan"
	"github.com/shiplock/shiplock/internal/infrastructure/sqlite"
	"github.com/shiplock/shiplock/internal/infrastructure/statefile"
	"github.com/shiplock/shiplock/internal/infrastructure/toolexec"
)

func startWorker(t *testing.T, b backend.Backend) *worker.Worker {
	t.Helper()
	w := worker.New(b, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.WaitForCompletion()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	return w
}

func shell(script string) toolexec.Command {
	return toolexec.Command{Program: "sh", Args: []string{"-c", script}}
}

func TestDeployment_GoWorkflows(t *testing.T) {
	b := wfsqlite.NewInMemoryBackend()
	w := startWorker(t, b)
	c := client.New(b)

	dir := t.TempDir()
	store := statefile.New(filepath.Join(dir, "state.json"))
	history := &sqlite.RunHistoryRepo{DB: sqlite.OpenTestDB(t)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	artifact := filepath.Join(dir, "app.tar.gz")
	if err := os.WriteFile(artifact, []byte("artifact"), 0o644); err != nil {
		t.Fatal(err)
	}
	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	build := &toolexec.ShellBuild{Command: shell("echo compiling"), ArtifactPath: artifact}
	migrations := &toolexec.ShellMigrations{
		PendingCommand: shell(`printf '20260824_add_invoices\tCREATE TABLE invoices (id int)\n'`),
		ApplyCommand:   shell("echo 20260824_add_invoices"),
	}
	deploy := &toolexec.ShellDeploy{
		VersionCommand: shell("echo v41"),
		DeployCommand:  shell("echo v42"),
		RevertCommand:  shell("true"),
	}
	backup := &toolexec.ShellBackup{
		SnapshotCommand: shell("echo s3://backups/go-workflows-test"),
		RestoreCommand:  shell("true"),
	}
	auditor := &secscan.Auditor{Paths: []string{srcDir}}

	env := map[string]string{"STRIPE_SECRET_KEY": "sk_test_x", "DATABASE_URL": "postgres://x"}
	gates := domain.NewGateEvaluator(
		&domain.EnvVarsGate{
			Required: []string{"STRIPE_SECRET_KEY", "DATABASE_URL"},
			Lookup: func(key string) (string, bool) {
				v, ok := env[key]
				return v, ok
			},
		},
		&domain.BuildGate{Tool: build},
		&domain.MigrationRiskGate{Tool: migrations},
		&domain.SecurityScanGate{Auditor: auditor},
	)

	runner := &domain.PhaseRunner{
		Gates: gates,
		Tools: domain.Toolchain{
			Build:      build,
			Migrations: migrations,
			Deploy:     deploy,
			Backup:     backup,
			Health:     &healthhttp.Checker{},
			Auditor:    auditor,
		},
		Probes: []domain.HealthProbe{
			{Name: domain.CheckHealthEndpoint, URL: srv.URL + "/healthz"},
			{Name: domain.CheckCriticalFlows, URL: srv.URL + "/smoke"},
			{Name: domain.CheckResponseTime, URL: srv.URL + "/", MaxLatency: 5 * time.Second},
		},
	}

	wf := &domain.DeploymentWorkflow{Store: store, Runner: runner, History: history}

	engine := &goworkflows.Engine{Worker: w, Client: c, Timeout: 30 * time.Second}
	wfRunner, err := engine.DeploymentRunner(wf)
	if err != nil {
		t.Fatalf("DeploymentRunner: %v", err)
	}

	svc := &application.DeployService{
		Store:         store,
		History:       history,
		Gates:         gates,
		Orchestration: &application.OrchestrationService{Workflow: wfRunner},
	}

	ctx := context.Background()
	final, err := svc.Start(ctx, application.StartDeployInput{Environment: domain.EnvProduction})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if final.Status != domain.StatusSucceeded {
		t.Fatalf("Status = %q, want succeeded (reason: %s)", final.Status, final.FailureReason)
	}
	if final.DeploymentRecord.BackupLocation != "s3://backups/go-workflows-test" {
		t.Errorf("BackupLocation = %q", final.DeploymentRecord.BackupLocation)
	}
	if len(final.DeploymentRecord.AppliedMigrations) != 1 {
		t.Errorf("AppliedMigrations = %v", final.DeploymentRecord.AppliedMigrations)
	}
	if final.DeploymentRecord.NewVersion != "v42" {
		t.Errorf("NewVersion = %q", final.DeploymentRecord.NewVersion)
	}
	for name, res := range final.PostCheckResults {
		if res.Status != domain.CheckPass {
			t.Errorf("post-check %s = %+v", name, res)
		}
	}

	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.Status != domain.StatusSucceeded {
		t.Errorf("persisted Status = %q", persisted.Status)
	}

	events, err := history.ListPhaseEvents(ctx, final.RunID)
	if err != nil {
		t.Fatalf("ListPhaseEvents: %v", err)
	}
	if len(events) != len(domain.PhaseSequence()) {
		t.Errorf("phase events = %d, want one per phase", len(events))
	}
}
