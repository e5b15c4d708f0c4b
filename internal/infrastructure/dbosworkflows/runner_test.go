package dbosworkflows_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shiplock/shiplock/internal/application"
	"github.com/shiplock/shiplock/internal/domain"
	"github.com/shiplock/shiplock/internal/infrastructure/dbosworkflows"
	"github.com/shiplock/shiplock/internal/infrastructure/healthhttp"
	"github.com/shiplock/shiplock/internal/infrastructure/sqlite"
	"github.com/shiplock/shiplock/internal/infrastructure/statefile"
	"github.com/shiplock/shiplock/internal/infrastructure/toolexec"
)

func startPostgres(t *testing.T) string {
	t.Helper()

	// Ryuk (the reaper) requires a Docker bridge network that does not
	// exist on Podman. We handle cleanup via t.Cleanup instead.
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dbos_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get postgres connection string: %v", err)
	}
	return connStr
}

func shell(script string) toolexec.Command {
	return toolexec.Command{Program: "sh", Args: []string{"-c", script}}
}

func TestDeployment_DBOS(t *testing.T) {
	connStr := startPostgres(t)

	ctx := context.Background()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		AppName:     "shiplock-dbos-test",
		DatabaseURL: connStr,
	})
	if err != nil {
		t.Fatalf("NewDBOSContext: %v", err)
	}

	dir := t.TempDir()
	store := statefile.New(filepath.Join(dir, "state.json"))
	history := &sqlite.RunHistoryRepo{DB: sqlite.OpenTestDB(t)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	build := &toolexec.ShellBuild{Command: shell("echo compiling")}
	migrations := &toolexec.ShellMigrations{
		PendingCommand: shell("true"),
		ApplyCommand:   shell("true"),
	}
	deploy := &toolexec.ShellDeploy{
		VersionCommand: shell("echo v41"),
		DeployCommand:  shell("echo v42"),
		RevertCommand:  shell("true"),
	}
	backup := &toolexec.ShellBackup{
		SnapshotCommand: shell("echo s3://backups/dbos-test"),
		RestoreCommand:  shell("true"),
	}

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
		&domain.SecurityScanGate{Auditor: cleanAuditor{}},
	)

	runner := &domain.PhaseRunner{
		Gates: gates,
		Tools: domain.Toolchain{
			Build:      build,
			Migrations: migrations,
			Deploy:     deploy,
			Backup:     backup,
			Health:     &healthhttp.Checker{},
			Auditor:    cleanAuditor{},
		},
		Probes: []domain.HealthProbe{
			{Name: domain.CheckHealthEndpoint, URL: srv.URL + "/healthz"},
			{Name: domain.CheckResponseTime, URL: srv.URL + "/", MaxLatency: 5 * time.Second},
		},
	}

	wf := &domain.DeploymentWorkflow{Store: store, Runner: runner, History: history}

	engine := &dbosworkflows.Engine{DBOSCtx: dbosCtx}
	wfRunner, err := engine.DeploymentRunner(wf)
	if err != nil {
		t.Fatalf("DeploymentRunner: %v", err)
	}

	if err := dbos.Launch(dbosCtx); err != nil {
		t.Fatalf("dbos.Launch: %v", err)
	}
	t.Cleanup(func() { dbos.Shutdown(dbosCtx, 5*time.Second) })

	svc := &application.DeployService{
		Store:         store,
		History:       history,
		Gates:         gates,
		Orchestration: &application.OrchestrationService{Workflow: wfRunner},
	}

	final, err := svc.Start(ctx, application.StartDeployInput{Environment: domain.EnvProduction})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if final.Status != domain.StatusSucceeded {
		t.Fatalf("Status = %q, want succeeded (reason: %s)", final.Status, final.FailureReason)
	}
	if final.DeploymentRecord.BackupLocation != "s3://backups/dbos-test" {
		t.Errorf("BackupLocation = %q", final.DeploymentRecord.BackupLocation)
	}

	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.Status != domain.StatusSucceeded {
		t.Errorf("persisted Status = %q", persisted.Status)
	}
}

type cleanAuditor struct{}

func (cleanAuditor) Audit(_ context.Context) (domain.AuditReport, error) {
	return domain.AuditReport{}, nil
}
