package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	wfsqlite "github.com/cschleiden/go-workflows/backend/sqlite"
	"github.com/cschleiden/go-workflows/client"
	"github.com/cschleiden/go-workflows/worker"
	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shiplock/shiplock/internal/application"
	"github.com/shiplock/shiplock/internal/config"
	"github.com/shiplock/shiplock/internal/domain"
	"github.com/shiplock/shiplock/internal/infrastructure/dbosworkflows"
	"github.com/shiplock/shiplock/internal/infrastructure/goworkflows"
	"github.com/shiplock/shiplock/internal/infrastructure/healthhttp"
	"github.com/shiplock/shiplock/internal/infrastructure/secscan"
	"github.com/shiplock/shiplock/internal/infrastructure/sqlite"
	"github.com/shiplock/shiplock/internal/infrastructure/statefile"
	"github.com/shiplock/shiplock/internal/infrastructure/syncworkflow"
	"github.com/shiplock/shiplock/internal/infrastructure/toolexec"
)

var (
	configPath string
	verbose    bool

	dryRun         bool
	resume         bool
	rollback       bool
	skipMigrations bool
	historyLimit   int
	resetForce     bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shiplock",
	Short: "Gated deployment pipeline for SaaS applications",
	Long: `shiplock runs deployments through a fixed pipeline of pre-deployment
gates, deployment actions, and post-deployment verification. Progress is
written to a state file after every phase, so an interrupted or failed run
can be resumed from exactly where it stopped, or rolled back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		_ = godotenv.Load()

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var deployCmd = &cobra.Command{
	Use:   "deploy [staging|production]",
	Short: "Run, resume, or roll back a deployment",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDeploy,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current or most recent run",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs, or the phase log of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the persisted run state",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "shiplock.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	deployCmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate all gates without deploying")
	deployCmd.Flags().BoolVar(&resume, "resume", false, "re-attempt the failed run from its failed phase")
	deployCmd.Flags().BoolVar(&rollback, "rollback", false, "revert the failed run")
	deployCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "skip the migration phase")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "discard a non-terminal or corrupt run state")

	rootCmd.AddCommand(deployCmd, statusCmd, historyCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps error categories to stable process exit codes so CI
// pipelines can branch on the outcome.
func exitCode(err error) int {
	var gateErr *domain.GateFailureError
	var actionErr *domain.ActionError
	var manual *domain.ManualRollbackRequiredError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &gateErr), errors.As(err, &actionErr), errors.As(err, &manual):
		return 1
	case errors.Is(err, domain.ErrAlreadyInProgress):
		return 2
	case errors.Is(err, domain.ErrNoFailedRun):
		return 3
	case errors.Is(err, domain.ErrNoPriorVersion):
		return 4
	default:
		return 5
	}
}

func runDeploy(cmd *cobra.Command, args []string) error {
	env := domain.EnvStaging
	if len(args) == 1 {
		var err error
		env, err = domain.ParseEnvironment(args[0])
		if err != nil {
			return err
		}
	}

	svc, cleanup, err := buildService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()

	switch {
	// Dry run is report-only: gate failures are printed, not returned, so
	// the process exits non-zero only when the evaluation itself breaks.
	case dryRun:
		report, err := svc.DryRun(ctx, env)
		if err != nil {
			return err
		}
		fmt.Print(application.RenderDryRun(report))
		return nil

	case rollback:
		logger.Info("rolling back failed run")
		state, err := svc.RollbackRun(ctx)
		if err != nil {
			return err
		}
		fmt.Print(application.RenderReport(state))
		return nil

	case resume:
		logger.Info("resuming failed run")
		final, err := svc.Resume(ctx)
		if final.RunID != "" {
			fmt.Print(application.RenderReport(final))
		}
		return err

	default:
		logger.Info("starting deployment",
			zap.String("environment", string(env)),
			zap.Bool("skip_migrations", skipMigrations),
		)
		final, err := svc.Start(ctx, application.StartDeployInput{
			Environment:    env,
			SkipMigrations: skipMigrations,
		})
		if final.RunID != "" {
			fmt.Print(application.RenderReport(final))
		}
		return err
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	svc, cleanup, err := buildService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	state, err := svc.Status(cmd.Context())
	if errors.Is(err, domain.ErrStateNotFound) {
		fmt.Println("no recorded run")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Print(application.RenderReport(state))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := buildService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if len(args) == 1 {
		events, err := svc.PhaseEvents(ctx, args[0])
		if err != nil {
			return err
		}
		for _, ev := range events {
			detail := ""
			if ev.Detail != "" {
				detail = "  " + ev.Detail
			}
			fmt.Printf("%s  phase %-4s %-12s%s\n",
				ev.At.Format(time.RFC3339), ev.Phase, ev.Status, detail)
		}
		return nil
	}

	runs, err := svc.ListHistory(ctx, historyLimit)
	if err != nil {
		return err
	}
	fmt.Print(application.RenderHistory(runs))
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	svc, cleanup, err := buildService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Reset(cmd.Context(), resetForce); err != nil {
		return err
	}
	fmt.Println("run state cleared")
	return nil
}

// buildService wires the deployment service from the configuration file.
// The returned cleanup stops the workflow engine and closes the history
// database.
func buildService(ctx context.Context) (*application.DeployService, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Build.IsZero() {
		return nil, nil, fmt.Errorf("config: build.command is required")
	}
	if cfg.Migrations.Pending.IsZero() || cfg.Migrations.Apply.IsZero() {
		return nil, nil, fmt.Errorf("config: migrations.pending and migrations.apply are required")
	}
	if cfg.Deploy.Version.IsZero() || cfg.Deploy.Deploy.IsZero() || cfg.Deploy.Revert.IsZero() {
		return nil, nil, fmt.Errorf("config: deploy.version, deploy.deploy and deploy.revert are required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.HistoryDB), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sqlite.Open(cfg.HistoryDB)
	if err != nil {
		return nil, nil, err
	}
	history := &sqlite.RunHistoryRepo{DB: db}
	store := statefile.New(cfg.StatePath)

	build := &toolexec.ShellBuild{
		Command:      command(cfg.Build.CommandConfig),
		ArtifactPath: cfg.Build.Artifact,
	}
	migrations := &toolexec.ShellMigrations{
		PendingCommand: command(cfg.Migrations.Pending),
		ApplyCommand:   command(cfg.Migrations.Apply),
	}
	deploy := &toolexec.ShellDeploy{
		VersionCommand: command(cfg.Deploy.Version),
		DeployCommand:  command(cfg.Deploy.Deploy),
		RevertCommand:  command(cfg.Deploy.Revert),
	}
	auditor := &secscan.Auditor{
		Paths:           cfg.Security.Paths,
		AuditReportPath: cfg.Security.AuditReport,
	}

	tools := domain.Toolchain{
		Build:      build,
		Migrations: migrations,
		Deploy:     deploy,
		Health:     &healthhttp.Checker{},
		Auditor:    auditor,
	}
	var backup *toolexec.ShellBackup
	if cfg.Backup != nil {
		backup = &toolexec.ShellBackup{
			SnapshotCommand: command(cfg.Backup.Snapshot),
			RestoreCommand:  command(cfg.Backup.Restore),
		}
		tools.Backup = backup
	}

	gates := domain.NewGateEvaluator(
		&domain.EnvVarsGate{Required: cfg.RequiredEnv},
		&domain.BuildGate{Tool: build},
		&domain.MigrationRiskGate{Tool: migrations, Approved: cfg.Approved()},
		&domain.SecurityScanGate{Auditor: auditor},
	)

	probes, err := cfg.HealthProbes()
	if err != nil {
		return nil, nil, err
	}

	runner := &domain.PhaseRunner{Gates: gates, Tools: tools, Probes: probes}
	wf := &domain.DeploymentWorkflow{Store: store, Runner: runner, History: history}

	wfRunner, engineCleanup, err := buildEngine(ctx, cfg, wf)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	rollbackMgr := &domain.RollbackManager{Deploy: deploy, Backup: tools.Backup}

	svc := &application.DeployService{
		Store:         store,
		History:       history,
		Gates:         gates,
		Rollback:      rollbackMgr,
		Orchestration: &application.OrchestrationService{Workflow: wfRunner},
	}
	cleanup := func() {
		engineCleanup()
		db.Close()
	}
	return svc, cleanup, nil
}

func buildEngine(ctx context.Context, cfg *config.Config, wf *domain.DeploymentWorkflow) (domain.DeploymentRunner, func(), error) {
	switch cfg.Engine {
	case config.EngineSync:
		engine := &syncworkflow.Engine{}
		runner, err := engine.DeploymentRunner(wf)
		return runner, func() {}, err

	case config.EngineGoWorkflows:
		b := wfsqlite.NewInMemoryBackend()
		w := worker.New(b, nil)
		engine := &goworkflows.Engine{Worker: w, Client: client.New(b)}
		runner, err := engine.DeploymentRunner(wf)
		if err != nil {
			return nil, nil, err
		}
		workerCtx, cancel := context.WithCancel(ctx)
		if err := w.Start(workerCtx); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("start workflow worker: %w", err)
		}
		cleanup := func() {
			cancel()
			_ = w.WaitForCompletion()
		}
		return runner, cleanup, nil

	case config.EngineDBOS:
		dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
			AppName:     "shiplock",
			DatabaseURL: cfg.Database.URL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create DBOS context: %w", err)
		}
		engine := &dbosworkflows.Engine{DBOSCtx: dbosCtx}
		runner, err := engine.DeploymentRunner(wf)
		if err != nil {
			return nil, nil, err
		}
		if err := dbos.Launch(dbosCtx); err != nil {
			return nil, nil, fmt.Errorf("launch DBOS: %w", err)
		}
		cleanup := func() { dbos.Shutdown(dbosCtx, 5*time.Second) }
		return runner, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func command(c config.CommandConfig) toolexec.Command {
	cmd := toolexec.Command{Dir: c.Dir, Env: c.Env}
	if len(c.Command) > 0 {
		cmd.Program = c.Command[0]
		cmd.Args = c.Command[1:]
	}
	return cmd
}
