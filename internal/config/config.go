// Package config loads the shiplock.yaml configuration file that wires
// operator-provided commands and endpoints into the deployment pipeline.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shiplock/shiplock/internal/domain"
)

// Engine names accepted in the config.
const (
	EngineSync        = "sync"
	EngineGoWorkflows = "go-workflows"
	EngineDBOS        = "dbos"
)

// CommandConfig describes one external command.
type CommandConfig struct {
	Command []string          `yaml:"command"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// IsZero reports whether no command is configured.
func (c CommandConfig) IsZero() bool { return len(c.Command) == 0 }

type BuildConfig struct {
	CommandConfig `yaml:",inline"`
	Artifact      string `yaml:"artifact,omitempty"`
}

type MigrationsConfig struct {
	Pending CommandConfig `yaml:"pending"`
	Apply   CommandConfig `yaml:"apply"`
}

type DeployConfig struct {
	Version CommandConfig `yaml:"version"`
	Deploy  CommandConfig `yaml:"deploy"`
	Revert  CommandConfig `yaml:"revert"`
}

type BackupConfig struct {
	Snapshot CommandConfig `yaml:"snapshot"`
	Restore  CommandConfig `yaml:"restore"`
}

type ProbeConfig struct {
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	MaxLatency string `yaml:"max_latency,omitempty"`
}

// Latency parses the probe's latency budget. Zero means no budget.
func (p ProbeConfig) Latency() (time.Duration, error) {
	if p.MaxLatency == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.MaxLatency)
	if err != nil {
		return 0, fmt.Errorf("probe %s: parse max_latency: %w", p.Name, err)
	}
	return d, nil
}

type SecurityConfig struct {
	Paths       []string `yaml:"paths"`
	AuditReport string   `yaml:"audit_report,omitempty"`
}

// DatabaseConfig holds the connection for the durable workflow engines
// that need one.
type DatabaseConfig struct {
	// URL is the Postgres connection string for the dbos engine.
	URL string `yaml:"url,omitempty"`
}

type Config struct {
	StatePath string `yaml:"state_path"`
	HistoryDB string `yaml:"history_db"`
	Engine    string `yaml:"engine"`

	RequiredEnv        []string `yaml:"required_env"`
	ApprovedMigrations []string `yaml:"approved_migrations"`

	Build      BuildConfig      `yaml:"build"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Deploy     DeployConfig     `yaml:"deploy"`
	Backup     *BackupConfig    `yaml:"backup,omitempty"`
	Probes     []ProbeConfig    `yaml:"probes"`
	Security   SecurityConfig   `yaml:"security"`
	Database   DatabaseConfig   `yaml:"database"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		StatePath: ".shiplock/state.json",
		HistoryDB: ".shiplock/history.db",
		Engine:    EngineSync,
		Security:  SecurityConfig{Paths: []string{"."}},
	}
}

// Load reads the configuration from a YAML file, falling back to defaults
// when the file does not exist. Environment variables override the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHIPLOCK_STATE_PATH"); v != "" {
		c.StatePath = v
	}
	if v := os.Getenv("SHIPLOCK_HISTORY_DB"); v != "" {
		c.HistoryDB = v
	}
	if v := os.Getenv("SHIPLOCK_ENGINE"); v != "" {
		c.Engine = v
	}
	if v := os.Getenv("SHIPLOCK_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
}

func (c *Config) validate() error {
	switch c.Engine {
	case EngineSync, EngineGoWorkflows, EngineDBOS:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.Engine == EngineDBOS && c.Database.URL == "" {
		return fmt.Errorf("engine %s requires database.url", EngineDBOS)
	}
	for _, p := range c.Probes {
		switch domain.CheckName(p.Name) {
		case domain.CheckHealthEndpoint, domain.CheckCriticalFlows, domain.CheckResponseTime:
		default:
			return fmt.Errorf("unknown probe name %q", p.Name)
		}
		if _, err := p.Latency(); err != nil {
			return err
		}
	}
	return nil
}

// Approved returns the approved migration IDs as the lookup map the
// migration risk gate expects.
func (c *Config) Approved() map[domain.MigrationID]bool {
	if len(c.ApprovedMigrations) == 0 {
		return nil
	}
	approved := make(map[domain.MigrationID]bool, len(c.ApprovedMigrations))
	for _, id := range c.ApprovedMigrations {
		approved[domain.MigrationID(id)] = true
	}
	return approved
}

// HealthProbes converts the configured probes to domain probes.
func (c *Config) HealthProbes() ([]domain.HealthProbe, error) {
	var probes []domain.HealthProbe
	for _, p := range c.Probes {
		latency, err := p.Latency()
		if err != nil {
			return nil, err
		}
		probes = append(probes, domain.HealthProbe{
			Name:       domain.CheckName(p.Name),
			URL:        p.URL,
			MaxLatency: latency,
		})
	}
	return probes, nil
}
