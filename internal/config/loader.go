package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "createsuite.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CREATESUITE_PORT")
	setString(&cfg.Server.CORSOrigin, "CREATESUITE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CREATESUITE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CREATESUITE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CREATESUITE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CREATESUITE_PG_MAX_CONN_IDLE_TIME")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "CREATESUITE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "CREATESUITE_CACHE_TTL")
	setString(&cfg.Git.WorkspaceDir, "CREATESUITE_WORKSPACE_DIR")
	setString(&cfg.Git.BranchPrefix, "CREATESUITE_BRANCH_PREFIX")
	setString(&cfg.Git.BotName, "CREATESUITE_BOT_NAME")
	setString(&cfg.Git.BotEmail, "CREATESUITE_BOT_EMAIL")
	setInt(&cfg.Git.MaxConcurrent, "CREATESUITE_GIT_MAX_CONCURRENT")
	setString(&cfg.Worker.Command, "CREATESUITE_WORKER_COMMAND")
	setInt(&cfg.Pipeline.MaxAgents, "CREATESUITE_MAX_AGENTS")
	setDuration(&cfg.Pipeline.PollInterval, "CREATESUITE_POLL_INTERVAL")
	setDuration(&cfg.Pipeline.WaitCeiling, "CREATESUITE_WAIT_CEILING")
	setString(&cfg.Pipeline.DocsDir, "CREATESUITE_DOCS_DIR")
	setString(&cfg.Runner.URL, "CREATESUITE_RUNNER_URL")
	setString(&cfg.Runner.DeployToken, "CREATESUITE_DEPLOY_TOKEN")
	setString(&cfg.Runner.AppName, "CREATESUITE_RUNNER_APP")
	setString(&cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Logging.Level, "CREATESUITE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CREATESUITE_LOG_SERVICE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Git.BranchPrefix == "" {
		return errors.New("git.branch_prefix is required")
	}
	if cfg.Pipeline.MaxAgents < 1 {
		return errors.New("pipeline.max_agents must be >= 1")
	}
	if cfg.Pipeline.PollInterval <= 0 {
		return errors.New("pipeline.poll_interval must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
