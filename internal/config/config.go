package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// WorkflowConfig holds approval workflow defaults. Per-document overrides
// take precedence over all of these.
type WorkflowConfig struct {
	// DefaultEscalationTimeout is how long a reviewer may sit on a pending
	// document before escalation fires
	DefaultEscalationTimeout time.Duration `mapstructure:"default_escalation_timeout"`

	// MaxEscalationDepth caps how many times a document may escalate
	MaxEscalationDepth int `mapstructure:"max_escalation_depth"`

	// EscalationApprovers is the default next-level approver chain, indexed
	// by the escalation depth being entered
	EscalationApprovers []string `mapstructure:"escalation_approvers"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	// EscalationPollInterval is how often in-review documents are checked
	// for overdue reviewers
	EscalationPollInterval time.Duration `mapstructure:"escalation_poll_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/docflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Workflow defaults
	viper.SetDefault("workflow.default_escalation_timeout", 24*time.Hour)
	viper.SetDefault("workflow.max_escalation_depth", 3)
	viper.SetDefault("workflow.escalation_approvers", []string{})

	// Worker defaults
	viper.SetDefault("worker.escalation_poll_interval", time.Minute)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("database.path", "DOCFLOW_DATABASE_PATH")
	viper.BindEnv("server.port", "DOCFLOW_SERVER_PORT")
	viper.BindEnv("logger.level", "DOCFLOW_LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workflow.DefaultEscalationTimeout < 0 {
		return fmt.Errorf("workflow.default_escalation_timeout must not be negative")
	}
	if c.Workflow.MaxEscalationDepth < 0 {
		return fmt.Errorf("workflow.max_escalation_depth must not be negative")
	}
	if c.Worker.EscalationPollInterval <= 0 {
		return fmt.Errorf("worker.escalation_poll_interval must be positive")
	}
	return nil
}
