package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"pontovault/internal/backup"
	"pontovault/internal/database"
)

// AppConfig is the complete application configuration loaded from the
// config file, environment variables, and CLI flags.
type AppConfig struct {
	Database     database.DatabaseConfig `mapstructure:"database" yaml:"database"`
	Storage      backup.StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Backup       BackupConfig            `mapstructure:"backup" yaml:"backup"`
	Recovery     RecoveryConfig          `mapstructure:"recovery" yaml:"recovery"`
	Orchestrator OrchestratorConfig      `mapstructure:"orchestrator" yaml:"orchestrator"`
	Logging      LoggingConfig           `mapstructure:"logging" yaml:"logging"`
}

// BackupConfig holds backup engine policy settings
type BackupConfig struct {
	MaxAge           time.Duration `mapstructure:"max_age" yaml:"max_age"`
	MaxSize          int64         `mapstructure:"max_size" yaml:"max_size"`
	DefaultTimeout   time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	Compression      string        `mapstructure:"compression" yaml:"compression"`
	CompressionLevel int           `mapstructure:"compression_level" yaml:"compression_level"`
	IncludeBiometric bool          `mapstructure:"include_biometric" yaml:"include_biometric"`
}

// RecoveryConfig holds recovery validation settings
type RecoveryConfig struct {
	ReportDir     string `mapstructure:"report_dir" yaml:"report_dir"`
	RetainSandbox bool   `mapstructure:"retain_sandbox" yaml:"retain_sandbox"`
}

// OrchestratorConfig holds disaster recovery orchestrator settings
type OrchestratorConfig struct {
	BaseInterval     time.Duration `mapstructure:"base_interval" yaml:"base_interval"`
	DegradedInterval time.Duration `mapstructure:"degraded_interval" yaml:"degraded_interval"`
	CriticalInterval time.Duration `mapstructure:"critical_interval" yaml:"critical_interval"`
	GraceDelay       time.Duration `mapstructure:"grace_delay" yaml:"grace_delay"`
	BackupRecency    time.Duration `mapstructure:"backup_recency" yaml:"backup_recency"`
	QueryLatencyMax  time.Duration `mapstructure:"query_latency_max" yaml:"query_latency_max"`
	StorageCapacity  int64         `mapstructure:"storage_capacity" yaml:"storage_capacity"`
	PlanCatalogPath  string        `mapstructure:"plan_catalog" yaml:"plan_catalog"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Format  string `mapstructure:"format" yaml:"format"`
	LogFile string `mapstructure:"log_file" yaml:"log_file"`
}

// SetDefaults applies default values to unset fields
func (ac *AppConfig) SetDefaults() {
	ac.Database.SetDefaults()

	if ac.Backup.MaxAge == 0 {
		ac.Backup.MaxAge = backup.MaxBackupAge
	}
	if ac.Backup.MaxSize == 0 {
		ac.Backup.MaxSize = backup.MaxBackupSize
	}
	if ac.Backup.DefaultTimeout == 0 {
		ac.Backup.DefaultTimeout = 10 * time.Minute
	}
	if ac.Backup.Compression == "" {
		ac.Backup.Compression = string(backup.CompressionTypeGzip)
	}
	if ac.Backup.CompressionLevel == 0 {
		ac.Backup.CompressionLevel = backup.DefaultCompressionLevel
	}

	if ac.Recovery.ReportDir == "" {
		ac.Recovery.ReportDir = "./reports"
	}

	if ac.Orchestrator.BaseInterval == 0 {
		ac.Orchestrator.BaseInterval = 60 * time.Second
	}
	if ac.Orchestrator.DegradedInterval == 0 {
		ac.Orchestrator.DegradedInterval = 30 * time.Second
	}
	if ac.Orchestrator.CriticalInterval == 0 {
		ac.Orchestrator.CriticalInterval = 15 * time.Second
	}
	if ac.Orchestrator.GraceDelay == 0 {
		ac.Orchestrator.GraceDelay = 5 * time.Minute
	}
	if ac.Orchestrator.BackupRecency == 0 {
		ac.Orchestrator.BackupRecency = 24 * time.Hour
	}
	if ac.Orchestrator.QueryLatencyMax == 0 {
		ac.Orchestrator.QueryLatencyMax = 2 * time.Second
	}
	if ac.Orchestrator.StorageCapacity == 0 {
		ac.Orchestrator.StorageCapacity = 10 * 1024 * 1024 * 1024
	}

	if ac.Logging.Level == "" {
		ac.Logging.Level = "normal"
	}
	if ac.Logging.Format == "" {
		ac.Logging.Format = "text"
	}

	if ac.Storage.Provider == "" {
		ac.Storage.Provider = backup.StorageProviderLocal
	}
	if ac.Storage.Provider == backup.StorageProviderLocal && ac.Storage.Local == nil {
		ac.Storage.Local = &backup.LocalConfig{BasePath: "./backups"}
	}
}

// Validate checks the configuration for errors
func (ac *AppConfig) Validate() error {
	if err := ac.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := ac.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if ac.Backup.DefaultTimeout <= 0 {
		return fmt.Errorf("backup: default_timeout must be greater than 0")
	}

	switch backup.CompressionType(ac.Backup.Compression) {
	case backup.CompressionTypeNone, backup.CompressionTypeGzip, backup.CompressionTypeLZ4, backup.CompressionTypeZstd:
	default:
		return fmt.Errorf("backup: unknown compression algorithm %q", ac.Backup.Compression)
	}

	if ac.Orchestrator.BaseInterval <= 0 || ac.Orchestrator.DegradedInterval <= 0 || ac.Orchestrator.CriticalInterval <= 0 {
		return fmt.Errorf("orchestrator: poll intervals must be greater than 0")
	}
	if ac.Orchestrator.GraceDelay <= 0 {
		return fmt.Errorf("orchestrator: grace_delay must be greater than 0")
	}

	return nil
}

// Load builds the application configuration from a viper instance that
// already has its config file and environment bindings resolved.
func Load(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
