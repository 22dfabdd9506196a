package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pontovault/internal/backup"
)

func validConfig() AppConfig {
	cfg := AppConfig{}
	cfg.Database.Host = "localhost"
	cfg.Database.Username = "backup_user"
	cfg.Database.Database = "ponto_digital"
	cfg.SetDefaults()
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, backup.MaxBackupAge, cfg.Backup.MaxAge)
	assert.Equal(t, string(backup.CompressionTypeGzip), cfg.Backup.Compression)
	assert.Equal(t, backup.DefaultCompressionLevel, cfg.Backup.CompressionLevel)
	assert.Equal(t, "./reports", cfg.Recovery.ReportDir)
	assert.Equal(t, 60*time.Second, cfg.Orchestrator.BaseInterval)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.DegradedInterval)
	assert.Equal(t, 15*time.Second, cfg.Orchestrator.CriticalInterval)
	assert.Equal(t, 5*time.Minute, cfg.Orchestrator.GraceDelay)
	assert.Equal(t, 24*time.Hour, cfg.Orchestrator.BackupRecency)
	assert.Equal(t, "normal", cfg.Logging.Level)

	require.Equal(t, backup.StorageProviderLocal, cfg.Storage.Provider)
	require.NotNil(t, cfg.Storage.Local)
	assert.Equal(t, "./backups", cfg.Storage.Local.BasePath)
}

func TestValidate(t *testing.T) {
	base := validConfig()
	assert.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"missing database host", func(c *AppConfig) { c.Database.Host = "" }},
		{"unknown compression", func(c *AppConfig) { c.Backup.Compression = "bzip2" }},
		{"zero timeout", func(c *AppConfig) { c.Backup.DefaultTimeout = -1 }},
		{"zero poll interval", func(c *AppConfig) { c.Orchestrator.BaseInterval = -1 }},
		{"zero grace delay", func(c *AppConfig) { c.Orchestrator.GraceDelay = -1 }},
		{"unknown storage provider", func(c *AppConfig) { c.Storage.Provider = "FTP" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pontovault.yaml")
	content := `database:
  host: db.internal
  port: 3307
  username: backup_user
  password: secret
  database: ponto_digital
backup:
  compression: zstd
  compression_level: 3
orchestrator:
  grace_delay: 2m
logging:
  level: verbose
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "zstd", cfg.Backup.Compression)
	assert.Equal(t, 3, cfg.Backup.CompressionLevel)
	assert.Equal(t, 2*time.Minute, cfg.Orchestrator.GraceDelay)
	assert.Equal(t, "verbose", cfg.Logging.Level)

	// unset fields still get defaults
	assert.Equal(t, 60*time.Second, cfg.Orchestrator.BaseInterval)
	assert.Equal(t, backup.StorageProviderLocal, cfg.Storage.Provider)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pontovault.yaml")
	content := `database:
  host: localhost
  username: backup_user
  database: ponto_digital
backup:
  compression: rar
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	_, err := Load(v)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "compression")
}
