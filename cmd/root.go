package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"pontovault/internal/audit"
	"pontovault/internal/backup"
	"pontovault/internal/config"
	"pontovault/internal/database"
	"pontovault/internal/display"
	"pontovault/internal/logging"
)

var cfgFile string

// CLI flag variables
var (
	// Database connection flags
	dbHost     string
	dbPort     int
	dbUsername string
	dbPassword string
	dbDatabase string

	// Operation flags
	verbose bool
	quiet   bool
	logFile string

	// Display flags
	noColor      bool
	theme        string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pontovault",
	Short: "Encrypted backup, recovery validation, and disaster recovery for time-tracking databases",
	Long: `PontoVault protects a time-tracking MySQL database against data loss
and outage. It creates encrypted, compressed, sanitized backups, proves
they are restorable by rehearsing a full restore into an isolated sandbox
schema, and runs a disaster recovery orchestrator that monitors system
health and recovers automatically when the system fails.

Examples:
  # Create an encrypted backup of the default tables
  pontovault backup create

  # Validate that an archive decrypts and its payload is intact
  pontovault backup validate backup-20260830-120000-a1b2c3d4

  # Rehearse a full restore in an isolated sandbox schema
  pontovault recovery validate backup-20260830-120000-a1b2c3d4

  # Restore the latest backup into production
  pontovault backup restore backup-20260830-120000-a1b2c3d4 --confirm

  # Run the disaster recovery monitor
  pontovault dr monitor --config=config.yaml`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pontovault.yaml)")

	// Database connection flags
	rootCmd.PersistentFlags().StringVar(&dbHost, "db-host", "", "database host")
	rootCmd.PersistentFlags().IntVar(&dbPort, "db-port", 3306, "database port")
	rootCmd.PersistentFlags().StringVar(&dbUsername, "db-user", "", "database username")
	rootCmd.PersistentFlags().StringVar(&dbPassword, "db-password", "", "database password")
	rootCmd.PersistentFlags().StringVar(&dbDatabase, "db-name", "", "database name")

	// Operation flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file instead of stdout")

	// Display flags
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "dark", "color theme (dark, light, plain)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "output format (table, json)")

	// Bind flags to viper
	viper.BindPFlag("database.host", rootCmd.PersistentFlags().Lookup("db-host"))
	viper.BindPFlag("database.port", rootCmd.PersistentFlags().Lookup("db-port"))
	viper.BindPFlag("database.username", rootCmd.PersistentFlags().Lookup("db-user"))
	viper.BindPFlag("database.password", rootCmd.PersistentFlags().Lookup("db-password"))
	viper.BindPFlag("database.database", rootCmd.PersistentFlags().Lookup("db-name"))

	viper.BindPFlag("logging.log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pontovault")
	}

	viper.SetEnvPrefix("PONTOVAULT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// appContext holds the wired components shared by the subcommands
type appContext struct {
	config    *config.AppConfig
	logger    *logging.Logger
	store     database.Store
	engine    *backup.Engine
	recorder  audit.Recorder
	formatter *display.Formatter
	colors    display.ColorSystem
}

// buildApp wires the application components from the resolved configuration
func buildApp(ctx context.Context) (*appContext, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger, err := newLoggerFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	store, err := database.Connect(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	factory := backup.NewArchiveStoreFactory()
	archives, err := factory.CreateArchiveStore(ctx, cfg.Storage)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize archive storage: %w", err)
	}

	recorder := audit.NewLogRecorder(logger)
	engine := backup.NewEngine(store, archives, recorder, logger, backup.EngineConfig{
		MaxBackupAge:   cfg.Backup.MaxAge,
		MaxBackupSize:  cfg.Backup.MaxSize,
		DefaultTimeout: cfg.Backup.DefaultTimeout,
	})

	colors := display.NewColorSystem(display.GetThemeByName(theme), noColor)
	formatter := display.NewFormatter(colors, display.OutputFormat(outputFormat))

	return &appContext{
		config:    cfg,
		logger:    logger,
		store:     store,
		engine:    engine,
		recorder:  recorder,
		formatter: formatter,
		colors:    colors,
	}, nil
}

// Close releases the application's resources
func (a *appContext) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func newLoggerFromConfig(cfg *config.AppConfig) (*logging.Logger, error) {
	level := logging.LogLevel(cfg.Logging.Level)
	if verbose {
		level = logging.LogLevelVerbose
	}
	if quiet {
		level = logging.LogLevelQuiet
	}

	file := cfg.Logging.LogFile
	if logFile != "" {
		file = logFile
	}

	return logging.NewLogger(logging.Config{
		Level:   level,
		Format:  cfg.Logging.Format,
		LogFile: file,
	})
}

// resolvePassphrase returns the backup passphrase from the environment or
// prompts for it without echo when attached to a terminal.
func resolvePassphrase(confirm bool) (string, error) {
	if pass := os.Getenv("PONTOVAULT_BACKUP_PASSWORD"); pass != "" {
		return pass, nil
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("no passphrase provided: set PONTOVAULT_BACKUP_PASSWORD or run interactively")
	}

	fmt.Fprint(os.Stderr, "Backup passphrase: ")
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		again, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		if string(pass) != string(again) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}

	return string(pass), nil
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pontovault version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}

// createConfigCommand creates the config subcommand for generating sample config
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config flag.

Examples:
  pontovault config > config.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(sampleConfig)
		},
	}
}

const sampleConfig = `# PontoVault Configuration File

# Database connection
database:
  host: localhost          # Database hostname or IP
  port: 3306               # Database port
  username: root           # Database username
  password: ""             # Database password (use env var for security)
  database: ponto_digital  # Database name
  timeout: 30s             # Connection timeout

# Archive storage
storage:
  provider: LOCAL          # Storage provider (LOCAL, S3, AZURE, GCS)
  local:
    base_path: ./backups
  # s3:
  #   bucket: my-backups
  #   region: us-east-1
  #   access_key: ""
  #   secret_key: ""
  # azure:
  #   account_name: ""
  #   account_key: ""
  #   container_name: backups
  # gcs:
  #   bucket: my-backups
  #   credentials_path: ""

# Backup policy
backup:
  max_age: 2160h           # Backups older than this fail validation (90 days)
  max_size: 524288000      # Maximum archive size in bytes (500 MiB)
  default_timeout: 10m     # Default operation timeout
  compression: gzip        # Compression algorithm (none, gzip, lz4, zstd)
  compression_level: 6     # Compression level
  include_biometric: false # Include biometric template columns

# Recovery validation
recovery:
  report_dir: ./reports    # Where JSON validation reports are written
  retain_sandbox: false    # Keep the sandbox schema after validation

# Disaster recovery orchestrator
orchestrator:
  base_interval: 60s       # Poll interval while healthy
  degraded_interval: 30s   # Poll interval while degraded
  critical_interval: 15s   # Poll interval while critical
  grace_delay: 5m          # Time in critical state before automatic recovery
  backup_recency: 24h      # Maximum acceptable age of the latest backup
  query_latency_max: 2s    # Health check query latency threshold
  storage_capacity: 10737418240  # Archive storage capacity in bytes
  plan_catalog: ""         # Optional YAML recovery plan catalog

# Logging
logging:
  level: normal            # quiet, normal, verbose, debug
  format: text             # text or json
  log_file: ""             # Optional log file path (empty = stdout)

# Security recommendations:
# 1. Store secrets in environment variables:
#    export PONTOVAULT_DATABASE_PASSWORD=your_password
#    export PONTOVAULT_BACKUP_PASSWORD=your_passphrase
# 2. Set restrictive file permissions: chmod 600 config.yaml
# 3. Use a dedicated database user with minimal required privileges
`

func init() {
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}
