package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pontovault/internal/backup"
	"pontovault/internal/confirmation"
)

var (
	backupTables      []string
	backupCompression string
	backupLevel       int
	backupBiometric   bool

	restoreTables       []string
	restoreTarget       string
	restoreStrategy     string
	restoreCritical     bool
	restoreContinue     bool
	restoreNoSafety     bool
	restoreAutoApprove  bool
	cleanupRetention    time.Duration
	cleanupAutoApprove  bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, validate, restore, list, and clean up encrypted backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an encrypted backup of the time-tracking tables",
	Long: `Create an encrypted, compressed, sanitized backup.

Sensitive columns (CPF, email, phone, IP addresses) are masked and
password and token hashes are redacted before encryption. Biometric
template columns are stripped unless --include-biometric is given.`,
	RunE: runBackupCreate,
}

var backupValidateCmd = &cobra.Command{
	Use:   "validate <backup-id>",
	Short: "Validate that an archive decrypts and its payload is intact",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupValidate,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Restore an archive into production or a sandbox schema",
	Long: `Restore an archive. Without --target-schema the restore is applied to
the production schema, which requires confirmation. Critical tables
(usuarios, audit_sessions) are skipped unless --allow-critical is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupRestore,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups",
	RunE:  runBackupList,
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups older than the retention window",
	RunE:  runBackupCleanup,
}

func init() {
	backupCreateCmd.Flags().StringSliceVar(&backupTables, "tables", nil, "tables to back up (default: standard table set)")
	backupCreateCmd.Flags().StringVar(&backupCompression, "compression", "", "compression algorithm (none, gzip, lz4, zstd)")
	backupCreateCmd.Flags().IntVar(&backupLevel, "compression-level", 0, "compression level")
	backupCreateCmd.Flags().BoolVar(&backupBiometric, "include-biometric", false, "include biometric template columns")

	backupRestoreCmd.Flags().StringSliceVar(&restoreTables, "tables", nil, "restrict restore to these tables")
	backupRestoreCmd.Flags().StringVar(&restoreTarget, "target-schema", "", "restore into this schema instead of production")
	backupRestoreCmd.Flags().StringVar(&restoreStrategy, "strategy", "replace", "restore strategy (replace, merge)")
	backupRestoreCmd.Flags().BoolVar(&restoreCritical, "allow-critical", false, "restore critical tables too")
	backupRestoreCmd.Flags().BoolVar(&restoreContinue, "continue-on-error", false, "record per-table errors instead of aborting")
	backupRestoreCmd.Flags().BoolVar(&restoreNoSafety, "no-safety-backup", false, "skip the safety backup before a production restore")
	backupRestoreCmd.Flags().BoolVar(&restoreAutoApprove, "confirm", false, "skip the interactive confirmation prompt")

	backupCleanupCmd.Flags().DurationVar(&cleanupRetention, "retention", backup.MaxBackupAge, "delete backups older than this")
	backupCleanupCmd.Flags().BoolVar(&cleanupAutoApprove, "confirm", false, "skip the interactive confirmation prompt")

	backupCmd.AddCommand(backupCreateCmd, backupValidateCmd, backupRestoreCmd, backupListCmd, backupCleanupCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	password, err := resolvePassphrase(true)
	if err != nil {
		return err
	}

	opts := backup.CreateOptions{
		Tables:           backupTables,
		Compression:      backup.CompressionType(backupCompression),
		CompressionLevel: backupLevel,
		IncludeBiometric: backupBiometric || app.config.Backup.IncludeBiometric,
	}
	if opts.Compression == "" {
		opts.Compression = backup.CompressionType(app.config.Backup.Compression)
	}
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = app.config.Backup.CompressionLevel
	}

	start := time.Now()
	archive, err := app.engine.CreateBackup(ctx, password, opts)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	out, err := app.formatter.FormatCreateResult(archive, time.Since(start))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runBackupValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	password, err := resolvePassphrase(false)
	if err != nil {
		return err
	}

	archive, err := app.engine.GetBackup(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}

	outcome, err := app.engine.ValidateBackup(ctx, archive, password)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out, err := app.formatter.FormatValidationOutcome(outcome)
	if err != nil {
		return err
	}
	fmt.Println(out)

	if !outcome.Valid {
		return fmt.Errorf("backup %s failed validation", args[0])
	}
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	production := restoreTarget == ""
	if production {
		confirmer := confirmation.NewService(app.colors)
		warnings := []string{"Existing rows in the restored tables will be replaced."}
		if restoreCritical {
			warnings = append(warnings, "Critical tables (usuarios, audit_sessions) will be overwritten.")
		}
		approved, err := confirmer.Confirm(confirmation.OperationSummary{
			Title:       "PRODUCTION RESTORE",
			Target:      "production schema",
			Tables:      restoreTables,
			Warnings:    warnings,
			Destructive: true,
		}, restoreAutoApprove)
		if err != nil {
			return err
		}
		if !approved {
			return nil
		}
	}

	password, err := resolvePassphrase(false)
	if err != nil {
		return err
	}

	archive, err := app.engine.GetBackup(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}

	result, err := app.engine.RestoreBackup(ctx, archive, password, backup.RestoreOptions{
		Tables:          restoreTables,
		TargetSchema:    restoreTarget,
		Strategy:        backup.RestoreStrategy(strings.ToLower(restoreStrategy)),
		AllowCritical:   restoreCritical,
		ContinueOnError: restoreContinue,
		SafetyBackup:    production && !restoreNoSafety,
	})
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	out, err := app.formatter.FormatRestoreResult(result)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	infos, err := app.engine.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	out, err := app.formatter.FormatBackupList(infos)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runBackupCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	confirmer := confirmation.NewService(app.colors)
	approved, err := confirmer.Confirm(confirmation.OperationSummary{
		Title:       "BACKUP CLEANUP",
		Target:      fmt.Sprintf("backups older than %s", cleanupRetention),
		Warnings:    []string{"Deleted archives cannot be recovered."},
		Destructive: true,
	}, cleanupAutoApprove)
	if err != nil {
		return err
	}
	if !approved {
		return nil
	}

	result, err := app.engine.CleanupOldBackups(ctx, cleanupRetention)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Printf("Examined %d backups, removed %d\n", result.Examined, len(result.Removed))
	for _, id := range result.Removed {
		fmt.Printf("  removed %s\n", id)
	}
	for _, id := range result.Failed {
		fmt.Printf("  failed to remove %s\n", id)
	}
	return nil
}
