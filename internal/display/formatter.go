package display

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pontovault/internal/backup"
	"pontovault/internal/orchestrator"
	"pontovault/internal/recovery"
)

// OutputFormat selects between human and machine readable output
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

// Formatter renders operation results for the terminal
type Formatter struct {
	colors ColorSystem
	format OutputFormat
}

// NewFormatter creates a result formatter
func NewFormatter(colors ColorSystem, format OutputFormat) *Formatter {
	if format == "" {
		format = FormatTable
	}
	return &Formatter{colors: colors, format: format}
}

// FormatBackupList renders an archive listing
func (f *Formatter) FormatBackupList(infos []*backup.ArchiveInfo) (string, error) {
	if f.format == FormatJSON {
		return f.toJSON(infos)
	}

	if len(infos) == 0 {
		return f.colors.Colorize("No backups found", f.colors.Theme().Muted), nil
	}

	var sb strings.Builder
	sb.WriteString(f.colors.Colorize("BACKUPS", ColorBold))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 78))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%-28s %-22s %10s %8s %8s\n", "ID", "CREATED", "SIZE", "TABLES", "RECORDS"))
	for _, info := range infos {
		sb.WriteString(fmt.Sprintf("%-28s %-22s %10s %8d %8d\n",
			info.ID,
			info.CreatedAt.Format("2006-01-02 15:04:05"),
			formatBytes(info.Size),
			info.TableCount,
			info.RecordCount))
	}
	return sb.String(), nil
}

// FormatCreateResult renders the outcome of a backup creation
func (f *Formatter) FormatCreateResult(archive *backup.Archive, duration time.Duration) (string, error) {
	if f.format == FormatJSON {
		return f.toJSON(map[string]interface{}{
			"backup_id":    archive.ID,
			"tables":       archive.Metadata.TableNames,
			"record_count": archive.Metadata.RecordCount,
			"size":         archive.Metadata.EncryptedSize,
			"compression":  archive.Metadata.Compression,
			"duration":     duration.String(),
		})
	}

	theme := f.colors.Theme()
	var sb strings.Builder
	sb.WriteString(f.colors.Sprintf(theme.Success, "Backup %s created\n", archive.ID))
	sb.WriteString(fmt.Sprintf("  Tables:   %s\n", strings.Join(archive.Metadata.TableNames, ", ")))
	sb.WriteString(fmt.Sprintf("  Records:  %d\n", archive.Metadata.RecordCount))
	sb.WriteString(fmt.Sprintf("  Size:     %s (from %s)\n",
		formatBytes(archive.Metadata.EncryptedSize), formatBytes(archive.Metadata.OriginalSize)))
	sb.WriteString(fmt.Sprintf("  Duration: %s\n", duration.Round(time.Millisecond)))
	return sb.String(), nil
}

// FormatValidationOutcome renders an archive validation result
func (f *Formatter) FormatValidationOutcome(outcome *backup.ValidationOutcome) (string, error) {
	if f.format == FormatJSON {
		return f.toJSON(outcome)
	}

	theme := f.colors.Theme()
	var sb strings.Builder
	if outcome.Valid {
		sb.WriteString(f.colors.Sprintf(theme.Success, "Backup %s is valid\n", outcome.BackupID))
		sb.WriteString(fmt.Sprintf("  Tables:  %s\n", strings.Join(outcome.TableNames, ", ")))
		sb.WriteString(fmt.Sprintf("  Records: %d\n", outcome.RecordCount))
	} else {
		sb.WriteString(f.colors.Sprintf(theme.Error, "Backup %s FAILED validation: %s\n", outcome.BackupID, outcome.Reason))
		for _, issue := range outcome.Issues {
			sb.WriteString(fmt.Sprintf("  - %s\n", f.colors.Colorize(issue, theme.Warning)))
		}
	}
	sb.WriteString(fmt.Sprintf("  Checked in %s\n", outcome.Duration.Round(time.Millisecond)))
	return sb.String(), nil
}

// FormatRestoreResult renders the outcome of a restore run
func (f *Formatter) FormatRestoreResult(result *backup.RestoreResult) (string, error) {
	if f.format == FormatJSON {
		return f.toJSON(result)
	}

	theme := f.colors.Theme()
	var sb strings.Builder
	target := result.TargetSchema
	if target == "" {
		target = "production"
	}
	sb.WriteString(f.colors.Sprintf(theme.Success, "Restored backup %s into %s\n", result.BackupID, target))
	sb.WriteString(fmt.Sprintf("  Tables restored: %d, rows: %d\n", result.RestoredTables, result.RestoredRows))
	if len(result.SkippedTables) > 0 {
		sb.WriteString(f.colors.Sprintf(theme.Warning, "  Skipped: %s\n", strings.Join(result.SkippedTables, ", ")))
	}
	for _, tr := range result.Tables {
		if tr.Error != "" {
			sb.WriteString(f.colors.Sprintf(theme.Error, "  %s failed: %s\n", tr.Table, tr.Error))
		}
	}
	if result.SafetyBackupID != "" {
		sb.WriteString(fmt.Sprintf("  Safety backup: %s\n", result.SafetyBackupID))
	}
	sb.WriteString(fmt.Sprintf("  Duration: %s\n", result.Duration.Round(time.Millisecond)))
	return sb.String(), nil
}

// FormatRecoveryReport renders a full validation report
func (f *Formatter) FormatRecoveryReport(report *recovery.Report) (string, error) {
	if f.format == FormatJSON {
		return f.toJSON(report)
	}

	theme := f.colors.Theme()
	var sb strings.Builder
	sb.WriteString(f.colors.Colorize("RECOVERY VALIDATION REPORT", ColorBold))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Test:     %s\n", report.TestID))
	sb.WriteString(fmt.Sprintf("Backup:   %s\n", report.BackupID))
	sb.WriteString(fmt.Sprintf("Duration: %s\n\n", report.Duration.Round(time.Millisecond)))

	for _, phase := range report.Phases {
		marker := f.colors.Colorize("PASS", theme.Success)
		if !phase.Success {
			marker = f.colors.Colorize("FAIL", theme.Error)
		}
		sb.WriteString(fmt.Sprintf("  [%s] %-18s %s\n", marker, phase.Name, phase.Duration.Round(time.Millisecond)))
		for _, e := range phase.Errors {
			sb.WriteString(fmt.Sprintf("         %s\n", f.colors.Colorize(e, theme.Warning)))
		}
	}

	sb.WriteString("\n")
	gradeColor := theme.Success
	if report.Grade < 70 {
		gradeColor = theme.Error
	} else if report.Grade < 85 {
		gradeColor = theme.Warning
	}
	sb.WriteString(fmt.Sprintf("Overall: %s  Grade: %s\n",
		f.successLabel(report.OverallSuccess),
		f.colors.Sprintf(gradeColor, "%d/100", report.Grade)))

	if len(report.Recommendation) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for _, rec := range report.Recommendation {
			sb.WriteString(fmt.Sprintf("  [%s/%s] %s\n", rec.Category, rec.Priority, rec.Message))
		}
	}
	return sb.String(), nil
}

// FormatStatus renders the orchestrator status snapshot
func (f *Formatter) FormatStatus(status orchestrator.Status) (string, error) {
	if f.format == FormatJSON {
		return f.toJSON(status)
	}

	theme := f.colors.Theme()
	stateColor := theme.Success
	switch status.State {
	case orchestrator.StateDegraded:
		stateColor = theme.Warning
	case orchestrator.StateCritical, orchestrator.StateDisaster:
		stateColor = theme.Error
	case orchestrator.StateRecovery:
		stateColor = theme.Info
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("System state: %s (since %s)\n",
		f.colors.Colorize(string(status.State), stateColor),
		status.StateSince.Format("2006-01-02 15:04:05")))

	if len(status.Checks) > 0 {
		sb.WriteString("\nHealth checks:\n")
		for _, check := range status.Checks {
			marker := f.colors.Colorize("OK", theme.Success)
			if !check.Healthy {
				if check.Critical {
					marker = f.colors.Colorize("CRIT", theme.Error)
				} else {
					marker = f.colors.Colorize("WARN", theme.Warning)
				}
			}
			line := fmt.Sprintf("  [%s] %-20s %s", marker, check.Name, check.Duration.Round(time.Millisecond))
			if check.Detail != "" {
				line += "  " + check.Detail
			}
			sb.WriteString(line + "\n")
		}
	}

	if status.LastExecution != nil {
		sb.WriteString(fmt.Sprintf("\nLast recovery: %s plan=%s success=%t (%s)\n",
			status.LastExecution.RecoveryID,
			status.LastExecution.PlanID,
			status.LastExecution.Success,
			status.LastExecution.Duration.Round(time.Millisecond)))
	}
	return sb.String(), nil
}

func (f *Formatter) successLabel(ok bool) string {
	theme := f.colors.Theme()
	if ok {
		return f.colors.Colorize("SUCCESS", theme.Success)
	}
	return f.colors.Colorize("FAILED", theme.Error)
}

func (f *Formatter) toJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode output: %w", err)
	}
	return string(data), nil
}

// formatBytes renders a byte count with a binary unit suffix
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
