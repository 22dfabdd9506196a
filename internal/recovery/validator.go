package recovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pontovault/internal/audit"
	"pontovault/internal/backup"
	"pontovault/internal/database"
	"pontovault/internal/logging"
)

// Options controls a validation run
type Options struct {
	// RetainSandbox keeps the isolated schema after the run for inspection
	RetainSandbox bool
	// ReportDir is where the JSON report artifact is written; empty skips it
	ReportDir string
}

// Validator proves that an archive is actually restorable by running the
// five-phase pipeline against an isolated sandbox schema.
type Validator struct {
	engine   *backup.Engine
	store    database.Store
	recorder audit.Recorder
	logger   *logging.Logger
}

// NewValidator creates a recovery validator
func NewValidator(engine *backup.Engine, store database.Store, recorder audit.Recorder, logger *logging.Logger) *Validator {
	return &Validator{
		engine:   engine,
		store:    store,
		recorder: recorder,
		logger:   logger,
	}
}

// newSandboxName builds a collision-free schema name for one run
func newSandboxName() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "recovery_test_" + suffix
}

// RunFullValidation executes the pipeline. Phases one and two gate the rest;
// phases three to five run independently of each other. The sandbox schema
// is torn down on every exit path unless RetainSandbox is set.
func (v *Validator) RunFullValidation(ctx context.Context, archiveID, password string, opts Options) (*Report, error) {
	report := &Report{
		TestID:    "validation-" + uuid.NewString()[:8],
		BackupID:  archiveID,
		StartedAt: time.Now(),
	}

	archive, err := v.engine.GetBackup(ctx, archiveID)
	if err != nil {
		return nil, err
	}

	// Phase 1: integrity (gating)
	integrityOK := v.runPhase(ctx, report, PhaseIntegrity, func(phase *PhaseResult) error {
		outcome, err := v.engine.ValidateBackup(ctx, archive, password)
		if err != nil {
			return err
		}
		phase.Details = map[string]interface{}{
			"record_count": outcome.RecordCount,
			"table_count":  len(outcome.TableNames),
		}
		if !outcome.Valid {
			phase.Errors = append(phase.Errors, outcome.Reason)
			phase.Errors = append(phase.Errors, outcome.Issues...)
			return fmt.Errorf("archive integrity check failed: %s", outcome.Reason)
		}
		return nil
	})
	if !integrityOK {
		v.finish(report, opts)
		return report, nil
	}

	sandbox := newSandboxName()
	report.SandboxSchema = sandbox

	if !opts.RetainSandbox {
		defer v.teardown(sandbox)
	}

	// Phase 2: recovery test (gating)
	recoveryOK := v.runPhase(ctx, report, PhaseRecoveryTest, func(phase *PhaseResult) error {
		if err := v.store.CreateSchema(ctx, sandbox); err != nil {
			return fmt.Errorf("failed to provision sandbox schema: %w", err)
		}

		result, err := v.engine.RestoreBackup(ctx, archive, password, backup.RestoreOptions{
			TargetSchema:  sandbox,
			AllowCritical: true,
			Strategy:      backup.RestoreStrategyReplace,
		})
		if err != nil {
			return fmt.Errorf("sandbox restore failed: %w", err)
		}

		phase.Details = map[string]interface{}{
			"restored_tables":  result.RestoredTables,
			"restored_records": result.RestoredRows,
			"restore_duration": result.Duration.String(),
		}
		return nil
	})
	if !recoveryOK {
		v.finish(report, opts)
		return report, nil
	}

	// Phases 3-5: independent, strictly sequential within the run
	v.runPhase(ctx, report, PhaseDataConsistency, func(phase *PhaseResult) error {
		return v.checkDataConsistency(ctx, sandbox, phase)
	})
	v.runPhase(ctx, report, PhasePerformance, func(phase *PhaseResult) error {
		return v.checkPerformance(ctx, sandbox, phase)
	})
	v.runPhase(ctx, report, PhaseFunctionality, func(phase *PhaseResult) error {
		return v.checkFunctionality(ctx, sandbox, phase)
	})

	v.finish(report, opts)
	return report, nil
}

// runPhase executes one phase, converting its error into a failed result
func (v *Validator) runPhase(ctx context.Context, report *Report, name string, fn func(*PhaseResult) error) bool {
	start := time.Now()
	phase := PhaseResult{Name: name, Details: make(map[string]interface{})}

	err := fn(&phase)
	phase.Duration = time.Since(start)
	phase.Success = err == nil
	if err != nil {
		phase.Errors = append(phase.Errors, err.Error())
	}

	report.Phases = append(report.Phases, phase)
	v.logger.LogValidationPhase(report.TestID, name, phase.Success, phase.Duration)
	return phase.Success
}

func (v *Validator) finish(report *Report, opts Options) {
	report.finalize()

	severity := audit.SeverityInfo
	if !report.OverallSuccess {
		severity = audit.SeverityWarning
	}
	v.recorder.Record(audit.Event{
		Action:   "RECOVERY_VALIDATION",
		Category: "RECOVERY",
		Severity: severity,
		Details: map[string]interface{}{
			"test_id":   report.TestID,
			"backup_id": report.BackupID,
			"success":   report.OverallSuccess,
			"grade":     report.Grade,
		},
	})

	if opts.ReportDir != "" {
		if path, err := report.Save(opts.ReportDir); err != nil {
			v.logger.Warnf("Failed to persist validation report: %v", err)
		} else {
			v.logger.WithField("report", path).Info("Validation report saved")
		}
	}
}

// teardown drops the sandbox schema with a fresh context so cleanup still
// runs when the caller's context is already canceled.
func (v *Validator) teardown(sandbox string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := v.store.DropSchema(ctx, sandbox); err != nil {
		v.logger.Warnf("Failed to drop sandbox schema %s: %v", sandbox, err)
	}
}
