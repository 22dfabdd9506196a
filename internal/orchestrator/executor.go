package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pontovault/internal/audit"
	"pontovault/internal/backup"
	"pontovault/internal/database"
	"pontovault/internal/logging"
)

// StepRecord is the execution history of one plan step
type StepRecord struct {
	Name     string        `json:"name"`
	Action   string        `json:"action"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Execution is the outcome of running one plan
type Execution struct {
	RecoveryID string        `json:"recovery_id"`
	PlanID     string        `json:"plan_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Steps      []StepRecord  `json:"steps"`
	Success    bool          `json:"success"`
}

// ServiceController restarts dependent services during recovery. The
// default implementation only logs; deployments plug in a real one.
type ServiceController interface {
	RestartServices(ctx context.Context) error
	CheckDependencies(ctx context.Context) error
}

// LogServiceController is the no-op controller used when none is wired
type LogServiceController struct {
	logger *logging.Logger
}

// NewLogServiceController creates a log-only service controller
func NewLogServiceController(logger *logging.Logger) *LogServiceController {
	return &LogServiceController{logger: logger}
}

// RestartServices logs the restart request
func (c *LogServiceController) RestartServices(ctx context.Context) error {
	c.logger.Info("Service restart requested (no controller wired)")
	return nil
}

// CheckDependencies logs the dependency check request
func (c *LogServiceController) CheckDependencies(ctx context.Context) error {
	c.logger.Info("Dependency check requested (no controller wired)")
	return nil
}

// Executor runs recovery plans step by step
type Executor struct {
	engine   *backup.Engine
	store    database.Store
	services ServiceController
	recorder audit.Recorder
	logger   *logging.Logger

	// password for restoring archives during automatic recovery
	backupPassword string
}

// NewExecutor creates a plan executor
func NewExecutor(engine *backup.Engine, store database.Store, services ServiceController,
	recorder audit.Recorder, logger *logging.Logger, backupPassword string) *Executor {
	if services == nil {
		services = NewLogServiceController(logger)
	}
	return &Executor{
		engine:         engine,
		store:          store,
		services:       services,
		recorder:       recorder,
		logger:         logger,
		backupPassword: backupPassword,
	}
}

// ExecutePlan runs a plan's steps in order. The first failing step aborts
// the run; the full step history is always returned.
func (e *Executor) ExecutePlan(ctx context.Context, plan *Plan) *Execution {
	execution := &Execution{
		RecoveryID: "recovery-" + uuid.NewString()[:8],
		PlanID:     plan.ID,
		StartedAt:  time.Now(),
	}

	e.recorder.Record(audit.Event{
		Action:   "RECOVERY_PLAN_STARTED",
		Category: "DISASTER_RECOVERY",
		Severity: audit.SeverityWarning,
		Details: map[string]interface{}{
			"recovery_id": execution.RecoveryID,
			"plan_id":     plan.ID,
		},
	})

	execution.Success = true
	for _, step := range plan.Steps {
		record := e.runStep(ctx, step)
		execution.Steps = append(execution.Steps, record)

		if !record.Success {
			execution.Success = false
			break
		}
	}

	execution.Duration = time.Since(execution.StartedAt)

	severity := audit.SeverityInfo
	action := "RECOVERY_PLAN_COMPLETED"
	if !execution.Success {
		severity = audit.SeverityCritical
		action = "RECOVERY_PLAN_FAILED"
	}
	e.recorder.Record(audit.Event{
		Action:   action,
		Category: "DISASTER_RECOVERY",
		Severity: severity,
		Details: map[string]interface{}{
			"recovery_id": execution.RecoveryID,
			"plan_id":     plan.ID,
			"duration":    execution.Duration.String(),
			"steps":       len(execution.Steps),
		},
	})

	return execution
}

func (e *Executor) runStep(ctx context.Context, step PlanStep) StepRecord {
	start := time.Now()
	record := StepRecord{Name: step.Name, Action: step.Action}

	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	var err error
	switch step.Action {
	case ActionRestartServices:
		err = e.services.RestartServices(stepCtx)
	case ActionRestoreBackup:
		err = e.restoreLatestBackup(stepCtx)
	case ActionValidateIntegrity:
		err = e.validateIntegrity(stepCtx)
	case ActionCheckDependencies:
		err = e.services.CheckDependencies(stepCtx)
	default:
		err = fmt.Errorf("unknown plan action: %s", step.Action)
	}

	record.Duration = time.Since(start)
	record.Success = err == nil
	if err != nil {
		record.Error = err.Error()
		e.logger.Errorf("Recovery step %q failed: %v", step.Name, err)
	} else {
		e.logger.Infof("Recovery step %q completed in %s", step.Name, record.Duration)
	}

	return record
}

// restoreLatestBackup restores the newest archive into production
func (e *Executor) restoreLatestBackup(ctx context.Context) error {
	infos, err := e.engine.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(infos) == 0 {
		return fmt.Errorf("no backups available for recovery")
	}

	latest := infos[0]
	for _, info := range infos {
		if info.CreatedAt.After(latest.CreatedAt) {
			latest = info
		}
	}

	archive, err := e.engine.GetBackup(ctx, latest.ID)
	if err != nil {
		return fmt.Errorf("failed to load backup %s: %w", latest.ID, err)
	}

	_, err = e.engine.RestoreBackup(ctx, archive, e.backupPassword, backup.RestoreOptions{
		Strategy:      backup.RestoreStrategyReplace,
		AllowCritical: true,
	})
	if err != nil {
		return fmt.Errorf("restore of backup %s failed: %w", latest.ID, err)
	}

	return nil
}

// validateIntegrity spot-checks the restored production data
func (e *Executor) validateIntegrity(ctx context.Context) error {
	var admins int
	err := e.store.QueryRow(ctx,
		"SELECT COUNT(*) FROM `usuarios` WHERE perfil = ?", "ADMINISTRADOR").Scan(&admins)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if admins == 0 {
		return fmt.Errorf("restored data has no administrator account")
	}

	var employees int
	err = e.store.QueryRow(ctx,
		"SELECT COUNT(*) FROM `colaboradores` WHERE ativo = 1").Scan(&employees)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if employees == 0 {
		return fmt.Errorf("restored data has no active employees")
	}

	return nil
}
