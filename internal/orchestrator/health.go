package orchestrator

import (
	"context"
	"fmt"
	"time"

	"pontovault/internal/backup"
	"pontovault/internal/database"
	"pontovault/internal/logging"
)

// CheckResult is the outcome of one health check
type CheckResult struct {
	Name     string        `json:"name"`
	Healthy  bool          `json:"healthy"`
	Critical bool          `json:"critical"`
	Category string        `json:"category,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// HealthConfig tunes the check battery
type HealthConfig struct {
	BackupRecency    time.Duration
	QueryLatencyMax  time.Duration
	StorageCapacity  int64
	HeadroomRatio    float64
	CriticalTable    string
	RequiredAdminRow bool
}

// DefaultHealthConfig returns the standard thresholds
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		BackupRecency:   24 * time.Hour,
		QueryLatencyMax: 2 * time.Second,
		StorageCapacity: 10 * 1024 * 1024 * 1024,
		HeadroomRatio:   0.85,
		CriticalTable:   "usuarios",
	}
}

// HealthChecker runs the poll battery against the store and the engine
type HealthChecker struct {
	store  database.Store
	engine *backup.Engine
	logger *logging.Logger
	config HealthConfig
}

// NewHealthChecker creates a health checker
func NewHealthChecker(store database.Store, engine *backup.Engine, logger *logging.Logger, config HealthConfig) *HealthChecker {
	if config.BackupRecency == 0 {
		config.BackupRecency = 24 * time.Hour
	}
	if config.QueryLatencyMax == 0 {
		config.QueryLatencyMax = 2 * time.Second
	}
	if config.HeadroomRatio == 0 {
		config.HeadroomRatio = 0.85
	}
	if config.CriticalTable == "" {
		config.CriticalTable = "usuarios"
	}

	return &HealthChecker{
		store:  store,
		engine: engine,
		logger: logger,
		config: config,
	}
}

// RunChecks executes the whole battery and returns every result
func (h *HealthChecker) RunChecks(ctx context.Context) []CheckResult {
	checks := []func(context.Context) CheckResult{
		h.checkStoreReachability,
		h.checkBackupRecency,
		h.checkDataIntegrity,
		h.checkQueryLatency,
		h.checkStorageHeadroom,
	}

	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		result := check(ctx)
		h.logger.LogHealthCheck(result.Name, result.Healthy, result.Detail, result.Duration)
		results = append(results, result)
	}
	return results
}

// checkStoreReachability pings the store and measures a critical-table read
func (h *HealthChecker) checkStoreReachability(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "store_reachability", Critical: true, Category: TriggerDatabaseFailure}

	if err := h.store.Ping(ctx); err != nil {
		result.Detail = fmt.Sprintf("store unreachable: %v", err)
		result.Duration = time.Since(start)
		return result
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", database.QuoteIdentifier(h.config.CriticalTable))
	if err := h.store.QueryRow(ctx, query).Scan(&count); err != nil {
		result.Detail = fmt.Sprintf("critical table read failed: %v", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Duration = time.Since(start)
	if result.Duration > h.config.QueryLatencyMax {
		result.Detail = fmt.Sprintf("critical table read took %s", result.Duration)
		return result
	}

	result.Healthy = true
	return result
}

// checkBackupRecency verifies a backup exists inside the recency window
func (h *HealthChecker) checkBackupRecency(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "backup_recency", Category: TriggerInfrastructureFailure}

	infos, err := h.engine.ListBackups(ctx)
	result.Duration = time.Since(start)
	if err != nil {
		result.Detail = fmt.Sprintf("failed to list backups: %v", err)
		return result
	}

	if len(infos) == 0 {
		result.Detail = "no backups exist"
		return result
	}

	latest := infos[0].CreatedAt
	for _, info := range infos {
		if info.CreatedAt.After(latest) {
			latest = info.CreatedAt
		}
	}

	age := time.Since(latest)
	if age > h.config.BackupRecency {
		result.Detail = fmt.Sprintf("latest backup is %s old", age.Round(time.Minute))
		return result
	}

	result.Healthy = true
	return result
}

// checkDataIntegrity spot-checks orphan rows and required base rows
func (h *HealthChecker) checkDataIntegrity(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "data_integrity", Category: TriggerDatabaseFailure}

	var admins int
	err := h.store.QueryRow(ctx,
		"SELECT COUNT(*) FROM `usuarios` WHERE perfil = ?", "ADMINISTRADOR").Scan(&admins)
	if err != nil {
		result.Critical = true
		result.Detail = fmt.Sprintf("integrity query failed: %v", err)
		result.Duration = time.Since(start)
		return result
	}
	if admins == 0 {
		result.Critical = true
		result.Detail = "no administrator account present"
		result.Duration = time.Since(start)
		return result
	}

	var orphans int
	err = h.store.QueryRow(ctx,
		"SELECT COUNT(*) FROM `registros_ponto` rp LEFT JOIN `colaboradores` c ON rp.colaborador_id = c.id WHERE c.id IS NULL").Scan(&orphans)
	result.Duration = time.Since(start)
	if err != nil {
		result.Detail = fmt.Sprintf("orphan query failed: %v", err)
		return result
	}
	if orphans > 0 {
		result.Detail = fmt.Sprintf("%d orphaned time records", orphans)
		return result
	}

	result.Healthy = true
	return result
}

// checkQueryLatency benchmarks a representative query
func (h *HealthChecker) checkQueryLatency(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "query_latency", Category: TriggerApplicationFailure}

	var count int
	err := h.store.QueryRow(ctx, "SELECT COUNT(*) FROM `registros_ponto`").Scan(&count)
	result.Duration = time.Since(start)
	if err != nil {
		result.Detail = fmt.Sprintf("benchmark query failed: %v", err)
		return result
	}

	if result.Duration > h.config.QueryLatencyMax {
		result.Detail = fmt.Sprintf("benchmark query took %s", result.Duration)
		return result
	}

	result.Healthy = true
	return result
}

// checkStorageHeadroom verifies archive storage stays under the capacity ratio
func (h *HealthChecker) checkStorageHeadroom(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "storage_headroom", Category: TriggerInfrastructureFailure}

	used, err := h.engine.ArchiveStorageUsage(ctx)
	result.Duration = time.Since(start)
	if err != nil {
		result.Detail = fmt.Sprintf("failed to measure archive usage: %v", err)
		return result
	}

	limit := int64(float64(h.config.StorageCapacity) * h.config.HeadroomRatio)
	if used > limit {
		result.Detail = fmt.Sprintf("archive storage at %d of %d bytes", used, h.config.StorageCapacity)
		return result
	}

	result.Healthy = true
	return result
}
