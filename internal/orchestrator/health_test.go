package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pontovault/internal/audit"
	"pontovault/internal/backup"
	"pontovault/internal/database"
	"pontovault/internal/logging"
)

type healthFixture struct {
	checker  *HealthChecker
	mock     sqlmock.Sqlmock
	archives backup.ArchiveStore
}

func newHealthFixture(t *testing.T) *healthFixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.NewDefaultLogger()
	store := database.NewStoreWithDB(db, "ponto_digital", logger)

	archives, err := backup.NewLocalArchiveStore(&backup.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	engine := backup.NewEngine(store, archives, audit.NewNopRecorder(), logger, backup.EngineConfig{})
	checker := NewHealthChecker(store, engine, logger, HealthConfig{})

	return &healthFixture{checker: checker, mock: mock, archives: archives}
}

func (f *healthFixture) seedArchive(t *testing.T, createdAt time.Time) {
	t.Helper()
	err := f.archives.Store(context.Background(), &backup.Archive{
		ID:            "backup-20260830-120000-aaaaaaaa",
		CreatedAt:     createdAt,
		FormatVersion: "2.0",
		Algorithm:     "aes-256-gcm",
	})
	require.NoError(t, err)
}

func (f *healthFixture) expectProductionQueries(admins, orphans int) {
	f.mock.ExpectPing()
	f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `usuarios`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `usuarios` WHERE perfil = \\?").
		WithArgs("ADMINISTRADOR").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(admins))
	f.mock.ExpectQuery("LEFT JOIN `colaboradores`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(orphans))
	f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `registros_ponto`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1200))
}

func resultByName(t *testing.T, results []CheckResult, name string) CheckResult {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no check named %s", name)
	return CheckResult{}
}

func TestHealthChecker_AllHealthy(t *testing.T) {
	f := newHealthFixture(t)
	f.seedArchive(t, time.Now())
	f.expectProductionQueries(1, 0)

	results := f.checker.RunChecks(context.Background())
	require.Len(t, results, 5)

	for _, result := range results {
		assert.True(t, result.Healthy, "check %s should pass: %s", result.Name, result.Detail)
	}
}

func TestHealthChecker_UnreachableStoreIsCritical(t *testing.T) {
	f := newHealthFixture(t)
	f.mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	results := f.checker.RunChecks(context.Background())

	reach := resultByName(t, results, "store_reachability")
	assert.False(t, reach.Healthy)
	assert.True(t, reach.Critical)
	assert.Equal(t, TriggerDatabaseFailure, reach.Category)
	assert.Contains(t, reach.Detail, "store unreachable")
}

func TestHealthChecker_NoBackupsIsUnhealthy(t *testing.T) {
	f := newHealthFixture(t)
	f.expectProductionQueries(1, 0)

	results := f.checker.RunChecks(context.Background())

	recency := resultByName(t, results, "backup_recency")
	assert.False(t, recency.Healthy)
	assert.False(t, recency.Critical)
	assert.Equal(t, "no backups exist", recency.Detail)
}

func TestHealthChecker_StaleBackupIsUnhealthy(t *testing.T) {
	f := newHealthFixture(t)
	f.seedArchive(t, time.Now().Add(-48*time.Hour))
	f.expectProductionQueries(1, 0)

	results := f.checker.RunChecks(context.Background())

	recency := resultByName(t, results, "backup_recency")
	assert.False(t, recency.Healthy)
	assert.Contains(t, recency.Detail, "old")
}

func TestHealthChecker_MissingAdministratorIsCritical(t *testing.T) {
	f := newHealthFixture(t)
	f.seedArchive(t, time.Now())
	f.expectProductionQueries(0, 0)

	results := f.checker.RunChecks(context.Background())

	integrity := resultByName(t, results, "data_integrity")
	assert.False(t, integrity.Healthy)
	assert.True(t, integrity.Critical)
	assert.Equal(t, "no administrator account present", integrity.Detail)
}

func TestHealthChecker_OrphanedRecordsDegrade(t *testing.T) {
	f := newHealthFixture(t)
	f.seedArchive(t, time.Now())
	f.expectProductionQueries(1, 7)

	results := f.checker.RunChecks(context.Background())

	integrity := resultByName(t, results, "data_integrity")
	assert.False(t, integrity.Healthy)
	assert.False(t, integrity.Critical)
	assert.Contains(t, integrity.Detail, "7 orphaned time records")
}
