package backup

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pontovault/internal/audit"
	"pontovault/internal/database"
	"pontovault/internal/logging"
)

const testPassword = "a-strong-test-passphrase"

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.NewDefaultLogger()
	store := database.NewStoreWithDB(db, "ponto_digital", logger)
	archives := newTestLocalStore(t)

	engine := NewEngine(store, archives, audit.NewNopRecorder(), logger, EngineConfig{})
	return engine, mock
}

func expectUsuariosQuery(mock sqlmock.Sqlmock) {
	rows := sqlmock.NewRows([]string{"id", "email", "senha_hash", "perfil"}).
		AddRow(1, "admin@empresa.com", "$2b$10$hash", "ADMINISTRADOR").
		AddRow(2, "joao@empresa.com", "$2b$10$hash2", "COLABORADOR")
	mock.ExpectQuery("SELECT \\* FROM `usuarios`").WillReturnRows(rows)
}

func TestEngine_CreateBackup_ShortPassword(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreateBackup(context.Background(), "short", CreateOptions{Tables: []string{"usuarios"}})
	require.Error(t, err)

	engineErr, ok := err.(*EngineError)
	require.True(t, ok)
	assert.Equal(t, EngineErrorTypePolicy, engineErr.Type)
}

func TestEngine_CreateBackup_SanitizesAndSeals(t *testing.T) {
	engine, mock := newTestEngine(t)
	expectUsuariosQuery(mock)

	archive, err := engine.CreateBackup(context.Background(), testPassword, CreateOptions{
		Tables:      []string{"usuarios"},
		Compression: CompressionTypeGzip,
	})
	require.NoError(t, err)
	require.NotNil(t, archive)

	assert.Equal(t, FormatVersion, archive.FormatVersion)
	assert.Equal(t, Algorithm, archive.Algorithm)
	assert.Equal(t, []string{"usuarios"}, archive.Metadata.TableNames)
	assert.Equal(t, 2, archive.Metadata.RecordCount)
	assert.NotEmpty(t, archive.Ciphertext)
	assert.NotEmpty(t, archive.Metadata.DataHash)

	// the sealed payload never carries plaintext secrets
	assert.NotContains(t, string(archive.Ciphertext), "admin@empresa.com")
	assert.NotContains(t, string(archive.Ciphertext), "$2b$10$hash")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_ValidateBackup_RoundTrip(t *testing.T) {
	engine, mock := newTestEngine(t)
	expectUsuariosQuery(mock)

	archive, err := engine.CreateBackup(context.Background(), testPassword, CreateOptions{Tables: []string{"usuarios"}})
	require.NoError(t, err)

	outcome, err := engine.ValidateBackup(context.Background(), archive, testPassword)
	require.NoError(t, err)
	assert.True(t, outcome.Valid)
	assert.Equal(t, 2, outcome.RecordCount)
	assert.Equal(t, []string{"usuarios"}, outcome.TableNames)
}

func TestEngine_ValidateBackup_WrongPassword(t *testing.T) {
	engine, mock := newTestEngine(t)
	expectUsuariosQuery(mock)

	archive, err := engine.CreateBackup(context.Background(), testPassword, CreateOptions{Tables: []string{"usuarios"}})
	require.NoError(t, err)

	outcome, err := engine.ValidateBackup(context.Background(), archive, "another-wrong-password")
	require.NoError(t, err)
	assert.False(t, outcome.Valid)
	assert.Contains(t, outcome.Reason, "authentication failed")
}

func TestEngine_ValidateBackup_TamperedCiphertext(t *testing.T) {
	engine, mock := newTestEngine(t)
	expectUsuariosQuery(mock)

	archive, err := engine.CreateBackup(context.Background(), testPassword, CreateOptions{Tables: []string{"usuarios"}})
	require.NoError(t, err)

	archive.Ciphertext[10] ^= 0x01

	outcome, err := engine.ValidateBackup(context.Background(), archive, testPassword)
	require.NoError(t, err)
	assert.False(t, outcome.Valid)
}

func TestEngine_ValidateBackup_StructuralIssues(t *testing.T) {
	engine, _ := newTestEngine(t)

	archive := &Archive{
		ID:            "backup-x",
		CreatedAt:     time.Now(),
		FormatVersion: "1.0",
		Algorithm:     "aes-128-cbc",
		SaltHex:       "zz",
	}

	outcome, err := engine.ValidateBackup(context.Background(), archive, testPassword)
	require.NoError(t, err)
	assert.False(t, outcome.Valid)
	assert.Equal(t, "structural validation failed", outcome.Reason)
	assert.NotEmpty(t, outcome.Issues)
}

func TestEngine_ValidateBackup_RecordCountMismatch(t *testing.T) {
	engine, mock := newTestEngine(t)
	expectUsuariosQuery(mock)

	archive, err := engine.CreateBackup(context.Background(), testPassword, CreateOptions{Tables: []string{"usuarios"}})
	require.NoError(t, err)

	archive.Metadata.RecordCount = 99

	outcome, err := engine.ValidateBackup(context.Background(), archive, testPassword)
	require.NoError(t, err)
	assert.False(t, outcome.Valid)
	assert.Contains(t, outcome.Reason, "record count")
}

func TestEngine_RestoreBackup_Sandbox(t *testing.T) {
	engine, mock := newTestEngine(t)
	expectUsuariosQuery(mock)

	archive, err := engine.CreateBackup(context.Background(), testPassword, CreateOptions{Tables: []string{"usuarios"}})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `recovery_test_abc`.`usuarios` LIKE `usuarios`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `recovery_test_abc`.`usuarios`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO `recovery_test_abc`.`usuarios`").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	result, err := engine.RestoreBackup(context.Background(), archive, testPassword, RestoreOptions{
		TargetSchema: "recovery_test_abc",
		Strategy:     RestoreStrategyReplace,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RestoredTables)
	assert.Equal(t, 2, result.RestoredRows)
	assert.Empty(t, result.SkippedTables)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_RestoreBackup_SkipsCriticalInProduction(t *testing.T) {
	engine, mock := newTestEngine(t)
	expectUsuariosQuery(mock)

	archive, err := engine.CreateBackup(context.Background(), testPassword, CreateOptions{Tables: []string{"usuarios"}})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := engine.RestoreBackup(context.Background(), archive, testPassword, RestoreOptions{
		Strategy: RestoreStrategyReplace,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RestoredTables)
	assert.Equal(t, []string{"usuarios"}, result.SkippedTables)
	require.Len(t, result.Tables, 1)
	assert.True(t, result.Tables[0].Skipped)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_RestoreBackup_InvalidTargetSchema(t *testing.T) {
	engine, mock := newTestEngine(t)
	expectUsuariosQuery(mock)

	archive, err := engine.CreateBackup(context.Background(), testPassword, CreateOptions{Tables: []string{"usuarios"}})
	require.NoError(t, err)

	_, err = engine.RestoreBackup(context.Background(), archive, testPassword, RestoreOptions{
		TargetSchema: "bad;schema",
	})
	require.Error(t, err)

	engineErr, ok := err.(*EngineError)
	require.True(t, ok)
	assert.Equal(t, EngineErrorTypeValidation, engineErr.Type)
}

func TestEngine_CleanupOldBackups_Idempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	old := testArchive("backup-20200101-000000-aaaaaaaa", time.Now().Add(-200*24*time.Hour))
	recent := testArchive("backup-20260830-120000-bbbbbbbb", time.Now())
	require.NoError(t, engine.archives.Store(ctx, old))
	require.NoError(t, engine.archives.Store(ctx, recent))

	result, err := engine.CleanupOldBackups(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Examined)
	assert.Equal(t, []string{old.ID}, result.Removed)

	// a second sweep finds nothing to remove
	result, err = engine.CleanupOldBackups(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, result.Removed)

	infos, err := engine.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, recent.ID, infos[0].ID)
}

func TestEngine_GetBackup_Missing(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.GetBackup(context.Background(), "backup-00000000-000000-00000000")
	require.Error(t, err)

	engineErr, ok := err.(*EngineError)
	require.True(t, ok)
	assert.Equal(t, EngineErrorTypeNotFound, engineErr.Type)
}
