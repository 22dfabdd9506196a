package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pontovault/internal/logging"
)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStoreWithDB(db, "ponto_digital", logging.NewDefaultLogger()), mock
}

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		ident string
		want  bool
	}{
		{"simple table", "usuarios", true},
		{"with underscore", "registros_ponto", true},
		{"with digits", "recovery_test_a1b2c3d4e5f6", true},
		{"empty", "", false},
		{"semicolon injection", "bad;schema", false},
		{"backtick", "bad`name", false},
		{"space", "two words", false},
		{"hyphen", "kebab-case", false},
		{"too long", string(make([]byte, 65)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIdentifier(tt.ident))
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`usuarios`", QuoteIdentifier("usuarios"))
	assert.Equal(t, "`badname`", QuoteIdentifier("bad`name"))
}

func TestListTables(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"table_name"}).
		AddRow("colaboradores").
		AddRow("registros_ponto").
		AddRow("usuarios")
	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WithArgs("ponto_digital").
		WillReturnRows(rows)

	tables, err := store.ListTables(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"colaboradores", "registros_ponto", "usuarios"}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTables_ExplicitSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WithArgs("recovery_test_abc").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("usuarios"))

	tables, err := store.ListTables(context.Background(), "recovery_test_abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"usuarios"}, tables)
}

func TestListColumns(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"column_name"}).
		AddRow("id").
		AddRow("email").
		AddRow("senha_hash")
	mock.ExpectQuery("SELECT column_name FROM information_schema.columns").
		WithArgs("ponto_digital", "usuarios").
		WillReturnRows(rows)

	columns, err := store.ListColumns(context.Background(), "", "usuarios")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email", "senha_hash"}, columns)
}

func TestCreateSchema_RejectsInvalidName(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.CreateSchema(context.Background(), "bad;schema")
	assert.Error(t, err)

	err = store.CreateSchema(context.Background(), "")
	assert.Error(t, err)
}

func TestCreateAndDropSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS `recovery_test_abc`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP DATABASE IF EXISTS `recovery_test_abc`").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, store.CreateSchema(ctx, "recovery_test_abc"))
	require.NoError(t, store.DropSchema(ctx, "recovery_test_abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropSchema_RejectsInvalidName(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.DropSchema(context.Background(), "x; DROP DATABASE ponto_digital")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	store := NewStoreWithDB(db, "ponto_digital", logging.NewDefaultLogger())

	mock.ExpectPing()
	assert.NoError(t, store.Ping(context.Background()))
}

func TestDatabaseConfig_Validate(t *testing.T) {
	valid := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		Username: "backup_user",
		Database: "ponto_digital",
		Timeout:  30 * time.Second,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*DatabaseConfig)
	}{
		{"missing host", func(c *DatabaseConfig) { c.Host = "" }},
		{"port zero", func(c *DatabaseConfig) { c.Port = 0 }},
		{"port too high", func(c *DatabaseConfig) { c.Port = 70000 }},
		{"missing username", func(c *DatabaseConfig) { c.Username = "" }},
		{"missing database", func(c *DatabaseConfig) { c.Database = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestDatabaseConfig_SetDefaults(t *testing.T) {
	config := DatabaseConfig{Host: "localhost", Username: "u", Database: "d"}
	config.SetDefaults()

	assert.Equal(t, 3306, config.Port)
	assert.Equal(t, 30*time.Second, config.Timeout)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	config := DatabaseConfig{
		Host:     "db.internal",
		Port:     3307,
		Username: "backup_user",
		Password: "secret",
		Database: "ponto_digital",
		Timeout:  10 * time.Second,
	}

	dsn := config.DSN()
	assert.Contains(t, dsn, "backup_user:secret@tcp(db.internal:3307)/ponto_digital")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=false")
}
