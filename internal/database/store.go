package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"pontovault/internal/errors"
	"pontovault/internal/logging"
)

// Store defines the data-store collaborator used by the backup engine,
// the recovery validator and the orchestrator health checks. All query
// parameters go through placeholders; identifiers are validated before
// interpolation.
type Store interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Begin(ctx context.Context) (*sql.Tx, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	ListColumns(ctx context.Context, schema, table string) ([]string, error)
	CreateSchema(ctx context.Context, name string) error
	DropSchema(ctx context.Context, name string) error
	SchemaName() string
	Close() error
}

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidIdentifier reports whether name is safe to interpolate as a
// schema or table identifier.
func ValidIdentifier(name string) bool {
	return name != "" && len(name) <= 64 && identPattern.MatchString(name)
}

// QuoteIdentifier wraps a validated identifier in backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}

// MySQLStore implements Store on top of database/sql with the MySQL driver
type MySQLStore struct {
	db           *sql.DB
	schema       string
	queryTimeout time.Duration
	logger       *logging.Logger
	retryHandler *errors.RetryHandler
}

// Connect opens a MySQL connection with retry logic and returns a store
// bound to the configured schema.
func Connect(config DatabaseConfig, logger *logging.Logger) (*MySQLStore, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "invalid database configuration", err)
	}

	startTime := time.Now()
	retryHandler := errors.NewDefaultRetryHandler()

	logger.WithFields(map[string]interface{}{
		"host":     config.Host,
		"database": config.Database,
		"port":     config.Port,
	}).Info("Attempting database connection")

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	var db *sql.DB
	err := retryHandler.Retry(ctx, func() error {
		var connectErr error

		db, connectErr = sql.Open("mysql", config.DSN())
		if connectErr != nil {
			return errors.WrapError(connectErr, "failed to open database connection")
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if pingErr := db.PingContext(ctx); pingErr != nil {
			db.Close()
			return errors.WrapError(pingErr, "failed to ping database")
		}

		return nil
	})

	duration := time.Since(startTime)
	logger.LogDatabaseConnection(config.Host, config.Database, err == nil, duration, err)

	if err != nil {
		return nil, err
	}

	return &MySQLStore{
		db:           db,
		schema:       config.Database,
		queryTimeout: config.Timeout,
		logger:       logger,
		retryHandler: retryHandler,
	}, nil
}

// NewStoreWithDB wraps an existing connection. Used by tests with sqlmock.
func NewStoreWithDB(db *sql.DB, schema string, logger *logging.Logger) *MySQLStore {
	return &MySQLStore{
		db:           db,
		schema:       schema,
		queryTimeout: 30 * time.Second,
		logger:       logger,
		retryHandler: errors.NewDefaultRetryHandler(),
	}
}

// SchemaName returns the schema this store is bound to
func (s *MySQLStore) SchemaName() string {
	return s.schema
}

// Ping verifies the connection is alive
func (s *MySQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.WrapError(err, "failed to ping database")
	}
	return nil
}

// Query executes a parameterized query
func (s *MySQLStore) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	startTime := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.logger.LogSQLExecution(query, time.Since(startTime), -1, err)
	if err != nil {
		return nil, errors.WrapError(err, "query failed")
	}
	return rows, nil
}

// QueryRow executes a parameterized single-row query
func (s *MySQLStore) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// Exec executes a parameterized statement
func (s *MySQLStore) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	startTime := time.Now()
	result, err := s.db.ExecContext(ctx, query, args...)
	duration := time.Since(startTime)

	var rowsAffected int64
	if result != nil {
		rowsAffected, _ = result.RowsAffected()
	}
	s.logger.LogSQLExecution(query, duration, rowsAffected, err)

	if err != nil {
		return nil, errors.WrapError(err, "statement execution failed")
	}
	return result, nil
}

// Begin starts a transaction
func (s *MySQLStore) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WrapError(err, "failed to begin transaction")
	}
	return tx, nil
}

// ListTables returns the base tables of a schema via information_schema
func (s *MySQLStore) ListTables(ctx context.Context, schema string) ([]string, error) {
	if schema == "" {
		schema = s.schema
	}

	query := `SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := s.Query(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WrapError(err, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, "failed to list tables")
	}

	return tables, nil
}

// ListColumns returns the ordered column names of a table
func (s *MySQLStore) ListColumns(ctx context.Context, schema, table string) ([]string, error) {
	if schema == "" {
		schema = s.schema
	}

	query := `SELECT column_name FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`

	rows, err := s.Query(ctx, query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WrapError(err, "failed to scan column name")
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, "failed to list columns")
	}

	return columns, nil
}

// CreateSchema creates a new schema. Identifier is validated, not parameterized,
// because DDL does not accept placeholders.
func (s *MySQLStore) CreateSchema(ctx context.Context, name string) error {
	if !ValidIdentifier(name) {
		return errors.NewAppError(errors.ErrorTypeValidation,
			fmt.Sprintf("invalid schema name: %q", name), nil)
	}

	_, err := s.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET utf8mb4", QuoteIdentifier(name)))
	return err
}

// DropSchema removes a schema and everything in it
func (s *MySQLStore) DropSchema(ctx context.Context, name string) error {
	if !ValidIdentifier(name) {
		return errors.NewAppError(errors.ErrorTypeValidation,
			fmt.Sprintf("invalid schema name: %q", name), nil)
	}

	_, err := s.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", QuoteIdentifier(name)))
	return err
}

// Close closes the underlying connection pool
func (s *MySQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.WrapError(err, "failed to close database connection")
	}
	return nil
}
