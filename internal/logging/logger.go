package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except critical errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level   LogLevel
	Output  io.Writer
	Format  string // "text" or "json"
	LogFile string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}
		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: os.Stdout,
		Format: "text",
	})
	return logger
}

// WithFields returns a logger entry with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger entry with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// Domain operation logging methods

// LogBackupOperation logs a backup engine operation with its outcome
func (l *Logger) LogBackupOperation(operation, backupID string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": operation,
		"backup_id": backupID,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Backup operation failed")
	} else {
		l.logger.WithFields(fields).Info("Backup operation completed")
	}
}

// LogRestoreOperation logs a restore run, including where it landed
func (l *Logger) LogRestoreOperation(backupID, targetSchema string, tables, records int, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":        "restore",
		"backup_id":        backupID,
		"restored_tables":  tables,
		"restored_records": records,
		"duration":         duration.String(),
	}
	if targetSchema != "" {
		fields["target_schema"] = targetSchema
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Restore failed")
	} else {
		l.logger.WithFields(fields).Info("Restore completed")
	}
}

// LogValidationPhase logs one phase of a recovery validation run
func (l *Logger) LogValidationPhase(testID, phase string, success bool, duration time.Duration) {
	fields := logrus.Fields{
		"test_id":  testID,
		"phase":    phase,
		"success":  success,
		"duration": duration.String(),
	}

	if success {
		l.logger.WithFields(fields).Info("Validation phase passed")
	} else {
		l.logger.WithFields(fields).Warn("Validation phase failed")
	}
}

// LogDatabaseConnection logs a database connection attempt
func (l *Logger) LogDatabaseConnection(host, database string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "database_connection",
		"host":      host,
		"database":  database,
		"duration":  duration.String(),
	}

	if success {
		l.logger.WithFields(fields).Info("Database connection established")
	} else {
		if err != nil {
			fields["error"] = err.Error()
		}
		l.logger.WithFields(fields).Error("Database connection failed")
	}
}

// LogSQLExecution logs SQL statement execution
func (l *Logger) LogSQLExecution(query string, duration time.Duration, rowsAffected int64, err error) {
	fields := logrus.Fields{
		"operation":     "sql_execution",
		"query":         SanitizeSQL(query),
		"duration":      duration.String(),
		"rows_affected": rowsAffected,
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("SQL execution failed")
	} else {
		l.logger.WithFields(fields).Debug("SQL executed")
	}
}

// LogStateTransition logs an orchestrator state change
func (l *Logger) LogStateTransition(from, to string, reason string) {
	l.logger.WithFields(logrus.Fields{
		"operation":      "state_transition",
		"previous_state": from,
		"new_state":      to,
		"reason":         reason,
	}).Info("System state changed")
}

// LogHealthCheck logs the outcome of a single health check
func (l *Logger) LogHealthCheck(name string, healthy bool, detail string, duration time.Duration) {
	fields := logrus.Fields{
		"operation": "health_check",
		"check":     name,
		"healthy":   healthy,
		"duration":  duration.String(),
	}
	if detail != "" {
		fields["detail"] = detail
	}

	if healthy {
		l.logger.WithFields(fields).Debug("Health check passed")
	} else {
		l.logger.WithFields(fields).Warn("Health check failed")
	}
}

// Standard logging methods

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// SanitizeSQL removes credential material from SQL text before logging
func SanitizeSQL(sql string) string {
	for _, marker := range []string{"password=", "PASSWORD="} {
		if !strings.Contains(sql, marker) {
			continue
		}
		parts := strings.Split(sql, marker)
		if len(parts) < 2 {
			continue
		}
		passwordPart := parts[1]
		var endIndex int
		if len(passwordPart) > 0 && (passwordPart[0] == '\'' || passwordPart[0] == '"') {
			quote := passwordPart[0]
			endIndex = strings.Index(passwordPart[1:], string(quote))
			if endIndex != -1 {
				endIndex += 2
			} else {
				endIndex = len(passwordPart)
			}
		} else {
			endIndex = strings.Index(passwordPart, " ")
			if endIndex == -1 {
				endIndex = len(passwordPart)
			}
		}
		sql = parts[0] + marker + "***" + passwordPart[endIndex:]
	}
	return sql
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	switch level {
	case LogLevelQuiet:
		l.logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		l.logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		l.logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		l.logger.SetLevel(logrus.TraceLevel)
	}
}
