package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSQL(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			"no credentials",
			"SELECT * FROM `usuarios`",
			"SELECT * FROM `usuarios`",
		},
		{
			"single quoted password",
			"CREATE USER 'backup'@'%' IDENTIFIED BY password='secret123' REQUIRE SSL",
			"CREATE USER 'backup'@'%' IDENTIFIED BY password=*** REQUIRE SSL",
		},
		{
			"unquoted password",
			"SET password=secret123 FOR backup",
			"SET password=*** FOR backup",
		},
		{
			"uppercase marker",
			"SET PASSWORD=topsecret",
			"SET PASSWORD=***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeSQL(tt.sql))
		})
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: &buf,
		Format: "json",
	})
	require.NoError(t, err)

	logger.LogBackupOperation("create", "backup-20260830-120000-abcdef12", 2*time.Second, nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "create", entry["operation"])
	assert.Equal(t, "backup-20260830-120000-abcdef12", entry["backup_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestLogger_BackupFailureLogsError(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, Format: "json"})
	require.NoError(t, err)

	logger.LogBackupOperation("create", "backup-x", time.Second, errors.New("disk full"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "disk full", entry["error"])
}

func TestLogger_QuietSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelQuiet, Output: &buf, Format: "text"})
	require.NoError(t, err)

	logger.Info("routine message")
	assert.Empty(t, buf.String())

	logger.Error("something broke")
	assert.Contains(t, buf.String(), "something broke")
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, Format: "text"})
	require.NoError(t, err)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.SetLevel(LogLevelVerbose)
	assert.Equal(t, LogLevelVerbose, logger.GetLevel())

	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestLogger_SQLExecutionSanitizesQuery(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelQuiet, Output: &buf, Format: "json"})
	require.NoError(t, err)

	logger.LogSQLExecution("SET password=hunter2", time.Millisecond, 0, errors.New("denied"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "SET password=***", entry["query"])
	assert.NotContains(t, buf.String(), "hunter2")
}
