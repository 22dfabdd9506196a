package backup

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateBackupID_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^backup-\d{8}-\d{6}-[0-9a-f]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := GenerateBackupID()
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "duplicate backup ID %s", id)
		seen[id] = true
	}
}

func TestCalculateDataChecksum(t *testing.T) {
	sum := CalculateDataChecksum([]byte("hello"))
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, CalculateDataChecksum([]byte("hello")))
	assert.NotEqual(t, sum, CalculateDataChecksum([]byte("hello!")))
}

func TestCriticalTables(t *testing.T) {
	assert.True(t, CriticalTables["usuarios"])
	assert.True(t, CriticalTables["audit_sessions"])
	assert.False(t, CriticalTables["registros_ponto"])
}

func TestDefaultTables_ExcludeBiometric(t *testing.T) {
	assert.NotContains(t, DefaultTables, "biometric_data")
	assert.Contains(t, DefaultTables, "usuarios")
	assert.Contains(t, DefaultTables, "registros_ponto")
}
