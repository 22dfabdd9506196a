package recovery

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Finalize_AllPhasesPass(t *testing.T) {
	report := &Report{
		TestID:    "validation-test1234",
		StartedAt: time.Now().Add(-30 * time.Second),
		Phases: []PhaseResult{
			{Name: PhaseIntegrity, Success: true},
			{Name: PhaseRecoveryTest, Success: true},
			{Name: PhaseDataConsistency, Success: true},
			{Name: PhasePerformance, Success: true},
			{Name: PhaseFunctionality, Success: true},
		},
	}

	report.finalize()

	assert.True(t, report.OverallSuccess)
	assert.Equal(t, 100, report.Grade)
	assert.Empty(t, report.Recommendation)
}

func TestReport_Finalize_FailedPhasesReduceGrade(t *testing.T) {
	report := &Report{
		StartedAt: time.Now().Add(-10 * time.Second),
		Phases: []PhaseResult{
			{Name: PhaseIntegrity, Success: true},
			{Name: PhaseRecoveryTest, Success: true},
			{Name: PhaseDataConsistency, Success: false},
			{Name: PhasePerformance, Success: false},
			{Name: PhaseFunctionality, Success: true},
		},
	}

	report.finalize()

	assert.False(t, report.OverallSuccess)
	// two failed phases at 20 each plus the performance penalty
	assert.Equal(t, 50, report.Grade)
}

func TestReport_Finalize_SlowRunPenalty(t *testing.T) {
	report := &Report{
		StartedAt: time.Now().Add(-3 * time.Minute),
		Phases: []PhaseResult{
			{Name: PhaseIntegrity, Success: true},
			{Name: PhaseRecoveryTest, Success: true},
		},
	}

	report.finalize()

	assert.True(t, report.OverallSuccess)
	assert.Equal(t, 85, report.Grade)
	// passing but slow runs still get a low-priority recommendation
	require.Len(t, report.Recommendation, 1)
	assert.Equal(t, "RECOVERY", report.Recommendation[0].Category)
	assert.Equal(t, "LOW", report.Recommendation[0].Priority)
}

func TestReport_Finalize_GradeNeverNegative(t *testing.T) {
	report := &Report{
		StartedAt: time.Now().Add(-6 * time.Minute),
		Phases: []PhaseResult{
			{Name: PhaseIntegrity, Success: false},
			{Name: PhaseRecoveryTest, Success: false},
			{Name: PhaseDataConsistency, Success: false},
			{Name: PhasePerformance, Success: false},
			{Name: PhaseFunctionality, Success: false},
		},
	}

	report.finalize()

	assert.False(t, report.OverallSuccess)
	assert.Equal(t, 0, report.Grade)
}

func TestReport_Finalize_NoPhasesIsFailure(t *testing.T) {
	report := &Report{StartedAt: time.Now()}
	report.finalize()
	assert.False(t, report.OverallSuccess)
}

func TestReport_Recommendations_PerCategory(t *testing.T) {
	report := &Report{
		StartedAt: time.Now(),
		Phases: []PhaseResult{
			{Name: PhaseIntegrity, Success: false},
			{Name: PhaseRecoveryTest, Success: false},
			{Name: PhaseDataConsistency, Success: false},
			{Name: PhasePerformance, Success: false},
			{Name: PhaseFunctionality, Success: false},
		},
	}

	report.finalize()

	categories := make(map[string]string, len(report.Recommendation))
	for _, rec := range report.Recommendation {
		categories[rec.Category] = rec.Priority
	}

	assert.Equal(t, "CRITICAL", categories["BACKUP"])
	assert.Equal(t, "CRITICAL", categories["RECOVERY"])
	assert.Equal(t, "HIGH", categories["DATA"])
	assert.Equal(t, "MEDIUM", categories["PERFORMANCE"])
	assert.Equal(t, "HIGH", categories["FUNCTIONALITY"])
}

func TestReport_Save(t *testing.T) {
	dir := t.TempDir()
	report := &Report{
		TestID:    "validation-abcd1234",
		BackupID:  "backup-20260830-120000-aabbccdd",
		StartedAt: time.Now(),
		Phases:    []PhaseResult{{Name: PhaseIntegrity, Success: true}},
	}
	report.finalize()

	path, err := report.Save(dir)
	require.NoError(t, err)
	assert.Contains(t, path, "validation-abcd1234.json")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Report
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, report.TestID, loaded.TestID)
	assert.Equal(t, report.Grade, loaded.Grade)
}
