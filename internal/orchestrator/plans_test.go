package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_IsValid(t *testing.T) {
	catalog := DefaultCatalog()
	require.NoError(t, catalog.Validate())
	assert.Len(t, catalog.Plans, 4)
}

func TestCatalog_SelectPlan_ByTrigger(t *testing.T) {
	catalog := DefaultCatalog()

	plan, ok := catalog.SelectPlan(TriggerDatabaseFailure)
	require.True(t, ok)
	assert.Equal(t, "plan-database-failure", plan.ID)

	plan, ok = catalog.SelectPlan(TriggerSecurityBreach)
	require.True(t, ok)
	assert.Equal(t, "plan-security-breach", plan.ID)

	_, ok = catalog.SelectPlan("ALIEN_INVASION")
	assert.False(t, ok)
}

func TestCatalog_SelectPlan_LowerPriorityNumberWins(t *testing.T) {
	catalog := &Catalog{
		Plans: []Plan{
			{
				ID: "secondary", Priority: 5,
				Triggers: []string{TriggerDatabaseFailure},
				Steps:    []PlanStep{{Name: "noop", Action: ActionCheckDependencies}},
			},
			{
				ID: "primary", Priority: 1,
				Triggers: []string{TriggerDatabaseFailure},
				Steps:    []PlanStep{{Name: "noop", Action: ActionCheckDependencies}},
			},
		},
	}

	plan, ok := catalog.SelectPlan(TriggerDatabaseFailure)
	require.True(t, ok)
	assert.Equal(t, "primary", plan.ID)
}

func TestCatalog_Validate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		catalog Catalog
	}{
		{"empty catalog", Catalog{}},
		{"missing ID", Catalog{Plans: []Plan{{Triggers: []string{"X"}, Steps: []PlanStep{{Name: "s"}}}}}},
		{"duplicate ID", Catalog{Plans: []Plan{
			{ID: "p", Triggers: []string{"X"}, Steps: []PlanStep{{Name: "s"}}},
			{ID: "p", Triggers: []string{"X"}, Steps: []PlanStep{{Name: "s"}}},
		}}},
		{"no triggers", Catalog{Plans: []Plan{{ID: "p", Steps: []PlanStep{{Name: "s"}}}}}},
		{"no steps", Catalog{Plans: []Plan{{ID: "p", Triggers: []string{"X"}}}}},
		{"unknown dependency", Catalog{Plans: []Plan{{
			ID: "p", Triggers: []string{"X"},
			Steps:        []PlanStep{{Name: "s"}},
			Dependencies: []string{"ghost"},
		}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.catalog.Validate())
		})
	}
}

func TestLoadCatalog_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	content := `plans:
  - id: plan-custom
    name: Custom recovery
    priority: 1
    rto: 15m
    rpo: 1h
    triggers:
      - DATABASE_FAILURE
    steps:
      - name: Restore latest backup
        action: restore_latest_backup
        timeout: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Plans, 1)

	plan := catalog.Plans[0]
	assert.Equal(t, "plan-custom", plan.ID)
	assert.Equal(t, 15*time.Minute, plan.RTO)
	assert.Equal(t, time.Hour, plan.RPO)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, ActionRestoreBackup, plan.Steps[0].Action)
	assert.Equal(t, 10*time.Minute, plan.Steps[0].Timeout)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadCatalog_InvalidCatalogRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plans: []\n"), 0600))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}
