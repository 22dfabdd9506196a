package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pontovault/internal/audit"
	"pontovault/internal/database"
	"pontovault/internal/logging"
)

// fakeServices counts controller calls and returns configured errors
type fakeServices struct {
	restarts   int
	depChecks  int
	restartErr error
	depsErr    error
}

func (f *fakeServices) RestartServices(ctx context.Context) error {
	f.restarts++
	return f.restartErr
}

func (f *fakeServices) CheckDependencies(ctx context.Context) error {
	f.depChecks++
	return f.depsErr
}

// captureRecorder keeps every audit event for assertions
type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureRecorder) Record(event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureRecorder) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	actions := make([]string, 0, len(c.events))
	for _, e := range c.events {
		actions = append(actions, e.Action)
	}
	return actions
}

func servicePlan(steps ...PlanStep) *Plan {
	return &Plan{
		ID:       "plan-test",
		Name:     "Test plan",
		Priority: 1,
		Triggers: []string{TriggerApplicationFailure},
		Steps:    steps,
	}
}

func TestExecutor_RunsAllSteps(t *testing.T) {
	services := &fakeServices{}
	executor := NewExecutor(nil, nil, services, audit.NewNopRecorder(), logging.NewDefaultLogger(), "")

	execution := executor.ExecutePlan(context.Background(), servicePlan(
		PlanStep{Name: "Restart services", Action: ActionRestartServices, Timeout: time.Minute},
		PlanStep{Name: "Check dependencies", Action: ActionCheckDependencies, Timeout: time.Minute},
	))

	assert.True(t, execution.Success)
	require.Len(t, execution.Steps, 2)
	assert.True(t, execution.Steps[0].Success)
	assert.True(t, execution.Steps[1].Success)
	assert.Equal(t, 1, services.restarts)
	assert.Equal(t, 1, services.depChecks)
	assert.True(t, strings.HasPrefix(execution.RecoveryID, "recovery-"))
	assert.Equal(t, "plan-test", execution.PlanID)
}

func TestExecutor_FirstFailureAbortsRemainingSteps(t *testing.T) {
	services := &fakeServices{restartErr: errors.New("systemd unavailable")}
	executor := NewExecutor(nil, nil, services, audit.NewNopRecorder(), logging.NewDefaultLogger(), "")

	execution := executor.ExecutePlan(context.Background(), servicePlan(
		PlanStep{Name: "Restart services", Action: ActionRestartServices},
		PlanStep{Name: "Check dependencies", Action: ActionCheckDependencies},
	))

	assert.False(t, execution.Success)
	require.Len(t, execution.Steps, 1)
	assert.False(t, execution.Steps[0].Success)
	assert.Contains(t, execution.Steps[0].Error, "systemd unavailable")
	assert.Equal(t, 0, services.depChecks)
}

func TestExecutor_UnknownActionFails(t *testing.T) {
	executor := NewExecutor(nil, nil, &fakeServices{}, audit.NewNopRecorder(), logging.NewDefaultLogger(), "")

	execution := executor.ExecutePlan(context.Background(), servicePlan(
		PlanStep{Name: "Mystery step", Action: "teleport_datacenter"},
	))

	assert.False(t, execution.Success)
	require.Len(t, execution.Steps, 1)
	assert.Contains(t, execution.Steps[0].Error, "unknown plan action")
}

func TestExecutor_ValidateIntegrity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := database.NewStoreWithDB(db, "ponto_digital", logging.NewDefaultLogger())
	executor := NewExecutor(nil, store, &fakeServices{}, audit.NewNopRecorder(), logging.NewDefaultLogger(), "")

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `usuarios` WHERE perfil = \\?").
		WithArgs("ADMINISTRADOR").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `colaboradores` WHERE ativo = 1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	execution := executor.ExecutePlan(context.Background(), servicePlan(
		PlanStep{Name: "Validate restored data", Action: ActionValidateIntegrity},
	))

	assert.True(t, execution.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_ValidateIntegrity_NoAdministrator(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := database.NewStoreWithDB(db, "ponto_digital", logging.NewDefaultLogger())
	executor := NewExecutor(nil, store, &fakeServices{}, audit.NewNopRecorder(), logging.NewDefaultLogger(), "")

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `usuarios` WHERE perfil = \\?").
		WithArgs("ADMINISTRADOR").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	execution := executor.ExecutePlan(context.Background(), servicePlan(
		PlanStep{Name: "Validate restored data", Action: ActionValidateIntegrity},
	))

	assert.False(t, execution.Success)
	assert.Contains(t, execution.Steps[0].Error, "no administrator account")
}

func TestExecutor_AuditTrail(t *testing.T) {
	recorder := &captureRecorder{}
	executor := NewExecutor(nil, nil, &fakeServices{}, recorder, logging.NewDefaultLogger(), "")

	executor.ExecutePlan(context.Background(), servicePlan(
		PlanStep{Name: "Check dependencies", Action: ActionCheckDependencies},
	))
	assert.Equal(t, []string{"RECOVERY_PLAN_STARTED", "RECOVERY_PLAN_COMPLETED"}, recorder.actions())

	failing := &captureRecorder{}
	executor = NewExecutor(nil, nil, &fakeServices{depsErr: errors.New("redis down")}, failing, logging.NewDefaultLogger(), "")
	executor.ExecutePlan(context.Background(), servicePlan(
		PlanStep{Name: "Check dependencies", Action: ActionCheckDependencies},
	))
	assert.Equal(t, []string{"RECOVERY_PLAN_STARTED", "RECOVERY_PLAN_FAILED"}, failing.actions())
}
