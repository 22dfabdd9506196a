package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pontovault/internal/confirmation"
	apperrors "pontovault/internal/errors"
	"pontovault/internal/orchestrator"
)

var (
	drTrigger     string
	drAutoApprove bool
)

var drCmd = &cobra.Command{
	Use:   "dr",
	Short: "Disaster recovery monitoring and orchestration",
}

var drMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the disaster recovery orchestrator",
	Long: `Run the disaster recovery orchestrator until interrupted.

The orchestrator polls system health, escalates through DEGRADED and
CRITICAL states as checks fail, and initiates automatic recovery when
the system reaches DISASTER or stays CRITICAL past the grace period.`,
	RunE: runDRMonitor,
}

var drStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run the health check battery and report system state",
	RunE:  runDRStatus,
}

var drTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Execute the recovery plan for a failure category now",
	RunE:  runDRTrigger,
}

func init() {
	drTriggerCmd.Flags().StringVar(&drTrigger, "category", orchestrator.TriggerDatabaseFailure,
		"failure category (DATABASE_FAILURE, APPLICATION_FAILURE, SECURITY_BREACH, INFRASTRUCTURE_FAILURE)")
	drTriggerCmd.Flags().BoolVar(&drAutoApprove, "confirm", false, "skip the interactive confirmation prompt")

	drCmd.AddCommand(drMonitorCmd, drStatusCmd, drTriggerCmd)
	rootCmd.AddCommand(drCmd)
}

// buildOrchestrator wires the health checker, plan executor, and catalog
func buildOrchestrator(app *appContext) (*orchestrator.Orchestrator, error) {
	password := os.Getenv("PONTOVAULT_BACKUP_PASSWORD")

	checker := orchestrator.NewHealthChecker(app.store, app.engine, app.logger, orchestrator.HealthConfig{
		BackupRecency:   app.config.Orchestrator.BackupRecency,
		QueryLatencyMax: app.config.Orchestrator.QueryLatencyMax,
		StorageCapacity: app.config.Orchestrator.StorageCapacity,
	})

	executor := orchestrator.NewExecutor(app.engine, app.store, nil, app.recorder, app.logger, password)

	catalog := orchestrator.DefaultCatalog()
	if path := app.config.Orchestrator.PlanCatalogPath; path != "" {
		loaded, err := orchestrator.LoadCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load plan catalog: %w", err)
		}
		catalog = loaded
	}

	return orchestrator.New(checker, executor, catalog, app.recorder, app.logger, nil, orchestrator.Config{
		BaseInterval:     app.config.Orchestrator.BaseInterval,
		DegradedInterval: app.config.Orchestrator.DegradedInterval,
		CriticalInterval: app.config.Orchestrator.CriticalInterval,
		GraceDelay:       app.config.Orchestrator.GraceDelay,
	}), nil
}

func runDRMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if os.Getenv("PONTOVAULT_BACKUP_PASSWORD") == "" {
		app.logger.Warn("PONTOVAULT_BACKUP_PASSWORD is not set, automatic restore steps will fail")
	}

	orch, err := buildOrchestrator(app)
	if err != nil {
		return err
	}

	// Surface orchestrator events on the console
	go func() {
		for event := range orch.Events() {
			switch event.Type {
			case orchestrator.EventStateChanged:
				fmt.Printf("[%s] %s -> %s: %s\n",
					event.Timestamp.Format("15:04:05"), event.PreviousState, event.State, event.Reason)
			default:
				fmt.Printf("[%s] %s: %s\n",
					event.Timestamp.Format("15:04:05"), event.Type, event.Reason)
			}
		}
	}()

	shutdown := apperrors.NewGracefulShutdownHandler()
	shutdown.RegisterShutdownFunc(func() error {
		orch.Shutdown()
		return nil
	})
	shutdown.Start()

	orch.Start(ctx)
	shutdown.WaitForShutdown()
	return nil
}

func runDRStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	checker := orchestrator.NewHealthChecker(app.store, app.engine, app.logger, orchestrator.HealthConfig{
		BackupRecency:   app.config.Orchestrator.BackupRecency,
		QueryLatencyMax: app.config.Orchestrator.QueryLatencyMax,
		StorageCapacity: app.config.Orchestrator.StorageCapacity,
	})

	results := checker.RunChecks(ctx)

	state := orchestrator.StateHealthy
	for _, result := range results {
		if result.Healthy {
			continue
		}
		if result.Critical {
			state = orchestrator.StateCritical
			break
		}
		state = orchestrator.StateDegraded
	}

	out, err := app.formatter.FormatStatus(orchestrator.Status{
		State:  state,
		Checks: results,
	})
	if err != nil {
		return err
	}
	fmt.Println(out)

	if state != orchestrator.StateHealthy {
		return fmt.Errorf("system is %s", state)
	}
	return nil
}

func runDRTrigger(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	catalog := orchestrator.DefaultCatalog()
	if path := app.config.Orchestrator.PlanCatalogPath; path != "" {
		loaded, err := orchestrator.LoadCatalog(path)
		if err != nil {
			return fmt.Errorf("failed to load plan catalog: %w", err)
		}
		catalog = loaded
	}

	plan, ok := catalog.SelectPlan(drTrigger)
	if !ok {
		return fmt.Errorf("no recovery plan matches category %s", drTrigger)
	}

	stepNames := make([]string, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		stepNames = append(stepNames, step.Name)
	}

	confirmer := confirmation.NewService(app.colors)
	approved, err := confirmer.Confirm(confirmation.OperationSummary{
		Title:       "MANUAL DISASTER RECOVERY",
		Target:      fmt.Sprintf("plan %s (%s)", plan.ID, plan.Name),
		Tables:      nil,
		Warnings:    append([]string{"Recovery may restore a backup over production data."}, stepNames...),
		Destructive: true,
	}, drAutoApprove)
	if err != nil {
		return err
	}
	if !approved {
		return nil
	}

	password, err := resolvePassphrase(false)
	if err != nil {
		return err
	}

	executor := orchestrator.NewExecutor(app.engine, app.store, nil, app.recorder, app.logger, password)

	execution := executor.ExecutePlan(ctx, plan)
	for _, step := range execution.Steps {
		marker := "ok"
		if !step.Success {
			marker = "FAILED"
		}
		fmt.Printf("  [%s] %s (%s)\n", marker, step.Name, step.Duration)
		if step.Error != "" {
			fmt.Printf("         %s\n", step.Error)
		}
	}

	if !execution.Success {
		return fmt.Errorf("recovery plan %s failed", plan.ID)
	}
	fmt.Printf("Recovery %s completed in %s\n", execution.RecoveryID, execution.Duration)
	return nil
}
