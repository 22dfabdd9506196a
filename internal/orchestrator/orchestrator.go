package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pontovault/internal/audit"
	"pontovault/internal/logging"
)

// SystemState is the orchestrator's view of overall system health
type SystemState string

const (
	StateHealthy  SystemState = "HEALTHY"
	StateDegraded SystemState = "DEGRADED"
	StateCritical SystemState = "CRITICAL"
	StateDisaster SystemState = "DISASTER"
	StateRecovery SystemState = "RECOVERY"
)

// Config tunes the orchestrator's timing and behavior
type Config struct {
	BaseInterval      time.Duration
	DegradedInterval  time.Duration
	CriticalInterval  time.Duration
	GraceDelay        time.Duration
	ConfirmationDelay time.Duration
	EventBuffer       int
}

// DefaultConfig returns the standard orchestrator timing
func DefaultConfig() Config {
	return Config{
		BaseInterval:      60 * time.Second,
		DegradedInterval:  30 * time.Second,
		CriticalInterval:  15 * time.Second,
		GraceDelay:        5 * time.Minute,
		ConfirmationDelay: 30 * time.Second,
		EventBuffer:       64,
	}
}

// log rate-limit spacings per category
const (
	stateChangeLogSpacing = 2 * time.Second
	faultLogSpacing       = 5 * time.Second
	auditLogSpacing       = 10 * time.Second
)

// CheckRunner runs the health check battery. *HealthChecker is the
// production implementation.
type CheckRunner interface {
	RunChecks(ctx context.Context) []CheckResult
}

// PlanExecutor runs recovery plans. *Executor is the production
// implementation.
type PlanExecutor interface {
	ExecutePlan(ctx context.Context, plan *Plan) *Execution
}

// Orchestrator polls system health, drives the state machine and runs
// automatic recovery when the grace window expires.
type Orchestrator struct {
	checker   CheckRunner
	executor  PlanExecutor
	catalog   *Catalog
	recorder  audit.Recorder
	logger    *logging.Logger
	scheduler Scheduler
	config    Config

	mu            sync.Mutex
	state         SystemState
	stateSince    time.Time
	lastResults   []CheckResult
	lastTrigger   string
	lastExecution *Execution
	graceTimer    Timer
	pollTimer     Timer
	confirmTimer  Timer
	stopped       bool
	ctx           context.Context
	cancel        context.CancelFunc

	pollInFlight int32
	recovering   int32

	events chan Event

	logMu   sync.Mutex
	lastLog map[string]time.Time
}

// New creates an orchestrator in the Healthy state
func New(checker CheckRunner, executor PlanExecutor, catalog *Catalog, recorder audit.Recorder,
	logger *logging.Logger, scheduler Scheduler, config Config) *Orchestrator {
	if scheduler == nil {
		scheduler = NewRealScheduler()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if config.BaseInterval == 0 {
		config = DefaultConfig()
	}
	if config.GraceDelay == 0 {
		config.GraceDelay = 5 * time.Minute
	}
	if config.ConfirmationDelay == 0 {
		config.ConfirmationDelay = 30 * time.Second
	}
	if config.EventBuffer == 0 {
		config.EventBuffer = 64
	}

	return &Orchestrator{
		checker:   checker,
		executor:  executor,
		catalog:   catalog,
		recorder:  recorder,
		logger:    logger,
		scheduler: scheduler,
		config:    config,
		state:     StateHealthy,
		events:    make(chan Event, config.EventBuffer),
		lastLog:   make(map[string]time.Time),
	}
}

// State returns the current system state
func (o *Orchestrator) State() SystemState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status is a snapshot for the operational surface
type Status struct {
	State         SystemState   `json:"state"`
	StateSince    time.Time     `json:"state_since"`
	Checks        []CheckResult `json:"checks,omitempty"`
	LastExecution *Execution    `json:"last_execution,omitempty"`
}

// Status returns the current snapshot
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:         o.state,
		StateSince:    o.stateSince,
		Checks:        o.lastResults,
		LastExecution: o.lastExecution,
	}
}

// Start begins health polling. The first poll runs immediately.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.stateSince = o.scheduler.Now()
	o.stopped = false
	o.mu.Unlock()

	o.logger.Info("Disaster recovery orchestrator started")
	o.poll()
}

// Shutdown stops polling and cancels every armed timer
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopped = true
	if o.pollTimer != nil {
		o.pollTimer.Stop()
	}
	if o.graceTimer != nil {
		o.graceTimer.Stop()
		o.graceTimer = nil
	}
	if o.confirmTimer != nil {
		o.confirmTimer.Stop()
		o.confirmTimer = nil
	}
	if o.cancel != nil {
		o.cancel()
	}

	o.logger.Info("Disaster recovery orchestrator stopped")
}

// poll runs one health check battery. At most one poll is ever in flight;
// an overlapping schedule is skipped, never queued.
func (o *Orchestrator) poll() {
	if !atomic.CompareAndSwapInt32(&o.pollInFlight, 0, 1) {
		o.schedulePoll()
		return
	}
	defer atomic.StoreInt32(&o.pollInFlight, 0)

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	ctx := o.ctx
	o.mu.Unlock()

	results := o.checker.RunChecks(ctx)
	o.evaluate(results)
	o.schedulePoll()
}

// schedulePoll arms the next poll at the interval for the current state
func (o *Orchestrator) schedulePoll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return
	}

	interval := o.config.BaseInterval
	switch o.state {
	case StateDegraded:
		interval = o.config.DegradedInterval
	case StateCritical, StateDisaster, StateRecovery:
		interval = o.config.CriticalInterval
	}

	if o.pollTimer != nil {
		o.pollTimer.Stop()
	}
	o.pollTimer = o.scheduler.AfterFunc(interval, o.poll)
}

// evaluate maps check results onto the state machine
func (o *Orchestrator) evaluate(results []CheckResult) {
	o.mu.Lock()
	o.lastResults = results

	// recovery owns the state until it finishes
	if o.state == StateRecovery {
		o.mu.Unlock()
		return
	}

	criticalFailure := false
	degradedFailure := false
	trigger := ""
	reason := ""
	for _, result := range results {
		if result.Healthy {
			continue
		}
		if result.Critical {
			criticalFailure = true
			if trigger == "" {
				trigger = result.Category
				reason = result.Name + ": " + result.Detail
			}
		} else {
			degradedFailure = true
			if reason == "" {
				reason = result.Name + ": " + result.Detail
			}
		}
	}

	if trigger != "" {
		o.lastTrigger = trigger
	}
	o.mu.Unlock()

	switch {
	case criticalFailure:
		// a disaster declared by fault reporting stays a disaster
		if o.State() != StateDisaster {
			o.transitionTo(StateCritical, reason)
		}
	case degradedFailure:
		o.transitionTo(StateDegraded, reason)
	default:
		o.transitionTo(StateHealthy, "all checks passing")
	}
}

// transitionTo applies a state change. Same-state transitions are no-ops.
// Entering Critical arms the one-shot grace timer; leaving it disarms it.
func (o *Orchestrator) transitionTo(newState SystemState, reason string) {
	o.mu.Lock()

	if o.state == newState {
		o.mu.Unlock()
		return
	}

	previous := o.state
	o.state = newState
	o.stateSince = o.scheduler.Now()

	if newState == StateCritical && o.graceTimer == nil {
		o.graceTimer = o.scheduler.AfterFunc(o.config.GraceDelay, o.graceExpired)
	}
	if newState != StateCritical && o.graceTimer != nil {
		o.graceTimer.Stop()
		o.graceTimer = nil
	}
	o.mu.Unlock()

	o.rateLimitedLog("state_change", stateChangeLogSpacing, func() {
		o.logger.LogStateTransition(string(previous), string(newState), reason)
	})
	o.rateLimitedLog("audit", auditLogSpacing, func() {
		o.recorder.Record(audit.Event{
			Action:   "STATE_TRANSITION",
			Category: "DISASTER_RECOVERY",
			Severity: severityForState(newState),
			Details: map[string]interface{}{
				"previous_state": string(previous),
				"new_state":      string(newState),
				"reason":         reason,
			},
		})
	})

	o.publish(Event{
		Type:          EventStateChanged,
		State:         newState,
		PreviousState: previous,
		Reason:        reason,
	})

	if newState == StateDisaster {
		go o.InitiateAutomaticRecovery()
	}
}

// graceExpired fires once when the Critical grace window ends
func (o *Orchestrator) graceExpired() {
	o.mu.Lock()
	o.graceTimer = nil
	stillCritical := o.state == StateCritical
	o.mu.Unlock()

	if !stillCritical {
		return
	}

	o.logger.Warn("Critical state persisted through the grace window, starting automatic recovery")
	o.InitiateAutomaticRecovery()
}

// ReportFault feeds an external fault into the state machine. Critical
// faults declare a disaster and trigger immediate emergency recovery.
func (o *Orchestrator) ReportFault(category, detail string, critical bool) {
	o.rateLimitedLog("fault", faultLogSpacing, func() {
		o.logger.WithFields(map[string]interface{}{
			"category": category,
			"critical": critical,
		}).Warn("Fault reported: " + detail)
	})

	o.mu.Lock()
	o.lastTrigger = category
	o.mu.Unlock()

	o.publish(Event{
		Type:   EventFaultReported,
		State:  o.State(),
		Reason: detail,
		Details: map[string]interface{}{
			"category": category,
			"critical": critical,
		},
	})

	if critical {
		o.transitionTo(StateDisaster, "critical fault: "+detail)
	} else {
		o.transitionTo(StateDegraded, "fault: "+detail)
	}
}

// InitiateAutomaticRecovery selects and executes a plan. Exactly one
// recovery ever runs at a time; a concurrent trigger is a no-op.
func (o *Orchestrator) InitiateAutomaticRecovery() {
	if !atomic.CompareAndSwapInt32(&o.recovering, 0, 1) {
		o.logger.Debug("Recovery already in progress, ignoring trigger")
		return
	}
	defer atomic.StoreInt32(&o.recovering, 0)

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	trigger := o.lastTrigger
	ctx := o.ctx
	o.mu.Unlock()

	if trigger == "" {
		trigger = TriggerDatabaseFailure
	}

	plan, ok := o.catalog.SelectPlan(trigger)
	if !ok {
		o.logger.Errorf("No recovery plan matches trigger %s", trigger)
		o.transitionTo(StateDisaster, "no recovery plan for trigger "+trigger)
		return
	}

	o.transitionTo(StateRecovery, "executing plan "+plan.ID)
	o.publish(Event{
		Type:   EventRecoveryStarted,
		State:  StateRecovery,
		Reason: plan.Name,
		Details: map[string]interface{}{
			"plan_id": plan.ID,
			"trigger": trigger,
		},
	})

	execution := o.executor.ExecutePlan(ctx, plan)

	o.mu.Lock()
	o.lastExecution = execution
	o.mu.Unlock()

	if execution.Success {
		o.publish(Event{
			Type:   EventRecoveryCompleted,
			State:  StateRecovery,
			Reason: plan.Name,
			Details: map[string]interface{}{
				"recovery_id": execution.RecoveryID,
				"duration":    execution.Duration.String(),
			},
		})
		o.armConfirmation()
		return
	}

	steps := make([]map[string]interface{}, 0, len(execution.Steps))
	for _, step := range execution.Steps {
		steps = append(steps, map[string]interface{}{
			"name":    step.Name,
			"success": step.Success,
			"error":   step.Error,
		})
	}
	o.publish(Event{
		Type:   EventRecoveryFailed,
		State:  StateDisaster,
		Reason: plan.Name,
		Details: map[string]interface{}{
			"recovery_id": execution.RecoveryID,
			"steps":       steps,
		},
	})

	o.forceState(StateDisaster, "recovery plan "+plan.ID+" failed")
}

// armConfirmation waits out the confirmation window, then returns to
// Healthy if nothing went wrong in the meantime.
func (o *Orchestrator) armConfirmation() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.confirmTimer != nil {
		o.confirmTimer.Stop()
	}
	o.confirmTimer = o.scheduler.AfterFunc(o.config.ConfirmationDelay, func() {
		o.mu.Lock()
		o.confirmTimer = nil
		inRecovery := o.state == StateRecovery
		o.mu.Unlock()

		if inRecovery {
			o.transitionTo(StateHealthy, "recovery confirmed")
		}
	})
}

// forceState applies a transition even out of Recovery
func (o *Orchestrator) forceState(newState SystemState, reason string) {
	o.mu.Lock()
	current := o.state
	o.mu.Unlock()

	if current == newState {
		return
	}

	// Disaster reached through a failed recovery must not re-trigger
	// recovery; transitionTo only auto-triggers, so set state directly.
	o.mu.Lock()
	previous := o.state
	o.state = newState
	o.stateSince = o.scheduler.Now()
	o.mu.Unlock()

	o.logger.LogStateTransition(string(previous), string(newState), reason)
	o.publish(Event{
		Type:          EventStateChanged,
		State:         newState,
		PreviousState: previous,
		Reason:        reason,
	})
}

// rateLimitedLog runs fn unless the category logged within its spacing
func (o *Orchestrator) rateLimitedLog(category string, spacing time.Duration, fn func()) {
	o.logMu.Lock()
	last, ok := o.lastLog[category]
	now := o.scheduler.Now()
	if ok && now.Sub(last) < spacing {
		o.logMu.Unlock()
		return
	}
	o.lastLog[category] = now
	o.logMu.Unlock()

	fn()
}

func severityForState(state SystemState) audit.Severity {
	switch state {
	case StateDisaster:
		return audit.SeverityCritical
	case StateCritical:
		return audit.SeverityError
	case StateDegraded, StateRecovery:
		return audit.SeverityWarning
	default:
		return audit.SeverityInfo
	}
}
