package orchestrator

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Trigger categories matched against fault classifications
const (
	TriggerDatabaseFailure       = "DATABASE_FAILURE"
	TriggerApplicationFailure    = "APPLICATION_FAILURE"
	TriggerSecurityBreach        = "SECURITY_BREACH"
	TriggerInfrastructureFailure = "INFRASTRUCTURE_FAILURE"
)

// Step actions understood by the executor
const (
	ActionRestartServices   = "restart_services"
	ActionRestoreBackup     = "restore_latest_backup"
	ActionValidateIntegrity = "validate_data_integrity"
	ActionCheckDependencies = "check_dependencies"
)

// PlanStep is one step of a recovery plan
type PlanStep struct {
	Name    string        `yaml:"name" json:"name"`
	Action  string        `yaml:"action" json:"action"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Plan is a static recovery plan from the catalog
type Plan struct {
	ID           string        `yaml:"id" json:"id"`
	Name         string        `yaml:"name" json:"name"`
	Priority     int           `yaml:"priority" json:"priority"`
	RTO          time.Duration `yaml:"rto" json:"rto"`
	RPO          time.Duration `yaml:"rpo" json:"rpo"`
	Triggers     []string      `yaml:"triggers" json:"triggers"`
	Steps        []PlanStep    `yaml:"steps" json:"steps"`
	Dependencies []string      `yaml:"dependencies" json:"dependencies,omitempty"`
}

// UnmarshalYAML accepts human-readable durations like "10m"
func (s *PlanStep) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name    string `yaml:"name"`
		Action  string `yaml:"action"`
		Timeout string `yaml:"timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	s.Name = raw.Name
	s.Action = raw.Action
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid step timeout %q: %w", raw.Timeout, err)
		}
		s.Timeout = d
	}
	return nil
}

// UnmarshalYAML accepts human-readable durations for RTO and RPO
func (p *Plan) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ID           string     `yaml:"id"`
		Name         string     `yaml:"name"`
		Priority     int        `yaml:"priority"`
		RTO          string     `yaml:"rto"`
		RPO          string     `yaml:"rpo"`
		Triggers     []string   `yaml:"triggers"`
		Steps        []PlanStep `yaml:"steps"`
		Dependencies []string   `yaml:"dependencies"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	p.ID = raw.ID
	p.Name = raw.Name
	p.Priority = raw.Priority
	p.Triggers = raw.Triggers
	p.Steps = raw.Steps
	p.Dependencies = raw.Dependencies

	if raw.RTO != "" {
		d, err := time.ParseDuration(raw.RTO)
		if err != nil {
			return fmt.Errorf("invalid RTO %q: %w", raw.RTO, err)
		}
		p.RTO = d
	}
	if raw.RPO != "" {
		d, err := time.ParseDuration(raw.RPO)
		if err != nil {
			return fmt.Errorf("invalid RPO %q: %w", raw.RPO, err)
		}
		p.RPO = d
	}
	return nil
}

// Catalog holds the recovery plans loaded at startup
type Catalog struct {
	Plans []Plan `yaml:"plans"`
}

// LoadCatalog reads a plan catalog from a YAML file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	return &catalog, nil
}

// DefaultCatalog returns the built-in plan set
func DefaultCatalog() *Catalog {
	return &Catalog{
		Plans: []Plan{
			{
				ID:       "plan-database-failure",
				Name:     "Database failure recovery",
				Priority: 1,
				RTO:      30 * time.Minute,
				RPO:      24 * time.Hour,
				Triggers: []string{TriggerDatabaseFailure},
				Steps: []PlanStep{
					{Name: "Restart database-dependent services", Action: ActionRestartServices, Timeout: 2 * time.Minute},
					{Name: "Restore latest backup", Action: ActionRestoreBackup, Timeout: 20 * time.Minute},
					{Name: "Validate restored data", Action: ActionValidateIntegrity, Timeout: 10 * time.Minute},
				},
			},
			{
				ID:       "plan-application-failure",
				Name:     "Application failure recovery",
				Priority: 2,
				RTO:      10 * time.Minute,
				RPO:      0,
				Triggers: []string{TriggerApplicationFailure},
				Steps: []PlanStep{
					{Name: "Restart application services", Action: ActionRestartServices, Timeout: 2 * time.Minute},
					{Name: "Check service dependencies", Action: ActionCheckDependencies, Timeout: 2 * time.Minute},
				},
				Dependencies: []string{"plan-database-failure"},
			},
			{
				ID:       "plan-security-breach",
				Name:     "Security breach containment",
				Priority: 1,
				RTO:      15 * time.Minute,
				RPO:      24 * time.Hour,
				Triggers: []string{TriggerSecurityBreach},
				Steps: []PlanStep{
					{Name: "Restart services with rotated credentials", Action: ActionRestartServices, Timeout: 5 * time.Minute},
					{Name: "Restore last known-good backup", Action: ActionRestoreBackup, Timeout: 20 * time.Minute},
					{Name: "Validate restored data", Action: ActionValidateIntegrity, Timeout: 10 * time.Minute},
					{Name: "Check service dependencies", Action: ActionCheckDependencies, Timeout: 2 * time.Minute},
				},
			},
			{
				ID:       "plan-infrastructure-failure",
				Name:     "Infrastructure failure recovery",
				Priority: 3,
				RTO:      60 * time.Minute,
				RPO:      24 * time.Hour,
				Triggers: []string{TriggerInfrastructureFailure},
				Steps: []PlanStep{
					{Name: "Check service dependencies", Action: ActionCheckDependencies, Timeout: 5 * time.Minute},
					{Name: "Restart services", Action: ActionRestartServices, Timeout: 5 * time.Minute},
				},
				Dependencies: []string{"plan-database-failure", "plan-application-failure"},
			},
		},
	}
}

// Validate checks catalog invariants
func (c *Catalog) Validate() error {
	if len(c.Plans) == 0 {
		return fmt.Errorf("plan catalog is empty")
	}

	seen := make(map[string]bool, len(c.Plans))
	for _, plan := range c.Plans {
		if plan.ID == "" {
			return fmt.Errorf("plan without ID in catalog")
		}
		if seen[plan.ID] {
			return fmt.Errorf("duplicate plan ID %q", plan.ID)
		}
		seen[plan.ID] = true

		if len(plan.Triggers) == 0 {
			return fmt.Errorf("plan %s has no trigger categories", plan.ID)
		}
		if len(plan.Steps) == 0 {
			return fmt.Errorf("plan %s has no steps", plan.ID)
		}
	}

	for _, plan := range c.Plans {
		for _, dep := range plan.Dependencies {
			if !seen[dep] {
				return fmt.Errorf("plan %s depends on unknown plan %s", plan.ID, dep)
			}
		}
	}

	return nil
}

// SelectPlan returns the highest-priority plan matching a trigger category.
// Lower priority numbers win.
func (c *Catalog) SelectPlan(trigger string) (*Plan, bool) {
	var candidates []*Plan
	for i := range c.Plans {
		for _, t := range c.Plans[i].Triggers {
			if t == trigger {
				candidates = append(candidates, &c.Plans[i])
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})
	return candidates[0], true
}
