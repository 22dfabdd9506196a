package recovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Phase names, in pipeline order
const (
	PhaseIntegrity       = "integrity"
	PhaseRecoveryTest    = "recovery_test"
	PhaseDataConsistency = "data_consistency"
	PhasePerformance     = "performance"
	PhaseFunctionality   = "functionality"
)

// PhaseResult records the outcome of one validation phase
type PhaseResult struct {
	Name     string                 `json:"name"`
	Success  bool                   `json:"success"`
	Duration time.Duration          `json:"duration"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Errors   []string               `json:"errors,omitempty"`
}

// Recommendation is an actionable finding derived from phase outcomes
type Recommendation struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
}

// Report is the full outcome of a validation run
type Report struct {
	TestID         string           `json:"test_id"`
	BackupID       string           `json:"backup_id"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
	Duration       time.Duration    `json:"duration"`
	Phases         []PhaseResult    `json:"phases"`
	OverallSuccess bool             `json:"overall_success"`
	Grade          int              `json:"grade"`
	Recommendation []Recommendation `json:"recommendations,omitempty"`
	SandboxSchema  string           `json:"sandbox_schema,omitempty"`
}

// Phase returns a phase result by name
func (r *Report) Phase(name string) *PhaseResult {
	for i := range r.Phases {
		if r.Phases[i].Name == name {
			return &r.Phases[i]
		}
	}
	return nil
}

// finalize computes overall success, the grade and the recommendations
func (r *Report) finalize() {
	r.CompletedAt = time.Now()
	r.Duration = r.CompletedAt.Sub(r.StartedAt)

	r.OverallSuccess = len(r.Phases) > 0
	failedPhases := 0
	for _, phase := range r.Phases {
		if !phase.Success {
			r.OverallSuccess = false
			failedPhases++
		}
	}

	grade := 100
	switch {
	case r.Duration > 5*time.Minute:
		grade -= 30
	case r.Duration > 2*time.Minute:
		grade -= 15
	}
	grade -= 20 * failedPhases
	if perf := r.Phase(PhasePerformance); perf != nil && !perf.Success {
		grade -= 10
	}
	if grade < 0 {
		grade = 0
	}
	r.Grade = grade

	r.buildRecommendations()
}

func (r *Report) buildRecommendations() {
	if phase := r.Phase(PhaseIntegrity); phase != nil && !phase.Success {
		r.Recommendation = append(r.Recommendation, Recommendation{
			Category: "BACKUP",
			Priority: "CRITICAL",
			Message:  "Backup archive failed integrity checks. Create a fresh backup immediately and investigate storage health.",
		})
	}
	if phase := r.Phase(PhaseRecoveryTest); phase != nil && !phase.Success {
		r.Recommendation = append(r.Recommendation, Recommendation{
			Category: "RECOVERY",
			Priority: "CRITICAL",
			Message:  "Archive could not be restored into an isolated schema. The backup cannot be relied on for disaster recovery.",
		})
	}
	if phase := r.Phase(PhaseDataConsistency); phase != nil && !phase.Success {
		r.Recommendation = append(r.Recommendation, Recommendation{
			Category: "DATA",
			Priority: "HIGH",
			Message:  "Recovered data has consistency problems. Review orphaned rows, duplicates and required records before relying on this backup.",
		})
	}
	if phase := r.Phase(PhasePerformance); phase != nil && !phase.Success {
		r.Recommendation = append(r.Recommendation, Recommendation{
			Category: "PERFORMANCE",
			Priority: "MEDIUM",
			Message:  "Recovered data did not meet query latency thresholds. Check indexes and table statistics after a real restore.",
		})
	}
	if phase := r.Phase(PhaseFunctionality); phase != nil && !phase.Success {
		r.Recommendation = append(r.Recommendation, Recommendation{
			Category: "FUNCTIONALITY",
			Priority: "HIGH",
			Message:  "Core application queries failed against the recovered data. Verify schema compatibility with the current application version.",
		})
	}
	if r.OverallSuccess && r.Grade < 85 {
		r.Recommendation = append(r.Recommendation, Recommendation{
			Category: "RECOVERY",
			Priority: "LOW",
			Message:  "Validation passed but took longer than expected. Consider smaller archives or faster storage for recovery drills.",
		})
	}
}

// Save persists the report as a JSON artifact
func (r *Report) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, r.TestID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}

	return path, nil
}
