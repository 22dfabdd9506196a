package audit

import (
	"time"

	"pontovault/internal/logging"
)

// Severity classifies audit events
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event is a single audit record
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Category  string                 `json:"category"`
	Severity  Severity               `json:"severity"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Recorder receives audit events. Implementations must be fire-and-forget:
// a failing recorder never propagates errors back to the caller.
type Recorder interface {
	Record(event Event)
}

// LogRecorder writes audit events through the structured logger
type LogRecorder struct {
	logger *logging.Logger
}

// NewLogRecorder creates a recorder backed by the given logger
func NewLogRecorder(logger *logging.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record emits the event as a structured log entry
func (r *LogRecorder) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	fields := map[string]interface{}{
		"audit":    true,
		"action":   event.Action,
		"category": event.Category,
		"severity": string(event.Severity),
	}
	for k, v := range event.Details {
		fields["detail_"+k] = v
	}

	entry := r.logger.WithFields(fields)
	switch event.Severity {
	case SeverityCritical, SeverityError:
		entry.Error("Audit event")
	case SeverityWarning:
		entry.Warn("Audit event")
	default:
		entry.Info("Audit event")
	}
}

// NopRecorder discards all events
type NopRecorder struct{}

// NewNopRecorder creates a recorder that discards events
func NewNopRecorder() *NopRecorder { return &NopRecorder{} }

// Record discards the event
func (NopRecorder) Record(Event) {}
