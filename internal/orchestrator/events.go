package orchestrator

import (
	"time"
)

// EventType classifies orchestrator events
type EventType string

const (
	EventStateChanged      EventType = "STATE_CHANGED"
	EventFaultReported     EventType = "FAULT_REPORTED"
	EventRecoveryStarted   EventType = "RECOVERY_STARTED"
	EventRecoveryCompleted EventType = "RECOVERY_COMPLETED"
	EventRecoveryFailed    EventType = "RECOVERY_FAILED"
)

// Event is published on the orchestrator's event stream
type Event struct {
	Type          EventType              `json:"type"`
	Timestamp     time.Time              `json:"timestamp"`
	State         SystemState            `json:"state"`
	PreviousState SystemState            `json:"previous_state,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// publish delivers an event without ever blocking the poll loop. Overflow
// drops the event and logs it.
func (o *Orchestrator) publish(event Event) {
	event.Timestamp = o.scheduler.Now()

	select {
	case o.events <- event:
	default:
		o.logger.Warnf("Event channel full, dropping %s event", event.Type)
	}
}

// Events exposes the event stream for an external dispatcher
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}
