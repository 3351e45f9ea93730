// Package event defines the append-only activity log entries emitted by the
// screening engine for audit and notification feeds.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of activity event.
type Type string

const (
	TypeScreeningDecision    Type = "SCREENING_DECISION"
	TypeConflictCreated      Type = "CONFLICT_CREATED"
	TypeConflictResolved     Type = "CONFLICT_RESOLVED"
	TypeCalibrationCompleted Type = "CALIBRATION_COMPLETED"
	TypePhaseAdvanced        Type = "PHASE_ADVANCED"
)

// ActivityEvent is one audit record. Payload holds event-specific detail as
// raw JSON so the log schema never churns with the domain.
type ActivityEvent struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	ProjectWorkID string          `json:"project_work_id,omitempty"`
	ActorID       string          `json:"actor_id"`
	Type          Type            `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
