package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventDecisionSubmitted    = "screening.decision"
	EventConflictCreated      = "conflict.created"
	EventConflictResolved     = "conflict.resolved"
	EventCalibrationCompleted = "calibration.completed"
	EventPhaseAdvanced        = "phase.advanced"
)

// DecisionEvent is broadcast when a reviewer's decision finalizes a study's
// aggregate status. Decision values are never included: blind screening is
// enforced at every presentation boundary, and the feed is project-wide.
type DecisionEvent struct {
	ProjectID     string `json:"project_id"`
	ProjectWorkID string `json:"project_work_id"`
	Phase         string `json:"phase"`
	Status        string `json:"status"`
}

// ConflictEvent is broadcast when a conflict is created or resolved.
type ConflictEvent struct {
	ProjectID     string `json:"project_id"`
	ProjectWorkID string `json:"project_work_id"`
	ConflictID    string `json:"conflict_id"`
	Phase         string `json:"phase"`
	Status        string `json:"status"`
}

// CalibrationEvent is broadcast when a calibration round completes.
type CalibrationEvent struct {
	ProjectID        string  `json:"project_id"`
	RoundID          string  `json:"round_id"`
	Status           string  `json:"status"`
	Kappa            float64 `json:"kappa"`
	PercentAgreement float64 `json:"percent_agreement"`
}

// PhaseEvent is broadcast when a project advances to the next phase.
type PhaseEvent struct {
	ProjectID string `json:"project_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// BroadcastEvent marshals a typed event and broadcasts it to the named
// project's subscribers (and to unscoped clients).
func (h *Hub) BroadcastEvent(ctx context.Context, projectID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:      eventType,
		ProjectID: projectID,
		Payload:   json.RawMessage(data),
	})
}
