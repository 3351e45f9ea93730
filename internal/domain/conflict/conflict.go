// Package conflict defines disagreement snapshots and their adjudication.
package conflict

import (
	"fmt"
	"time"

	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/screening"
)

// Status is the lifecycle state of a conflict.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusInDiscussion Status = "IN_DISCUSSION"
	StatusResolved     Status = "RESOLVED"
)

// DecisionSnapshot captures one reviewer's decision as it stood when the
// disagreement was detected.
type DecisionSnapshot struct {
	ReviewerID string             `json:"reviewer_id"`
	Decision   screening.Decision `json:"decision"`
	Reasoning  string             `json:"reasoning,omitempty"`
	VotedAt    time.Time          `json:"voted_at"`
}

// Resolution records the adjudicator's authoritative call.
type Resolution struct {
	FinalDecision screening.Decision `json:"final_decision"`
	Reasoning     string             `json:"reasoning,omitempty"`
	ResolverID    string             `json:"resolver_id"`
	ResolvedAt    time.Time          `json:"resolved_at"`
}

// Conflict is a detected disagreement for a (project_work, phase). At most
// one non-RESOLVED conflict exists per (project_work, phase).
type Conflict struct {
	ID            string             `json:"id"`
	ProjectID     string             `json:"project_id"`
	ProjectWorkID string             `json:"project_work_id"`
	Phase         screening.Phase    `json:"phase"`
	Status        Status             `json:"status"`
	Decisions     []DecisionSnapshot `json:"decisions"`
	Resolution    *Resolution        `json:"resolution,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ResolveRequest is the input for adjudicating a conflict.
type ResolveRequest struct {
	FinalDecision screening.Decision `json:"final_decision"`
	Reasoning     string             `json:"reasoning,omitempty"`
}

// Validate checks the resolve request for correctness.
func (r *ResolveRequest) Validate() error {
	if !r.FinalDecision.Valid() {
		return fmt.Errorf("%w: invalid final_decision %q", domain.ErrValidation, r.FinalDecision)
	}
	return nil
}
