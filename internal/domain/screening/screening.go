// Package screening defines the screening pipeline domain: phases, decision
// records, study status, and the consensus evaluator.
package screening

import (
	"fmt"
	"time"

	"github.com/litrev/litrev/internal/domain"
)

// Phase identifies a screening stage. Each phase keeps its own independent
// decision ledger per study.
type Phase string

const (
	PhaseTitleAbstract Phase = "TITLE_ABSTRACT"
	PhaseFullText      Phase = "FULL_TEXT"
	PhaseFinal         Phase = "FINAL"
)

// phaseOrder drives explicit phase advancement.
var phaseOrder = []Phase{PhaseTitleAbstract, PhaseFullText, PhaseFinal}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseTitleAbstract, PhaseFullText, PhaseFinal:
		return true
	}
	return false
}

// Next returns the phase after p, or ("", false) when p is the last phase.
func (p Phase) Next() (Phase, bool) {
	for i, ph := range phaseOrder {
		if ph == p && i+1 < len(phaseOrder) {
			return phaseOrder[i+1], true
		}
	}
	return "", false
}

// Decision is a single reviewer's judgment value.
type Decision string

const (
	DecisionInclude Decision = "INCLUDE"
	DecisionExclude Decision = "EXCLUDE"
	DecisionMaybe   Decision = "MAYBE"
)

// Decisions lists all valid decision values in a stable order, used by the
// kappa marginals and by enum validation.
var Decisions = []Decision{DecisionInclude, DecisionExclude, DecisionMaybe}

// Valid reports whether d is a known decision value.
func (d Decision) Valid() bool {
	switch d {
	case DecisionInclude, DecisionExclude, DecisionMaybe:
		return true
	}
	return false
}

// Status is the aggregate screening state of a study within a phase. It is
// always a pure function of the study's decision multiset and the project
// policy; it never encodes information the decisions don't already contain.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusScreening Status = "SCREENING"
	StatusConflict  Status = "CONFLICT"
	StatusIncluded  Status = "INCLUDED"
	StatusExcluded  Status = "EXCLUDED"
	StatusMaybe     Status = "MAYBE"
)

// Terminal reports whether the status needs no further reviewer input.
// CONFLICT is terminal from the reviewers' perspective (adjudication is a
// lead action), but the phase gate may still treat it as blocking.
func (s Status) Terminal() bool {
	switch s {
	case StatusConflict, StatusIncluded, StatusExcluded, StatusMaybe:
		return true
	}
	return false
}

// statusFor maps a unanimous decision value to the resulting study status.
func statusFor(d Decision) Status {
	switch d {
	case DecisionInclude:
		return StatusIncluded
	case DecisionExclude:
		return StatusExcluded
	default:
		return StatusMaybe
	}
}

// Policy is the slice of project configuration the evaluator and the queue
// presenter depend on.
type Policy struct {
	RequireDualScreening bool `json:"require_dual_screening"`
	BlindScreening       bool `json:"blind_screening"`
}

// RequiredReviewers returns how many independent decisions finalize a study.
func (p Policy) RequiredReviewers() int {
	if p.RequireDualScreening {
		return 2
	}
	return 1
}

// ProjectWork is a Work's instance within one project's screening pipeline.
// Status and FinalDecision are mutated exclusively by the consensus evaluator
// and by conflict resolution.
type ProjectWork struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	WorkID        string    `json:"work_id"`
	Phase         Phase     `json:"phase"`
	Status        Status    `json:"status"`
	FinalDecision *Decision `json:"final_decision,omitempty"`
	Source        string    `json:"source,omitempty"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DecisionRecord is one reviewer's judgment on a ProjectWork within a phase.
// At most one record exists per (project_work, reviewer, phase); records are
// immutable once written.
type DecisionRecord struct {
	ID              string    `json:"id"`
	ProjectWorkID   string    `json:"project_work_id"`
	ReviewerID      string    `json:"reviewer_id"`
	Phase           Phase     `json:"phase"`
	Decision        Decision  `json:"decision"`
	Reasoning       string    `json:"reasoning,omitempty"`
	ExclusionReason string    `json:"exclusion_reason,omitempty"`
	Confidence      *float64  `json:"confidence,omitempty"`
	TimeSpentMs     *int64    `json:"time_spent_ms,omitempty"`
	FollowedAI      *bool     `json:"followed_ai,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// SubmitRequest is the input for a single decision submission.
type SubmitRequest struct {
	ProjectWorkID   string   `json:"project_work_id"`
	Phase           Phase    `json:"phase"`
	Decision        Decision `json:"decision"`
	Reasoning       string   `json:"reasoning,omitempty"`
	ExclusionReason string   `json:"exclusion_reason,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	TimeSpentMs     *int64   `json:"time_spent_ms,omitempty"`
	FollowedAI      *bool    `json:"followed_ai,omitempty"`
}

// Validate checks the submit request for correctness.
func (r *SubmitRequest) Validate() error {
	if r.ProjectWorkID == "" {
		return fmt.Errorf("%w: project_work_id is required", domain.ErrValidation)
	}
	if !r.Phase.Valid() {
		return fmt.Errorf("%w: invalid phase %q", domain.ErrValidation, r.Phase)
	}
	if !r.Decision.Valid() {
		return fmt.Errorf("%w: invalid decision %q", domain.ErrValidation, r.Decision)
	}
	if r.Confidence != nil && (*r.Confidence < 0 || *r.Confidence > 1) {
		return fmt.Errorf("%w: confidence must be between 0 and 1", domain.ErrValidation)
	}
	if r.TimeSpentMs != nil && *r.TimeSpentMs < 0 {
		return fmt.Errorf("%w: time_spent_ms must be >= 0", domain.ErrValidation)
	}
	return nil
}

// BatchRequest applies one decision across a list of studies (lead only).
type BatchRequest struct {
	ProjectWorkIDs []string `json:"project_work_ids"`
	Phase          Phase    `json:"phase"`
	Decision       Decision `json:"decision"`
	Reasoning      string   `json:"reasoning,omitempty"`
}

// Validate checks the batch request for correctness.
func (r *BatchRequest) Validate() error {
	if len(r.ProjectWorkIDs) == 0 {
		return fmt.Errorf("%w: project_work_ids is required", domain.ErrValidation)
	}
	if !r.Phase.Valid() {
		return fmt.Errorf("%w: invalid phase %q", domain.ErrValidation, r.Phase)
	}
	if !r.Decision.Valid() {
		return fmt.Errorf("%w: invalid decision %q", domain.ErrValidation, r.Decision)
	}
	return nil
}

// BatchItemError records a per-item business failure inside a batch.
type BatchItemError struct {
	ProjectWorkID string `json:"project_work_id"`
	Reason        string `json:"reason"`
}

// BatchResult reports the outcome of a batch submission. Per-item failures
// are expected and non-fatal.
type BatchResult struct {
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Outcomes  []Outcome        `json:"outcomes"`
	Errors    []BatchItemError `json:"errors"`
}
