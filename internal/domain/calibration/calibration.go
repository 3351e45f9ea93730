// Package calibration defines calibration rounds and inter-rater reliability
// statistics (percent agreement, Cohen's Kappa).
package calibration

import (
	"fmt"
	"time"

	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/screening"
)

// RoundStatus is the lifecycle state of a calibration round.
type RoundStatus string

const (
	RoundPending RoundStatus = "PENDING"
	RoundPassed  RoundStatus = "PASSED"
	RoundFailed  RoundStatus = "FAILED"
)

// SampleMethod selects how a round's study sample is drawn.
type SampleMethod string

const (
	SampleRandom SampleMethod = "random"
	SampleManual SampleMethod = "manual"
)

// Oversample is the multiplier applied to the requested sample size when
// drawing the random candidate pool before shuffling and truncating.
const Oversample = 3

// Round is one sampled mini-screening exercise used to measure agreement
// before full-scale screening.
type Round struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"project_id"`
	Phase            screening.Phase `json:"phase"`
	SampleSize       int             `json:"sample_size"`
	TargetAgreement  float64         `json:"target_agreement"`
	SampleMethod     SampleMethod    `json:"sample_method"`
	Status           RoundStatus     `json:"status"`
	KappaScore       *float64        `json:"kappa_score,omitempty"`
	PercentAgreement *float64        `json:"percent_agreement,omitempty"`
	Interpretation   string          `json:"interpretation,omitempty"`
	StudyIDs         []string        `json:"study_ids"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// Decision is a reviewer's judgment made inside a calibration round. It is a
// distinct ledger from screening.DecisionRecord so calibration exercises
// never pollute operational screening statistics.
type Decision struct {
	ID            string             `json:"id"`
	RoundID       string             `json:"round_id"`
	ProjectWorkID string             `json:"project_work_id"`
	ReviewerID    string             `json:"reviewer_id"`
	Decision      screening.Decision `json:"decision"`
	Reasoning     string             `json:"reasoning,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// CreateRoundRequest is the input for starting a calibration round.
type CreateRoundRequest struct {
	Phase           screening.Phase `json:"phase"`
	SampleSize      int             `json:"sample_size"`
	TargetAgreement float64         `json:"target_agreement"`
	SampleMethod    SampleMethod    `json:"sample_method"`
	ManualStudyIDs  []string        `json:"manual_study_ids,omitempty"`
}

// Validate checks the create request for correctness.
func (r *CreateRoundRequest) Validate() error {
	if !r.Phase.Valid() {
		return fmt.Errorf("%w: invalid phase %q", domain.ErrValidation, r.Phase)
	}
	if r.SampleSize < 1 {
		return fmt.Errorf("%w: sample_size must be >= 1", domain.ErrValidation)
	}
	if r.TargetAgreement < 0 || r.TargetAgreement > 1 {
		return fmt.Errorf("%w: target_agreement must be between 0 and 1", domain.ErrValidation)
	}
	switch r.SampleMethod {
	case SampleRandom:
	case SampleManual:
		if len(r.ManualStudyIDs) == 0 {
			return fmt.Errorf("%w: manual_study_ids is required for manual sampling", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: invalid sample_method %q", domain.ErrValidation, r.SampleMethod)
	}
	return nil
}

// VoteRequest is the input for recording a calibration decision.
type VoteRequest struct {
	ProjectWorkID string             `json:"project_work_id"`
	Decision      screening.Decision `json:"decision"`
	Reasoning     string             `json:"reasoning,omitempty"`
}

// Validate checks the vote request for correctness.
func (r *VoteRequest) Validate() error {
	if r.ProjectWorkID == "" {
		return fmt.Errorf("%w: project_work_id is required", domain.ErrValidation)
	}
	if !r.Decision.Valid() {
		return fmt.Errorf("%w: invalid decision %q", domain.ErrValidation, r.Decision)
	}
	return nil
}
