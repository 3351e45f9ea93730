package screening

import "time"

// ReviewerStatus is one reviewer's personal view of where they stand on a
// study, independent of the study's aggregate status.
type ReviewerStatus string

const (
	ReviewerFirst    ReviewerStatus = "FIRST_REVIEWER"
	ReviewerSecond   ReviewerStatus = "SECOND_REVIEWER"
	ReviewerAwaiting ReviewerStatus = "AWAITING_OTHER"
	ReviewerDone     ReviewerStatus = "COMPLETED"
)

// VotedReviewer identifies a reviewer who has submitted a decision on a
// study. Decision carries the value only when visibility rules allow it.
type VotedReviewer struct {
	ReviewerID string    `json:"reviewer_id"`
	Name       string    `json:"name"`
	Image      string    `json:"image,omitempty"`
	VotedAt    time.Time `json:"voted_at"`
	Decision   *Decision `json:"decision,omitempty"`
}

// PhaseVote is a recorded vote within a phase, used to assemble queue views
// in bulk without one query per study.
type PhaseVote struct {
	ProjectWorkID string `json:"project_work_id"`
	VotedReviewer
}

// ReviewerStatusFor computes the queue status of reviewerID for a study given
// who has voted on it so far in the phase. Only voter identity matters here,
// never the decision values.
//
// Without dual screening a reviewer is COMPLETED as soon as they have voted.
// With dual screening: FIRST_REVIEWER when nobody has voted, SECOND_REVIEWER
// when exactly one other reviewer has, AWAITING_OTHER once this reviewer has
// voted but the required count isn't reached, COMPLETED once it is. From the
// queue's perspective CONFLICT reads as done like any terminal status.
func ReviewerStatusFor(voterIDs []string, reviewerID string, policy Policy) ReviewerStatus {
	voted := false
	others := 0
	for _, id := range voterIDs {
		if id == reviewerID {
			voted = true
		} else {
			others++
		}
	}

	if !policy.RequireDualScreening {
		if voted {
			return ReviewerDone
		}
		return ReviewerFirst
	}

	if len(voterIDs) >= policy.RequiredReviewers() {
		return ReviewerDone
	}
	if voted {
		return ReviewerAwaiting
	}
	if others == 1 {
		return ReviewerSecond
	}
	return ReviewerFirst
}

// MaskVotes applies blind-screening visibility: the fact that someone voted
// stays visible, the value is withheld until the study reaches a terminal
// status. Storage is never altered, only the presented copy.
func MaskVotes(voters []VotedReviewer, status Status, policy Policy) []VotedReviewer {
	if !policy.BlindScreening || status.Terminal() {
		return voters
	}
	masked := make([]VotedReviewer, len(voters))
	for i, v := range voters {
		v.Decision = nil
		masked[i] = v
	}
	return masked
}
