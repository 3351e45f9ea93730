package screening

// Outcome is the evaluator's verdict for one study/phase after a submission.
type Outcome struct {
	ProjectWorkID   string    `json:"project_work_id"`
	Status          Status    `json:"status"`
	FinalDecision   *Decision `json:"final_decision,omitempty"`
	ConflictCreated bool      `json:"conflict_created"`
}

// Evaluate derives a study's aggregate status from its current decision set
// and the project policy. It is pure: callers are responsible for serializing
// the surrounding read-evaluate-write sequence.
//
// Rules:
//   - no decisions: PENDING
//   - fewer decisions than required: SCREENING (awaiting another reviewer)
//   - required count reached, values disagree: CONFLICT
//   - required count reached, unanimous: INCLUDED/EXCLUDED/MAYBE
func Evaluate(decisions []Decision, policy Policy) Outcome {
	if len(decisions) == 0 {
		return Outcome{Status: StatusPending}
	}

	if len(decisions) < policy.RequiredReviewers() {
		return Outcome{Status: StatusScreening}
	}

	first := decisions[0]
	for _, d := range decisions[1:] {
		if d != first {
			return Outcome{Status: StatusConflict, ConflictCreated: true}
		}
	}

	final := first
	return Outcome{Status: statusFor(final), FinalDecision: &final}
}
