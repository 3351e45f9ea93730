package screening

import (
	"testing"
	"time"
)

func TestReviewerStatusSingleScreening(t *testing.T) {
	single := Policy{RequireDualScreening: false}

	if got := ReviewerStatusFor(nil, "r1", single); got != ReviewerFirst {
		t.Errorf("expected FIRST_REVIEWER on untouched study, got %q", got)
	}
	if got := ReviewerStatusFor([]string{"r1"}, "r1", single); got != ReviewerDone {
		t.Errorf("expected COMPLETED after own vote, got %q", got)
	}
}

func TestReviewerStatusDualScreening(t *testing.T) {
	dual := Policy{RequireDualScreening: true}

	if got := ReviewerStatusFor(nil, "r1", dual); got != ReviewerFirst {
		t.Errorf("expected FIRST_REVIEWER, got %q", got)
	}
	if got := ReviewerStatusFor([]string{"r2"}, "r1", dual); got != ReviewerSecond {
		t.Errorf("expected SECOND_REVIEWER when one other has voted, got %q", got)
	}
	if got := ReviewerStatusFor([]string{"r1"}, "r1", dual); got != ReviewerAwaiting {
		t.Errorf("expected AWAITING_OTHER after own vote, got %q", got)
	}
	if got := ReviewerStatusFor([]string{"r1", "r2"}, "r1", dual); got != ReviewerDone {
		t.Errorf("expected COMPLETED at required count, got %q", got)
	}
	// A third member sees a fully voted study as done too.
	if got := ReviewerStatusFor([]string{"r1", "r2"}, "r3", dual); got != ReviewerDone {
		t.Errorf("expected COMPLETED for non-voter on finished study, got %q", got)
	}
}

func TestMaskVotesBlindScreening(t *testing.T) {
	blind := Policy{RequireDualScreening: true, BlindScreening: true}
	dec := DecisionInclude
	voters := []VotedReviewer{
		{ReviewerID: "r1", Name: "Ada", VotedAt: time.Now(), Decision: &dec},
	}

	masked := MaskVotes(voters, StatusScreening, blind)
	if masked[0].Decision != nil {
		t.Error("decision value must be hidden on a non-terminal study under blind screening")
	}
	if masked[0].ReviewerID != "r1" {
		t.Error("voter identity must stay visible")
	}
	// Original slice untouched.
	if voters[0].Decision == nil {
		t.Error("masking must not mutate the input")
	}
}

func TestMaskVotesTerminalStatusReveals(t *testing.T) {
	blind := Policy{RequireDualScreening: true, BlindScreening: true}
	dec := DecisionExclude
	voters := []VotedReviewer{{ReviewerID: "r1", Decision: &dec}}

	masked := MaskVotes(voters, StatusConflict, blind)
	if masked[0].Decision == nil {
		t.Error("terminal status must reveal decision values")
	}
}

func TestMaskVotesNoBlindScreening(t *testing.T) {
	open := Policy{RequireDualScreening: true}
	dec := DecisionMaybe
	voters := []VotedReviewer{{ReviewerID: "r1", Decision: &dec}}

	masked := MaskVotes(voters, StatusScreening, open)
	if masked[0].Decision == nil {
		t.Error("votes must be visible when blind screening is off")
	}
}
