package screening

// ReviewerTally counts one reviewer's recorded decisions within a phase.
type ReviewerTally struct {
	ReviewerID string `json:"reviewer_id"`
	Name       string `json:"name"`
	Decisions  int    `json:"decisions"`
}

// PhaseReport describes the completeness of a phase and whether the project
// may advance. Advancement itself is an explicit administrative action.
type PhaseReport struct {
	Phase         Phase           `json:"phase"`
	Total         int             `json:"total"`
	StatusCounts  map[Status]int  `json:"status_counts"`
	Remaining     int             `json:"remaining"`
	OpenConflicts int             `json:"open_conflicts"`
	CanAdvance    bool            `json:"can_advance"`
	NextPhase     Phase           `json:"next_phase,omitempty"`
	Tallies       []ReviewerTally `json:"reviewer_tallies"`
}
