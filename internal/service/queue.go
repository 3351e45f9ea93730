package service

import (
	"context"

	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/domain/work"
	"github.com/litrev/litrev/internal/port/database"
)

// QueueEntry is one study in a reviewer's screening queue, joined with its
// bibliographic record and the visible votes.
type QueueEntry struct {
	ProjectWork    screening.ProjectWork     `json:"project_work"`
	Work           *work.Work                `json:"work,omitempty"`
	ReviewerStatus screening.ReviewerStatus  `json:"reviewer_status"`
	Voters         []screening.VotedReviewer `json:"voters,omitempty"`
}

// QueueView is the full queue response for one reviewer and phase.
type QueueView struct {
	Phase   screening.Phase `json:"phase"`
	Total   int             `json:"total"`
	Open    int             `json:"open"`
	Entries []QueueEntry    `json:"entries"`
}

// QueueService assembles per-reviewer screening queues. It is read-only and
// builds the whole view from three bulk queries regardless of queue length.
type QueueService struct {
	db       database.Store
	projects *ProjectService
}

// NewQueueService creates a new QueueService.
func NewQueueService(db database.Store, projects *ProjectService) *QueueService {
	return &QueueService{db: db, projects: projects}
}

// Queue builds the screening queue for one reviewer in a phase. Every entry
// carries the reviewer's personal status; blind screening masks vote values
// on non-terminal studies.
func (s *QueueService) Queue(ctx context.Context, projectID, reviewerID string, phase screening.Phase) (*QueueView, error) {
	p, _, err := s.projects.Member(ctx, projectID, reviewerID)
	if err != nil {
		return nil, err
	}

	works, err := s.db.ListProjectWorks(ctx, projectID, phase)
	if err != nil {
		return nil, err
	}

	votes, err := s.db.ListPhaseVotes(ctx, projectID, phase)
	if err != nil {
		return nil, err
	}

	votesByStudy := make(map[string][]screening.VotedReviewer)
	for _, v := range votes {
		votesByStudy[v.ProjectWorkID] = append(votesByStudy[v.ProjectWorkID], v.VotedReviewer)
	}

	workIDs := make([]string, len(works))
	for i, pw := range works {
		workIDs[i] = pw.WorkID
	}
	biblio, err := s.db.ListWorks(ctx, workIDs)
	if err != nil {
		return nil, err
	}
	biblioByID := make(map[string]*work.Work, len(biblio))
	for i := range biblio {
		biblioByID[biblio[i].ID] = &biblio[i]
	}

	view := &QueueView{Phase: phase, Total: len(works)}
	for _, pw := range works {
		voters := votesByStudy[pw.ID]
		voterIDs := make([]string, len(voters))
		for i, v := range voters {
			voterIDs[i] = v.ReviewerID
		}

		entry := QueueEntry{
			ProjectWork:    pw,
			Work:           biblioByID[pw.WorkID],
			ReviewerStatus: screening.ReviewerStatusFor(voterIDs, reviewerID, p.Policy),
			Voters:         screening.MaskVotes(voters, pw.Status, p.Policy),
		}
		actionable := entry.ReviewerStatus == screening.ReviewerFirst ||
			entry.ReviewerStatus == screening.ReviewerSecond
		if actionable && !pw.Status.Terminal() {
			view.Open++
		}
		view.Entries = append(view.Entries, entry)
	}
	return view, nil
}
