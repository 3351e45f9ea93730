package service

import (
	"context"
	"fmt"

	"github.com/litrev/litrev/internal/adapter/ws"
	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/conflict"
	"github.com/litrev/litrev/internal/domain/event"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/domain/project"
	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/port/database"
)

// ProgressService reports phase completeness and performs explicit phase
// advancement. Reaching completeness never advances anything by itself.
type ProgressService struct {
	db        database.Store
	projects  *ProjectService
	screening *ScreeningService
	hub       *ws.Hub
}

// NewProgressService creates a new ProgressService.
func NewProgressService(db database.Store, projects *ProjectService, scr *ScreeningService, hub *ws.Hub) *ProgressService {
	return &ProgressService{db: db, projects: projects, screening: scr, hub: hub}
}

// Report builds the completeness report for a phase. An empty phase means
// the project's current one; earlier phases can be inspected after the
// project moved on.
func (s *ProgressService) Report(ctx context.Context, projectID, userID string, phase screening.Phase) (*screening.PhaseReport, error) {
	p, _, err := s.projects.Member(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if phase == "" {
		phase = p.CurrentPhase
	}
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: invalid phase %q", domain.ErrValidation, phase)
	}
	return s.buildReport(ctx, s.db, p, phase)
}

func (s *ProgressService) buildReport(ctx context.Context, db database.Store, p *project.Project, phase screening.Phase) (*screening.PhaseReport, error) {
	counts, err := db.CountStatuses(ctx, p.ID, phase)
	if err != nil {
		return nil, err
	}

	tallies, err := db.ReviewerTallies(ctx, p.ID, phase)
	if err != nil {
		return nil, err
	}

	open, err := db.ListConflicts(ctx, p.ID, conflict.StatusPending)
	if err != nil {
		return nil, err
	}
	discussing, err := db.ListConflicts(ctx, p.ID, conflict.StatusInDiscussion)
	if err != nil {
		return nil, err
	}

	openConflicts := 0
	for _, c := range append(open, discussing...) {
		if c.Phase == phase {
			openConflicts++
		}
	}

	report := &screening.PhaseReport{
		Phase:         phase,
		StatusCounts:  counts,
		OpenConflicts: openConflicts,
		Tallies:       tallies,
	}
	for _, n := range counts {
		report.Total += n
	}
	report.Remaining = counts[screening.StatusPending] + counts[screening.StatusScreening]

	// Only the project's current phase can advance; reports on other
	// phases are informational.
	report.CanAdvance = report.Total > 0 && report.Remaining == 0 && phase == p.CurrentPhase
	if p.Gating() == project.GatingBlockOpen && openConflicts > 0 {
		report.CanAdvance = false
	}

	if next, ok := phase.Next(); ok {
		report.NextPhase = next
	} else {
		report.CanAdvance = false
	}

	return report, nil
}

// Advance moves the project to the next phase. It re-checks the gate inside
// a transaction and uses the project's version for optimistic concurrency,
// so two concurrent advances cannot skip a phase.
func (s *ProgressService) Advance(ctx context.Context, projectID, userID string) (*screening.PhaseReport, error) {
	p, _, err := s.projects.Authorize(ctx, projectID, userID, member.CapManagePhases)
	if err != nil {
		return nil, err
	}

	// The cached copy may be stale; advancement validates against the
	// current row.
	p, err = s.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var report *screening.PhaseReport
	err = s.db.WithinTx(ctx, func(ctx context.Context, tx database.Store) error {
		var txErr error
		report, txErr = s.buildReport(ctx, tx, p, p.CurrentPhase)
		if txErr != nil {
			return txErr
		}
		if !report.CanAdvance {
			return fmt.Errorf("%w: phase %s is not complete", domain.ErrDomain, p.CurrentPhase)
		}
		return tx.UpdateProjectPhase(ctx, p.ID, report.NextPhase, p.Version)
	})
	if err != nil {
		return nil, err
	}

	s.projects.Invalidate(ctx, p.ID)

	s.screening.appendEvent(ctx, p.ID, "", userID, event.TypePhaseAdvanced, map[string]any{
		"from": p.CurrentPhase,
		"to":   report.NextPhase,
	})
	s.hub.BroadcastEvent(ctx, p.ID, ws.EventPhaseAdvanced, ws.PhaseEvent{
		ProjectID: p.ID,
		From:      string(p.CurrentPhase),
		To:        string(report.NextPhase),
	})

	return report, nil
}

// Activity returns the most recent activity log entries for a project.
func (s *ProgressService) Activity(ctx context.Context, projectID, userID string, limit int) ([]event.ActivityEvent, error) {
	if _, _, err := s.projects.Member(ctx, projectID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.screening.events.ListByProject(ctx, projectID, limit)
}
