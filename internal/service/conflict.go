package service

import (
	"context"
	"fmt"
	"time"

	"github.com/litrev/litrev/internal/adapter/otel"
	"github.com/litrev/litrev/internal/adapter/ws"
	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/conflict"
	"github.com/litrev/litrev/internal/domain/event"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/port/database"
)

// ConflictService lists and adjudicates screening conflicts.
type ConflictService struct {
	db        database.Store
	projects  *ProjectService
	screening *ScreeningService
	hub       *ws.Hub
	metrics   *otel.Metrics
}

// NewConflictService creates a new ConflictService.
func NewConflictService(db database.Store, projects *ProjectService, scr *ScreeningService, hub *ws.Hub, metrics *otel.Metrics) *ConflictService {
	return &ConflictService{
		db:        db,
		projects:  projects,
		screening: scr,
		hub:       hub,
		metrics:   metrics,
	}
}

// List returns a project's conflicts, optionally filtered by status.
func (s *ConflictService) List(ctx context.Context, projectID, userID string, status conflict.Status) ([]conflict.Conflict, error) {
	if _, _, err := s.projects.Member(ctx, projectID, userID); err != nil {
		return nil, err
	}
	if status != "" && status != conflict.StatusPending && status != conflict.StatusInDiscussion && status != conflict.StatusResolved {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, status)
	}
	return s.db.ListConflicts(ctx, projectID, status)
}

// Get returns one conflict with its decision snapshots.
func (s *ConflictService) Get(ctx context.Context, projectID, userID, conflictID string) (*conflict.Conflict, error) {
	if _, _, err := s.projects.Member(ctx, projectID, userID); err != nil {
		return nil, err
	}
	cf, err := s.db.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if cf.ProjectID != projectID {
		return nil, fmt.Errorf("conflict %s: %w", conflictID, domain.ErrNotFound)
	}
	return cf, nil
}

// Resolve adjudicates a conflict with an authoritative final decision. The
// resolution overrides the individual votes: the study's status comes from
// the resolver's call, and the original decision records stay untouched for
// the audit trail. Resolving an already resolved conflict fails.
func (s *ConflictService) Resolve(ctx context.Context, projectID, resolverID, conflictID string, req *conflict.ResolveRequest) (*conflict.Conflict, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, _, err := s.projects.Authorize(ctx, projectID, resolverID, member.CapResolve)
	if err != nil {
		return nil, err
	}

	var cf *conflict.Conflict
	err = s.db.WithinTx(ctx, func(ctx context.Context, tx database.Store) error {
		var txErr error
		cf, txErr = tx.GetConflict(ctx, conflictID)
		if txErr != nil {
			return txErr
		}
		if cf.ProjectID != p.ID {
			return fmt.Errorf("conflict %s: %w", conflictID, domain.ErrNotFound)
		}
		// Same category as the storage guard in MarkConflictResolved, so
		// both paths surface a double resolution as a conflict.
		if cf.Status == conflict.StatusResolved {
			return fmt.Errorf("%w: conflict already resolved", domain.ErrConflict)
		}

		res := &conflict.Resolution{
			FinalDecision: req.FinalDecision,
			Reasoning:     req.Reasoning,
			ResolverID:    resolverID,
			ResolvedAt:    time.Now().UTC(),
		}
		if txErr := tx.MarkConflictResolved(ctx, conflictID, res); txErr != nil {
			return txErr
		}

		status := statusForDecision(req.FinalDecision)
		if txErr := tx.UpdateProjectWorkStatus(ctx, cf.ProjectWorkID, status, &req.FinalDecision); txErr != nil {
			return txErr
		}

		cf.Status = conflict.StatusResolved
		cf.Resolution = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ConflictsResolved.Add(ctx, 1)
	s.screening.appendEvent(ctx, p.ID, cf.ProjectWorkID, resolverID, event.TypeConflictResolved, map[string]any{
		"conflict_id":    cf.ID,
		"final_decision": req.FinalDecision,
	})
	s.hub.BroadcastEvent(ctx, p.ID, ws.EventConflictResolved, ws.ConflictEvent{
		ProjectID:     p.ID,
		ProjectWorkID: cf.ProjectWorkID,
		ConflictID:    cf.ID,
		Phase:         string(cf.Phase),
		Status:        string(cf.Status),
	})

	if statusForDecision(req.FinalDecision) == screening.StatusIncluded {
		if pw, err := s.db.GetProjectWork(ctx, cf.ProjectWorkID); err == nil {
			s.screening.enqueueIngest(ctx, pw)
		}
	}

	return cf, nil
}

// statusForDecision maps an adjudicated decision value to the study status.
func statusForDecision(d screening.Decision) screening.Status {
	switch d {
	case screening.DecisionInclude:
		return screening.StatusIncluded
	case screening.DecisionExclude:
		return screening.StatusExcluded
	default:
		return screening.StatusMaybe
	}
}
