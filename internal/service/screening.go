package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/litrev/litrev/internal/adapter/otel"
	"github.com/litrev/litrev/internal/adapter/ws"
	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/conflict"
	"github.com/litrev/litrev/internal/domain/event"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/domain/project"
	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/logger"
	"github.com/litrev/litrev/internal/port/database"
	"github.com/litrev/litrev/internal/port/eventstore"
	"github.com/litrev/litrev/internal/port/messagequeue"
)

// ScreeningService runs the decision submission pipeline: record the decision,
// re-derive the study's aggregate status, snapshot conflicts, and fan out
// side effects after the transaction commits.
type ScreeningService struct {
	db       database.Store
	projects *ProjectService
	events   eventstore.Store
	queue    messagequeue.Queue
	hub      *ws.Hub
	metrics  *otel.Metrics
}

// NewScreeningService creates a new ScreeningService.
func NewScreeningService(db database.Store, projects *ProjectService, events eventstore.Store, queue messagequeue.Queue, hub *ws.Hub, metrics *otel.Metrics) *ScreeningService {
	return &ScreeningService{
		db:       db,
		projects: projects,
		events:   events,
		queue:    queue,
		hub:      hub,
		metrics:  metrics,
	}
}

// SubmitDecision records one reviewer's decision on a study and re-evaluates
// the study's aggregate status. The record-and-evaluate sequence runs inside
// one transaction under a row lock on the study, so two reviewers submitting
// concurrently serialize and the second evaluation sees both decisions.
func (s *ScreeningService) SubmitDecision(ctx context.Context, projectID, reviewerID string, req *screening.SubmitRequest) (*screening.Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, _, err := s.projects.Authorize(ctx, projectID, reviewerID, member.CapScreen)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.StartSubmitSpan(ctx, req.ProjectWorkID, string(req.Phase))
	defer span.End()

	var outcome screening.Outcome
	var cf *conflict.Conflict
	var pw *screening.ProjectWork

	err = s.db.WithinTx(ctx, func(ctx context.Context, tx database.Store) error {
		var txErr error
		outcome, cf, pw, txErr = s.submitOne(ctx, tx, p, reviewerID, req.ProjectWorkID, req.Phase, func(rec *screening.DecisionRecord) {
			rec.Reasoning = req.Reasoning
			rec.ExclusionReason = req.ExclusionReason
			rec.Confidence = req.Confidence
			rec.TimeSpentMs = req.TimeSpentMs
			rec.FollowedAI = req.FollowedAI
		}, req.Decision)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.afterSubmit(ctx, p, pw, reviewerID, &outcome, cf)

	s.metrics.DecisionsSubmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("screening.phase", string(req.Phase))))
	if req.TimeSpentMs != nil {
		s.metrics.DecisionLatency.Record(ctx, float64(*req.TimeSpentMs)/1000)
	}

	return &outcome, nil
}

// SubmitBatch applies one decision value across many studies in a single
// transaction. Per-item business failures (already voted, unknown study,
// closed study) are collected, not fatal; infrastructure errors abort the
// whole batch.
func (s *ScreeningService) SubmitBatch(ctx context.Context, projectID, reviewerID string, req *screening.BatchRequest) (*screening.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, _, err := s.projects.Authorize(ctx, projectID, reviewerID, member.CapBatchScreen)
	if err != nil {
		return nil, err
	}

	result := &screening.BatchResult{}
	var conflicts []*conflict.Conflict
	var works []*screening.ProjectWork

	err = s.db.WithinTx(ctx, func(ctx context.Context, tx database.Store) error {
		for _, pwID := range req.ProjectWorkIDs {
			outcome, cf, pw, itemErr := s.submitOne(ctx, tx, p, reviewerID, pwID, req.Phase, func(rec *screening.DecisionRecord) {
				rec.Reasoning = req.Reasoning
			}, req.Decision)
			if itemErr != nil {
				if isBatchItemError(itemErr) {
					result.Failed++
					result.Errors = append(result.Errors, screening.BatchItemError{
						ProjectWorkID: pwID,
						Reason:        itemErr.Error(),
					})
					continue
				}
				return itemErr
			}
			result.Processed++
			result.Outcomes = append(result.Outcomes, outcome)
			if cf != nil {
				conflicts = append(conflicts, cf)
			}
			works = append(works, pw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range result.Outcomes {
		var cf *conflict.Conflict
		for _, c := range conflicts {
			if c.ProjectWorkID == result.Outcomes[i].ProjectWorkID {
				cf = c
				break
			}
		}
		s.afterSubmit(ctx, p, works[i], reviewerID, &result.Outcomes[i], cf)
	}

	s.metrics.DecisionsSubmitted.Add(ctx, int64(result.Processed),
		metric.WithAttributes(attribute.String("screening.phase", string(req.Phase))))
	s.metrics.BatchItemsFailed.Add(ctx, int64(result.Failed))

	return result, nil
}

// submitOne records a single decision and re-derives the study status. It
// must run inside a transaction; the study row lock serializes concurrent
// submissions on the same study.
func (s *ScreeningService) submitOne(ctx context.Context, tx database.Store, p *project.Project, reviewerID, projectWorkID string, phase screening.Phase, fill func(*screening.DecisionRecord), decision screening.Decision) (screening.Outcome, *conflict.Conflict, *screening.ProjectWork, error) {
	pw, err := tx.GetProjectWorkForUpdate(ctx, projectWorkID)
	if err != nil {
		return screening.Outcome{}, nil, nil, err
	}
	if pw.ProjectID != p.ID {
		return screening.Outcome{}, nil, nil, fmt.Errorf("project work %s: %w", projectWorkID, domain.ErrNotFound)
	}
	if pw.Phase != phase {
		return screening.Outcome{}, nil, nil, fmt.Errorf("%w: study is in phase %s, not %s", domain.ErrValidation, pw.Phase, phase)
	}
	if pw.Status.Terminal() {
		return screening.Outcome{}, nil, nil, fmt.Errorf("%w: study already has status %s", domain.ErrDomain, pw.Status)
	}

	// Pre-check instead of relying on the unique index: a failed INSERT
	// would abort the surrounding transaction.
	if _, err := tx.GetDecision(ctx, projectWorkID, reviewerID, phase); err == nil {
		return screening.Outcome{}, nil, nil, fmt.Errorf("%w: reviewer already voted on this study in this phase", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return screening.Outcome{}, nil, nil, err
	}

	rec := &screening.DecisionRecord{
		ID:            uuid.NewString(),
		ProjectWorkID: projectWorkID,
		ReviewerID:    reviewerID,
		Phase:         phase,
		Decision:      decision,
	}
	fill(rec)

	if err := tx.CreateDecision(ctx, rec); err != nil {
		return screening.Outcome{}, nil, nil, err
	}

	all, err := tx.ListDecisions(ctx, projectWorkID, phase)
	if err != nil {
		return screening.Outcome{}, nil, nil, err
	}

	values := make([]screening.Decision, len(all))
	for i, d := range all {
		values[i] = d.Decision
	}

	outcome := screening.Evaluate(values, p.Policy)
	outcome.ProjectWorkID = projectWorkID

	if err := tx.UpdateProjectWorkStatus(ctx, projectWorkID, outcome.Status, outcome.FinalDecision); err != nil {
		return screening.Outcome{}, nil, nil, err
	}

	var cf *conflict.Conflict
	if outcome.ConflictCreated {
		cf = &conflict.Conflict{
			ID:            uuid.NewString(),
			ProjectID:     p.ID,
			ProjectWorkID: projectWorkID,
			Phase:         phase,
			Status:        conflict.StatusPending,
		}
		for _, d := range all {
			cf.Decisions = append(cf.Decisions, conflict.DecisionSnapshot{
				ReviewerID: d.ReviewerID,
				Decision:   d.Decision,
				Reasoning:  d.Reasoning,
				VotedAt:    d.CreatedAt,
			})
		}
		if err := tx.CreateConflict(ctx, cf); err != nil {
			return screening.Outcome{}, nil, nil, err
		}
	}

	pw.Status = outcome.Status
	pw.FinalDecision = outcome.FinalDecision
	return outcome, cf, pw, nil
}

// afterSubmit fans out post-commit side effects. None of them can fail the
// submission; the transaction already committed.
func (s *ScreeningService) afterSubmit(ctx context.Context, p *project.Project, pw *screening.ProjectWork, reviewerID string, outcome *screening.Outcome, cf *conflict.Conflict) {
	s.appendEvent(ctx, p.ID, pw.ID, reviewerID, event.TypeScreeningDecision, map[string]any{
		"phase":  pw.Phase,
		"status": outcome.Status,
	})

	s.hub.BroadcastEvent(ctx, p.ID, ws.EventDecisionSubmitted, ws.DecisionEvent{
		ProjectID:     p.ID,
		ProjectWorkID: pw.ID,
		Phase:         string(pw.Phase),
		Status:        string(outcome.Status),
	})

	if cf != nil {
		s.metrics.ConflictsCreated.Add(ctx, 1)
		s.appendEvent(ctx, p.ID, pw.ID, reviewerID, event.TypeConflictCreated, map[string]any{
			"conflict_id": cf.ID,
			"phase":       cf.Phase,
		})
		s.hub.BroadcastEvent(ctx, p.ID, ws.EventConflictCreated, ws.ConflictEvent{
			ProjectID:     p.ID,
			ProjectWorkID: pw.ID,
			ConflictID:    cf.ID,
			Phase:         string(cf.Phase),
			Status:        string(cf.Status),
		})
	}

	if outcome.Status == screening.StatusIncluded {
		s.enqueueIngest(ctx, pw)
	}
}

// enqueueIngest hands an INCLUDED study to the full-text ingestion workers.
// Fire-and-forget: a publish failure is logged, never surfaced.
func (s *ScreeningService) enqueueIngest(ctx context.Context, pw *screening.ProjectWork) {
	job := messagequeue.IngestJob{
		ProjectWorkID: pw.ID,
		WorkID:        pw.WorkID,
		Source:        pw.Source,
	}
	data, err := json.Marshal(job)
	if err != nil {
		slog.Error("marshal ingest job", "project_work_id", pw.ID, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectIngestFullText, data); err != nil {
		slog.Error("publish ingest job", "project_work_id", pw.ID, "error", err)
	}
}

func (s *ScreeningService) appendEvent(ctx context.Context, projectID, projectWorkID, actorID string, typ event.Type, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal activity payload", "type", typ, "error", err)
		return
	}
	ev := &event.ActivityEvent{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		ProjectWorkID: projectWorkID,
		ActorID:       actorID,
		Type:          typ,
		Payload:       data,
		RequestID:     logger.RequestIDFromContext(ctx),
	}
	if err := s.events.Append(ctx, ev); err != nil {
		slog.Error("append activity event", "type", typ, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectActivity, mustJSON(ev)); err != nil {
		slog.Debug("publish activity event", "type", typ, "error", err)
	}
}

// isBatchItemError reports whether err is a per-item business failure that a
// batch should collect instead of aborting on.
func isBatchItemError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrDomain)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal json", "error", err)
		return []byte("{}")
	}
	return data
}
