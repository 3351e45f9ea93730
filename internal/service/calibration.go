package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/litrev/litrev/internal/adapter/otel"
	"github.com/litrev/litrev/internal/adapter/ws"
	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/calibration"
	"github.com/litrev/litrev/internal/domain/event"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/port/database"
)

// CalibrationService runs calibration rounds: sample studies, collect
// independent decisions, and compute inter-rater reliability.
type CalibrationService struct {
	db        database.Store
	projects  *ProjectService
	screening *ScreeningService
	hub       *ws.Hub
	metrics   *otel.Metrics
}

// NewCalibrationService creates a new CalibrationService.
func NewCalibrationService(db database.Store, projects *ProjectService, scr *ScreeningService, hub *ws.Hub, metrics *otel.Metrics) *CalibrationService {
	return &CalibrationService{
		db:        db,
		projects:  projects,
		screening: scr,
		hub:       hub,
		metrics:   metrics,
	}
}

// CreateRound starts a calibration round. Random sampling draws from studies
// still open for screening in the phase; when fewer are eligible than
// requested, the sample shrinks to what exists. Zero eligible studies is an
// error, never an empty round.
func (s *CalibrationService) CreateRound(ctx context.Context, projectID, userID string, req *calibration.CreateRoundRequest) (*calibration.Round, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, _, err := s.projects.Authorize(ctx, projectID, userID, member.CapRunCalibration)
	if err != nil {
		return nil, err
	}

	var studyIDs []string
	switch req.SampleMethod {
	case calibration.SampleManual:
		studyIDs = slices.Clone(req.ManualStudyIDs)
		if len(studyIDs) > req.SampleSize {
			studyIDs = studyIDs[:req.SampleSize]
		}
	default:
		// Oversample then truncate so a few ineligible rows don't starve
		// the sample.
		studyIDs, err = s.db.ListEligibleCalibrationWorkIDs(ctx, projectID, req.Phase, req.SampleSize*calibration.Oversample)
		if err != nil {
			return nil, err
		}
		if len(studyIDs) > req.SampleSize {
			studyIDs = studyIDs[:req.SampleSize]
		}
	}

	if len(studyIDs) == 0 {
		return nil, fmt.Errorf("%w: no eligible studies for calibration in phase %s", domain.ErrDomain, req.Phase)
	}

	round := &calibration.Round{
		ID:              uuid.NewString(),
		ProjectID:       p.ID,
		Phase:           req.Phase,
		SampleSize:      len(studyIDs),
		TargetAgreement: req.TargetAgreement,
		SampleMethod:    req.SampleMethod,
		Status:          calibration.RoundPending,
		StudyIDs:        studyIDs,
	}
	if err := s.db.CreateCalibrationRound(ctx, round); err != nil {
		return nil, err
	}
	return round, nil
}

// Get returns one round.
func (s *CalibrationService) Get(ctx context.Context, projectID, userID, roundID string) (*calibration.Round, error) {
	if _, _, err := s.projects.Member(ctx, projectID, userID); err != nil {
		return nil, err
	}
	round, err := s.db.GetCalibrationRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.ProjectID != projectID {
		return nil, fmt.Errorf("calibration round %s: %w", roundID, domain.ErrNotFound)
	}
	return round, nil
}

// List returns a project's rounds, newest first.
func (s *CalibrationService) List(ctx context.Context, projectID, userID string) ([]calibration.Round, error) {
	if _, _, err := s.projects.Member(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.db.ListCalibrationRounds(ctx, projectID)
}

// Vote records one reviewer's calibration decision on a sampled study.
// Calibration decisions live in their own ledger and never touch the study's
// operational screening state.
func (s *CalibrationService) Vote(ctx context.Context, projectID, reviewerID, roundID string, req *calibration.VoteRequest) (*calibration.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, _, err := s.projects.Authorize(ctx, projectID, reviewerID, member.CapScreen); err != nil {
		return nil, err
	}

	round, err := s.db.GetCalibrationRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.ProjectID != projectID {
		return nil, fmt.Errorf("calibration round %s: %w", roundID, domain.ErrNotFound)
	}
	if round.Status != calibration.RoundPending {
		return nil, fmt.Errorf("%w: round already completed", domain.ErrDomain)
	}
	if !slices.Contains(round.StudyIDs, req.ProjectWorkID) {
		return nil, fmt.Errorf("%w: study is not part of this round", domain.ErrValidation)
	}

	d := &calibration.Decision{
		ID:            uuid.NewString(),
		RoundID:       roundID,
		ProjectWorkID: req.ProjectWorkID,
		ReviewerID:    reviewerID,
		Decision:      req.Decision,
		Reasoning:     req.Reasoning,
	}
	if err := s.db.CreateCalibrationDecision(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// CompleteRound computes the round's reliability statistics and closes it.
// PASSED requires kappa at or above the round's target. A round with no
// pairable studies stays PENDING and the caller gets a domain error.
func (s *CalibrationService) CompleteRound(ctx context.Context, projectID, userID, roundID string) (*calibration.Round, error) {
	p, _, err := s.projects.Authorize(ctx, projectID, userID, member.CapRunCalibration)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.StartCalibrationSpan(ctx, roundID)
	defer span.End()

	var round *calibration.Round
	err = s.db.WithinTx(ctx, func(ctx context.Context, tx database.Store) error {
		var txErr error
		round, txErr = tx.GetCalibrationRoundForUpdate(ctx, roundID)
		if txErr != nil {
			return txErr
		}
		if round.ProjectID != p.ID {
			return fmt.Errorf("calibration round %s: %w", roundID, domain.ErrNotFound)
		}
		if round.Status != calibration.RoundPending {
			return fmt.Errorf("%w: round already completed", domain.ErrDomain)
		}

		decisions, txErr := tx.ListCalibrationDecisions(ctx, roundID)
		if txErr != nil {
			return txErr
		}

		rel, txErr := calibration.Compute(calibration.PairUp(decisions))
		if txErr != nil {
			return txErr
		}

		round.Status = calibration.RoundFailed
		if rel.Kappa >= round.TargetAgreement {
			round.Status = calibration.RoundPassed
		}
		round.KappaScore = &rel.Kappa
		round.PercentAgreement = &rel.PercentAgreement
		round.Interpretation = rel.Interpretation
		now := time.Now().UTC()
		round.CompletedAt = &now

		return tx.CompleteCalibrationRound(ctx, round)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RoundsCompleted.Add(ctx, 1)
	s.screening.appendEvent(ctx, p.ID, "", userID, event.TypeCalibrationCompleted, map[string]any{
		"round_id":          round.ID,
		"status":            round.Status,
		"kappa":             *round.KappaScore,
		"percent_agreement": *round.PercentAgreement,
	})
	s.hub.BroadcastEvent(ctx, p.ID, ws.EventCalibrationCompleted, ws.CalibrationEvent{
		ProjectID:        p.ID,
		RoundID:          round.ID,
		Status:           string(round.Status),
		Kappa:            *round.KappaScore,
		PercentAgreement: *round.PercentAgreement,
	})

	return round, nil
}
