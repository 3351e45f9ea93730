package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/calibration"
)

const calibrationRoundColumns = `id, project_id, phase, sample_size, target_agreement, sample_method, status, kappa_score, percent_agreement, COALESCE(interpretation, ''), study_ids, created_at, completed_at`

func scanCalibrationRound(row rowScanner) (calibration.Round, error) {
	var r calibration.Round
	var studyIDs []byte
	err := row.Scan(&r.ID, &r.ProjectID, &r.Phase, &r.SampleSize, &r.TargetAgreement,
		&r.SampleMethod, &r.Status, &r.KappaScore, &r.PercentAgreement,
		&r.Interpretation, &studyIDs, &r.CreatedAt, &r.CompletedAt)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(studyIDs, &r.StudyIDs); err != nil {
		return r, fmt.Errorf("unmarshal study ids: %w", err)
	}
	return r, nil
}

func (s *Store) CreateCalibrationRound(ctx context.Context, r *calibration.Round) error {
	studyIDs, err := json.Marshal(r.StudyIDs)
	if err != nil {
		return fmt.Errorf("marshal study ids: %w", err)
	}

	err = s.q.QueryRow(ctx,
		`INSERT INTO calibration_rounds (id, project_id, phase, sample_size, target_agreement, sample_method, status, study_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		r.ID, r.ProjectID, r.Phase, r.SampleSize, r.TargetAgreement,
		r.SampleMethod, r.Status, studyIDs).
		Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create calibration round: %w", err)
	}
	return nil
}

func (s *Store) getCalibrationRound(ctx context.Context, id string, forUpdate bool) (*calibration.Round, error) {
	query := `SELECT ` + calibrationRoundColumns + ` FROM calibration_rounds WHERE id = $1`
	if forUpdate && s.inTx() {
		query += ` FOR UPDATE`
	}
	row := s.q.QueryRow(ctx, query, id)
	r, err := scanCalibrationRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get calibration round %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get calibration round %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) GetCalibrationRound(ctx context.Context, id string) (*calibration.Round, error) {
	return s.getCalibrationRound(ctx, id, false)
}

// GetCalibrationRoundForUpdate takes a row lock when called inside WithinTx so
// concurrent completions of the same round serialize.
func (s *Store) GetCalibrationRoundForUpdate(ctx context.Context, id string) (*calibration.Round, error) {
	return s.getCalibrationRound(ctx, id, true)
}

func (s *Store) ListCalibrationRounds(ctx context.Context, projectID string) ([]calibration.Round, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+calibrationRoundColumns+` FROM calibration_rounds
		 WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list calibration rounds: %w", err)
	}
	defer rows.Close()

	var rounds []calibration.Round
	for rows.Next() {
		r, err := scanCalibrationRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// CompleteCalibrationRound persists the computed reliability statistics and
// final status of a round.
func (s *Store) CompleteCalibrationRound(ctx context.Context, r *calibration.Round) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE calibration_rounds
		 SET status = $2, kappa_score = $3, percent_agreement = $4, interpretation = $5, completed_at = $6
		 WHERE id = $1`,
		r.ID, r.Status, r.KappaScore, r.PercentAgreement,
		nullIfEmpty(r.Interpretation), r.CompletedAt)
	if err != nil {
		return fmt.Errorf("complete calibration round %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete calibration round %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateCalibrationDecision(ctx context.Context, d *calibration.Decision) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO calibration_decisions (id, round_id, project_work_id, reviewer_id, decision, reasoning)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		d.ID, d.RoundID, d.ProjectWorkID, d.ReviewerID, d.Decision, nullIfEmpty(d.Reasoning)).
		Scan(&d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create calibration decision: %w", domain.ErrConflict)
		}
		return fmt.Errorf("create calibration decision: %w", err)
	}
	return nil
}

func (s *Store) ListCalibrationDecisions(ctx context.Context, roundID string) ([]calibration.Decision, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, round_id, project_work_id, reviewer_id, decision, COALESCE(reasoning, ''), created_at
		 FROM calibration_decisions WHERE round_id = $1 ORDER BY created_at`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list calibration decisions: %w", err)
	}
	defer rows.Close()

	var ds []calibration.Decision
	for rows.Next() {
		var d calibration.Decision
		if err := rows.Scan(&d.ID, &d.RoundID, &d.ProjectWorkID, &d.ReviewerID,
			&d.Decision, &d.Reasoning, &d.CreatedAt); err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}
