package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/screening"
)

const projectWorkColumns = `id, project_id, work_id, phase, status, final_decision, COALESCE(source, ''), version, created_at, updated_at`

func scanProjectWork(row rowScanner) (screening.ProjectWork, error) {
	var pw screening.ProjectWork
	err := row.Scan(&pw.ID, &pw.ProjectID, &pw.WorkID, &pw.Phase, &pw.Status,
		&pw.FinalDecision, &pw.Source, &pw.Version, &pw.CreatedAt, &pw.UpdatedAt)
	return pw, err
}

func (s *Store) getProjectWork(ctx context.Context, id string, forUpdate bool) (*screening.ProjectWork, error) {
	query := `SELECT ` + projectWorkColumns + ` FROM project_works WHERE id = $1`
	if forUpdate && s.inTx() {
		query += ` FOR UPDATE`
	}
	row := s.q.QueryRow(ctx, query, id)
	pw, err := scanProjectWork(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get project work %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get project work %s: %w", id, err)
	}
	return &pw, nil
}

func (s *Store) GetProjectWork(ctx context.Context, id string) (*screening.ProjectWork, error) {
	return s.getProjectWork(ctx, id, false)
}

// GetProjectWorkForUpdate takes a row lock when called inside WithinTx,
// serializing the read-evaluate-write sequence per study.
func (s *Store) GetProjectWorkForUpdate(ctx context.Context, id string) (*screening.ProjectWork, error) {
	return s.getProjectWork(ctx, id, true)
}

func (s *Store) ListProjectWorks(ctx context.Context, projectID string, phase screening.Phase) ([]screening.ProjectWork, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+projectWorkColumns+` FROM project_works
		 WHERE project_id = $1 AND phase = $2 ORDER BY created_at`, projectID, phase)
	if err != nil {
		return nil, fmt.Errorf("list project works: %w", err)
	}
	defer rows.Close()

	var pws []screening.ProjectWork
	for rows.Next() {
		pw, err := scanProjectWork(rows)
		if err != nil {
			return nil, err
		}
		pws = append(pws, pw)
	}
	return pws, rows.Err()
}

func (s *Store) UpdateProjectWorkStatus(ctx context.Context, id string, status screening.Status, final *screening.Decision) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE project_works SET status = $2, final_decision = $3, version = version + 1, updated_at = now()
		 WHERE id = $1`, id, status, final)
	if err != nil {
		return fmt.Errorf("update project work status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update project work status %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListEligibleCalibrationWorkIDs returns ids of studies in the phase that are
// still open for screening, capped at limit, in random order.
func (s *Store) ListEligibleCalibrationWorkIDs(ctx context.Context, projectID string, phase screening.Phase, limit int) ([]string, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id FROM project_works
		 WHERE project_id = $1 AND phase = $2 AND status IN ('PENDING', 'SCREENING')
		 ORDER BY random() LIMIT $3`, projectID, phase, limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible calibration works: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Screening decisions (append-only) ---

const decisionColumns = `id, project_work_id, reviewer_id, phase, decision, COALESCE(reasoning, ''), COALESCE(exclusion_reason, ''), confidence, time_spent_ms, followed_ai, created_at`

func scanDecision(row rowScanner) (screening.DecisionRecord, error) {
	var d screening.DecisionRecord
	err := row.Scan(&d.ID, &d.ProjectWorkID, &d.ReviewerID, &d.Phase, &d.Decision,
		&d.Reasoning, &d.ExclusionReason, &d.Confidence, &d.TimeSpentMs, &d.FollowedAI, &d.CreatedAt)
	return d, err
}

func (s *Store) CreateDecision(ctx context.Context, rec *screening.DecisionRecord) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO screening_decisions (id, project_work_id, reviewer_id, phase, decision, reasoning, exclusion_reason, confidence, time_spent_ms, followed_ai)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		rec.ID, rec.ProjectWorkID, rec.ReviewerID, rec.Phase, rec.Decision,
		nullIfEmpty(rec.Reasoning), nullIfEmpty(rec.ExclusionReason),
		rec.Confidence, rec.TimeSpentMs, rec.FollowedAI).
		Scan(&rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create decision: %w", domain.ErrConflict)
		}
		return fmt.Errorf("create decision: %w", err)
	}
	return nil
}

func (s *Store) GetDecision(ctx context.Context, projectWorkID, reviewerID string, phase screening.Phase) (*screening.DecisionRecord, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM screening_decisions
		 WHERE project_work_id = $1 AND reviewer_id = $2 AND phase = $3`,
		projectWorkID, reviewerID, phase)
	d, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get decision: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return &d, nil
}

func (s *Store) ListDecisions(ctx context.Context, projectWorkID string, phase screening.Phase) ([]screening.DecisionRecord, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+decisionColumns+` FROM screening_decisions
		 WHERE project_work_id = $1 AND phase = $2 ORDER BY created_at`, projectWorkID, phase)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var ds []screening.DecisionRecord
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}

// ListPhaseVotes returns who voted on each study in a phase, joined with
// reviewer profiles, in one query for queue assembly.
func (s *Store) ListPhaseVotes(ctx context.Context, projectID string, phase screening.Phase) ([]screening.PhaseVote, error) {
	rows, err := s.q.Query(ctx,
		`SELECT d.project_work_id, d.reviewer_id, u.name, COALESCE(u.image, ''), d.created_at, d.decision
		 FROM screening_decisions d
		 JOIN project_works pw ON pw.id = d.project_work_id
		 JOIN users u ON u.id = d.reviewer_id
		 WHERE pw.project_id = $1 AND d.phase = $2
		 ORDER BY d.created_at`, projectID, phase)
	if err != nil {
		return nil, fmt.Errorf("list phase votes: %w", err)
	}
	defer rows.Close()

	var votes []screening.PhaseVote
	for rows.Next() {
		var v screening.PhaseVote
		var dec screening.Decision
		if err := rows.Scan(&v.ProjectWorkID, &v.ReviewerID, &v.Name, &v.Image, &v.VotedAt, &dec); err != nil {
			return nil, err
		}
		v.Decision = &dec
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (s *Store) CountStatuses(ctx context.Context, projectID string, phase screening.Phase) (map[screening.Status]int, error) {
	rows, err := s.q.Query(ctx,
		`SELECT status, COUNT(*) FROM project_works
		 WHERE project_id = $1 AND phase = $2 GROUP BY status`, projectID, phase)
	if err != nil {
		return nil, fmt.Errorf("count statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[screening.Status]int)
	for rows.Next() {
		var st screening.Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (s *Store) ReviewerTallies(ctx context.Context, projectID string, phase screening.Phase) ([]screening.ReviewerTally, error) {
	rows, err := s.q.Query(ctx,
		`SELECT d.reviewer_id, u.name, COUNT(*)
		 FROM screening_decisions d
		 JOIN project_works pw ON pw.id = d.project_work_id
		 JOIN users u ON u.id = d.reviewer_id
		 WHERE pw.project_id = $1 AND d.phase = $2
		 GROUP BY d.reviewer_id, u.name
		 ORDER BY COUNT(*) DESC`, projectID, phase)
	if err != nil {
		return nil, fmt.Errorf("reviewer tallies: %w", err)
	}
	defer rows.Close()

	var tallies []screening.ReviewerTally
	for rows.Next() {
		var t screening.ReviewerTally
		if err := rows.Scan(&t.ReviewerID, &t.Name, &t.Decisions); err != nil {
			return nil, err
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}
