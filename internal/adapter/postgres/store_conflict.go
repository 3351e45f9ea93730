package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/conflict"
	"github.com/litrev/litrev/internal/domain/screening"
)

const conflictColumns = `id, project_id, project_work_id, phase, status, decisions, resolution, created_at, updated_at`

func scanConflict(row rowScanner) (conflict.Conflict, error) {
	var c conflict.Conflict
	var decisions []byte
	var resolution []byte
	err := row.Scan(&c.ID, &c.ProjectID, &c.ProjectWorkID, &c.Phase, &c.Status,
		&decisions, &resolution, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(decisions, &c.Decisions); err != nil {
		return c, fmt.Errorf("unmarshal conflict decisions: %w", err)
	}
	if resolution != nil {
		if err := json.Unmarshal(resolution, &c.Resolution); err != nil {
			return c, fmt.Errorf("unmarshal conflict resolution: %w", err)
		}
	}
	return c, nil
}

func (s *Store) CreateConflict(ctx context.Context, c *conflict.Conflict) error {
	decisions, err := json.Marshal(c.Decisions)
	if err != nil {
		return fmt.Errorf("marshal conflict decisions: %w", err)
	}

	err = s.q.QueryRow(ctx,
		`INSERT INTO conflicts (id, project_id, project_work_id, phase, status, decisions)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		c.ID, c.ProjectID, c.ProjectWorkID, c.Phase, c.Status, decisions).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Partial unique index: one open conflict per (project_work, phase).
			return fmt.Errorf("create conflict: %w", domain.ErrConflict)
		}
		return fmt.Errorf("create conflict: %w", err)
	}
	return nil
}

func (s *Store) GetConflict(ctx context.Context, id string) (*conflict.Conflict, error) {
	row := s.q.QueryRow(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE id = $1`, id)
	c, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get conflict %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conflict %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) GetOpenConflict(ctx context.Context, projectWorkID string, phase screening.Phase) (*conflict.Conflict, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+conflictColumns+` FROM conflicts
		 WHERE project_work_id = $1 AND phase = $2 AND status <> 'RESOLVED'`,
		projectWorkID, phase)
	c, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get open conflict: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get open conflict: %w", err)
	}
	return &c, nil
}

func (s *Store) ListConflicts(ctx context.Context, projectID string, status conflict.Status) ([]conflict.Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts WHERE project_id = $1`
	args := []any{projectID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []conflict.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// MarkConflictResolved transitions a conflict to RESOLVED. The status guard
// in the WHERE clause makes double-resolution fail instead of double-apply.
func (s *Store) MarkConflictResolved(ctx context.Context, id string, res *conflict.Resolution) error {
	resolution, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}

	tag, err := s.q.Exec(ctx,
		`UPDATE conflicts SET status = 'RESOLVED', resolution = $2, updated_at = now()
		 WHERE id = $1 AND status <> 'RESOLVED'`, id, resolution)
	if err != nil {
		return fmt.Errorf("resolve conflict %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resolve conflict %s: %w", id, domain.ErrConflict)
	}
	return nil
}
