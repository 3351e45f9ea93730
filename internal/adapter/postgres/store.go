package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/domain/project"
	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/domain/user"
	"github.com/litrev/litrev/internal/domain/work"
	"github.com/litrev/litrev/internal/port/database"
)

// querier is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements database.Store using PostgreSQL. A Store is either bound
// to the pool (pool != nil) or to a transaction handed out by WithinTx.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

// WithinTx runs fn against a transaction-bound Store. Nested calls reuse the
// surrounding transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx database.Store) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txStore := &Store{q: tx}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// inTx reports whether the store is transaction-bound.
func (s *Store) inTx() bool { return s.pool == nil }

// isUniqueViolation reports whether err is a Postgres unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO users (id, email, name, image, password_hash, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, nullIfEmpty(u.Image), u.PasswordHash, u.Enabled).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", domain.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = `id, email, name, COALESCE(image, ''), password_hash, enabled, created_at, updated_at`

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.PasswordHash, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	row := s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get user by email: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// --- Projects ---

const projectColumns = `id, name, COALESCE(description, ''), require_dual_screening, blind_screening, conflict_gating, current_phase, version, created_at, updated_at`

func scanProject(row rowScanner) (project.Project, error) {
	var p project.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description,
		&p.Policy.RequireDualScreening, &p.Policy.BlindScreening,
		&p.ConflictGating, &p.CurrentPhase, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProjects(ctx context.Context, userID string) ([]project.Project, error) {
	rows, err := s.q.Query(ctx,
		`SELECT p.id, p.name, COALESCE(p.description, ''), p.require_dual_screening, p.blind_screening, p.conflict_gating, p.current_phase, p.version, p.created_at, p.updated_at
		 FROM projects p
		 JOIN project_members m ON m.project_id = p.id
		 WHERE m.user_id = $1
		 ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	row := s.q.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return &p, nil
}

// UpdateProjectPhase advances a project's current phase with an optimistic
// version check.
func (s *Store) UpdateProjectPhase(ctx context.Context, id string, phase screening.Phase, version int) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE projects SET current_phase = $2, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $3`, id, phase, version)
	if err != nil {
		return fmt.Errorf("update project phase %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update project phase %s: %w", id, domain.ErrConflict)
	}
	return nil
}

// CreateProject inserts a new project. Used by the admin CLI; project CRUD
// is not part of the API surface.
func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO projects (id, name, description, require_dual_screening, blind_screening, conflict_gating, current_phase)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING version, created_at, updated_at`,
		p.ID, p.Name, nullIfEmpty(p.Description),
		p.Policy.RequireDualScreening, p.Policy.BlindScreening,
		p.Gating(), p.CurrentPhase).
		Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// --- Membership ---

// CreateMember inserts a project membership. Used by the admin CLI.
func (s *Store) CreateMember(ctx context.Context, m *member.Member) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO project_members (id, project_id, user_id, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		m.ID, m.ProjectID, m.UserID, m.Role).
		Scan(&m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create member: %w", domain.ErrConflict)
		}
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, projectID, userID string) (*member.Member, error) {
	var m member.Member
	err := s.q.QueryRow(ctx,
		`SELECT id, project_id, user_id, role, created_at
		 FROM project_members WHERE project_id = $1 AND user_id = $2`,
		projectID, userID).
		Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get member: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// --- Works ---

func (s *Store) ListWorks(ctx context.Context, ids []string) ([]work.Work, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.q.Query(ctx,
		`SELECT id, title, COALESCE(abstract, ''), authors, COALESCE(year, 0), COALESCE(journal, ''), COALESCE(doi, ''), created_at
		 FROM works WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	defer rows.Close()

	var works []work.Work
	for rows.Next() {
		var w work.Work
		if err := rows.Scan(&w.ID, &w.Title, &w.Abstract, &w.Authors, &w.Year, &w.Journal, &w.DOI, &w.CreatedAt); err != nil {
			return nil, err
		}
		works = append(works, w)
	}
	return works, rows.Err()
}
