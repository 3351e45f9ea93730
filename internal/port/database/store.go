// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/litrev/litrev/internal/domain/calibration"
	"github.com/litrev/litrev/internal/domain/conflict"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/domain/project"
	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/domain/user"
	"github.com/litrev/litrev/internal/domain/work"
)

// Store is the port interface for database operations.
//
// WithinTx runs fn against a transaction-scoped Store. The *ForUpdate getters
// take a row lock when called inside a transaction, serializing the
// read-evaluate-write sequence per study; outside a transaction they behave
// like their plain counterparts.
type Store interface {
	// Transactions
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Users
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)

	// Projects & membership
	ListProjects(ctx context.Context, userID string) ([]project.Project, error)
	GetProject(ctx context.Context, id string) (*project.Project, error)
	UpdateProjectPhase(ctx context.Context, id string, phase screening.Phase, version int) error
	GetMember(ctx context.Context, projectID, userID string) (*member.Member, error)

	// Works
	ListWorks(ctx context.Context, ids []string) ([]work.Work, error)

	// Project works
	GetProjectWork(ctx context.Context, id string) (*screening.ProjectWork, error)
	GetProjectWorkForUpdate(ctx context.Context, id string) (*screening.ProjectWork, error)
	ListProjectWorks(ctx context.Context, projectID string, phase screening.Phase) ([]screening.ProjectWork, error)
	UpdateProjectWorkStatus(ctx context.Context, id string, status screening.Status, final *screening.Decision) error
	ListEligibleCalibrationWorkIDs(ctx context.Context, projectID string, phase screening.Phase, limit int) ([]string, error)

	// Screening decisions (append-only)
	CreateDecision(ctx context.Context, rec *screening.DecisionRecord) error
	GetDecision(ctx context.Context, projectWorkID, reviewerID string, phase screening.Phase) (*screening.DecisionRecord, error)
	ListDecisions(ctx context.Context, projectWorkID string, phase screening.Phase) ([]screening.DecisionRecord, error)
	ListPhaseVotes(ctx context.Context, projectID string, phase screening.Phase) ([]screening.PhaseVote, error)
	CountStatuses(ctx context.Context, projectID string, phase screening.Phase) (map[screening.Status]int, error)
	ReviewerTallies(ctx context.Context, projectID string, phase screening.Phase) ([]screening.ReviewerTally, error)

	// Conflicts
	CreateConflict(ctx context.Context, c *conflict.Conflict) error
	GetConflict(ctx context.Context, id string) (*conflict.Conflict, error)
	GetOpenConflict(ctx context.Context, projectWorkID string, phase screening.Phase) (*conflict.Conflict, error)
	ListConflicts(ctx context.Context, projectID string, status conflict.Status) ([]conflict.Conflict, error)
	MarkConflictResolved(ctx context.Context, id string, res *conflict.Resolution) error

	// Calibration
	CreateCalibrationRound(ctx context.Context, r *calibration.Round) error
	GetCalibrationRound(ctx context.Context, id string) (*calibration.Round, error)
	GetCalibrationRoundForUpdate(ctx context.Context, id string) (*calibration.Round, error)
	ListCalibrationRounds(ctx context.Context, projectID string) ([]calibration.Round, error)
	CompleteCalibrationRound(ctx context.Context, r *calibration.Round) error
	CreateCalibrationDecision(ctx context.Context, d *calibration.Decision) error
	ListCalibrationDecisions(ctx context.Context, roundID string) ([]calibration.Decision, error)
}
