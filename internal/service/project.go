package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/domain/project"
	"github.com/litrev/litrev/internal/port/cache"
	"github.com/litrev/litrev/internal/port/database"
)

// ProjectService reads projects and answers authorization questions for the
// other services. Project records are cached with a short TTL because every
// decision submission reads the project policy.
type ProjectService struct {
	db    database.Store
	cache cache.Cache
	ttl   time.Duration
	sf    singleflight.Group
}

// NewProjectService creates a new ProjectService.
func NewProjectService(db database.Store, c cache.Cache, ttl time.Duration) *ProjectService {
	return &ProjectService{db: db, cache: c, ttl: ttl}
}

// List returns the projects the user is a member of.
func (s *ProjectService) List(ctx context.Context, userID string) ([]project.Project, error) {
	return s.db.ListProjects(ctx, userID)
}

// Get retrieves a project, serving repeated reads from the cache. Concurrent
// misses for the same project collapse into one database query.
func (s *ProjectService) Get(ctx context.Context, id string) (*project.Project, error) {
	key := "project:" + id

	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var p project.Project
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		p, err := s.db.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				slog.Debug("project cache set failed", "project_id", id, "error", err)
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*project.Project), nil
}

// Invalidate drops a project from the cache, used after phase advancement.
func (s *ProjectService) Invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, "project:"+id); err != nil {
		slog.Debug("project cache delete failed", "project_id", id, "error", err)
	}
}

// Authorize loads the project and verifies that the user is a member whose
// role grants the capability. Non-members get ErrForbidden, not ErrNotFound,
// so membership state is never leaked through error shapes.
func (s *ProjectService) Authorize(ctx context.Context, projectID, userID string, cap member.Capability) (*project.Project, *member.Member, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	m, err := s.db.GetMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: not a member of this project", domain.ErrForbidden)
		}
		return nil, nil, err
	}

	if !m.Role.Can(cap) {
		return nil, nil, fmt.Errorf("%w: role %s cannot %s", domain.ErrForbidden, m.Role, cap)
	}
	return p, m, nil
}

// Member returns the caller's membership without requiring any capability,
// for read-only endpoints open to every member.
func (s *ProjectService) Member(ctx context.Context, projectID, userID string) (*project.Project, *member.Member, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	m, err := s.db.GetMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: not a member of this project", domain.ErrForbidden)
		}
		return nil, nil, err
	}
	return p, m, nil
}
