package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/calibration"
	"github.com/litrev/litrev/internal/domain/conflict"
	"github.com/litrev/litrev/internal/domain/event"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/domain/project"
	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/domain/user"
	"github.com/litrev/litrev/internal/domain/work"
	"github.com/litrev/litrev/internal/port/database"
	"github.com/litrev/litrev/internal/port/messagequeue"
)

// mockStore is an in-memory database.Store for service tests. It mirrors the
// constraints the real schema enforces: unique decisions per
// (study, reviewer, phase), one open conflict per (study, phase), optimistic
// project versioning.
type mockStore struct {
	mu sync.Mutex

	users         map[string]*user.User
	projects      map[string]*project.Project
	members       map[string]*member.Member // key: projectID|userID
	works         map[string]*work.Work
	projectWorks  map[string]*screening.ProjectWork
	workOrder     []string
	decisions     map[string]*screening.DecisionRecord // key: pwID|reviewerID|phase
	decisionOrder []string
	conflicts     map[string]*conflict.Conflict
	rounds        map[string]*calibration.Round
	calDecisions  []*calibration.Decision

	clock time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		users:        make(map[string]*user.User),
		projects:     make(map[string]*project.Project),
		members:      make(map[string]*member.Member),
		works:        make(map[string]*work.Work),
		projectWorks: make(map[string]*screening.ProjectWork),
		decisions:    make(map[string]*screening.DecisionRecord),
		conflicts:    make(map[string]*conflict.Conflict),
		rounds:       make(map[string]*calibration.Round),
		clock:        time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so ordering is deterministic.
func (m *mockStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx database.Store) error) error {
	return fn(ctx, m)
}

// --- Users ---

func (m *mockStore) CreateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w", domain.ErrConflict)
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", domain.ErrNotFound)
	}
	return u, nil
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", domain.ErrNotFound)
}

// --- Projects & membership ---

func (m *mockStore) ListProjects(_ context.Context, userID string) ([]project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []project.Project
	for _, mem := range m.members {
		if mem.UserID == userID {
			if p, ok := m.projects[mem.ProjectID]; ok {
				out = append(out, *p)
			}
		}
	}
	return out, nil
}

func (m *mockStore) GetProject(_ context.Context, id string) (*project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("get project: %w", domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) UpdateProjectPhase(_ context.Context, id string, phase screening.Phase, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("update project phase: %w", domain.ErrNotFound)
	}
	if p.Version != version {
		return fmt.Errorf("update project phase: %w", domain.ErrConflict)
	}
	p.CurrentPhase = phase
	p.Version++
	return nil
}

func (m *mockStore) GetMember(_ context.Context, projectID, userID string) (*member.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[projectID+"|"+userID]
	if !ok {
		return nil, fmt.Errorf("get member: %w", domain.ErrNotFound)
	}
	return mem, nil
}

// --- Works ---

func (m *mockStore) ListWorks(_ context.Context, ids []string) ([]work.Work, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []work.Work
	for _, id := range ids {
		if w, ok := m.works[id]; ok {
			out = append(out, *w)
		}
	}
	return out, nil
}

// --- Project works ---

func (m *mockStore) GetProjectWork(_ context.Context, id string) (*screening.ProjectWork, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pw, ok := m.projectWorks[id]
	if !ok {
		return nil, fmt.Errorf("get project work: %w", domain.ErrNotFound)
	}
	cp := *pw
	return &cp, nil
}

func (m *mockStore) GetProjectWorkForUpdate(ctx context.Context, id string) (*screening.ProjectWork, error) {
	return m.GetProjectWork(ctx, id)
}

func (m *mockStore) ListProjectWorks(_ context.Context, projectID string, phase screening.Phase) ([]screening.ProjectWork, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []screening.ProjectWork
	for _, id := range m.workOrder {
		pw := m.projectWorks[id]
		if pw.ProjectID == projectID && pw.Phase == phase {
			out = append(out, *pw)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateProjectWorkStatus(_ context.Context, id string, status screening.Status, final *screening.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pw, ok := m.projectWorks[id]
	if !ok {
		return fmt.Errorf("update project work: %w", domain.ErrNotFound)
	}
	pw.Status = status
	pw.FinalDecision = final
	pw.Version++
	return nil
}

func (m *mockStore) ListEligibleCalibrationWorkIDs(_ context.Context, projectID string, phase screening.Phase, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range m.workOrder {
		pw := m.projectWorks[id]
		if pw.ProjectID != projectID || pw.Phase != phase {
			continue
		}
		if pw.Status != screening.StatusPending && pw.Status != screening.StatusScreening {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- Screening decisions ---

func decisionKey(pwID, reviewerID string, phase screening.Phase) string {
	return pwID + "|" + reviewerID + "|" + string(phase)
}

func (m *mockStore) CreateDecision(_ context.Context, rec *screening.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := decisionKey(rec.ProjectWorkID, rec.ReviewerID, rec.Phase)
	if _, exists := m.decisions[key]; exists {
		return fmt.Errorf("create decision: %w", domain.ErrConflict)
	}
	rec.CreatedAt = m.tick()
	m.decisions[key] = rec
	m.decisionOrder = append(m.decisionOrder, key)
	return nil
}

func (m *mockStore) GetDecision(_ context.Context, pwID, reviewerID string, phase screening.Phase) (*screening.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.decisions[decisionKey(pwID, reviewerID, phase)]
	if !ok {
		return nil, fmt.Errorf("get decision: %w", domain.ErrNotFound)
	}
	return rec, nil
}

func (m *mockStore) ListDecisions(_ context.Context, pwID string, phase screening.Phase) ([]screening.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []screening.DecisionRecord
	for _, key := range m.decisionOrder {
		rec := m.decisions[key]
		if rec.ProjectWorkID == pwID && rec.Phase == phase {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *mockStore) ListPhaseVotes(_ context.Context, projectID string, phase screening.Phase) ([]screening.PhaseVote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []screening.PhaseVote
	for _, key := range m.decisionOrder {
		rec := m.decisions[key]
		pw, ok := m.projectWorks[rec.ProjectWorkID]
		if !ok || pw.ProjectID != projectID || rec.Phase != phase {
			continue
		}
		name := rec.ReviewerID
		if u, ok := m.users[rec.ReviewerID]; ok {
			name = u.Name
		}
		dec := rec.Decision
		out = append(out, screening.PhaseVote{
			ProjectWorkID: rec.ProjectWorkID,
			VotedReviewer: screening.VotedReviewer{
				ReviewerID: rec.ReviewerID,
				Name:       name,
				VotedAt:    rec.CreatedAt,
				Decision:   &dec,
			},
		})
	}
	return out, nil
}

func (m *mockStore) CountStatuses(_ context.Context, projectID string, phase screening.Phase) (map[screening.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[screening.Status]int)
	for _, pw := range m.projectWorks {
		if pw.ProjectID == projectID && pw.Phase == phase {
			counts[pw.Status]++
		}
	}
	return counts, nil
}

func (m *mockStore) ReviewerTallies(_ context.Context, projectID string, phase screening.Phase) ([]screening.ReviewerTally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byReviewer := make(map[string]int)
	for _, rec := range m.decisions {
		pw, ok := m.projectWorks[rec.ProjectWorkID]
		if ok && pw.ProjectID == projectID && rec.Phase == phase {
			byReviewer[rec.ReviewerID]++
		}
	}
	var out []screening.ReviewerTally
	for id, n := range byReviewer {
		out = append(out, screening.ReviewerTally{ReviewerID: id, Name: id, Decisions: n})
	}
	return out, nil
}

// --- Conflicts ---

func (m *mockStore) CreateConflict(_ context.Context, c *conflict.Conflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.conflicts {
		if existing.ProjectWorkID == c.ProjectWorkID && existing.Phase == c.Phase && existing.Status != conflict.StatusResolved {
			return fmt.Errorf("create conflict: %w", domain.ErrConflict)
		}
	}
	c.CreatedAt = m.tick()
	c.UpdatedAt = c.CreatedAt
	m.conflicts[c.ID] = c
	return nil
}

func (m *mockStore) GetConflict(_ context.Context, id string) (*conflict.Conflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conflicts[id]
	if !ok {
		return nil, fmt.Errorf("get conflict: %w", domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) GetOpenConflict(_ context.Context, pwID string, phase screening.Phase) (*conflict.Conflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conflicts {
		if c.ProjectWorkID == pwID && c.Phase == phase && c.Status != conflict.StatusResolved {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get open conflict: %w", domain.ErrNotFound)
}

func (m *mockStore) ListConflicts(_ context.Context, projectID string, status conflict.Status) ([]conflict.Conflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []conflict.Conflict
	for _, c := range m.conflicts {
		if c.ProjectID != projectID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockStore) MarkConflictResolved(_ context.Context, id string, res *conflict.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conflicts[id]
	if !ok {
		return fmt.Errorf("resolve conflict: %w", domain.ErrNotFound)
	}
	if c.Status == conflict.StatusResolved {
		return fmt.Errorf("resolve conflict: %w", domain.ErrConflict)
	}
	c.Status = conflict.StatusResolved
	c.Resolution = res
	c.UpdatedAt = m.tick()
	return nil
}

// --- Calibration ---

func (m *mockStore) CreateCalibrationRound(_ context.Context, r *calibration.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.CreatedAt = m.tick()
	m.rounds[r.ID] = r
	return nil
}

func (m *mockStore) GetCalibrationRound(_ context.Context, id string) (*calibration.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return nil, fmt.Errorf("get calibration round: %w", domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *mockStore) GetCalibrationRoundForUpdate(ctx context.Context, id string) (*calibration.Round, error) {
	return m.GetCalibrationRound(ctx, id)
}

func (m *mockStore) ListCalibrationRounds(_ context.Context, projectID string) ([]calibration.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []calibration.Round
	for _, r := range m.rounds {
		if r.ProjectID == projectID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockStore) CompleteCalibrationRound(_ context.Context, r *calibration.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rounds[r.ID]
	if !ok {
		return fmt.Errorf("complete calibration round: %w", domain.ErrNotFound)
	}
	*stored = *r
	return nil
}

func (m *mockStore) CreateCalibrationDecision(_ context.Context, d *calibration.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.calDecisions {
		if existing.RoundID == d.RoundID && existing.ProjectWorkID == d.ProjectWorkID && existing.ReviewerID == d.ReviewerID {
			return fmt.Errorf("create calibration decision: %w", domain.ErrConflict)
		}
	}
	d.CreatedAt = m.tick()
	m.calDecisions = append(m.calDecisions, d)
	return nil
}

func (m *mockStore) ListCalibrationDecisions(_ context.Context, roundID string) ([]calibration.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []calibration.Decision
	for _, d := range m.calDecisions {
		if d.RoundID == roundID {
			out = append(out, *d)
		}
	}
	return out, nil
}

// --- Side-effect mocks ---

// mockQueue records published messages.
type mockQueue struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newMockQueue() *mockQueue {
	return &mockQueue{published: make(map[string][][]byte)}
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[subject] = append(q.published[subject], data)
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) count(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.published[subject])
}

// mockEvents records appended activity events.
type mockEvents struct {
	mu     sync.Mutex
	events []event.ActivityEvent
}

func (e *mockEvents) Append(_ context.Context, ev *event.ActivityEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, *ev)
	return nil
}

func (e *mockEvents) ListByProject(_ context.Context, projectID string, limit int) ([]event.ActivityEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []event.ActivityEvent
	for i := len(e.events) - 1; i >= 0 && len(out) < limit; i-- {
		if e.events[i].ProjectID == projectID {
			out = append(out, e.events[i])
		}
	}
	return out, nil
}

func (e *mockEvents) byType(typ event.Type) []event.ActivityEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []event.ActivityEvent
	for _, ev := range e.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// mockCache is a map-backed cache.Cache ignoring TTLs.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mockCache) Close() {}
