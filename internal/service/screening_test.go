package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/litrev/litrev/internal/adapter/otel"
	"github.com/litrev/litrev/internal/adapter/ws"
	"github.com/litrev/litrev/internal/domain"
	"github.com/litrev/litrev/internal/domain/conflict"
	"github.com/litrev/litrev/internal/domain/event"
	"github.com/litrev/litrev/internal/domain/member"
	"github.com/litrev/litrev/internal/domain/project"
	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/domain/user"
	"github.com/litrev/litrev/internal/domain/work"
	"github.com/litrev/litrev/internal/port/messagequeue"
)

// testEnv wires the services against in-memory fakes with one seeded project.
type testEnv struct {
	store  *mockStore
	queue  *mockQueue
	events *mockEvents

	projects    *ProjectService
	screening   *ScreeningService
	queueSvc    *QueueService
	conflicts   *ConflictService
	calibration *CalibrationService
	progress    *ProgressService

	projectID string
}

const (
	ownerID     = "owner-1"
	leadID      = "lead-1"
	reviewer1ID = "rev-1"
	reviewer2ID = "rev-2"
	viewerID    = "view-1"
)

func newTestEnv(t *testing.T, policy screening.Policy, gating project.ConflictGating) *testEnv {
	t.Helper()

	store := newMockStore()
	queue := newMockQueue()
	events := &mockEvents{}
	hub := ws.NewHub()

	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}

	projects := NewProjectService(store, newMockCache(), 30*time.Second)
	scr := NewScreeningService(store, projects, events, queue, hub, metrics)

	env := &testEnv{
		store:       store,
		queue:       queue,
		events:      events,
		projects:    projects,
		screening:   scr,
		queueSvc:    NewQueueService(store, projects),
		conflicts:   NewConflictService(store, projects, scr, hub, metrics),
		calibration: NewCalibrationService(store, projects, scr, hub, metrics),
		progress:    NewProgressService(store, projects, scr, hub),
		projectID:   "proj-1",
	}

	store.projects[env.projectID] = &project.Project{
		ID:             env.projectID,
		Name:           "Sleep and Cognition Review",
		Policy:         policy,
		ConflictGating: gating,
		CurrentPhase:   screening.PhaseTitleAbstract,
	}

	seedMember := func(userID string, role member.Role) {
		store.users[userID] = &user.User{ID: userID, Name: userID, Email: userID + "@example.org", Enabled: true}
		store.members[env.projectID+"|"+userID] = &member.Member{
			ID: "m-" + userID, ProjectID: env.projectID, UserID: userID, Role: role,
		}
	}
	seedMember(ownerID, member.RoleOwner)
	seedMember(leadID, member.RoleLead)
	seedMember(reviewer1ID, member.RoleReviewer)
	seedMember(reviewer2ID, member.RoleReviewer)
	seedMember(viewerID, member.RoleViewer)

	return env
}

// addStudy seeds one study in the project's current phase.
func (env *testEnv) addStudy(id string) {
	workID := "w-" + id
	env.store.works[workID] = &work.Work{ID: workID, Title: "Study " + id}
	env.store.projectWorks[id] = &screening.ProjectWork{
		ID:        id,
		ProjectID: env.projectID,
		WorkID:    workID,
		Phase:     screening.PhaseTitleAbstract,
		Status:    screening.StatusPending,
		Source:    "pubmed",
	}
	env.store.workOrder = append(env.store.workOrder, id)
}

func submitReq(pwID string, d screening.Decision) *screening.SubmitRequest {
	return &screening.SubmitRequest{
		ProjectWorkID: pwID,
		Phase:         screening.PhaseTitleAbstract,
		Decision:      d,
	}
}

func TestSubmitSingleReviewerIncludes(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: false}, project.GatingBlockOpen)
	env.addStudy("pw1")
	ctx := context.Background()

	out, err := env.screening.SubmitDecision(ctx, env.projectID, reviewer1ID, submitReq("pw1", screening.DecisionInclude))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != screening.StatusIncluded {
		t.Errorf("expected INCLUDED, got %q", out.Status)
	}

	pw := env.store.projectWorks["pw1"]
	if pw.Status != screening.StatusIncluded {
		t.Errorf("stored status not updated, got %q", pw.Status)
	}
	if pw.FinalDecision == nil || *pw.FinalDecision != screening.DecisionInclude {
		t.Errorf("final decision not persisted, got %v", pw.FinalDecision)
	}

	// INCLUDED studies are handed to the full-text ingestion queue.
	if env.queue.count(messagequeue.SubjectIngestFullText) != 1 {
		t.Error("expected one ingest job for the included study")
	}
	if len(env.events.byType(event.TypeScreeningDecision)) != 1 {
		t.Error("expected one screening activity event")
	}
}

func TestSubmitDualFirstVoteAwaits(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: true}, project.GatingBlockOpen)
	env.addStudy("pw1")

	out, err := env.screening.SubmitDecision(context.Background(), env.projectID, reviewer1ID, submitReq("pw1", screening.DecisionInclude))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != screening.StatusScreening {
		t.Errorf("expected SCREENING after first of two votes, got %q", out.Status)
	}
	if env.queue.count(messagequeue.SubjectIngestFullText) != 0 {
		t.Error("no ingest job before the study is finalized")
	}
}

func TestSubmitDisagreementCreatesConflictSnapshot(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: true}, project.GatingBlockOpen)
	env.addStudy("pw1")
	ctx := context.Background()

	if _, err := env.screening.SubmitDecision(ctx, env.projectID, reviewer1ID, submitReq("pw1", screening.DecisionInclude)); err != nil {
		t.Fatal(err)
	}
	out, err := env.screening.SubmitDecision(ctx, env.projectID, reviewer2ID, submitReq("pw1", screening.DecisionExclude))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != screening.StatusConflict || !out.ConflictCreated {
		t.Fatalf("expected conflict outcome, got %+v", out)
	}

	open, err := env.store.GetOpenConflict(ctx, "pw1", screening.PhaseTitleAbstract)
	if err != nil {
		t.Fatal(err)
	}
	if len(open.Decisions) != 2 {
		t.Fatalf("conflict must snapshot both decisions, got %d", len(open.Decisions))
	}
	if open.Decisions[0].Decision != screening.DecisionInclude || open.Decisions[1].Decision != screening.DecisionExclude {
		t.Errorf("snapshot values wrong: %+v", open.Decisions)
	}
	if open.Status != conflict.StatusPending {
		t.Errorf("new conflict must be PENDING, got %q", open.Status)
	}
}

func TestSubmitDuplicateVoteRejected(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: true}, project.GatingBlockOpen)
	env.addStudy("pw1")
	ctx := context.Background()

	if _, err := env.screening.SubmitDecision(ctx, env.projectID, reviewer1ID, submitReq("pw1", screening.DecisionInclude)); err != nil {
		t.Fatal(err)
	}
	_, err := env.screening.SubmitDecision(ctx, env.projectID, reviewer1ID, submitReq("pw1", screening.DecisionExclude))
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate vote, got %v", err)
	}

	// The first decision stands untouched.
	rec, err := env.store.GetDecision(ctx, "pw1", reviewer1ID, screening.PhaseTitleAbstract)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Decision != screening.DecisionInclude {
		t.Errorf("original decision mutated to %q", rec.Decision)
	}
}

func TestSubmitOnFinalizedStudyRejected(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: false}, project.GatingBlockOpen)
	env.addStudy("pw1")
	ctx := context.Background()

	if _, err := env.screening.SubmitDecision(ctx, env.projectID, reviewer1ID, submitReq("pw1", screening.DecisionExclude)); err != nil {
		t.Fatal(err)
	}
	_, err := env.screening.SubmitDecision(ctx, env.projectID, reviewer2ID, submitReq("pw1", screening.DecisionInclude))
	if !errors.Is(err, domain.ErrDomain) {
		t.Errorf("expected domain error on finalized study, got %v", err)
	}
}

func TestSubmitWrongPhaseRejected(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: true}, project.GatingBlockOpen)
	env.addStudy("pw1")

	req := &screening.SubmitRequest{
		ProjectWorkID: "pw1",
		Phase:         screening.PhaseFullText,
		Decision:      screening.DecisionInclude,
	}
	_, err := env.screening.SubmitDecision(context.Background(), env.projectID, reviewer1ID, req)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for phase mismatch, got %v", err)
	}
}

func TestSubmitByViewerForbidden(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: true}, project.GatingBlockOpen)
	env.addStudy("pw1")

	_, err := env.screening.SubmitDecision(context.Background(), env.projectID, viewerID, submitReq("pw1", screening.DecisionInclude))
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for viewer, got %v", err)
	}
}

func TestSubmitByNonMemberForbidden(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: true}, project.GatingBlockOpen)
	env.addStudy("pw1")

	_, err := env.screening.SubmitDecision(context.Background(), env.projectID, "stranger", submitReq("pw1", screening.DecisionInclude))
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-member, got %v", err)
	}
}

func TestBatchPartialFailure(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: false}, project.GatingBlockOpen)
	for i := 1; i <= 5; i++ {
		env.addStudy(fmt.Sprintf("pw%d", i))
	}
	ctx := context.Background()

	// The lead already voted on two of the five studies.
	for _, id := range []string{"pw2", "pw4"} {
		if _, err := env.screening.SubmitDecision(ctx, env.projectID, leadID, submitReq(id, screening.DecisionExclude)); err != nil {
			t.Fatal(err)
		}
	}

	req := &screening.BatchRequest{
		ProjectWorkIDs: []string{"pw1", "pw2", "pw3", "pw4", "pw5"},
		Phase:          screening.PhaseTitleAbstract,
		Decision:       screening.DecisionExclude,
		Reasoning:      "irrelevant population",
	}
	result, err := env.screening.SubmitBatch(ctx, env.projectID, leadID, req)
	if err != nil {
		t.Fatal(err)
	}

	if result.Processed != 3 {
		t.Errorf("expected 3 processed, got %d", result.Processed)
	}
	if result.Failed != 2 {
		t.Errorf("expected 2 failed, got %d", result.Failed)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 item errors, got %d", len(result.Errors))
	}
	failedIDs := map[string]bool{result.Errors[0].ProjectWorkID: true, result.Errors[1].ProjectWorkID: true}
	if !failedIDs["pw2"] || !failedIDs["pw4"] {
		t.Errorf("wrong failed items: %+v", result.Errors)
	}
	for _, e := range result.Errors {
		if e.Reason == "" {
			t.Error("item errors must carry a reason")
		}
	}

	// The three fresh studies are finalized by the single-reviewer policy.
	for _, id := range []string{"pw1", "pw3", "pw5"} {
		if env.store.projectWorks[id].Status != screening.StatusExcluded {
			t.Errorf("study %s not excluded, got %q", id, env.store.projectWorks[id].Status)
		}
	}
}

func TestBatchRequiresLeadRole(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: false}, project.GatingBlockOpen)
	env.addStudy("pw1")

	req := &screening.BatchRequest{
		ProjectWorkIDs: []string{"pw1"},
		Phase:          screening.PhaseTitleAbstract,
		Decision:       screening.DecisionExclude,
	}
	_, err := env.screening.SubmitBatch(context.Background(), env.projectID, reviewer1ID, req)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for reviewer batch, got %v", err)
	}
}

func TestStatusRederivableFromDecisions(t *testing.T) {
	env := newTestEnv(t, screening.Policy{RequireDualScreening: true}, project.GatingBlockOpen)
	env.addStudy("pw1")
	ctx := context.Background()

	if _, err := env.screening.SubmitDecision(ctx, env.projectID, reviewer1ID, submitReq("pw1", screening.DecisionMaybe)); err != nil {
		t.Fatal(err)
	}
	if _, err := env.screening.SubmitDecision(ctx, env.projectID, reviewer2ID, submitReq("pw1", screening.DecisionMaybe)); err != nil {
		t.Fatal(err)
	}

	// Replaying the ledger through the evaluator reproduces the stored status.
	recs, err := env.store.ListDecisions(ctx, "pw1", screening.PhaseTitleAbstract)
	if err != nil {
		t.Fatal(err)
	}
	values := make([]screening.Decision, len(recs))
	for i, r := range recs {
		values[i] = r.Decision
	}
	derived := screening.Evaluate(values, screening.Policy{RequireDualScreening: true})
	if derived.Status != env.store.projectWorks["pw1"].Status {
		t.Errorf("stored status %q diverges from derived %q", env.store.projectWorks["pw1"].Status, derived.Status)
	}
}
