package http

import (
	"net/http"
	"strconv"

	"github.com/litrev/litrev/internal/domain/project"
	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/middleware"
)

// ListProjects returns the projects the caller is a member of.
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())

	projects, err := h.projects.List(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, err, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []project.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetProject returns one project the caller is a member of.
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")

	p, _, err := h.projects.Member(r.Context(), projectID, u.ID)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PhaseReport returns the completeness report for a phase. The phase query
// parameter defaults to the project's current phase.
func (h *Handlers) PhaseReport(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")
	phase := screening.Phase(r.URL.Query().Get("phase"))

	report, err := h.progress.Report(r.Context(), projectID, u.ID, phase)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AdvancePhase moves the project to the next screening phase.
func (h *Handlers) AdvancePhase(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")

	report, err := h.progress.Advance(r.Context(), projectID, u.ID)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Activity returns the most recent activity log entries for a project.
func (h *Handlers) Activity(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.progress.Activity(r.Context(), projectID, u.ID, limit)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
