package http

import (
	"net/http"

	"github.com/litrev/litrev/internal/domain/conflict"
	"github.com/litrev/litrev/internal/middleware"
)

// ListConflicts returns a project's conflicts, optionally filtered by the
// status query parameter.
func (h *Handlers) ListConflicts(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")
	status := conflict.Status(r.URL.Query().Get("status"))

	conflicts, err := h.conflicts.List(r.Context(), projectID, u.ID, status)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	if conflicts == nil {
		conflicts = []conflict.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

// GetConflict returns one conflict with its decision snapshots.
func (h *Handlers) GetConflict(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")
	conflictID := urlParam(r, "conflictID")

	cf, err := h.conflicts.Get(r.Context(), projectID, u.ID, conflictID)
	if err != nil {
		writeDomainError(w, err, "conflict not found")
		return
	}
	writeJSON(w, http.StatusOK, cf)
}

// ResolveConflict adjudicates a conflict with a final decision.
func (h *Handlers) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")
	conflictID := urlParam(r, "conflictID")

	req, ok := readJSON[conflict.ResolveRequest](w, r)
	if !ok {
		return
	}

	cf, err := h.conflicts.Resolve(r.Context(), projectID, u.ID, conflictID, &req)
	if err != nil {
		writeDomainError(w, err, "conflict not found")
		return
	}
	writeJSON(w, http.StatusOK, cf)
}
