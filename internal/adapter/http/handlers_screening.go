package http

import (
	"net/http"

	"github.com/litrev/litrev/internal/domain/screening"
	"github.com/litrev/litrev/internal/middleware"
)

// SubmitDecision records one reviewer's screening decision on a study.
func (h *Handlers) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")

	req, ok := readJSON[screening.SubmitRequest](w, r)
	if !ok {
		return
	}

	outcome, err := h.screening.SubmitDecision(r.Context(), projectID, u.ID, &req)
	if err != nil {
		writeDomainError(w, err, "study not found")
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

// SubmitBatch applies one decision across a list of studies.
func (h *Handlers) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")

	req, ok := readJSON[screening.BatchRequest](w, r)
	if !ok {
		return
	}

	result, err := h.screening.SubmitBatch(r.Context(), projectID, u.ID, &req)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Queue returns the reviewer's screening queue for a phase. The phase query
// parameter defaults to the project's current phase.
func (h *Handlers) Queue(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")

	phase := screening.Phase(r.URL.Query().Get("phase"))
	if phase == "" {
		p, err := h.projects.Get(r.Context(), projectID)
		if err != nil {
			writeDomainError(w, err, "project not found")
			return
		}
		phase = p.CurrentPhase
	}
	if !phase.Valid() {
		writeError(w, http.StatusBadRequest, "invalid phase")
		return
	}

	view, err := h.queue.Queue(r.Context(), projectID, u.ID, phase)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
