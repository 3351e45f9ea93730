package http

import (
	"net/http"

	"github.com/litrev/litrev/internal/domain/calibration"
	"github.com/litrev/litrev/internal/middleware"
)

// CreateCalibrationRound starts a calibration round.
func (h *Handlers) CreateCalibrationRound(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")

	req, ok := readJSON[calibration.CreateRoundRequest](w, r)
	if !ok {
		return
	}

	round, err := h.calibration.CreateRound(r.Context(), projectID, u.ID, &req)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

// ListCalibrationRounds returns a project's rounds, newest first.
func (h *Handlers) ListCalibrationRounds(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")

	rounds, err := h.calibration.List(r.Context(), projectID, u.ID)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	if rounds == nil {
		rounds = []calibration.Round{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

// GetCalibrationRound returns one round with its statistics.
func (h *Handlers) GetCalibrationRound(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")
	roundID := urlParam(r, "roundID")

	round, err := h.calibration.Get(r.Context(), projectID, u.ID, roundID)
	if err != nil {
		writeDomainError(w, err, "calibration round not found")
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// CalibrationVote records a reviewer's decision inside a round.
func (h *Handlers) CalibrationVote(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")
	roundID := urlParam(r, "roundID")

	req, ok := readJSON[calibration.VoteRequest](w, r)
	if !ok {
		return
	}

	d, err := h.calibration.Vote(r.Context(), projectID, u.ID, roundID, &req)
	if err != nil {
		writeDomainError(w, err, "calibration round not found")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// CompleteCalibrationRound computes the round's agreement statistics and
// closes it.
func (h *Handlers) CompleteCalibrationRound(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	projectID := urlParam(r, "projectID")
	roundID := urlParam(r, "roundID")

	round, err := h.calibration.CompleteRound(r.Context(), projectID, u.ID, roundID)
	if err != nil {
		writeDomainError(w, err, "calibration round not found")
		return
	}
	writeJSON(w, http.StatusOK, round)
}
