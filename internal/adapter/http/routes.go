package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Auth
		r.Post("/auth/login", h.Login)
		r.Get("/auth/me", h.Me)

		// Projects
		r.Get("/projects", h.ListProjects)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/", h.GetProject)

			// Screening
			r.Get("/queue", h.Queue)
			r.Post("/decisions", h.SubmitDecision)
			r.Post("/decisions/batch", h.SubmitBatch)

			// Phase progression
			r.Get("/progress", h.PhaseReport)
			r.Post("/phase/advance", h.AdvancePhase)

			// Conflicts
			r.Get("/conflicts", h.ListConflicts)
			r.Get("/conflicts/{conflictID}", h.GetConflict)
			r.Post("/conflicts/{conflictID}/resolve", h.ResolveConflict)

			// Calibration
			r.Get("/calibration-rounds", h.ListCalibrationRounds)
			r.Post("/calibration-rounds", h.CreateCalibrationRound)
			r.Get("/calibration-rounds/{roundID}", h.GetCalibrationRound)
			r.Post("/calibration-rounds/{roundID}/decisions", h.CalibrationVote)
			r.Post("/calibration-rounds/{roundID}/complete", h.CompleteCalibrationRound)

			// Activity log
			r.Get("/activity", h.Activity)
		})
	})
}
