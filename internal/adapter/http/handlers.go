package http

import (
	"github.com/litrev/litrev/internal/service"
)

// Handlers aggregates all HTTP handler dependencies.
type Handlers struct {
	auth        *service.AuthService
	projects    *service.ProjectService
	screening   *service.ScreeningService
	queue       *service.QueueService
	conflicts   *service.ConflictService
	calibration *service.CalibrationService
	progress    *service.ProgressService
}

// NewHandlers creates the handler set.
func NewHandlers(
	auth *service.AuthService,
	projects *service.ProjectService,
	screening *service.ScreeningService,
	queue *service.QueueService,
	conflicts *service.ConflictService,
	calibration *service.CalibrationService,
	progress *service.ProgressService,
) *Handlers {
	return &Handlers{
		auth:        auth,
		projects:    projects,
		screening:   screening,
		queue:       queue,
		conflicts:   conflicts,
		calibration: calibration,
		progress:    progress,
	}
}
