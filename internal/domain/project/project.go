// Package project defines the review project read model and its screening
// policy settings.
package project

import (
	"time"

	"github.com/litrev/litrev/internal/domain/screening"
)

// ConflictGating controls whether open conflicts block phase advancement.
type ConflictGating string

const (
	// GatingBlockOpen blocks advancement while any non-resolved conflict
	// exists in the phase. This is the default.
	GatingBlockOpen ConflictGating = "block_open"

	// GatingIgnore lets the phase advance with open conflicts outstanding.
	GatingIgnore ConflictGating = "ignore"
)

// Project is the engine's read model of a systematic review project. Project
// CRUD lives outside the engine; the engine reads policy and phase.
type Project struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Policy         screening.Policy `json:"policy"`
	ConflictGating ConflictGating   `json:"conflict_gating"`
	CurrentPhase   screening.Phase  `json:"current_phase"`
	Version        int              `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Gating returns the project's conflict gating rule, defaulting to
// GatingBlockOpen when unset.
func (p *Project) Gating() ConflictGating {
	if p.ConflictGating == "" {
		return GatingBlockOpen
	}
	return p.ConflictGating
}
