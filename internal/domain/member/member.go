// Package member defines project membership roles and their capabilities.
package member

import "time"

// Role represents a member's authorization level within one project.
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleLead     Role = "LEAD"
	RoleReviewer Role = "REVIEWER"
	RoleViewer   Role = "VIEWER"
)

// ValidRoles is the set of all valid project roles.
var ValidRoles = map[Role]bool{
	RoleOwner:    true,
	RoleLead:     true,
	RoleReviewer: true,
	RoleViewer:   true,
}

// Capability names a project-scoped permission. Roles map to capability sets
// once, here, instead of literal role lists at every call site.
type Capability string

const (
	CapScreen         Capability = "screen"          // submit screening decisions
	CapBatchScreen    Capability = "batch_screen"    // submit batch decisions
	CapResolve        Capability = "resolve"         // adjudicate conflicts
	CapManagePhases   Capability = "manage_phases"   // advance the project phase
	CapRunCalibration Capability = "run_calibration" // create/complete calibration rounds
)

var capabilities = map[Role]map[Capability]bool{
	RoleOwner: {
		CapScreen: true, CapBatchScreen: true, CapResolve: true,
		CapManagePhases: true, CapRunCalibration: true,
	},
	RoleLead: {
		CapScreen: true, CapBatchScreen: true, CapResolve: true,
		CapManagePhases: true, CapRunCalibration: true,
	},
	RoleReviewer: {
		CapScreen: true,
	},
	RoleViewer: {},
}

// Can reports whether the role grants the capability.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

// Member is one user's membership in a project.
type Member struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
