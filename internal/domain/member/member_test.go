package member

import "testing"

func TestReviewerCapabilities(t *testing.T) {
	if !RoleReviewer.Can(CapScreen) {
		t.Error("REVIEWER must be able to screen")
	}
	for _, c := range []Capability{CapBatchScreen, CapResolve, CapManagePhases, CapRunCalibration} {
		if RoleReviewer.Can(c) {
			t.Errorf("REVIEWER must not have %q", c)
		}
	}
}

func TestLeadAndOwnerCapabilities(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleLead} {
		for _, c := range []Capability{CapScreen, CapBatchScreen, CapResolve, CapManagePhases, CapRunCalibration} {
			if !r.Can(c) {
				t.Errorf("%s must have %q", r, c)
			}
		}
	}
}

func TestViewerHasNoCapabilities(t *testing.T) {
	for _, c := range []Capability{CapScreen, CapBatchScreen, CapResolve, CapManagePhases, CapRunCalibration} {
		if RoleViewer.Can(c) {
			t.Errorf("VIEWER must not have %q", c)
		}
	}
}

func TestUnknownRoleHasNoCapabilities(t *testing.T) {
	if Role("GHOST").Can(CapScreen) {
		t.Error("unknown role must have no capabilities")
	}
}
