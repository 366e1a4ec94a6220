package policy

import (
	"testing"

	"phcportal/internal/model"

	"github.com/google/uuid"
)

func actor(role string, phc *uuid.UUID) Actor {
	return Actor{ID: uuid.New(), Role: role, PHCID: phc, Status: model.UserStatusApproved}
}

func TestDefaultPolicyLoads(t *testing.T) {
	p := Default()
	if got := len(p.Rules()); got != 10 {
		t.Fatalf("rules = %d, want 10", got)
	}
}

func TestLoadRejectsUnknownRole(t *testing.T) {
	_, err := Load([]byte("resources:\n  - name: blog\n    view: [editor]\n"))
	if err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestCanViewMatrix(t *testing.T) {
	p := Default()
	cases := []struct {
		role     string
		resource string
		want     bool
	}{
		{model.RoleSuperAdmin, ResourceUsers, true},
		{model.RoleAdmin, ResourceActivityLogs, true},
		{model.RoleManager, ResourceUsers, false},
		{model.RoleManager, ResourceBlog, true},
		{model.RoleBlogger, ResourceGallery, true},
		{model.RoleBlogger, ResourceAttendance, false},
		{model.RolePHCAdministrator, ResourceAttendance, true},
		{model.RolePHCAdministrator, ResourceStaff, false},
		{model.RoleUser, ResourceDashboard, true},
		{model.RoleUser, ResourceSettings, true},
		{model.RoleUser, ResourceBlog, false},
		{model.RoleAdmin, "unknown", false},
	}
	for _, tc := range cases {
		if got := p.CanView(tc.role, tc.resource); got != tc.want {
			t.Errorf("CanView(%s, %s) = %v, want %v", tc.role, tc.resource, got, tc.want)
		}
	}
}

func TestCanManageUser(t *testing.T) {
	p := Default()
	phcA, phcB := uuid.New(), uuid.New()

	for _, role := range []string{model.RoleManager, model.RoleBlogger, model.RoleUser} {
		for _, targetRole := range model.AllRoles {
			if p.CanManageUser(actor(role, &phcA), Target{Role: targetRole, PHCID: &phcA}) {
				t.Fatalf("%s must not manage %s", role, targetRole)
			}
		}
	}

	admin := actor(model.RoleAdmin, nil)
	if p.CanManageUser(admin, Target{Role: model.RoleSuperAdmin}) {
		t.Fatalf("admin must not manage super_admin")
	}
	if !p.CanManageUser(admin, Target{Role: model.RoleManager}) {
		t.Fatalf("admin should manage manager")
	}
	if !p.CanManageUser(actor(model.RoleSuperAdmin, nil), Target{Role: model.RoleSuperAdmin}) {
		t.Fatalf("super_admin should manage super_admin")
	}

	phcAdmin := actor(model.RolePHCAdministrator, &phcA)
	if !p.CanManageUser(phcAdmin, Target{Role: model.RoleUser, PHCID: &phcA}) {
		t.Fatalf("phc admin should manage same-phc user")
	}
	if p.CanManageUser(phcAdmin, Target{Role: model.RoleUser, PHCID: &phcB}) {
		t.Fatalf("phc admin must not manage other phc")
	}
	if p.CanManageUser(phcAdmin, Target{Role: model.RoleBlogger, PHCID: &phcA}) {
		t.Fatalf("phc admin must not manage non-user role")
	}
	if p.CanManageUser(phcAdmin, Target{Role: model.RoleUser}) {
		t.Fatalf("phc admin must not manage user without phc")
	}
	if p.CanManageUser(actor(model.RolePHCAdministrator, nil), Target{Role: model.RoleUser}) {
		t.Fatalf("phc admin without phc must not manage anyone")
	}
}

func TestAvailableRoles(t *testing.T) {
	p := Default()

	admin := actor(model.RoleAdmin, nil)
	for _, r := range p.AvailableRoles(admin) {
		if r == model.RoleSuperAdmin {
			t.Fatalf("admin can assign super_admin")
		}
	}
	if p.CanAssignRole(admin, Target{ID: admin.ID, Role: model.RoleAdmin}, model.RoleSuperAdmin) {
		t.Fatalf("admin can promote self to super_admin")
	}
	if !p.CanAssignRole(admin, Target{Role: model.RoleUser}, model.RoleManager) {
		t.Fatalf("admin should promote user to manager")
	}
	if got := len(p.AvailableRoles(actor(model.RoleSuperAdmin, nil))); got != len(model.AllRoles) {
		t.Fatalf("super_admin roles = %d, want %d", got, len(model.AllRoles))
	}
	for _, role := range []string{model.RoleManager, model.RoleBlogger, model.RolePHCAdministrator, model.RoleUser} {
		if got := p.AvailableRoles(actor(role, nil)); len(got) != 0 {
			t.Fatalf("AvailableRoles(%s) = %v, want empty", role, got)
		}
	}
}

func TestSuperAdminHiddenFromOthers(t *testing.T) {
	p := Default()
	admin := actor(model.RoleAdmin, nil)
	if p.VisibleTo(admin, model.RoleSuperAdmin) {
		t.Fatalf("super_admin visible to admin")
	}
	for _, r := range p.RoleFilterOptions(admin) {
		if r == model.RoleSuperAdmin {
			t.Fatalf("super_admin offered as filter to admin")
		}
	}
	if !p.VisibleTo(actor(model.RoleSuperAdmin, nil), model.RoleSuperAdmin) {
		t.Fatalf("super_admin hidden from super_admin")
	}
}

func TestSettingsOnlySuperAdmin(t *testing.T) {
	p := Default()
	if !p.CanEditSettings(actor(model.RoleSuperAdmin, nil)) {
		t.Fatalf("super_admin cannot edit settings")
	}
	if p.CanEditSettings(actor(model.RoleAdmin, nil)) {
		t.Fatalf("admin can edit settings")
	}
	pending := actor(model.RoleSuperAdmin, nil)
	pending.Status = model.UserStatusPending
	if p.CanEditSettings(pending) {
		t.Fatalf("pending account can edit settings")
	}
}

func TestNavigation(t *testing.T) {
	p := Default()
	nav := p.Navigation(actor(model.RoleBlogger, nil))
	got := map[string]bool{}
	for _, item := range nav {
		got[item.Resource] = item.CanEdit
	}
	for _, want := range []string{ResourceDashboard, ResourceBlog, ResourceGallery, ResourceAnalytics, ResourceSettings} {
		if _, ok := got[want]; !ok {
			t.Fatalf("blogger nav missing %s: %v", want, nav)
		}
	}
	if _, ok := got[ResourceUsers]; ok {
		t.Fatalf("blogger nav includes users")
	}
	if !got[ResourceBlog] || got[ResourceSettings] {
		t.Fatalf("blogger edit flags wrong: %v", got)
	}
}
