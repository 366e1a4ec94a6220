// Package policy holds the role matrix that decides who may see and change each admin
// resource. It is the single source of truth for the middleware, the services and the
// websocket endpoint.
package policy

import (
	_ "embed"
	"fmt"

	"phcportal/internal/model"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	ResourceDashboard    = "dashboard"
	ResourceUsers        = "users"
	ResourcePHCs         = "phcs"
	ResourceStaff        = "staff"
	ResourceAttendance   = "attendance"
	ResourceBlog         = "blog"
	ResourceGallery      = "gallery"
	ResourceActivityLogs = "activity_logs"
	ResourceAnalytics    = "analytics"
	ResourceSettings     = "settings"
)

const anyRole = "*"

//go:embed policy.yaml
var defaultPolicy []byte

// Actor is the authenticated account performing a request.
type Actor struct {
	ID     uuid.UUID
	Role   string
	PHCID  *uuid.UUID
	Status string
}

// Target is the account an actor wants to act on.
type Target struct {
	ID    uuid.UUID
	Role  string
	PHCID *uuid.UUID
}

type Rule struct {
	Name   string   `yaml:"name" json:"name"`
	Label  string   `yaml:"label" json:"label"`
	Path   string   `yaml:"path" json:"path"`
	View   []string `yaml:"view" json:"view"`
	Mutate []string `yaml:"mutate" json:"mutate"`
}

type NavItem struct {
	Resource string `json:"resource"`
	Label    string `json:"label"`
	Path     string `json:"path"`
	CanEdit  bool   `json:"can_edit"`
}

type document struct {
	Resources  []Rule              `yaml:"resources"`
	Assignable map[string][]string `yaml:"assignable_roles"`
}

type Policy struct {
	rules      []Rule
	byName     map[string]Rule
	assignable map[string][]string
}

// Default returns the embedded policy. It panics if the embedded file is malformed.
func Default() *Policy {
	p, err := Load(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("policy: embedded policy invalid: %v", err))
	}
	return p
}

// Load parses a policy document and checks that it only names known roles.
func Load(data []byte) (*Policy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	p := &Policy{
		rules:      doc.Resources,
		byName:     make(map[string]Rule, len(doc.Resources)),
		assignable: doc.Assignable,
	}
	for _, r := range doc.Resources {
		if r.Name == "" {
			return nil, fmt.Errorf("resource without name")
		}
		if _, dup := p.byName[r.Name]; dup {
			return nil, fmt.Errorf("resource %q declared twice", r.Name)
		}
		for _, role := range append(append([]string{}, r.View...), r.Mutate...) {
			if role != anyRole && !model.IsValidRole(role) {
				return nil, fmt.Errorf("resource %q: unknown role %q", r.Name, role)
			}
		}
		p.byName[r.Name] = r
	}
	for actor, roles := range doc.Assignable {
		if !model.IsValidRole(actor) {
			return nil, fmt.Errorf("assignable_roles: unknown role %q", actor)
		}
		for _, role := range roles {
			if !model.IsValidRole(role) {
				return nil, fmt.Errorf("assignable_roles[%s]: unknown role %q", actor, role)
			}
		}
	}
	return p, nil
}

// Rules returns the resource rules in declaration order.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// CanView reports whether role may open the resource's screen and read its data.
func (p *Policy) CanView(role, resource string) bool {
	r, ok := p.byName[resource]
	return ok && allows(r.View, role)
}

// CanMutate reports whether actor may change resource. For the users resource a target is
// required and the account-management rules apply.
func (p *Policy) CanMutate(actor Actor, resource string, target *Target) bool {
	if actor.Status != model.UserStatusApproved {
		return false
	}
	r, ok := p.byName[resource]
	if !ok || !allows(r.Mutate, actor.Role) {
		return false
	}
	if resource == ResourceUsers && target != nil {
		return p.CanManageUser(actor, *target)
	}
	return true
}

// CanManageUser decides whether actor may approve, reject, re-role or delete target.
// A PHC administrator only manages plain users attached to their own facility.
func (p *Policy) CanManageUser(actor Actor, target Target) bool {
	switch actor.Role {
	case model.RoleSuperAdmin:
		return true
	case model.RoleAdmin:
		return target.Role != model.RoleSuperAdmin
	case model.RolePHCAdministrator:
		if actor.PHCID == nil || target.PHCID == nil {
			return false
		}
		return *actor.PHCID == *target.PHCID && target.Role == model.RoleUser
	default:
		return false
	}
}

// AvailableRoles lists the roles actor may assign. Roles without an assignable_roles entry
// get an empty list.
func (p *Policy) AvailableRoles(actor Actor) []string {
	roles := p.assignable[actor.Role]
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}

// CanAssignRole combines CanManageUser with AvailableRoles.
func (p *Policy) CanAssignRole(actor Actor, target Target, role string) bool {
	if !p.CanManageUser(actor, target) {
		return false
	}
	for _, r := range p.assignable[actor.Role] {
		if r == role {
			return true
		}
	}
	return false
}

// VisibleTo hides super admin accounts from everyone who is not one.
func (p *Policy) VisibleTo(actor Actor, targetRole string) bool {
	return targetRole != model.RoleSuperAdmin || actor.Role == model.RoleSuperAdmin
}

// RoleFilterOptions lists the roles offered in the user list filter.
func (p *Policy) RoleFilterOptions(actor Actor) []string {
	out := make([]string, 0, len(model.AllRoles))
	for _, r := range model.AllRoles {
		if p.VisibleTo(actor, r) {
			out = append(out, r)
		}
	}
	return out
}

func (p *Policy) CanEditSettings(actor Actor) bool {
	return p.CanMutate(actor, ResourceSettings, nil)
}

// Navigation returns the admin menu for actor.
func (p *Policy) Navigation(actor Actor) []NavItem {
	items := make([]NavItem, 0, len(p.rules))
	for _, r := range p.rules {
		if !allows(r.View, actor.Role) {
			continue
		}
		items = append(items, NavItem{
			Resource: r.Name,
			Label:    r.Label,
			Path:     r.Path,
			CanEdit:  p.CanMutate(actor, r.Name, nil),
		})
	}
	return items
}

func allows(roles []string, role string) bool {
	for _, r := range roles {
		if r == anyRole || r == role {
			return true
		}
	}
	return false
}
