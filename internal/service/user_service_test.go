package service

import (
	"context"
	"errors"
	"testing"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeUserRepo struct {
	repository.UserRepository
	users      map[uuid.UUID]*model.User
	lastFilter repository.UserFilter
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uuid.UUID]*model.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) List(ctx context.Context, filter repository.UserFilter) ([]model.User, int64, error) {
	r.lastFilter = filter
	var out []model.User
	for _, u := range r.users {
		if filter.HideRole != "" && u.Role == filter.HideRole {
			continue
		}
		if filter.PHCID != nil && (u.PHCID == nil || *u.PHCID != *filter.PHCID) {
			continue
		}
		if len(filter.Roles) > 0 && !containsString(filter.Roles, u.Role) {
			continue
		}
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.users, id)
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type forgetRecorder struct{ ids []uuid.UUID }

func (f *forgetRecorder) Forget(id uuid.UUID) { f.ids = append(f.ids, id) }

func account(role, status string, phc *uuid.UUID) *model.User {
	return &model.User{ID: uuid.New(), Email: role + "@example.com", Role: role, Status: status, PHCID: phc}
}

func TestListUsersHidesSuperAdmins(t *testing.T) {
	root := account(model.RoleSuperAdmin, model.UserStatusApproved, nil)
	repo := newFakeUserRepo(root, account(model.RoleUser, model.UserStatusPending, nil), account(model.RoleAdmin, model.UserStatusApproved, nil))
	svc := NewUserService(repo, nil, &fakeActivityRepo{}, &noopTx{}, policy.Default(), nil)

	users, total, err := svc.ListUsers(context.Background(), actorWith(model.RoleAdmin), UserListFilter{})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 2 {
		t.Fatalf("admin sees %d users, want 2", total)
	}
	for _, u := range users {
		if u.Role == model.RoleSuperAdmin {
			t.Fatalf("admin can see super admin %s", u.ID)
		}
	}

	_, total, err = svc.ListUsers(context.Background(), actorWith(model.RoleSuperAdmin), UserListFilter{})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 3 {
		t.Fatalf("super admin sees %d users, want 3", total)
	}

	_, err = svc.GetUser(context.Background(), actorWith(model.RoleAdmin), root.ID.String())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser(super admin) as admin err = %v, want ErrNotFound", err)
	}
}

func TestListUsersRequiresApprovedAccount(t *testing.T) {
	repo := newFakeUserRepo(account(model.RoleUser, model.UserStatusApproved, nil))
	svc := NewUserService(repo, nil, &fakeActivityRepo{}, &noopTx{}, policy.Default(), nil)

	for _, status := range []string{model.UserStatusPending, model.UserStatusRejected} {
		actor := policy.Actor{ID: uuid.New(), Role: model.RoleAdmin, Status: status}
		users, _, err := svc.ListUsers(context.Background(), actor, UserListFilter{})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("ListUsers as %s admin err = %v, want ErrForbidden", status, err)
		}
		if len(users) != 0 {
			t.Fatalf("ListUsers as %s admin returned %d users", status, len(users))
		}
	}
}

func TestListUsersScopesPHCAdministrator(t *testing.T) {
	mine, other := uuid.New(), uuid.New()
	repo := newFakeUserRepo(
		account(model.RoleUser, model.UserStatusPending, &mine),
		account(model.RoleBlogger, model.UserStatusApproved, &mine),
		account(model.RoleUser, model.UserStatusPending, &other),
	)
	svc := NewUserService(repo, nil, &fakeActivityRepo{}, &noopTx{}, policy.Default(), nil)

	users, total, err := svc.ListUsers(context.Background(), phcActor(model.RolePHCAdministrator, mine), UserListFilter{})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 1 || users[0].Role != model.RoleUser || *users[0].PHCID != mine.String() {
		t.Fatalf("PHC administrator sees %+v", users)
	}

	for _, role := range []string{model.RoleUser, model.RoleBlogger, model.RoleManager} {
		if _, _, err := svc.ListUsers(context.Background(), actorWith(role), UserListFilter{}); !errors.Is(err, ErrForbidden) {
			t.Fatalf("ListUsers as %s err = %v, want ErrForbidden", role, err)
		}
	}
}

func TestApproveUserByPHCAdministrator(t *testing.T) {
	mine, other := uuid.New(), uuid.New()
	local := account(model.RoleUser, model.UserStatusPending, &mine)
	foreign := account(model.RoleUser, model.UserStatusPending, &other)
	repo := newFakeUserRepo(local, foreign)
	logs := &fakeActivityRepo{}
	cache := &forgetRecorder{}
	svc := NewUserService(repo, nil, logs, &noopTx{}, policy.Default(), cache)
	actor := phcActor(model.RolePHCAdministrator, mine)

	res, err := svc.ApproveUser(context.Background(), actor, local.ID.String())
	if err != nil {
		t.Fatalf("ApproveUser: %v", err)
	}
	if res.Status != model.UserStatusApproved || repo.users[local.ID].Status != model.UserStatusApproved {
		t.Fatalf("status = %s, want approved", res.Status)
	}
	if got := logs.types(); len(got) != 1 || got[0] != model.ActivityUserApprove {
		t.Fatalf("activity = %v", got)
	}
	if len(cache.ids) != 1 || cache.ids[0] != local.ID {
		t.Fatalf("forgotten = %v", cache.ids)
	}

	if _, err := svc.ApproveUser(context.Background(), actor, foreign.ID.String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ApproveUser(other PHC) err = %v, want ErrNotFound", err)
	}
	if repo.users[foreign.ID].Status != model.UserStatusPending {
		t.Fatalf("foreign user status changed")
	}
}

func TestChangeRoleRules(t *testing.T) {
	target := account(model.RoleUser, model.UserStatusApproved, nil)
	repo := newFakeUserRepo(target)
	svc := NewUserService(repo, nil, &fakeActivityRepo{}, &noopTx{}, policy.Default(), nil)
	admin := actorWith(model.RoleAdmin)

	if _, err := svc.ChangeRole(context.Background(), admin, target.ID.String(), ChangeRoleRequest{Role: model.RoleSuperAdmin}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin granting super_admin err = %v, want ErrForbidden", err)
	}
	if _, err := svc.ChangeRole(context.Background(), admin, target.ID.String(), ChangeRoleRequest{Role: "owner"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown role err = %v, want ErrValidation", err)
	}
	res, err := svc.ChangeRole(context.Background(), admin, target.ID.String(), ChangeRoleRequest{Role: model.RoleManager})
	if err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	if res.Role != model.RoleManager {
		t.Fatalf("role = %s, want manager", res.Role)
	}

	self := account(model.RoleAdmin, model.UserStatusApproved, nil)
	repo.users[self.ID] = self
	selfActor := policy.Actor{ID: self.ID, Role: self.Role, Status: self.Status}
	if _, err := svc.ChangeRole(context.Background(), selfActor, self.ID.String(), ChangeRoleRequest{Role: model.RoleSuperAdmin}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin promoting self to super_admin err = %v, want ErrForbidden", err)
	}
	res, err = svc.ChangeRole(context.Background(), selfActor, self.ID.String(), ChangeRoleRequest{Role: model.RoleManager})
	if err != nil {
		t.Fatalf("admin demoting self: %v", err)
	}
	if res.Role != model.RoleManager {
		t.Fatalf("self role = %s, want manager", res.Role)
	}
}

func TestDeleteUserWritesActivity(t *testing.T) {
	target := account(model.RoleBlogger, model.UserStatusApproved, nil)
	repo := newFakeUserRepo(target)
	logs := &fakeActivityRepo{}
	svc := NewUserService(repo, nil, logs, &noopTx{}, policy.Default(), nil)

	if err := svc.DeleteUser(context.Background(), actorWith(model.RoleManager), target.ID.String()); err == nil {
		t.Fatalf("manager deleted a user")
	}
	if err := svc.DeleteUser(context.Background(), actorWith(model.RoleAdmin), target.ID.String()); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, ok := repo.users[target.ID]; ok {
		t.Fatalf("user still present")
	}
	if got := logs.types(); len(got) != 1 || got[0] != model.ActivityUserDelete {
		t.Fatalf("activity = %v", got)
	}
}

func TestFailedActivityLogFailsMutation(t *testing.T) {
	target := account(model.RoleUser, model.UserStatusPending, nil)
	repo := newFakeUserRepo(target)
	logs := &fakeActivityRepo{failLog: errors.New("disk full")}
	svc := NewUserService(repo, nil, logs, &noopTx{}, policy.Default(), nil)

	if _, err := svc.RejectUser(context.Background(), actorWith(model.RoleAdmin), target.ID.String()); err == nil {
		t.Fatalf("RejectUser succeeded without an activity entry")
	}
}
