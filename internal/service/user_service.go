package service

import (
	"context"
	"fmt"
	"strings"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"

	"github.com/google/uuid"
)

// DTOs for Request validation
type UpdateUserRequest struct {
	FullName string  `json:"full_name" binding:"omitempty,max=255"`
	LGA      string  `json:"lga" binding:"omitempty,lga"`
	Ward     string  `json:"ward" binding:"omitempty,max=100"`
	PHCID    *string `json:"phc_id" binding:"omitempty"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type UserListFilter struct {
	Status string
	Role   string
	Search string
	Page   Page
}

// UserResponse is a User without the password hash.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Gender    string    `json:"gender"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	LGA       string    `json:"lga"`
	Ward      string    `json:"ward"`
	PHCID     *string   `json:"phc_id"`
	PHCName   string    `json:"phc_name,omitempty"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

type RoleOptionsResponse struct {
	AvailableRoles []string `json:"available_roles"`
	FilterRoles    []string `json:"filter_roles"`
}

// PrincipalCache drops cached principals after an account changes.
type PrincipalCache interface {
	Forget(userID uuid.UUID)
}

type UserService interface {
	ListUsers(ctx context.Context, actor policy.Actor, filter UserListFilter) ([]UserResponse, int64, error)
	GetUser(ctx context.Context, actor policy.Actor, id string) (*UserResponse, error)
	UpdateUser(ctx context.Context, actor policy.Actor, id string, req UpdateUserRequest) (*UserResponse, error)
	ApproveUser(ctx context.Context, actor policy.Actor, id string) (*UserResponse, error)
	RejectUser(ctx context.Context, actor policy.Actor, id string) (*UserResponse, error)
	ChangeRole(ctx context.Context, actor policy.Actor, id string, req ChangeRoleRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, actor policy.Actor, id string) error
	RoleOptions(actor policy.Actor) RoleOptionsResponse
}

type userService struct {
	repo         repository.UserRepository
	phcRepo      repository.PHCRepository
	activityRepo repository.ActivityRepository
	txManager    repository.TransactionManager
	policy       *policy.Policy
	principals   PrincipalCache
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	phcRepo repository.PHCRepository,
	activityRepo repository.ActivityRepository,
	txManager repository.TransactionManager,
	pol *policy.Policy,
	principals PrincipalCache,
) UserService {
	return &userService{
		repo:         repo,
		phcRepo:      phcRepo,
		activityRepo: activityRepo,
		txManager:    txManager,
		policy:       pol,
		principals:   principals,
	}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	res := &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FullName:  user.FullName,
		Gender:    user.Gender,
		Role:      user.Role,
		Status:    user.Status,
		LGA:       user.LGA,
		Ward:      user.Ward,
		CreatedAt: formatTime(user.CreatedAt),
		UpdatedAt: formatTime(user.UpdatedAt),
	}
	if user.PHCID != nil {
		id := user.PHCID.String()
		res.PHCID = &id
	}
	if user.PHC != nil {
		res.PHCName = user.PHC.Name
	}
	return res
}

func targetOf(u *model.User) policy.Target {
	return policy.Target{ID: u.ID, Role: u.Role, PHCID: u.PHCID}
}

func (s *userService) forget(id uuid.UUID) {
	if s.principals != nil {
		s.principals.Forget(id)
	}
}

func (s *userService) ListUsers(ctx context.Context, actor policy.Actor, filter UserListFilter) ([]UserResponse, int64, error) {
	if actor.Status != model.UserStatusApproved {
		return nil, 0, forbidden("Access denied: user management")
	}
	page := filter.Page.normalize()
	q := repository.UserFilter{
		Status: filter.Status,
		Role:   filter.Role,
		Search: strings.TrimSpace(filter.Search),
		Offset: page.offset(),
		Limit:  page.Limit,
	}

	switch {
	case s.policy.CanView(actor.Role, policy.ResourceUsers):
		if !s.policy.VisibleTo(actor, model.RoleSuperAdmin) {
			q.HideRole = model.RoleSuperAdmin
		}
	case actor.Role == model.RolePHCAdministrator && actor.PHCID != nil:
		// Facility administrators only see the plain users of their own PHC.
		q.PHCID = actor.PHCID
		q.Roles = []string{model.RoleUser}
	default:
		return nil, 0, forbidden("Access denied: user management")
	}

	users, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, total, nil
}

// load fetches a user and hides accounts the actor is not allowed to see.
func (s *userService) load(ctx context.Context, actor policy.Actor, id string) (*model.User, error) {
	uid, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	if !s.policy.VisibleTo(actor, user.Role) {
		return nil, notFound("user")
	}
	if !s.policy.CanView(actor.Role, policy.ResourceUsers) && !s.policy.CanManageUser(actor, targetOf(user)) {
		return nil, notFound("user")
	}
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, actor policy.Actor, id string) (*UserResponse, error) {
	if actor.Status != model.UserStatusApproved {
		return nil, forbidden("Access denied: user management")
	}
	user, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return mapToResponse(user), nil
}

func (s *userService) UpdateUser(ctx context.Context, actor policy.Actor, id string, req UpdateUserRequest) (*UserResponse, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceUsers) {
		return nil, forbidden("Access denied: user management")
	}
	user, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	target := targetOf(user)
	if !s.policy.CanMutate(actor, policy.ResourceUsers, &target) {
		return nil, forbidden("Access denied: you cannot edit this user")
	}

	if req.FullName != "" {
		user.FullName = strings.TrimSpace(req.FullName)
	}
	if req.LGA != "" {
		if !model.IsKwaraLGA(req.LGA) {
			return nil, invalid("Unknown LGA %q", req.LGA)
		}
		user.LGA = req.LGA
	}
	if req.Ward != "" {
		user.Ward = strings.TrimSpace(req.Ward)
	}
	if req.PHCID != nil {
		if *req.PHCID == "" {
			user.PHCID = nil
			user.PHC = nil
		} else {
			phcID, err := parseID(*req.PHCID, "PHC")
			if err != nil {
				return nil, err
			}
			phc, err := s.phcRepo.FindByID(ctx, phcID)
			if err != nil {
				return nil, lookupErr(err, "PHC")
			}
			user.PHCID = &phc.ID
			user.PHC = phc
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityProfileUpdate,
			"Updated profile of "+user.Email, map[string]interface{}{"target_user_id": user.ID.String()})
	})
	if err != nil {
		return nil, err
	}
	s.forget(user.ID)
	return mapToResponse(user), nil
}

func (s *userService) setStatus(ctx context.Context, actor policy.Actor, id, status, activity string) (*UserResponse, error) {
	user, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	target := targetOf(user)
	if !s.policy.CanMutate(actor, policy.ResourceUsers, &target) {
		return nil, forbidden("Access denied: you cannot manage this user")
	}
	if user.ID == actor.ID {
		return nil, forbidden("You cannot change your own account status")
	}

	previous := user.Status
	user.Status = status
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), activity,
			fmt.Sprintf("Changed status of %s from %s to %s", user.Email, previous, status),
			map[string]interface{}{"target_user_id": user.ID.String(), "from": previous, "to": status})
	})
	if err != nil {
		return nil, err
	}
	s.forget(user.ID)
	return mapToResponse(user), nil
}

func (s *userService) ApproveUser(ctx context.Context, actor policy.Actor, id string) (*UserResponse, error) {
	return s.setStatus(ctx, actor, id, model.UserStatusApproved, model.ActivityUserApprove)
}

func (s *userService) RejectUser(ctx context.Context, actor policy.Actor, id string) (*UserResponse, error) {
	return s.setStatus(ctx, actor, id, model.UserStatusRejected, model.ActivityUserReject)
}

func (s *userService) ChangeRole(ctx context.Context, actor policy.Actor, id string, req ChangeRoleRequest) (*UserResponse, error) {
	if !model.IsValidRole(req.Role) {
		return nil, invalid("invalid role: %s", req.Role)
	}
	user, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Status != model.UserStatusApproved || !s.policy.CanAssignRole(actor, targetOf(user), req.Role) {
		return nil, forbidden("Access denied: you cannot assign role %s", req.Role)
	}
	if user.Role == req.Role {
		return mapToResponse(user), nil
	}

	previous := user.Role
	user.Role = req.Role
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityUserUpgrade,
			fmt.Sprintf("Changed role of %s from %s to %s", user.Email, previous, req.Role),
			map[string]interface{}{"target_user_id": user.ID.String(), "from": previous, "to": req.Role})
	})
	if err != nil {
		return nil, err
	}
	s.forget(user.ID)
	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, actor policy.Actor, id string) error {
	user, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if user.ID == actor.ID {
		return forbidden("You cannot delete your own account")
	}
	target := targetOf(user)
	if !s.policy.CanMutate(actor, policy.ResourceUsers, &target) {
		return forbidden("Access denied: you cannot delete this user")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityUserDelete,
			"Deleted user "+user.Email, map[string]interface{}{"target_user_id": user.ID.String(), "role": user.Role})
	})
	if err != nil {
		return err
	}
	s.forget(user.ID)
	return nil
}

func (s *userService) RoleOptions(actor policy.Actor) RoleOptionsResponse {
	return RoleOptionsResponse{
		AvailableRoles: s.policy.AvailableRoles(actor),
		FilterRoles:    s.policy.RoleFilterOptions(actor),
	}
}
