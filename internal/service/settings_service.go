package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
)

type SettingsResponse struct {
	System   model.SystemSettings `json:"system"`
	Signup   model.SignupSettings `json:"signup"`
	ReadOnly bool                 `json:"read_only"`
}

// UpdateSettingsRequest changes only the fields that are present.
type UpdateSettingsRequest struct {
	SiteName            *string `json:"site_name" binding:"omitempty,min=1,max=255"`
	SupportEmail        *string `json:"support_email" binding:"omitempty,email"`
	EmailNotifications  *bool   `json:"email_notifications"`
	SystemNotifications *bool   `json:"system_notifications"`
	MaintenanceMode     *bool   `json:"maintenance_mode"`
	SessionTimeout      *int    `json:"session_timeout_minutes" binding:"omitempty,min=5,max=1440"`
	AllowSignup         *bool   `json:"allow_signup"`
	RequireApproval     *bool   `json:"require_approval"`
	RequireInvitation   *bool   `json:"require_invitation"`
}

type CreateInvitationRequest struct {
	Email     string `json:"email" binding:"omitempty,email"`
	Role      string `json:"role" binding:"omitempty"`
	ExpiresIn int    `json:"expires_in_days" binding:"omitempty,min=1,max=90"`
}

type InvitationResponse struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	ExpiresAt string  `json:"expires_at"`
	UsedAt    *string `json:"used_at"`
	CreatedAt string  `json:"created_at"`
}

type SettingsService interface {
	Get(ctx context.Context, actor policy.Actor) (*SettingsResponse, error)
	Update(ctx context.Context, actor policy.Actor, req UpdateSettingsRequest) (*SettingsResponse, error)
	SignupSettings(ctx context.Context) (*model.SignupSettings, error)
	CreateInvitation(ctx context.Context, actor policy.Actor, req CreateInvitationRequest) (*InvitationResponse, error)
	ListInvitations(ctx context.Context, actor policy.Actor, page Page) ([]InvitationResponse, int64, error)
}

type settingsService struct {
	repo         repository.SettingsRepository
	activityRepo repository.ActivityRepository
	txManager    repository.TransactionManager
	policy       *policy.Policy
	now          func() time.Time
}

func NewSettingsService(repo repository.SettingsRepository, activityRepo repository.ActivityRepository, txManager repository.TransactionManager, pol *policy.Policy) SettingsService {
	return &settingsService{
		repo:         repo,
		activityRepo: activityRepo,
		txManager:    txManager,
		policy:       pol,
		now:          time.Now,
	}
}

func (s *settingsService) load(ctx context.Context, actor policy.Actor) (*SettingsResponse, error) {
	system, err := s.repo.GetSystem(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load system settings: %w", err)
	}
	signup, err := s.repo.GetSignup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signup settings: %w", err)
	}
	return &SettingsResponse{System: *system, Signup: *signup, ReadOnly: !s.policy.CanEditSettings(actor)}, nil
}

func (s *settingsService) Get(ctx context.Context, actor policy.Actor) (*SettingsResponse, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceSettings) {
		return nil, forbidden("Access denied: settings")
	}
	return s.load(ctx, actor)
}

// Update is reserved for super admins and is refused before anything is written.
func (s *settingsService) Update(ctx context.Context, actor policy.Actor, req UpdateSettingsRequest) (*SettingsResponse, error) {
	if !s.policy.CanEditSettings(actor) {
		return nil, forbidden("Only super admins can change settings")
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		system, err := s.repo.GetSystem(txCtx)
		if err != nil {
			return fmt.Errorf("failed to load system settings: %w", err)
		}
		signup, err := s.repo.GetSignup(txCtx)
		if err != nil {
			return fmt.Errorf("failed to load signup settings: %w", err)
		}

		changed := make([]string, 0, 9)
		setStr := func(dst *string, v *string, name string) {
			if v != nil && strings.TrimSpace(*v) != *dst {
				*dst = strings.TrimSpace(*v)
				changed = append(changed, name)
			}
		}
		setBool := func(dst *bool, v *bool, name string) {
			if v != nil && *v != *dst {
				*dst = *v
				changed = append(changed, name)
			}
		}
		setStr(&system.SiteName, req.SiteName, "site_name")
		setStr(&system.SupportEmail, req.SupportEmail, "support_email")
		setBool(&system.EmailNotifications, req.EmailNotifications, "email_notifications")
		setBool(&system.SystemNotifications, req.SystemNotifications, "system_notifications")
		setBool(&system.MaintenanceMode, req.MaintenanceMode, "maintenance_mode")
		if req.SessionTimeout != nil && *req.SessionTimeout != system.SessionTimeout {
			system.SessionTimeout = *req.SessionTimeout
			changed = append(changed, "session_timeout_minutes")
		}
		setBool(&signup.AllowSignup, req.AllowSignup, "allow_signup")
		setBool(&signup.RequireApproval, req.RequireApproval, "require_approval")
		setBool(&signup.RequireInvitation, req.RequireInvitation, "require_invitation")

		if len(changed) == 0 {
			return nil
		}
		if system.SiteName == "" {
			return invalid("site_name cannot be empty")
		}

		system.UpdatedBy = userRef(actor.ID)
		if err := s.repo.SaveSystem(txCtx, system); err != nil {
			return fmt.Errorf("failed to save system settings: %w", err)
		}
		if err := s.repo.SaveSignup(txCtx, signup); err != nil {
			return fmt.Errorf("failed to save signup settings: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivitySettingsUpdate,
			"Updated settings: "+strings.Join(changed, ", "), map[string]interface{}{"fields": changed})
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, actor)
}

// SignupSettings is public so the signup page knows whether to show the form.
func (s *settingsService) SignupSettings(ctx context.Context) (*model.SignupSettings, error) {
	signup, err := s.repo.GetSignup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signup settings: %w", err)
	}
	return signup, nil
}

func toInvitationResponse(inv *model.SignupInvitation) InvitationResponse {
	return InvitationResponse{
		ID:        inv.ID.String(),
		Code:      inv.Code,
		Email:     inv.Email,
		Role:      inv.Role,
		ExpiresAt: formatTime(inv.ExpiresAt),
		UsedAt:    formatTimePtr(inv.UsedAt),
		CreatedAt: formatTime(inv.CreatedAt),
	}
}

func (s *settingsService) CreateInvitation(ctx context.Context, actor policy.Actor, req CreateInvitationRequest) (*InvitationResponse, error) {
	if actor.Status != model.UserStatusApproved || !s.policy.CanView(actor.Role, policy.ResourceUsers) {
		return nil, forbidden("Access denied: invitations")
	}
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	allowed := false
	for _, r := range s.policy.AvailableRoles(actor) {
		if r == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, forbidden("Access denied: you cannot invite a %s", role)
	}
	days := req.ExpiresIn
	if days <= 0 {
		days = 7
	}

	raw := make([]byte, 12)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate invitation code: %w", err)
	}
	inv := &model.SignupInvitation{
		Code:      hex.EncodeToString(raw),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Role:      role,
		ExpiresAt: s.now().AddDate(0, 0, days),
		CreatedBy: actor.ID,
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateInvitation(txCtx, inv); err != nil {
			return fmt.Errorf("failed to create invitation: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityInvitationCreate,
			"Created signup invitation for role "+role, map[string]interface{}{"invitation_id": inv.ID.String(), "email": inv.Email})
	})
	if err != nil {
		return nil, err
	}
	res := toInvitationResponse(inv)
	return &res, nil
}

func (s *settingsService) ListInvitations(ctx context.Context, actor policy.Actor, page Page) ([]InvitationResponse, int64, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceUsers) {
		return nil, 0, forbidden("Access denied: invitations")
	}
	page = page.normalize()
	invs, total, err := s.repo.ListInvitations(ctx, page.offset(), page.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invitations: %w", err)
	}
	res := make([]InvitationResponse, 0, len(invs))
	for i := range invs {
		res = append(res, toInvitationResponse(&invs[i]))
	}
	return res, total, nil
}
