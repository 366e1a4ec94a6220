package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour
)

type SignupRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Username       string `json:"username" binding:"required,min=3,max=100"`
	FullName       string `json:"full_name" binding:"required,max=255"`
	Password       string `json:"password" binding:"required,min=8,max=128"`
	Gender         string `json:"gender" binding:"omitempty,oneof=Male Female"`
	LGA            string `json:"lga" binding:"required,lga"`
	Ward           string `json:"ward" binding:"omitempty,max=100"`
	PHCID          string `json:"phc_id" binding:"omitempty,uuid"`
	InvitationCode string `json:"invitation_code"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type UpdateProfileRequest struct {
	FullName string `json:"full_name" binding:"omitempty,max=255"`
	Gender   string `json:"gender" binding:"omitempty,oneof=Male Female"`
	LGA      string `json:"lga" binding:"omitempty,lga"`
	Ward     string `json:"ward" binding:"omitempty,max=100"`
}

type TokenResponse struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	User         *UserResponse `json:"user"`
}

type SignupResponse struct {
	User    *UserResponse `json:"user"`
	Message string        `json:"message"`
}

// MeResponse is the signed-in user's profile together with what the admin panel should offer.
type MeResponse struct {
	User            *UserResponse    `json:"user"`
	Navigation      []policy.NavItem `json:"navigation"`
	AvailableRoles  []string         `json:"available_roles"`
	CanEditSettings bool             `json:"can_edit_settings"`
}

type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Logout(ctx context.Context, userID *uuid.UUID, refreshToken string) error
	Principal(ctx context.Context, userID uuid.UUID) (policy.Actor, error)
	Me(ctx context.Context, actor policy.Actor) (*MeResponse, error)
	UpdateProfile(ctx context.Context, actor policy.Actor, req UpdateProfileRequest) (*UserResponse, error)
}

type authService struct {
	users        repository.UserRepository
	tokens       repository.RefreshTokenRepository
	phcRepo      repository.PHCRepository
	settingsRepo repository.SettingsRepository
	activityRepo repository.ActivityRepository
	txManager    repository.TransactionManager
	policy       *policy.Policy
	secret       []byte
	now          func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	phcRepo repository.PHCRepository,
	settingsRepo repository.SettingsRepository,
	activityRepo repository.ActivityRepository,
	txManager repository.TransactionManager,
	pol *policy.Policy,
	secret []byte,
) AuthService {
	return &authService{
		users:        users,
		tokens:       tokens,
		phcRepo:      phcRepo,
		settingsRepo: settingsRepo,
		activityRepo: activityRepo,
		txManager:    txManager,
		policy:       pol,
		secret:       secret,
		now:          time.Now,
	}
}

// HashPassword hashes a plain password with bcrypt's default cost.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New("failed to hash password")
	}
	return string(hashed), nil
}

func (s *authService) Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	settings, err := s.settingsRepo.GetSignup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signup settings: %w", err)
	}
	if !settings.AllowSignup {
		return nil, forbidden("Signups are currently closed")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if !model.IsKwaraLGA(req.LGA) {
		return nil, invalid("Unknown LGA %q", req.LGA)
	}
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, newError(ErrConflict, "email already exists")
	}
	if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
		return nil, newError(ErrConflict, "username already exists")
	}

	var phcID *uuid.UUID
	if req.PHCID != "" {
		id, err := parseID(req.PHCID, "PHC")
		if err != nil {
			return nil, err
		}
		if _, err := s.phcRepo.FindByID(ctx, id); err != nil {
			return nil, lookupErr(err, "PHC")
		}
		phcID = &id
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:    req.Email,
		Username: req.Username,
		FullName: strings.TrimSpace(req.FullName),
		Gender:   req.Gender,
		Password: hashed,
		Role:     model.RoleUser,
		Status:   model.UserStatusPending,
		LGA:      req.LGA,
		Ward:     strings.TrimSpace(req.Ward),
		PHCID:    phcID,
	}
	if !settings.RequireApproval {
		user.Status = model.UserStatusApproved
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var inv *model.SignupInvitation
		if settings.RequireInvitation {
			code := strings.TrimSpace(req.InvitationCode)
			if code == "" {
				return invalid("An invitation code is required to sign up")
			}
			found, err := s.settingsRepo.FindInvitationForUpdate(txCtx, code)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalid("Invalid or expired invitation code")
			}
			if err != nil {
				return fmt.Errorf("failed to load invitation: %w", err)
			}
			if !found.UsableBy(user.Email, s.now()) {
				return invalid("Invalid or expired invitation code")
			}
			inv = found
			user.Role = inv.Role
		}

		if err := s.users.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		if inv != nil {
			usedAt := s.now()
			inv.UsedAt = &usedAt
			inv.UsedBy = &user.ID
			if err := s.settingsRepo.UpdateInvitation(txCtx, inv); err != nil {
				return fmt.Errorf("failed to redeem invitation: %w", err)
			}
		}

		return recordActivity(txCtx, s.activityRepo, userRef(user.ID), model.ActivitySignup,
			user.FullName+" signed up", map[string]interface{}{"email": user.Email, "status": user.Status})
	})
	if err != nil {
		return nil, err
	}

	msg := "Account created. An administrator will review your request."
	if user.Status == model.UserStatusApproved {
		msg = "Account created. You can now sign in."
	}
	return &SignupResponse{User: mapToResponse(user), Message: msg}, nil
}

func (s *authService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrBadCredentials
	}
	if user.Status != model.UserStatusApproved {
		return nil, ErrAccountInactive
	}

	var res *TokenResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if res, err = s.issueTokens(txCtx, user); err != nil {
			return err
		}
		return recordActivity(txCtx, s.activityRepo, userRef(user.ID), model.ActivityLogin,
			user.FullName+" signed in", nil)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, newError(ErrUnauthorized, "Refresh token is missing")
	}

	var res *TokenResponse
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		stored, err := s.tokens.GetByToken(txCtx, refreshToken)
		if err != nil {
			return newError(ErrUnauthorized, "Invalid refresh token")
		}
		if err := s.tokens.DeleteByToken(txCtx, refreshToken); err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		if !s.now().Before(stored.ExpiresAt) {
			return newError(ErrUnauthorized, "Refresh token expired")
		}

		user, err := s.users.GetByID(txCtx, stored.UserID)
		if err != nil || user.Status != model.UserStatusApproved {
			return ErrAccountInactive
		}
		res, err = s.issueTokens(txCtx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *authService) Logout(ctx context.Context, userID *uuid.UUID, refreshToken string) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if refreshToken != "" {
			if err := s.tokens.DeleteByToken(txCtx, refreshToken); err != nil {
				return fmt.Errorf("failed to revoke refresh token: %w", err)
			}
		}
		if userID == nil {
			return nil
		}
		return recordActivity(txCtx, s.activityRepo, userID, model.ActivityLogout, "Signed out", nil)
	})
}

func (s *authService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(AccessTokenTTL).Unix(),
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, errors.New("failed to generate refresh token")
	}
	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     hex.EncodeToString(raw),
		ExpiresAt: now.Add(RefreshTokenTTL),
	}
	if err := s.tokens.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{
		Token:        tokenString,
		RefreshToken: refresh.Token,
		ExpiresIn:    int(AccessTokenTTL / time.Second),
		User:         mapToResponse(user),
	}, nil
}

// Principal loads the current state of an account for authorization. Tokens only identify
// the user; role, status and PHC always come from here.
func (s *authService) Principal(ctx context.Context, userID uuid.UUID) (policy.Actor, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Actor{}, newError(ErrUnauthorized, "Account no longer exists")
		}
		return policy.Actor{}, fmt.Errorf("failed to load account: %w", err)
	}
	return policy.Actor{ID: user.ID, Role: user.Role, PHCID: user.PHCID, Status: user.Status}, nil
}

func (s *authService) Me(ctx context.Context, actor policy.Actor) (*MeResponse, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	return &MeResponse{
		User:            mapToResponse(user),
		Navigation:      s.policy.Navigation(actor),
		AvailableRoles:  s.policy.AvailableRoles(actor),
		CanEditSettings: s.policy.CanEditSettings(actor),
	}, nil
}

func (s *authService) UpdateProfile(ctx context.Context, actor policy.Actor, req UpdateProfileRequest) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupErr(err, "user")
	}

	changed := make([]string, 0, 4)
	if v := strings.TrimSpace(req.FullName); v != "" && v != user.FullName {
		user.FullName = v
		changed = append(changed, "full_name")
	}
	if req.Gender != "" && req.Gender != user.Gender {
		user.Gender = req.Gender
		changed = append(changed, "gender")
	}
	if req.LGA != "" && req.LGA != user.LGA {
		if !model.IsKwaraLGA(req.LGA) {
			return nil, invalid("Unknown LGA %q", req.LGA)
		}
		user.LGA = req.LGA
		changed = append(changed, "lga")
	}
	if v := strings.TrimSpace(req.Ward); v != "" && v != user.Ward {
		user.Ward = v
		changed = append(changed, "ward")
	}
	if len(changed) == 0 {
		return mapToResponse(user), nil
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(user.ID), model.ActivityProfileUpdate,
			"Updated own profile", map[string]interface{}{"fields": changed})
	})
	if err != nil {
		return nil, err
	}
	return mapToResponse(user), nil
}
