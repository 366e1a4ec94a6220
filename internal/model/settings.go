package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignupSettings is a single-row table controlling self-registration.
type SignupSettings struct {
	ID                int       `gorm:"primaryKey" json:"-"`
	AllowSignup       bool      `gorm:"not null;default:true" json:"allow_signup"`
	RequireApproval   bool      `gorm:"not null;default:true" json:"require_approval"`
	RequireInvitation bool      `gorm:"not null;default:false" json:"require_invitation"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SignupSettings) TableName() string {
	return "signup_settings"
}

func DefaultSignupSettings() SignupSettings {
	return SignupSettings{ID: 1, AllowSignup: true, RequireApproval: true}
}

type SignupInvitation struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Email     string     `gorm:"type:varchar(255)" json:"email"`
	Role      string     `gorm:"type:varchar(30);not null;default:user" json:"role"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	UsedBy    *uuid.UUID `gorm:"type:uuid" json:"used_by"`
	CreatedBy uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (SignupInvitation) TableName() string {
	return "signup_invitations"
}

// UsableBy reports whether the invitation can still be redeemed by email at t.
func (i SignupInvitation) UsableBy(email string, t time.Time) bool {
	if i.UsedAt != nil || !t.Before(i.ExpiresAt) {
		return false
	}
	return i.Email == "" || strings.EqualFold(i.Email, email)
}

// SystemSettings is the single-row site configuration edited by super admins.
type SystemSettings struct {
	ID                  int        `gorm:"primaryKey" json:"-"`
	SiteName            string     `gorm:"type:varchar(255);not null" json:"site_name"`
	SupportEmail        string     `gorm:"type:varchar(255)" json:"support_email"`
	EmailNotifications  bool       `gorm:"not null;default:true" json:"email_notifications"`
	SystemNotifications bool       `gorm:"not null;default:true" json:"system_notifications"`
	MaintenanceMode     bool       `gorm:"not null;default:false" json:"maintenance_mode"`
	SessionTimeout      int        `gorm:"not null;default:30" json:"session_timeout_minutes"`
	UpdatedBy           *uuid.UUID `gorm:"type:uuid" json:"updated_by"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSettings) TableName() string {
	return "system_settings"
}

func DefaultSystemSettings() SystemSettings {
	return SystemSettings{
		ID:                  1,
		SiteName:            "Kwara State Primary Health Care Development Agency",
		SupportEmail:        "support@kwsphcda.gov.ng",
		EmailNotifications:  true,
		SystemNotifications: true,
		SessionTimeout:      30,
	}
}
