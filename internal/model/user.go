package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account roles, lowest privilege first.
const (
	RoleUser             = "user"
	RoleBlogger          = "blogger"
	RolePHCAdministrator = "phc_administrator"
	RoleManager          = "manager"
	RoleAdmin            = "admin"
	RoleSuperAdmin       = "super_admin"
)

// AllRoles lists every assignable role in display order.
var AllRoles = []string{RoleUser, RoleBlogger, RolePHCAdministrator, RoleManager, RoleAdmin, RoleSuperAdmin}

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
	UserStatusRejected = "rejected"
)

// User is a portal account. Signups start pending until an administrator approves them.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username  string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	FullName  string         `gorm:"type:varchar(255);not null" json:"full_name"`
	Gender    string         `gorm:"type:varchar(10)" json:"gender"`
	Password  string         `gorm:"type:varchar(255);not null" json:"-"`
	Role      string         `gorm:"type:varchar(30);not null;default:user;index" json:"role"`
	Status    string         `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	LGA       string         `gorm:"column:lga;type:varchar(100)" json:"lga"`
	Ward      string         `gorm:"type:varchar(100)" json:"ward"`
	PHCID     *uuid.UUID     `gorm:"column:phc_id;type:uuid;index" json:"phc_id"`
	PHC       *PHC           `gorm:"foreignKey:PHCID;constraint:OnDelete:SET NULL" json:"phc,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
