package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActivityLogin            = "login"
	ActivitySignup           = "signup"
	ActivityLogout           = "logout"
	ActivityProfileUpdate    = "profile_update"
	ActivityUserApprove      = "user_approve"
	ActivityUserReject       = "user_reject"
	ActivityUserUpgrade      = "user_upgrade"
	ActivityUserDelete       = "user_delete"
	ActivityStaffSearch      = "staff_search"
	ActivityStaffCreate      = "staff_create"
	ActivityStaffUpdate      = "staff_update"
	ActivityStaffDelete      = "staff_delete"
	ActivityStaffEmailCreate = "staff_email_create"
	ActivityBlogPostCreate   = "blog_post_create"
	ActivityBlogPostUpdate   = "blog_post_update"
	ActivityBlogPostDelete   = "blog_post_delete"
	ActivityPHCCreate        = "phc_create"
	ActivityPHCUpdate        = "phc_update"
	ActivityPHCDelete        = "phc_delete"
	ActivityGalleryCreate    = "gallery_image_create"
	ActivityGalleryUpdate    = "gallery_image_update"
	ActivityGalleryDelete    = "gallery_image_delete"
	ActivityCodeGenerate     = "attendance_code_generate"
	ActivityClockIn          = "attendance_clock_in"
	ActivityClockOut         = "attendance_clock_out"
	ActivitySettingsUpdate   = "settings_update"
	ActivityInvitationCreate = "invitation_create"
)

// ActivityLog is an append-only record of who did what. Entries are written in the same
// transaction as the change they describe.
type ActivityLog struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID              *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // nil for anonymous staff actions
	User                *User          `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	ActivityType        string         `gorm:"type:varchar(50);not null;index" json:"activity_type"`
	ActivityDescription string         `gorm:"type:text" json:"activity_description"`
	Metadata            datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "user_activity_logs"
}
