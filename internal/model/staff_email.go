package model

import (
	"time"

	"github.com/google/uuid"
)

// StaffEmail tracks an official mailbox requested for a staff member. The row is kept even
// when the control panel could not create the mailbox, so support can activate it by hand.
type StaffEmail struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PSN             string     `gorm:"column:psn;type:varchar(50);uniqueIndex;not null" json:"psn"`
	Email           string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	StaffName       string     `gorm:"type:varchar(255)" json:"staff_name"`
	StaffSex        string     `gorm:"type:varchar(10)" json:"staff_sex"`
	StaffLGA        string     `gorm:"column:staff_lga;type:varchar(100)" json:"staff_lga"`
	CPanelCreated   bool       `gorm:"column:cpanel_created;not null;default:false" json:"cpanel_created"`
	CreatedByUserID *uuid.UUID `gorm:"type:uuid" json:"created_by_user_id"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (StaffEmail) TableName() string {
	return "staff_emails"
}
