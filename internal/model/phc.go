package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	PHCStatusActive   = "active"
	PHCStatusInactive = "inactive"
)

// PHC is a primary health care facility.
type PHC struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name       string         `gorm:"type:varchar(255);not null;index" json:"name"`
	LGA        string         `gorm:"column:lga;type:varchar(100);not null;index" json:"lga"`
	Ward       string         `gorm:"type:varchar(100)" json:"ward"`
	Address    string         `gorm:"type:text" json:"address"`
	Phone      string         `gorm:"type:varchar(30)" json:"phone"`
	Email      string         `gorm:"type:varchar(255)" json:"email"`
	Services   pq.StringArray `gorm:"type:text[]" json:"services"`
	StaffCount int            `gorm:"not null;default:0" json:"staff_count"`
	Status     string         `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	ImageURL   string         `gorm:"type:text" json:"image_url"`
	ImagePath  string         `gorm:"type:text" json:"-"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PHC) TableName() string {
	return "phcs"
}
