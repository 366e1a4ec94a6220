package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AttendanceClockedIn  = "clocked_in"
	AttendanceClockedOut = "clocked_out"
)

// ApprovalCode is the short-lived six digit code an operator reads out to staff.
// Generating a new code deactivates every earlier one.
type ApprovalCode struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code        string    `gorm:"type:varchar(6);not null;index" json:"code"`
	GeneratedBy uuid.UUID `gorm:"type:uuid;not null" json:"generated_by"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expires_at"`
	IsActive    bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ApprovalCode) TableName() string {
	return "attendance_approval_codes"
}

// AttendanceRecord is one clock-in/clock-out pair. A PSN has at most one record in
// the clocked_in state.
type AttendanceRecord struct {
	ID              uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StaffID         uuid.UUID           `gorm:"type:uuid;not null;index" json:"staff_id"`
	PSN             string              `gorm:"column:psn;type:varchar(50);not null;index" json:"psn"`
	StaffName       string              `gorm:"type:varchar(255);not null" json:"staff_name"`
	Gender          string              `gorm:"type:varchar(10)" json:"gender"`
	StaffPhone      string              `gorm:"type:varchar(30)" json:"staff_phone"`
	ClockInTime     time.Time           `gorm:"not null;index" json:"clock_in_time"`
	ClockOutTime    *time.Time          `json:"clock_out_time"`
	Status          string              `gorm:"type:varchar(20);not null;index" json:"status"`
	ApprovalCodeIn  string              `gorm:"type:varchar(6);not null" json:"approval_code_in"`
	ApprovalCodeOut *string             `gorm:"type:varchar(6)" json:"approval_code_out"`
	HoursWorked     decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"hours_worked"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}
