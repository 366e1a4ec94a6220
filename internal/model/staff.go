package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	SexMale   = "Male"
	SexFemale = "Female"
)

// Staff is a nominal-roll entry for an agency employee. PSN is the identity key used by
// attendance and email provisioning.
type Staff struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SN                 string     `gorm:"column:sn;type:varchar(20)" json:"sn"`
	Name               string     `gorm:"type:varchar(255);not null;index" json:"name"`
	PSN                string     `gorm:"column:psn;type:varchar(50);index" json:"psn"`
	GL                 string     `gorm:"column:gl;type:varchar(20)" json:"gl"`
	Sex                string     `gorm:"type:varchar(10);not null" json:"sex"`
	DateOfBirth        *time.Time `gorm:"type:date" json:"date_of_birth"`
	LGA                string     `gorm:"column:lga;type:varchar(100);index" json:"lga"`
	DateOfFirstAppt    *time.Time `gorm:"type:date" json:"date_of_first_appt"`
	DateOfConfirmation *time.Time `gorm:"type:date" json:"date_of_confirmation"`
	DateOfPresentAppt  *time.Time `gorm:"type:date" json:"date_of_present_appt"`
	Qualification      string     `gorm:"type:varchar(255)" json:"qualification"`
	Rank               string     `gorm:"type:varchar(255)" json:"rank"`
	Cadre              string     `gorm:"type:varchar(100);index" json:"cadre"`
	ParentMDA          string     `gorm:"column:parent_mda;type:varchar(255)" json:"parent_mda"`
	PresentPosting     string     `gorm:"type:varchar(255)" json:"present_posting"`
	MobileNumber       string     `gorm:"type:varchar(30)" json:"mobile_number"`
	Tier               string     `gorm:"type:varchar(20);index" json:"tier"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Staff) TableName() string {
	return "staff"
}

// AgeOn returns the staff member's age in whole years at t, or -1 when the birth date is unknown.
func (s Staff) AgeOn(t time.Time) int {
	if s.DateOfBirth == nil {
		return -1
	}
	dob := *s.DateOfBirth
	age := t.Year() - dob.Year()
	if t.Month() < dob.Month() || (t.Month() == dob.Month() && t.Day() < dob.Day()) {
		age--
	}
	return age
}
