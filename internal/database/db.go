package database

import (
	"fmt"
	"log"

	"phcportal/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// constraints back the attendance invariants at the database level: at most one open
// record per PSN and at most one active approval code.
var constraints = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_attendance_open_per_psn
		ON attendance_records (psn) WHERE status = 'clocked_in'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_approval_code_single_active
		ON attendance_approval_codes (is_active) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_staff_psn_sex ON staff (psn, sex)`,
}

// Migrate creates or updates the schema and seeds the single-row settings tables.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		log.Println("WARNING: could not enable pgcrypto:", err)
	}

	err := db.AutoMigrate(
		&model.PHC{},
		&model.User{},
		&model.RefreshToken{},
		&model.Staff{},
		&model.StaffEmail{},
		&model.ApprovalCode{},
		&model.AttendanceRecord{},
		&model.BlogPost{},
		&model.GalleryImage{},
		&model.ActivityLog{},
		&model.SignupSettings{},
		&model.SignupInvitation{},
		&model.SystemSettings{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	signup := model.DefaultSignupSettings()
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&signup).Error; err != nil {
		return fmt.Errorf("seed signup settings: %w", err)
	}
	system := model.DefaultSystemSettings()
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&system).Error; err != nil {
		return fmt.Errorf("seed system settings: %w", err)
	}
	return nil
}
