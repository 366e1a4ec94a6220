package repository

import (
	"context"
	"errors"

	"phcportal/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	GetSignup(ctx context.Context) (*model.SignupSettings, error)
	SaveSignup(ctx context.Context, s *model.SignupSettings) error
	GetSystem(ctx context.Context) (*model.SystemSettings, error)
	SaveSystem(ctx context.Context, s *model.SystemSettings) error

	CreateInvitation(ctx context.Context, inv *model.SignupInvitation) error
	// FindInvitationForUpdate locks the invitation row for the rest of the transaction.
	FindInvitationForUpdate(ctx context.Context, code string) (*model.SignupInvitation, error)
	UpdateInvitation(ctx context.Context, inv *model.SignupInvitation) error
	ListInvitations(ctx context.Context, offset, limit int) ([]model.SignupInvitation, int64, error)
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// GetSignup returns the stored row or the defaults when none has been saved yet.
func (r *settingsRepository) GetSignup(ctx context.Context) (*model.SignupSettings, error) {
	var s model.SignupSettings
	err := GetDB(ctx, r.db).First(&s, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := model.DefaultSignupSettings()
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) SaveSignup(ctx context.Context, s *model.SignupSettings) error {
	s.ID = 1
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(s).Error
}

func (r *settingsRepository) GetSystem(ctx context.Context) (*model.SystemSettings, error) {
	var s model.SystemSettings
	err := GetDB(ctx, r.db).First(&s, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := model.DefaultSystemSettings()
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) SaveSystem(ctx context.Context, s *model.SystemSettings) error {
	s.ID = 1
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(s).Error
}

func (r *settingsRepository) CreateInvitation(ctx context.Context, inv *model.SignupInvitation) error {
	return GetDB(ctx, r.db).Create(inv).Error
}

func (r *settingsRepository) FindInvitationForUpdate(ctx context.Context, code string) (*model.SignupInvitation, error) {
	var inv model.SignupInvitation
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *settingsRepository) UpdateInvitation(ctx context.Context, inv *model.SignupInvitation) error {
	return GetDB(ctx, r.db).Save(inv).Error
}

func (r *settingsRepository) ListInvitations(ctx context.Context, offset, limit int) ([]model.SignupInvitation, int64, error) {
	var invs []model.SignupInvitation
	var total int64
	db := GetDB(ctx, r.db)
	if err := db.Model(&model.SignupInvitation{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&invs).Error; err != nil {
		return nil, 0, err
	}
	return invs, total, nil
}
