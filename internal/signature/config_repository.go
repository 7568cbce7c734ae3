package signature

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/khanghh/kattest/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigRepository persists director signature configurations. Rows are never deleted.
type ConfigRepository interface {
	WithTx(tx *gorm.DB) ConfigRepository
	GetByUserID(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error)
	FirstOrCreate(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error)
	Updates(ctx context.Context, userID uint, columns map[string]interface{}) error
	SetTwoFactorMethod(ctx context.Context, userID uint, method string, totpSecret *string, backupCodes []string) error
	ReplaceBackupCodes(ctx context.Context, userID uint, current, next []string) (bool, error)
}

type configRepository struct {
	db *gorm.DB
}

func (r *configRepository) GetByUserID(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error) {
	var cfg model.DirectorSignatureConfig
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *configRepository) FirstOrCreate(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error) {
	cfg := model.DirectorSignatureConfig{UserID: userID, Method: model.TwoFactorMethodEmail}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Where(model.DirectorSignatureConfig{UserID: userID}).
		FirstOrCreate(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *configRepository) Updates(ctx context.Context, userID uint, columns map[string]interface{}) error {
	ret := r.db.WithContext(ctx).Model(&model.DirectorSignatureConfig{}).Where("user_id = ?", userID).Updates(columns)
	if ret.Error != nil {
		return ret.Error
	}
	if ret.RowsAffected == 0 {
		return ErrConfigNotFound
	}
	return nil
}

// SetTwoFactorMethod writes the second factor columns only, leaving the PIN counters to
// ValidatePin.
func (r *configRepository) SetTwoFactorMethod(ctx context.Context, userID uint, method string, totpSecret *string, backupCodes []string) error {
	codesJSON, err := json.Marshal(backupCodes)
	if err != nil {
		return err
	}
	return r.Updates(ctx, userID, map[string]interface{}{
		"method":       method,
		"totp_secret":  totpSecret,
		"backup_codes": gorm.Expr("?", string(codesJSON)),
	})
}

// ReplaceBackupCodes swaps the stored list only if it still equals current, so a code
// cannot be consumed twice by concurrent requests.
func (r *configRepository) ReplaceBackupCodes(ctx context.Context, userID uint, current, next []string) (bool, error) {
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return false, err
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	ret := r.db.WithContext(ctx).Model(&model.DirectorSignatureConfig{}).
		Where("user_id = ? AND backup_codes = ?", userID, string(currentJSON)).
		Update("backup_codes", gorm.Expr("?", string(nextJSON)))
	return ret.RowsAffected == 1, ret.Error
}

func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &configRepository{db: db}
}

func (r *configRepository) WithTx(tx *gorm.DB) ConfigRepository {
	return NewConfigRepository(tx)
}
