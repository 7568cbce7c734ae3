package attestations

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/khanghh/kattest/model"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type ListFilter struct {
	Status        string
	GeneratedByID uint
	Limit         int
	Offset        int
}

// Repository persists requests and attestations. Status changes are conditional
// updates that report whether the row was in the expected status.
type Repository interface {
	Transaction(ctx context.Context, fn func(repo Repository) error) error
	GetRequest(ctx context.Context, requestID uint) (*model.Request, error)
	UpdateRequestStatus(ctx context.Context, requestID uint, from, to string) (bool, error)
	CreateAttestation(ctx context.Context, att *model.Attestation) error
	GetAttestation(ctx context.Context, id uint) (*model.Attestation, error)
	GetByVerificationCode(ctx context.Context, code string) (*model.Attestation, error)
	FindAttestations(ctx context.Context, filter ListFilter) ([]model.Attestation, error)
	UpdateAttestationStatus(ctx context.Context, id uint, from, to string) (bool, error)
	MarkSigned(ctx context.Context, id uint, signerID uint, signedAt time.Time, code string) (bool, error)
	UpdateFilePath(ctx context.Context, id uint, path string) error
	DeleteAttestation(ctx context.Context, id uint) error
}

type repository struct {
	db *gorm.DB
}

func (r *repository) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) GetRequest(ctx context.Context, requestID uint) (*model.Request, error) {
	var req model.Request
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).First(&req, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) UpdateRequestStatus(ctx context.Context, requestID uint, from, to string) (bool, error) {
	ret := r.db.WithContext(ctx).Model(&model.Request{}).
		Where("id = ? AND status = ?", requestID, from).
		Update("status", to)
	return ret.RowsAffected == 1, ret.Error
}

func (r *repository) CreateAttestation(ctx context.Context, att *model.Attestation) error {
	return r.db.WithContext(ctx).Create(att).Error
}

// GetAttestation reads from the primary so a status decided by a conditional update
// is observed immediately.
func (r *repository) GetAttestation(ctx context.Context, id uint) (*model.Attestation, error) {
	var att model.Attestation
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).Preload("Request").First(&att, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttestationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &att, nil
}

func (r *repository) GetByVerificationCode(ctx context.Context, code string) (*model.Attestation, error) {
	var att model.Attestation
	err := r.db.WithContext(ctx).Preload("Request").Where("verification_code = ?", code).First(&att).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttestationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &att, nil
}

func (r *repository) FindAttestations(ctx context.Context, filter ListFilter) ([]model.Attestation, error) {
	tx := r.db.WithContext(ctx).Preload("Request")
	if filter.Status != "" {
		tx = tx.Where("status = ?", filter.Status)
	}
	if filter.GeneratedByID != 0 {
		tx = tx.Where("generated_by_id = ?", filter.GeneratedByID)
	}
	var list []model.Attestation
	err := tx.Order("generated_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&list).Error
	return list, err
}

func (r *repository) UpdateAttestationStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	ret := r.db.WithContext(ctx).Model(&model.Attestation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return ret.RowsAffected == 1, ret.Error
}

func (r *repository) MarkSigned(ctx context.Context, id uint, signerID uint, signedAt time.Time, code string) (bool, error) {
	ret := r.db.WithContext(ctx).Model(&model.Attestation{}).
		Where("id = ? AND status = ?", id, model.AttestationStatusPendingSignature).
		Updates(map[string]interface{}{
			"status":            model.AttestationStatusSigned,
			"signer_id":         signerID,
			"signed_at":         signedAt,
			"verification_code": code,
		})
	return ret.RowsAffected == 1, ret.Error
}

func (r *repository) UpdateFilePath(ctx context.Context, id uint, path string) error {
	return r.db.WithContext(ctx).Model(&model.Attestation{}).Where("id = ?", id).Update("file_path", path).Error
}

func (r *repository) DeleteAttestation(ctx context.Context, id uint) error {
	ret := r.db.WithContext(ctx).Delete(&model.Attestation{}, id)
	if ret.Error != nil {
		return ret.Error
	}
	if ret.RowsAffected == 0 {
		return ErrAttestationNotFound
	}
	return nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}
