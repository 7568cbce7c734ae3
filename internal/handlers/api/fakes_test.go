package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/khanghh/kattest/internal/attestations"
	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/notify"
	"github.com/khanghh/kattest/internal/signature"
	"github.com/khanghh/kattest/internal/users"
	"github.com/khanghh/kattest/model"
	"gorm.io/gorm"
)

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[uint]*model.User
}

func (r *memoryUserRepo) WithTx(tx *gorm.DB) users.UserRepository { return r }

func (r *memoryUserRepo) First(ctx context.Context, query interface{}, args ...interface{}) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		switch query {
		case "id = ?":
			if u.ID == args[0].(uint) {
				cp := *u
				return &cp, nil
			}
		case "email = ?":
			if u.Email == args[0].(string) {
				cp := *u
				return &cp, nil
			}
		default:
			return nil, fmt.Errorf("unsupported query %v", query)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepo) Updates(ctx context.Context, userID uint, columns map[string]interface{}) (int64, error) {
	return 0, nil
}

type memoryConfigRepo struct {
	mu      sync.Mutex
	configs map[uint]*model.DirectorSignatureConfig
}

func (r *memoryConfigRepo) WithTx(tx *gorm.DB) signature.ConfigRepository { return r }

func (r *memoryConfigRepo) GetByUserID(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[userID]
	if !ok {
		return nil, signature.ErrConfigNotFound
	}
	cp := *cfg
	cp.BackupCodes = append([]string(nil), cfg.BackupCodes...)
	return &cp, nil
}

func (r *memoryConfigRepo) FirstOrCreate(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error) {
	r.mu.Lock()
	if _, ok := r.configs[userID]; !ok {
		r.configs[userID] = &model.DirectorSignatureConfig{UserID: userID, Method: model.TwoFactorMethodEmail}
	}
	r.mu.Unlock()
	return r.GetByUserID(ctx, userID)
}

func (r *memoryConfigRepo) Updates(ctx context.Context, userID uint, columns map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[userID]
	if !ok {
		return signature.ErrConfigNotFound
	}
	for k, v := range columns {
		switch k {
		case "pin_hash":
			cfg.PinHash = v.(string)
		case "pin_attempts":
			cfg.PinAttempts = v.(int)
		case "pin_locked_until":
			if until, ok := v.(time.Time); ok {
				cfg.PinLockedUntil = &until
			} else {
				cfg.PinLockedUntil = nil
			}
		case "signature_text":
			cfg.SignatureText = v.(string)
		case "signature_image":
			cfg.SignatureImage = v.(string)
		}
	}
	return nil
}

func (r *memoryConfigRepo) SetTwoFactorMethod(ctx context.Context, userID uint, method string, totpSecret *string, backupCodes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[userID]
	if !ok {
		return signature.ErrConfigNotFound
	}
	cfg.Method, cfg.TOTPSecret, cfg.BackupCodes = method, totpSecret, backupCodes
	return nil
}

func (r *memoryConfigRepo) ReplaceBackupCodes(ctx context.Context, userID uint, current, next []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[userID]
	if !ok || len(cfg.BackupCodes) != len(current) {
		return false, nil
	}
	cfg.BackupCodes = next
	return true, nil
}

type memoryAuditRepo struct {
	mu      sync.Mutex
	records []model.AuditLog
}

func (r *memoryAuditRepo) Create(ctx context.Context, record *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = uint64(len(r.records) + 1)
	r.records = append(r.records, *record)
	return nil
}

func (r *memoryAuditRepo) Find(ctx context.Context, filter audit.ListFilter) ([]model.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if filter.Action != "" && rec.Action != filter.Action {
			continue
		}
		if filter.ActorID != 0 && rec.ActorID != filter.ActorID {
			continue
		}
		out = append(out, rec)
		if len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *memoryAuditRepo) count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Action == action {
			n++
		}
	}
	return n
}

type memoryAttestationRepo struct {
	mu           sync.Mutex
	requests     map[uint]*model.Request
	attestations map[uint]*model.Attestation
	nextID       uint
}

func (r *memoryAttestationRepo) Transaction(ctx context.Context, fn func(repo attestations.Repository) error) error {
	return fn(r)
}

func (r *memoryAttestationRepo) GetRequest(ctx context.Context, requestID uint) (*model.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok {
		return nil, attestations.ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *memoryAttestationRepo) UpdateRequestStatus(ctx context.Context, requestID uint, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	return true, nil
}

func (r *memoryAttestationRepo) CreateAttestation(ctx context.Context, att *model.Attestation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	att.ID = r.nextID
	cp := *att
	cp.Request = nil
	r.attestations[att.ID] = &cp
	return nil
}

func (r *memoryAttestationRepo) load(id uint) (*model.Attestation, error) {
	att, ok := r.attestations[id]
	if !ok {
		return nil, attestations.ErrAttestationNotFound
	}
	cp := *att
	if req, ok := r.requests[att.RequestID]; ok {
		reqCopy := *req
		cp.Request = &reqCopy
	}
	return &cp, nil
}

func (r *memoryAttestationRepo) GetAttestation(ctx context.Context, id uint) (*model.Attestation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(id)
}

func (r *memoryAttestationRepo) GetByVerificationCode(ctx context.Context, code string) (*model.Attestation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, att := range r.attestations {
		if att.VerificationCode != nil && *att.VerificationCode == code {
			return r.load(id)
		}
	}
	return nil, attestations.ErrAttestationNotFound
}

func (r *memoryAttestationRepo) FindAttestations(ctx context.Context, filter attestations.ListFilter) ([]model.Attestation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []model.Attestation
	for id, att := range r.attestations {
		if filter.Status == "" || att.Status == filter.Status {
			cp, _ := r.load(id)
			list = append(list, *cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *memoryAttestationRepo) UpdateAttestationStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	att, ok := r.attestations[id]
	if !ok || att.Status != from {
		return false, nil
	}
	att.Status = to
	return true, nil
}

func (r *memoryAttestationRepo) MarkSigned(ctx context.Context, id uint, signerID uint, signedAt time.Time, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	att, ok := r.attestations[id]
	if !ok || att.Status != model.AttestationStatusPendingSignature {
		return false, nil
	}
	att.Status = model.AttestationStatusSigned
	att.SignerID = &signerID
	att.SignedAt = &signedAt
	att.VerificationCode = &code
	return true, nil
}

func (r *memoryAttestationRepo) UpdateFilePath(ctx context.Context, id uint, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if att, ok := r.attestations[id]; ok {
		att.FilePath = path
	}
	return nil
}

func (r *memoryAttestationRepo) DeleteAttestation(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attestations[id]; !ok {
		return attestations.ErrAttestationNotFound
	}
	delete(r.attestations, id)
	return nil
}

type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func (n *captureNotifier) OTPCode(ctx context.Context, email, fullName, code string, expiresIn time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[email] = code
}

func (n *captureNotifier) lastCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

type silentNotifier struct{}

func (silentNotifier) AttestationSigned(ctx context.Context, notice notify.AttestationSignedNotice) {
}

func (silentNotifier) AttestationReturned(ctx context.Context, notice notify.AttestationReturnedNotice) {
}
