package signature

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/model"
	"gorm.io/gorm"
)

type memoryConfigRepo struct {
	configs map[uint]*model.DirectorSignatureConfig
}

func newMemoryConfigRepo() *memoryConfigRepo {
	return &memoryConfigRepo{configs: map[uint]*model.DirectorSignatureConfig{}}
}

func (r *memoryConfigRepo) WithTx(tx *gorm.DB) ConfigRepository { return r }

func (r *memoryConfigRepo) GetByUserID(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error) {
	cfg, ok := r.configs[userID]
	if !ok {
		return nil, ErrConfigNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (r *memoryConfigRepo) FirstOrCreate(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error) {
	if _, ok := r.configs[userID]; !ok {
		r.configs[userID] = &model.DirectorSignatureConfig{ID: uint(len(r.configs) + 1), UserID: userID, Method: model.TwoFactorMethodEmail}
	}
	return r.GetByUserID(ctx, userID)
}

func (r *memoryConfigRepo) Updates(ctx context.Context, userID uint, columns map[string]interface{}) error {
	cfg, ok := r.configs[userID]
	if !ok {
		return ErrConfigNotFound
	}
	for k, v := range columns {
		switch k {
		case "pin_hash":
			cfg.PinHash = v.(string)
		case "pin_attempts":
			cfg.PinAttempts = v.(int)
		case "pin_locked_until":
			if v == nil {
				cfg.PinLockedUntil = nil
			} else {
				until := v.(time.Time)
				cfg.PinLockedUntil = &until
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
	cfg, ok := r.configs[userID]
	if !ok {
		return ErrConfigNotFound
	}
	cfg.Method, cfg.TOTPSecret, cfg.BackupCodes = method, totpSecret, backupCodes
	return nil
}

func (r *memoryConfigRepo) ReplaceBackupCodes(ctx context.Context, userID uint, current, next []string) (bool, error) {
	cfg, ok := r.configs[userID]
	if !ok || len(cfg.BackupCodes) != len(current) {
		return false, nil
	}
	cfg.BackupCodes = next
	return true, nil
}

type memoryAuditRepo struct {
	records []model.AuditLog
}

func (r *memoryAuditRepo) Create(ctx context.Context, record *model.AuditLog) error {
	r.records = append(r.records, *record)
	return nil
}

func (r *memoryAuditRepo) Find(ctx context.Context, filter audit.ListFilter) ([]model.AuditLog, error) {
	return r.records, nil
}

func (r *memoryAuditRepo) count(action string) int {
	n := 0
	for _, rec := range r.records {
		if rec.Action == action {
			n++
		}
	}
	return n
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*SignatureService, *memoryConfigRepo, *memoryAuditRepo, *testClock) {
	t.Helper()
	repo := newMemoryConfigRepo()
	auditRepo := &memoryAuditRepo{}
	svc := NewSignatureService(repo, audit.NewLogger(auditRepo), 5, 15*time.Minute)
	clock := &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc.SetClock(clock.Now)
	return svc, repo, auditRepo, clock
}

var director = auth.Principal{UserID: 10, Role: model.RoleDirecteur, IP: "10.0.0.5", UserAgent: "go-test"}

func TestValidatePin_NotConfigured(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.ValidatePin(context.Background(), director, "1234")
	if !errors.Is(err, ErrPinNotConfigured) {
		t.Fatalf("expected ErrPinNotConfigured, got %v", err)
	}
}

func TestValidatePin_LockoutAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	svc, repo, auditRepo, clock := newTestService(t)
	if err := svc.ChangePin(ctx, director, "", "1234"); err != nil {
		t.Fatalf("ChangePin failed: %v", err)
	}

	for i := 1; i < 5; i++ {
		check, err := svc.ValidatePin(ctx, director, "0000")
		if err != nil {
			t.Fatalf("ValidatePin failed: %v", err)
		}
		if check.Valid || check.Reason != common.ReasonInvalidPin {
			t.Fatalf("attempt %d: expected invalid_pin, got %+v", i, check)
		}
		if check.AttemptsLeft != 5-i {
			t.Fatalf("attempt %d: expected %d attempts left, got %d", i, 5-i, check.AttemptsLeft)
		}
	}

	check, err := svc.ValidatePin(ctx, director, "0000")
	if err != nil {
		t.Fatalf("ValidatePin failed: %v", err)
	}
	if check.Reason != common.ReasonLocked || check.LockedUntil == nil {
		t.Fatalf("expected locked after 5 failures, got %+v", check)
	}

	// the correct PIN is refused while locked
	check, _ = svc.ValidatePin(ctx, director, "1234")
	if check.Valid || check.Reason != common.ReasonLocked {
		t.Fatalf("expected locked, got %+v", check)
	}
	if !errors.Is(check.Err(), ErrPinLocked) {
		t.Fatalf("expected ErrPinLocked from Err(), got %v", check.Err())
	}

	clock.now = clock.now.Add(16 * time.Minute)
	check, _ = svc.ValidatePin(ctx, director, "1234")
	if !check.Valid {
		t.Fatalf("expected valid PIN after lockout elapsed, got %+v", check)
	}
	if cfg := repo.configs[director.UserID]; cfg.PinAttempts != 0 || cfg.PinLockedUntil != nil {
		t.Fatalf("expected counter reset, got attempts=%d lockedUntil=%v", cfg.PinAttempts, cfg.PinLockedUntil)
	}
	if auditRepo.count(audit.ActionPinFailed) != 4 || auditRepo.count(audit.ActionPinLocked) != 1 {
		t.Fatalf("unexpected audit trail %+v", auditRepo.records)
	}
}

func TestValidatePin_SuccessResetsCounter(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService(t)
	if err := svc.ChangePin(ctx, director, "", "1234"); err != nil {
		t.Fatalf("ChangePin failed: %v", err)
	}
	svc.ValidatePin(ctx, director, "9999")
	svc.ValidatePin(ctx, director, "9999")
	if repo.configs[director.UserID].PinAttempts != 2 {
		t.Fatalf("expected 2 failed attempts recorded")
	}
	check, err := svc.ValidatePin(ctx, director, "1234")
	if err != nil || !check.Valid {
		t.Fatalf("expected valid PIN, got %+v err=%v", check, err)
	}
	if repo.configs[director.UserID].PinAttempts != 0 {
		t.Fatalf("expected counter reset to 0, got %d", repo.configs[director.UserID].PinAttempts)
	}
}

func TestChangePin(t *testing.T) {
	ctx := context.Background()
	svc, _, auditRepo, _ := newTestService(t)

	if err := svc.ChangePin(ctx, director, "", "12"); !errors.Is(err, ErrInvalidPinFormat) {
		t.Fatalf("expected ErrInvalidPinFormat, got %v", err)
	}
	if err := svc.ChangePin(ctx, director, "", "1234"); err != nil {
		t.Fatalf("first configuration failed: %v", err)
	}
	if err := svc.ChangePin(ctx, director, "", "5678"); !errors.Is(err, ErrCurrentPinNeeded) {
		t.Fatalf("expected ErrCurrentPinNeeded, got %v", err)
	}
	var failErr *AttemptFailError
	if err := svc.ChangePin(ctx, director, "0000", "5678"); !errors.As(err, &failErr) {
		t.Fatalf("expected AttemptFailError, got %v", err)
	}
	if err := svc.ChangePin(ctx, director, "1234", "5678"); err != nil {
		t.Fatalf("ChangePin failed: %v", err)
	}
	if err := svc.RequirePin(ctx, director, "5678"); err != nil {
		t.Fatalf("new PIN should be accepted: %v", err)
	}
	if auditRepo.count(audit.ActionPinChanged) != 2 {
		t.Fatalf("expected 2 PIN_CHANGED entries, got %d", auditRepo.count(audit.ActionPinChanged))
	}
}

func TestGetProfile_HidesSecrets(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService(t)
	secret := "JBSWY3DPEHPK3PXP"
	repo.configs[director.UserID] = &model.DirectorSignatureConfig{
		UserID:      director.UserID,
		PinHash:     "hash",
		Method:      model.TwoFactorMethodTOTP,
		TOTPSecret:  &secret,
		BackupCodes: []string{"a", "b"},
	}
	profile, err := svc.UpdateProfile(ctx, director, "Le Directeur", "sig.png")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if !profile.Configured || !profile.TOTPEnabled || profile.BackupCodesRemaining != 2 {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.SignatureText != "Le Directeur" {
		t.Fatalf("signature text not updated: %+v", profile)
	}
}
