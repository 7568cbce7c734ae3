package signature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/model"
	"github.com/khanghh/kattest/params"
	"golang.org/x/crypto/bcrypt"
)

var pinPattern = regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d,%d}$`, params.PinMinLength, params.PinMaxLength))

// PinCheck is the outcome of a PIN comparison.
type PinCheck struct {
	Valid        bool       `json:"valid"`
	Reason       string     `json:"reason,omitempty"`
	LockedUntil  *time.Time `json:"lockedUntil,omitempty"`
	AttemptsLeft int        `json:"attemptsLeft,omitempty"`
}

// Err converts a failed check into the matching business error.
func (c *PinCheck) Err() error {
	switch {
	case c.Valid:
		return nil
	case c.Reason == common.ReasonLocked && c.LockedUntil != nil:
		return &PinLockedError{Until: *c.LockedUntil}
	default:
		return &AttemptFailError{AttemptsLeft: c.AttemptsLeft}
	}
}

// Profile is the public projection of a signature config. It never contains secrets.
type Profile struct {
	Configured           bool       `json:"configured"`
	Method               string     `json:"method"`
	TOTPEnabled          bool       `json:"totpEnabled"`
	SignatureText        string     `json:"signatureText"`
	SignatureImage       string     `json:"signatureImage"`
	Locked               bool       `json:"locked"`
	LockedUntil          *time.Time `json:"lockedUntil,omitempty"`
	BackupCodesRemaining int        `json:"backupCodesRemaining"`
}

type SignatureService struct {
	configRepo     ConfigRepository
	auditLogger    *audit.Logger
	pinMaxAttempts int
	pinLockout     time.Duration
	now            func() time.Time
}

// ValidatePin compares pin with the stored hash and maintains the attempt counter. The
// read-modify-write of the counter is not atomic across concurrent requests.
func (s *SignatureService) ValidatePin(ctx context.Context, actor auth.Principal, pin string) (*PinCheck, error) {
	cfg, err := s.configRepo.GetByUserID(ctx, actor.UserID)
	if errors.Is(err, ErrConfigNotFound) {
		return nil, ErrPinNotConfigured
	}
	if err != nil {
		return nil, err
	}
	if !cfg.PinConfigured() {
		return nil, ErrPinNotConfigured
	}

	now := s.now()
	attempts := cfg.PinAttempts
	if cfg.PinLockedUntil != nil {
		if now.Before(*cfg.PinLockedUntil) {
			common.PinChecksTotal.WithLabelValues("locked").Inc()
			until := *cfg.PinLockedUntil
			return &PinCheck{Reason: common.ReasonLocked, LockedUntil: &until}, nil
		}
		attempts = 0
	}

	if bcrypt.CompareHashAndPassword([]byte(cfg.PinHash), []byte(pin)) == nil {
		if cfg.PinAttempts != 0 || cfg.PinLockedUntil != nil {
			err := s.configRepo.Updates(ctx, actor.UserID, map[string]interface{}{
				"pin_attempts":     0,
				"pin_locked_until": nil,
			})
			if err != nil {
				return nil, err
			}
		}
		common.PinChecksTotal.WithLabelValues("valid").Inc()
		return &PinCheck{Valid: true}, nil
	}

	attempts++
	if attempts >= s.pinMaxAttempts {
		until := now.Add(s.pinLockout)
		err := s.configRepo.Updates(ctx, actor.UserID, map[string]interface{}{
			"pin_attempts":     attempts,
			"pin_locked_until": until,
		})
		if err != nil {
			return nil, err
		}
		s.record(ctx, actor, audit.ActionPinLocked, fmt.Sprintf("locked until %s", until.Format(time.RFC3339)))
		common.PinChecksTotal.WithLabelValues("locked").Inc()
		return &PinCheck{Reason: common.ReasonLocked, LockedUntil: &until}, nil
	}

	err = s.configRepo.Updates(ctx, actor.UserID, map[string]interface{}{
		"pin_attempts":     attempts,
		"pin_locked_until": nil,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionPinFailed, fmt.Sprintf("attempt %d of %d", attempts, s.pinMaxAttempts))
	common.PinChecksTotal.WithLabelValues("invalid").Inc()
	return &PinCheck{Reason: common.ReasonInvalidPin, AttemptsLeft: s.pinMaxAttempts - attempts}, nil
}

// RequirePin is ValidatePin for callers that only need pass or fail.
func (s *SignatureService) RequirePin(ctx context.Context, actor auth.Principal, pin string) error {
	check, err := s.ValidatePin(ctx, actor, pin)
	if err != nil {
		return err
	}
	return check.Err()
}

// ChangePin sets a new PIN. The current PIN is only required once a PIN exists.
func (s *SignatureService) ChangePin(ctx context.Context, actor auth.Principal, currentPin, newPin string) error {
	if !pinPattern.MatchString(newPin) {
		return ErrInvalidPinFormat
	}
	cfg, err := s.configRepo.FirstOrCreate(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if cfg.PinConfigured() {
		if currentPin == "" {
			return ErrCurrentPinNeeded
		}
		if err := s.RequirePin(ctx, actor, currentPin); err != nil {
			return err
		}
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(newPin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = s.configRepo.Updates(ctx, actor.UserID, map[string]interface{}{
		"pin_hash":         string(pinHash),
		"pin_attempts":     0,
		"pin_locked_until": nil,
	})
	if err != nil {
		return err
	}
	detail := "PIN changed"
	if !cfg.PinConfigured() {
		detail = "PIN configured"
	}
	s.record(ctx, actor, audit.ActionPinChanged, detail)
	return nil
}

func (s *SignatureService) GetConfig(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error) {
	return s.configRepo.GetByUserID(ctx, userID)
}

func (s *SignatureService) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	cfg, err := s.configRepo.GetByUserID(ctx, userID)
	if errors.Is(err, ErrConfigNotFound) {
		return &Profile{Method: model.TwoFactorMethodEmail}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.projectProfile(cfg), nil
}

func (s *SignatureService) UpdateProfile(ctx context.Context, actor auth.Principal, signatureText, signatureImage string) (*Profile, error) {
	if _, err := s.configRepo.FirstOrCreate(ctx, actor.UserID); err != nil {
		return nil, err
	}
	err := s.configRepo.Updates(ctx, actor.UserID, map[string]interface{}{
		"signature_text":  signatureText,
		"signature_image": signatureImage,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionSignatureProfileUpdated, "")
	return s.GetProfile(ctx, actor.UserID)
}

func (s *SignatureService) projectProfile(cfg *model.DirectorSignatureConfig) *Profile {
	profile := &Profile{
		Configured:           cfg.PinConfigured(),
		Method:               cfg.Method,
		TOTPEnabled:          cfg.TOTPEnabled(),
		SignatureText:        cfg.SignatureText,
		SignatureImage:       cfg.SignatureImage,
		BackupCodesRemaining: len(cfg.BackupCodes),
	}
	if cfg.PinLockedUntil != nil && s.now().Before(*cfg.PinLockedUntil) {
		until := *cfg.PinLockedUntil
		profile.Locked = true
		profile.LockedUntil = &until
	}
	return profile
}

func (s *SignatureService) record(ctx context.Context, actor auth.Principal, action, details string) {
	s.auditLogger.Record(ctx, audit.Entry{
		Action:    action,
		ActorID:   actor.UserID,
		SubjectID: audit.Subject(actor.UserID),
		Details:   details,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
	})
	if action == audit.ActionPinLocked {
		slog.Warn("Signature PIN locked", "userID", actor.UserID, "ip", actor.IP)
	}
}

// SetClock overrides the time source.
func (s *SignatureService) SetClock(now func() time.Time) {
	s.now = now
}

func NewSignatureService(configRepo ConfigRepository, auditLogger *audit.Logger, pinMaxAttempts int, pinLockout time.Duration) *SignatureService {
	if pinMaxAttempts <= 0 {
		pinMaxAttempts = params.PinMaxAttempts
	}
	if pinLockout <= 0 {
		pinLockout = params.PinLockoutDuration
	}
	return &SignatureService{
		configRepo:     configRepo,
		auditLogger:    auditLogger,
		pinMaxAttempts: pinMaxAttempts,
		pinLockout:     pinLockout,
		now:            time.Now,
	}
}
