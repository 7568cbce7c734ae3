package twofactor

import (
	"context"
	"fmt"

	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/model"
)

// Method is the second factor of a director: EmailMethod or TOTPMethod.
type Method interface {
	Name() string
	isMethod()
}

type EmailMethod struct {
	Email string
}

func (EmailMethod) Name() string { return model.TwoFactorMethodEmail }
func (EmailMethod) isMethod()    {}

type TOTPMethod struct {
	Secret      string
	BackupCodes []string
}

func (TOTPMethod) Name() string { return model.TwoFactorMethodTOTP }
func (TOTPMethod) isMethod()    {}

func methodFromConfig(cfg *model.DirectorSignatureConfig, email string) Method {
	if cfg.TOTPEnabled() {
		return TOTPMethod{Secret: *cfg.TOTPSecret, BackupCodes: cfg.BackupCodes}
	}
	return EmailMethod{Email: email}
}

// Verify checks code for action against the user's configured method.
func (s *TwoFactorService) Verify(ctx context.Context, actor auth.Principal, action string, code string) error {
	if !IsSupportedAction(action) {
		return ErrUnsupportedAction
	}
	method, err := s.CurrentMethod(ctx, actor)
	if err != nil {
		return err
	}

	switch m := method.(type) {
	case EmailMethod:
		err = s.OTP().Verify(ctx, actor, action, code)
	case TOTPMethod:
		err = s.TOTP().Verify(ctx, actor, m, code)
	default:
		return fmt.Errorf("unknown two-factor method %T", method)
	}

	details := fmt.Sprintf("method=%s action=%s", method.Name(), action)
	if err != nil {
		common.TwoFactorVerificationsTotal.WithLabelValues(method.Name(), "failed").Inc()
		s.record(ctx, actor, audit.ActionOTPFailed, details)
		return err
	}
	common.TwoFactorVerificationsTotal.WithLabelValues(method.Name(), "verified").Inc()
	s.record(ctx, actor, audit.ActionOTPVerified, details)
	return nil
}

// VerifyOTP is Verify under its API name.
func (s *TwoFactorService) VerifyOTP(ctx context.Context, actor auth.Principal, action string, code string) error {
	return s.Verify(ctx, actor, action, code)
}
