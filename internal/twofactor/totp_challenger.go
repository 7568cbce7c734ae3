package twofactor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/store"
	"github.com/khanghh/kattest/model"
	"github.com/khanghh/kattest/params"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpQRCodeSize = 200

type TOTPChallenger struct {
	svc *TwoFactorService
}

// TOTPSetup is returned once to the user. Backup codes are only stored hashed.
type TOTPSetup struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauthURL"`
	QRCode      string   `json:"qrCode"`
	BackupCodes []string `json:"backupCodes"`
}

func (c *TOTPChallenger) enrollmentID(userID uint) string {
	return c.svc.CalculateHash("enrollment", userID)
}

func (c *TOTPChallenger) backupCodeHash(userID uint, code string) string {
	return c.svc.CalculateHash("backup", userID, common.NormalizeBackupCode(code))
}

// matchStep returns the time step within the allowed skew that produced code.
func matchStep(secret string, code string, now time.Time) (int64, bool) {
	period := int64(params.TOTPPeriod)
	counter := now.Unix() / period
	opts := totp.ValidateOpts{
		Period:    uint(params.TOTPPeriod),
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
	for delta := int64(-params.TOTPSkew); delta <= params.TOTPSkew; delta++ {
		step := counter + delta
		if step < 0 {
			continue
		}
		ok, err := totp.ValidateCustom(code, secret, time.Unix(step*period, 0).UTC(), opts)
		if err == nil && ok {
			return step, true
		}
	}
	return 0, false
}

func (c *TOTPChallenger) Setup(ctx context.Context, actor auth.Principal) (*TOTPSetup, error) {
	accountName := actor.Email
	if accountName == "" {
		accountName = strconv.FormatUint(uint64(actor.UserID), 10)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      c.svc.issuer,
		AccountName: accountName,
		Period:      params.TOTPPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(totpQRCodeSize, totpQRCodeSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	backupCodes := make([]string, 0, params.TOTPBackupCodeCount)
	hashes := make([]string, 0, params.TOTPBackupCodeCount)
	for i := 0; i < params.TOTPBackupCodeCount; i++ {
		code, err := common.GenerateBackupCode()
		if err != nil {
			return nil, err
		}
		backupCodes = append(backupCodes, code)
		hashes = append(hashes, c.backupCodeHash(actor.UserID, code))
	}

	enrollment := Enrollment{
		UserID:      actor.UserID,
		Secret:      key.Secret(),
		BackupCodes: strings.Join(hashes, ","),
		CreatedAt:   c.svc.now().UnixMilli(),
	}
	if err := c.svc.enrollmentStore.Set(ctx, c.enrollmentID(actor.UserID), enrollment, params.TwoFactorEnrollmentTTL); err != nil {
		return nil, err
	}
	c.svc.record(ctx, actor, audit.ActionTOTPSetup, "")

	return &TOTPSetup{
		Secret:      key.Secret(),
		OTPAuthURL:  key.String(),
		QRCode:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		BackupCodes: backupCodes,
	}, nil
}

func (c *TOTPChallenger) checkBackupCodes(actor auth.Principal, enrollment *Enrollment, submitted []string) bool {
	expected := enrollment.BackupCodeHashes()
	if len(submitted) != len(expected) {
		return false
	}
	remaining := make(map[string]int, len(expected))
	for _, h := range expected {
		remaining[h]++
	}
	for _, code := range submitted {
		h := c.backupCodeHash(actor.UserID, code)
		if remaining[h] == 0 {
			return false
		}
		remaining[h]--
	}
	return true
}

// Enable confirms a pending setup with a code from the authenticator and switches the
// user to TOTP.
func (c *TOTPChallenger) Enable(ctx context.Context, actor auth.Principal, secret string, code string, backupCodes []string) error {
	enrollmentID := c.enrollmentID(actor.UserID)
	enrollment, err := c.svc.enrollmentStore.Get(ctx, enrollmentID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTOTPSetupExpired
	}
	if err != nil {
		return err
	}
	now := c.svc.now()
	if now.Sub(time.UnixMilli(enrollment.CreatedAt)) > params.TwoFactorEnrollmentTTL {
		return ErrTOTPSetupExpired
	}
	secret = strings.ToUpper(strings.TrimSpace(secret))
	if !common.HashEqual(secret, enrollment.Secret) {
		return ErrTOTPSecretMismatch
	}
	if len(backupCodes) > 0 && !c.checkBackupCodes(actor, &enrollment, backupCodes) {
		return ErrBackupCodesMismatch
	}

	userState, err := c.svc.checkUserState(ctx, actor.UserID)
	if err != nil {
		return err
	}
	step, ok := matchStep(enrollment.Secret, strings.TrimSpace(code), now)
	if !ok {
		return c.fail(ctx, userState)
	}

	if _, err := c.svc.configRepo.FirstOrCreate(ctx, actor.UserID); err != nil {
		return err
	}
	err = c.svc.configRepo.SetTwoFactorMethod(ctx, actor.UserID, model.TwoFactorMethodTOTP, &enrollment.Secret, enrollment.BackupCodeHashes())
	if err != nil {
		return err
	}

	c.svc.userStateStore.SetTOTPLastStep(ctx, userState.ID, step)
	c.svc.userStateStore.ResetFailCount(ctx, userState.ID)
	c.svc.enrollmentStore.Delete(ctx, enrollmentID)
	c.svc.record(ctx, actor, audit.ActionTOTPEnabled, "")
	return nil
}

// Disable reverts the user to email codes. Without force a valid TOTP or backup code
// is required.
func (c *TOTPChallenger) Disable(ctx context.Context, actor auth.Principal, code string, force bool) error {
	cfg, err := c.svc.getConfig(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !cfg.TOTPEnabled() {
		return ErrTOTPNotEnabled
	}
	if !force {
		method := TOTPMethod{Secret: *cfg.TOTPSecret, BackupCodes: cfg.BackupCodes}
		if err := c.Verify(ctx, actor, method, code); err != nil {
			return err
		}
	}

	if err := c.svc.configRepo.SetTwoFactorMethod(ctx, actor.UserID, model.TwoFactorMethodEmail, nil, nil); err != nil {
		return err
	}

	action := audit.ActionTOTPDisabled
	if force {
		action = audit.ActionTOTPForceReset
	}
	c.svc.record(ctx, actor, action, "")
	return nil
}

// Verify accepts a live TOTP code, refusing a time step that was already used, or
// consumes one backup code.
func (c *TOTPChallenger) Verify(ctx context.Context, actor auth.Principal, method TOTPMethod, code string) error {
	userState, err := c.svc.checkUserState(ctx, actor.UserID)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return c.fail(ctx, userState)
	}

	if step, ok := matchStep(method.Secret, code, c.svc.now()); ok {
		if step <= userState.TOTPLastStep {
			return c.fail(ctx, userState)
		}
		if err := c.svc.userStateStore.SetTOTPLastStep(ctx, userState.ID, step); err != nil {
			return err
		}
		c.svc.userStateStore.ResetFailCount(ctx, userState.ID)
		return nil
	}

	used, err := c.consumeBackupCode(ctx, actor, method.BackupCodes, code)
	if err != nil {
		return err
	}
	if used {
		c.svc.userStateStore.ResetFailCount(ctx, userState.ID)
		c.svc.record(ctx, actor, audit.ActionBackupCodeUsed, strconv.Itoa(len(method.BackupCodes)-1)+" remaining")
		return nil
	}
	return c.fail(ctx, userState)
}

func (c *TOTPChallenger) consumeBackupCode(ctx context.Context, actor auth.Principal, hashes []string, code string) (bool, error) {
	h := c.backupCodeHash(actor.UserID, code)
	for i, stored := range hashes {
		if !common.HashEqual(stored, h) {
			continue
		}
		next := make([]string, 0, len(hashes)-1)
		next = append(next, hashes[:i]...)
		next = append(next, hashes[i+1:]...)
		return c.svc.configRepo.ReplaceBackupCodes(ctx, actor.UserID, hashes, next)
	}
	return false, nil
}

func (c *TOTPChallenger) fail(ctx context.Context, userState *UserState) error {
	attemptsLeft, err := c.svc.recordFailure(ctx, userState)
	if err != nil {
		return err
	}
	if attemptsLeft <= 0 {
		return ErrTooManyFailedAttempts
	}
	return NewAttemptFailError(attemptsLeft)
}

func (s *TwoFactorService) SetupTOTP(ctx context.Context, actor auth.Principal) (*TOTPSetup, error) {
	return s.TOTP().Setup(ctx, actor)
}

func (s *TwoFactorService) EnableTOTP(ctx context.Context, actor auth.Principal, secret string, code string, backupCodes []string) error {
	return s.TOTP().Enable(ctx, actor, secret, code, backupCodes)
}

func (s *TwoFactorService) DisableTOTP(ctx context.Context, actor auth.Principal, code string, force bool) error {
	return s.TOTP().Disable(ctx, actor, code, force)
}
