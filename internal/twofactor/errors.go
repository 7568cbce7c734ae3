package twofactor

import (
	"errors"

	"github.com/khanghh/kattest/internal/common"
)

var (
	ErrUnsupportedAction       = common.NewBusinessError(common.ReasonInvalidRequest, "unsupported action")
	ErrTooManyFailedAttempts   = common.NewBusinessError(common.ReasonRateLimited, "too many failed attempts")
	ErrOTPRequestRateLimited   = common.NewBusinessError(common.ReasonRateLimited, "otp request rate limited")
	ErrOTPRequestLimitReached  = common.NewBusinessError(common.ReasonRateLimited, "otp request limit reached")
	ErrOTPCodeExpired          = common.NewBusinessError(common.ReasonExpiredCode, "code expired or already used")
	ErrOTPCodeInvalid          = common.NewBusinessError(common.ReasonInvalidCode, "invalid code")
	ErrTOTPNotEnabled          = common.NewBusinessError(common.ReasonTOTPNotEnabled, "TOTP is not enabled")
	ErrTOTPSetupExpired        = common.NewBusinessError(common.ReasonSetupExpired, "TOTP setup expired, start again")
	ErrTOTPSecretMismatch      = common.NewBusinessError(common.ReasonInvalidRequest, "secret does not match the pending setup")
	ErrBackupCodesMismatch     = common.NewBusinessError(common.ReasonInvalidRequest, "backup codes do not match the pending setup")
	ErrSessionTokenRequired    = common.NewBusinessError(common.ReasonSessionRequired, "a valid 2FA session token is required")
	ErrSignatureNotConfigured  = common.NewBusinessError(common.ReasonPinNotConfigured, "signature is not configured")
	ErrChallengeAlreadyCleared = errors.New("challenge already consumed")
)

type AttemptFailError struct {
	AttemptsLeft int
}

func (e *AttemptFailError) Error() string {
	return "verify attempt failed"
}

func (e *AttemptFailError) Unwrap() error {
	return ErrOTPCodeInvalid
}

func NewAttemptFailError(attemptsLeft int) *AttemptFailError {
	return &AttemptFailError{
		AttemptsLeft: attemptsLeft,
	}
}
