package signature

import (
	"errors"
	"time"

	"github.com/khanghh/kattest/internal/common"
)

var (
	ErrConfigNotFound   = errors.New("signature config not found")
	ErrPinNotConfigured = common.NewBusinessError(common.ReasonPinNotConfigured, "signature PIN is not configured")
	ErrPinLocked        = common.NewBusinessError(common.ReasonLocked, "signature PIN is locked")
	ErrInvalidPin       = common.NewBusinessError(common.ReasonInvalidPin, "invalid signature PIN")
	ErrInvalidPinFormat = common.NewBusinessError(common.ReasonInvalidRequest, "PIN must be 4 to 8 digits")
	ErrCurrentPinNeeded = common.NewBusinessError(common.ReasonInvalidPin, "current PIN is required")
)

// PinLockedError reports a locked PIN together with the end of the lockout.
type PinLockedError struct {
	Until time.Time
}

func (e *PinLockedError) Error() string {
	return "signature PIN is locked until " + e.Until.Format(time.RFC3339)
}

func (e *PinLockedError) Unwrap() error {
	return ErrPinLocked
}

type AttemptFailError struct {
	AttemptsLeft int
}

func (e *AttemptFailError) Error() string {
	return "invalid signature PIN"
}

func (e *AttemptFailError) Unwrap() error {
	return ErrInvalidPin
}
