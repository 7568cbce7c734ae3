package twofactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/store"
	"github.com/khanghh/kattest/params"
)

const otpCodeLength = 6

type OTPChallenger struct {
	svc *TwoFactorService
}

func (c *OTPChallenger) secretHash(cid string, code string) string {
	return c.svc.CalculateHash(cid, code)
}

// Send issues a new code for (user, action) and emails it. Any previous code for the same
// pair is replaced.
func (c *OTPChallenger) Send(ctx context.Context, actor auth.Principal, action string) (time.Time, error) {
	userState, err := c.svc.checkUserState(ctx, actor.UserID)
	if err != nil {
		return time.Time{}, err
	}

	now := c.svc.now()
	cid := c.svc.getChallengeID(actor.UserID, action)
	prev, err := c.svc.challengeStore.Get(ctx, cid)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return time.Time{}, err
	}
	if err == nil && prev.CanVerify(now) && now.Sub(time.UnixMilli(prev.UpdateAt)) < params.TwoFactorOTPRefreshCooldown {
		return time.Time{}, ErrOTPRequestRateLimited
	}

	userState.OTPRequestCount, err = c.svc.userStateStore.IncreaseOTPRequestCount(ctx, userState.ID)
	if err != nil {
		return time.Time{}, err
	}
	if userState.OTPRequestCount > params.TwoFactorMaxOTPRequests {
		return time.Time{}, ErrOTPRequestLimitReached
	}

	code, err := common.GenerateDigits(otpCodeLength)
	if err != nil {
		return time.Time{}, err
	}
	expiresAt := now.Add(params.TwoFactorOTPExpiration)
	ch := Challenge{
		ID:        cid,
		Type:      ChallengeTypeOTP,
		UserID:    actor.UserID,
		Action:    action,
		Secret:    c.secretHash(cid, code),
		UpdateAt:  now.UnixMilli(),
		ExpiresAt: expiresAt.UnixMilli(),
	}
	if err := c.svc.challengeStore.Set(ctx, cid, ch, params.TwoFactorOTPExpiration); err != nil {
		return time.Time{}, err
	}

	if c.svc.notifier != nil {
		c.svc.notifier.OTPCode(ctx, actor.Email, actor.FullName, code, params.TwoFactorOTPExpiration)
	} else {
		slog.Warn("No notifier configured, OTP code not delivered", "userID", actor.UserID)
	}
	c.svc.record(ctx, actor, audit.ActionOTPRequested, fmt.Sprintf("action=%s", action))
	return expiresAt, nil
}

// Verify consumes the pending code for (user, action). A code verifies at most once.
func (c *OTPChallenger) Verify(ctx context.Context, actor auth.Principal, action string, code string) error {
	userState, err := c.svc.checkUserState(ctx, actor.UserID)
	if err != nil {
		return err
	}

	now := c.svc.now()
	cid := c.svc.getChallengeID(actor.UserID, action)
	ch, err := c.svc.challengeStore.Get(ctx, cid)
	if errors.Is(err, store.ErrNotFound) {
		return ErrOTPCodeExpired
	}
	if err != nil {
		return err
	}
	if ch.Success != 0 || ch.IsExpired(now) {
		return ErrOTPCodeExpired
	}

	ch.Attempts, err = c.svc.challengeStore.IncreaseAttempts(ctx, cid)
	if err != nil {
		return err
	}
	if ch.Attempts > params.TwoFactorChallengeMaxAttempts {
		c.svc.challengeStore.Delete(ctx, cid)
		return ErrTooManyFailedAttempts
	}

	if !common.HashEqual(ch.Secret, c.secretHash(cid, code)) {
		failLeft, err := c.svc.recordFailure(ctx, userState)
		if err != nil {
			return err
		}
		attemptsLeft := min(params.TwoFactorChallengeMaxAttempts-ch.Attempts, failLeft)
		if attemptsLeft <= 0 {
			c.svc.challengeStore.Delete(ctx, cid)
			return ErrTooManyFailedAttempts
		}
		return NewAttemptFailError(attemptsLeft)
	}

	if err := c.svc.challengeStore.MarkSuccess(ctx, cid); err != nil {
		if errors.Is(err, ErrChallengeAlreadyCleared) {
			return ErrOTPCodeExpired
		}
		return err
	}
	c.svc.challengeStore.Delete(ctx, cid)
	c.svc.userStateStore.ResetFailCount(ctx, userState.ID)
	c.svc.userStateStore.ResetOTPRequestCount(ctx, userState.ID)
	return nil
}

// SendOTPByEmail emails a code for action and returns its expiry.
func (s *TwoFactorService) SendOTPByEmail(ctx context.Context, actor auth.Principal, action string) (time.Time, error) {
	if !IsSupportedAction(action) {
		return time.Time{}, ErrUnsupportedAction
	}
	return s.OTP().Send(ctx, actor, action)
}
