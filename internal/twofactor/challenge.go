package twofactor

import (
	"context"
	"errors"
	"time"

	"github.com/khanghh/kattest/internal/store"
	"github.com/khanghh/kattest/params"
)

const ChallengeTypeOTP = "otp"

// Challenge is an emailed code bound to one (director, action) pair. Only the keyed
// hash of the code is stored. Times are unix milliseconds.
type Challenge struct {
	ID        string `redis:"id"`
	Type      string `redis:"type"`
	UserID    uint   `redis:"user_id"`
	Action    string `redis:"action"`
	Secret    string `redis:"secret"`
	Attempts  int    `redis:"attempts"`
	Success   int    `redis:"success"`
	UpdateAt  int64  `redis:"update_at"`
	ExpiresAt int64  `redis:"expires_at"`
}

func (c *Challenge) IsExpired(now time.Time) bool {
	return now.UnixMilli() >= c.ExpiresAt
}

// CanVerify reports whether the challenge may still accept a code.
func (c *Challenge) CanVerify(now time.Time) bool {
	if c.IsExpired(now) || c.Success > 0 {
		return false
	}
	return c.Attempts < params.TwoFactorChallengeMaxAttempts
}

type challengeStore struct {
	*store.Store[Challenge]
}

// IncreaseAttempts counts one verification attempt. A challenge that expired in the
// meantime reports ErrOTPCodeExpired.
func (s *challengeStore) IncreaseAttempts(ctx context.Context, cid string) (int, error) {
	attempts, err := s.IncrAttr(ctx, cid, "attempts", 1)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrOTPCodeExpired
	}
	return int(attempts), err
}

// MarkSuccess consumes the challenge. Only the first caller succeeds.
func (s *challengeStore) MarkSuccess(ctx context.Context, cid string) error {
	count, err := s.IncrAttr(ctx, cid, "success", 1)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrChallengeAlreadyCleared
	case err != nil:
		return err
	case count != 1:
		return ErrChallengeAlreadyCleared
	}
	return nil
}

func newChallengeStore(storage store.Storage) *challengeStore {
	return &challengeStore{
		Store: store.New[Challenge](storage, params.ChallengeKeyPrefix),
	}
}
