package twofactor

import (
	"context"
	"errors"

	"github.com/khanghh/kattest/internal/store"
	"github.com/khanghh/kattest/params"
)

const (
	fieldFailCount       = "fail_count"
	fieldOTPRequestCount = "otp_request_count"
	fieldTOTPLastStep    = "totp_last_step"
)

// UserState holds the per-director counters that outlive single challenges.
type UserState struct {
	ID              string
	FailCount       int   `redis:"fail_count"`
	OTPRequestCount int   `redis:"otp_request_count"`
	TOTPLastStep    int64 `redis:"totp_last_step"` // replay guard for authenticator codes
}

type userStateStore struct {
	*store.Store[UserState]
}

func (s *userStateStore) Get(ctx context.Context, id string) (*UserState, error) {
	val, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	val.ID = id
	return &val, nil
}

// incr bumps a counter, starting a fresh state when the previous one expired.
func (s *userStateStore) incr(ctx context.Context, id, field string) (int, error) {
	n, err := s.IncrAttr(ctx, id, field, 1)
	if errors.Is(err, store.ErrNotFound) {
		if err := s.Store.Set(ctx, id, UserState{}, params.TwoFactorStateMaxAge); err != nil {
			return 0, err
		}
		return 1, s.SetAttr(ctx, id, field, 1)
	}
	return int(n), err
}

func (s *userStateStore) IncreaseFailCount(ctx context.Context, id string) (int, error) {
	return s.incr(ctx, id, fieldFailCount)
}

func (s *userStateStore) IncreaseOTPRequestCount(ctx context.Context, id string) (int, error) {
	return s.incr(ctx, id, fieldOTPRequestCount)
}

func (s *userStateStore) reset(ctx context.Context, id, field string) error {
	err := s.SetAttr(ctx, id, field, 0)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (s *userStateStore) ResetFailCount(ctx context.Context, id string) error {
	return s.reset(ctx, id, fieldFailCount)
}

func (s *userStateStore) ResetOTPRequestCount(ctx context.Context, id string) error {
	return s.reset(ctx, id, fieldOTPRequestCount)
}

func (s *userStateStore) SetTOTPLastStep(ctx context.Context, id string, step int64) error {
	err := s.SetAttr(ctx, id, fieldTOTPLastStep, step)
	if errors.Is(err, store.ErrNotFound) {
		return s.Store.Set(ctx, id, UserState{TOTPLastStep: step}, params.TwoFactorStateMaxAge)
	}
	return err
}

func newUserStateStore(storage store.Storage) *userStateStore {
	return &userStateStore{
		Store: store.New[UserState](storage, params.UserStateKeyPrefix),
	}
}
