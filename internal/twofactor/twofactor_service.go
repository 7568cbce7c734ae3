package twofactor

import (
	"context"
	"errors"
	"time"

	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/signature"
	"github.com/khanghh/kattest/internal/store"
	"github.com/khanghh/kattest/model"
	"github.com/khanghh/kattest/params"
)

// CodeNotifier delivers emailed one-time codes.
type CodeNotifier interface {
	OTPCode(ctx context.Context, email, fullName, code string, expiresIn time.Duration)
}

type TwoFactorService struct {
	masterKey       string
	issuer          string
	userStateStore  *userStateStore
	challengeStore  *challengeStore
	enrollmentStore *store.Store[Enrollment]
	grantStore      *store.Store[SessionGrant]
	configRepo      signature.ConfigRepository
	auditLogger     *audit.Logger
	notifier        CodeNotifier
	now             func() time.Time
}

func (s *TwoFactorService) CalculateHash(inputs ...interface{}) string {
	return common.CalculateHash(s.masterKey, inputs...)
}

func (s *TwoFactorService) getStateID(userID uint) string {
	return s.CalculateHash("state", userID)
}

func (s *TwoFactorService) getChallengeID(userID uint, action string) string {
	return s.CalculateHash("challenge", userID, action)
}

func (s *TwoFactorService) getUserState(ctx context.Context, stateID string) (*UserState, error) {
	userState, err := s.userStateStore.Get(ctx, stateID)
	if errors.Is(err, store.ErrNotFound) {
		userState = &UserState{ID: stateID}
		err = s.userStateStore.Set(ctx, stateID, *userState, params.TwoFactorStateMaxAge)
	}
	if err != nil {
		return nil, err
	}
	return userState, err
}

// checkUserState rejects users who exhausted their failed verification budget.
func (s *TwoFactorService) checkUserState(ctx context.Context, userID uint) (*UserState, error) {
	userState, err := s.getUserState(ctx, s.getStateID(userID))
	if err != nil {
		return nil, err
	}
	if userState.FailCount >= params.TwoFactorMaxFailCount {
		return nil, ErrTooManyFailedAttempts
	}
	return userState, nil
}

func (s *TwoFactorService) recordFailure(ctx context.Context, userState *UserState) (int, error) {
	failCount, err := s.userStateStore.IncreaseFailCount(ctx, userState.ID)
	if err != nil {
		return 0, err
	}
	userState.FailCount = failCount
	return params.TwoFactorMaxFailCount - failCount, nil
}

func (s *TwoFactorService) getConfig(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error) {
	cfg, err := s.configRepo.GetByUserID(ctx, userID)
	if errors.Is(err, signature.ErrConfigNotFound) {
		return nil, ErrSignatureNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *TwoFactorService) record(ctx context.Context, actor auth.Principal, action, details string) {
	s.auditLogger.Record(ctx, audit.Entry{
		Action:    action,
		ActorID:   actor.UserID,
		SubjectID: audit.Subject(actor.UserID),
		Details:   details,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
	})
}

// CurrentMethod returns the second factor configured for the user.
func (s *TwoFactorService) CurrentMethod(ctx context.Context, actor auth.Principal) (Method, error) {
	cfg, err := s.getConfig(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return methodFromConfig(cfg, actor.Email), nil
}

// ChallengeInfo describes what the client must present to complete a second factor.
type ChallengeInfo struct {
	Method    string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

// RequestChallenge starts a verification for action. Email users receive a fresh code,
// TOTP users are told to use their authenticator.
func (s *TwoFactorService) RequestChallenge(ctx context.Context, actor auth.Principal, action string) (*ChallengeInfo, error) {
	if !IsSupportedAction(action) {
		return nil, ErrUnsupportedAction
	}
	method, err := s.CurrentMethod(ctx, actor)
	if err != nil {
		return nil, err
	}
	switch m := method.(type) {
	case TOTPMethod:
		period := time.Duration(params.TOTPPeriod) * time.Second
		return &ChallengeInfo{Method: m.Name(), ExpiresAt: s.now().Add(period), ExpiresIn: period}, nil
	default:
		expiresAt, err := s.OTP().Send(ctx, actor, action)
		if err != nil {
			return nil, err
		}
		return &ChallengeInfo{Method: method.Name(), ExpiresAt: expiresAt, ExpiresIn: expiresAt.Sub(s.now())}, nil
	}
}

func (s *TwoFactorService) OTP() *OTPChallenger {
	return &OTPChallenger{s}
}

func (s *TwoFactorService) TOTP() *TOTPChallenger {
	return &TOTPChallenger{s}
}

func (s *TwoFactorService) SessionToken() *SessionTokenIssuer {
	return &SessionTokenIssuer{s}
}

// SetClock overrides the time source.
func (s *TwoFactorService) SetClock(now func() time.Time) {
	s.now = now
}

func IsSupportedAction(action string) bool {
	switch action {
	case params.ActionSignAttestation:
		return true
	}
	return false
}

func NewTwoFactorService(masterKey string, issuer string, storage store.Storage, configRepo signature.ConfigRepository, auditLogger *audit.Logger, notifier CodeNotifier) *TwoFactorService {
	return &TwoFactorService{
		masterKey:       masterKey,
		issuer:          issuer,
		userStateStore:  newUserStateStore(storage),
		challengeStore:  newChallengeStore(storage),
		enrollmentStore: newEnrollmentStore(storage),
		grantStore:      newGrantStore(storage),
		configRepo:      configRepo,
		auditLogger:     auditLogger,
		notifier:        notifier,
		now:             time.Now,
	}
}
