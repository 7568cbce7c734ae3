package twofactor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/khanghh/kattest/internal/store"
	"github.com/khanghh/kattest/params"
)

// SessionGrant records an issued session token so it can be checked server side.
type SessionGrant struct {
	UserID    uint   `redis:"user_id"`
	Action    string `redis:"action"`
	ExpiresAt int64  `redis:"expires_at"`
}

type SessionClaims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

// SessionTokenIssuer mints tokens asserting that a user passed 2FA for an action. A
// token stays valid for its whole lifetime and may gate several calls.
type SessionTokenIssuer struct {
	svc *TwoFactorService
}

func (i *SessionTokenIssuer) signingKey() []byte {
	return []byte(i.svc.CalculateHash("session-token"))
}

func (i *SessionTokenIssuer) Generate(ctx context.Context, userID uint, action string) (string, time.Time, error) {
	now := i.svc.now()
	expiresAt := now.Add(params.TwoFactorSessionTokenTTL)
	claims := SessionClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.svc.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(i.signingKey())
	if err != nil {
		return "", time.Time{}, err
	}

	grant := SessionGrant{UserID: userID, Action: action, ExpiresAt: expiresAt.UnixMilli()}
	if err := i.svc.grantStore.Set(ctx, claims.ID, grant, params.TwoFactorSessionTokenTTL); err != nil {
		return "", time.Time{}, err
	}
	return signedToken, expiresAt, nil
}

// Validate checks that tokenStr was issued to userID for action and has not expired.
func (i *SessionTokenIssuer) Validate(ctx context.Context, tokenStr string, userID uint, action string) error {
	if tokenStr == "" {
		return ErrSessionTokenRequired
	}
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.signingKey(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.svc.now),
	)
	if err != nil {
		return ErrSessionTokenRequired
	}
	if claims.Subject != strconv.FormatUint(uint64(userID), 10) || claims.Action != action {
		return ErrSessionTokenRequired
	}

	grant, err := i.svc.grantStore.Get(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionTokenRequired
	}
	if err != nil {
		return err
	}
	if grant.UserID != userID || grant.Action != action || i.svc.now().UnixMilli() >= grant.ExpiresAt {
		return ErrSessionTokenRequired
	}
	return nil
}

func newGrantStore(storage store.Storage) *store.Store[SessionGrant] {
	return store.New[SessionGrant](storage, params.GrantKeyPrefix)
}

func (s *TwoFactorService) GenerateSessionToken(ctx context.Context, userID uint, action string) (string, time.Time, error) {
	return s.SessionToken().Generate(ctx, userID, action)
}

func (s *TwoFactorService) ValidateSessionToken(ctx context.Context, token string, userID uint, action string) error {
	return s.SessionToken().Validate(ctx, token, userID, action)
}
