package api

import (
	"context"
	"io"
	"time"

	"github.com/khanghh/kattest/internal/attestations"
	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/signature"
	"github.com/khanghh/kattest/internal/twofactor"
	"github.com/khanghh/kattest/internal/verification"
	"github.com/khanghh/kattest/model"
)

type UserService interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
	Authenticate(ctx context.Context, email string, password string) (*model.User, error)
}

type SignatureService interface {
	RequirePin(ctx context.Context, actor auth.Principal, pin string) error
	ChangePin(ctx context.Context, actor auth.Principal, currentPin, newPin string) error
	GetProfile(ctx context.Context, userID uint) (*signature.Profile, error)
	UpdateProfile(ctx context.Context, actor auth.Principal, signatureText, signatureImage string) (*signature.Profile, error)
}

type TwoFactorService interface {
	RequestChallenge(ctx context.Context, actor auth.Principal, action string) (*twofactor.ChallengeInfo, error)
	Verify(ctx context.Context, actor auth.Principal, action string, code string) error
	GenerateSessionToken(ctx context.Context, userID uint, action string) (string, time.Time, error)
	SetupTOTP(ctx context.Context, actor auth.Principal) (*twofactor.TOTPSetup, error)
	EnableTOTP(ctx context.Context, actor auth.Principal, secret string, code string, backupCodes []string) error
	DisableTOTP(ctx context.Context, actor auth.Principal, code string, force bool) error
}

type AttestationService interface {
	Generate(ctx context.Context, actor auth.Principal, requestID uint) (*model.Attestation, error)
	Submit(ctx context.Context, actor auth.Principal, id uint) (*model.Attestation, error)
	SignAttestation(ctx context.Context, in attestations.SignInput) (*model.Attestation, error)
	SignBatch(ctx context.Context, in attestations.BatchInput) (*attestations.BatchResult, error)
	ReturnToAgent(ctx context.Context, director auth.Principal, id uint, comment string) error
	List(ctx context.Context, filter attestations.ListFilter) ([]model.Attestation, error)
	VerificationLink(ctx context.Context, id uint) (string, error)
	RenderPDF(ctx context.Context, id uint, w io.Writer) (*model.Attestation, error)
}

type VerificationService interface {
	Verify(ctx context.Context, code, sig, ts string) (*verification.Result, error)
}

type AuditLog interface {
	List(ctx context.Context, filter audit.ListFilter) ([]model.AuditLog, error)
}
