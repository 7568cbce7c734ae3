package verification

import (
	"context"
	"errors"
	"time"

	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/model"
)

// AttestationSource resolves a signed attestation by its verification code, with its
// request preloaded.
type AttestationSource interface {
	GetByVerificationCode(ctx context.Context, code string) (*model.Attestation, error)
}

type SignerSource interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
}

type PublicAttestation struct {
	Numero      string    `json:"numero"`
	Beneficiary string    `json:"beneficiaire"`
	Service     string    `json:"service"`
	PeriodStart string    `json:"dateDebut"`
	PeriodEnd   string    `json:"dateFin"`
	SignedAt    time.Time `json:"dateSignature"`
	Signer      string    `json:"signataire"`
	Status      string    `json:"statut"`
}

type Result struct {
	Valid       bool               `json:"valid"`
	Reason      string             `json:"reason,omitempty"`
	Attestation *PublicAttestation `json:"attestation,omitempty"`
}

type Service struct {
	signer       *LinkSigner
	attestations AttestationSource
	users        SignerSource
}

// Verify never returns a business error. Rejections are reported through Result and
// only infrastructure failures come back as err.
func (s *Service) Verify(ctx context.Context, code, sig, ts string) (*Result, error) {
	if err := s.signer.Check(code, sig, ts, s.signer.now()); err != nil {
		return s.reject(err)
	}

	att, err := s.attestations.GetByVerificationCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return s.reject(err)
	}
	if err != nil {
		common.PublicVerificationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !att.IsSigned() || att.SignedAt == nil || att.Request == nil {
		return s.reject(ErrNotFound)
	}

	public := &PublicAttestation{
		Numero:      att.Numero,
		Beneficiary: att.Request.BeneficiaryName,
		Service:     att.Request.ServiceName,
		PeriodStart: att.Request.StartDate.Format(time.DateOnly),
		PeriodEnd:   att.Request.EndDate.Format(time.DateOnly),
		SignedAt:    *att.SignedAt,
		Status:      att.Status,
	}
	if att.SignerID != nil {
		if user, err := s.users.GetUserByID(ctx, *att.SignerID); err == nil {
			public.Signer = user.FullName
		}
	}
	common.PublicVerificationsTotal.WithLabelValues("valid").Inc()
	return &Result{Valid: true, Attestation: public}, nil
}

func (s *Service) reject(err error) (*Result, error) {
	var bizErr *common.BusinessError
	if !errors.As(err, &bizErr) {
		return nil, err
	}
	common.PublicVerificationsTotal.WithLabelValues(bizErr.Reason).Inc()
	return &Result{Valid: false, Reason: bizErr.Reason}, nil
}

func (s *Service) LinkSigner() *LinkSigner {
	return s.signer
}

func NewService(signer *LinkSigner, attestations AttestationSource, users SignerSource) *Service {
	return &Service{
		signer:       signer,
		attestations: attestations,
		users:        users,
	}
}
