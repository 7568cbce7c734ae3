package attestations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/notify"
	"github.com/khanghh/kattest/internal/pdf"
	"github.com/khanghh/kattest/model"
)

const (
	maxAllocateRetries   = 5
	verificationCodeSize = 12
)

type PinGate interface {
	RequirePin(ctx context.Context, actor auth.Principal, pin string) error
}

type SessionValidator interface {
	ValidateSessionToken(ctx context.Context, token string, userID uint, action string) error
}

type ProfileSource interface {
	GetConfig(ctx context.Context, userID uint) (*model.DirectorSignatureConfig, error)
}

type UserSource interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
}

type LinkIssuer interface {
	URL(code string) string
}

type Notifier interface {
	AttestationSigned(ctx context.Context, notice notify.AttestationSignedNotice)
	AttestationReturned(ctx context.Context, notice notify.AttestationReturnedNotice)
}

type AttestationService struct {
	repo        Repository
	pinGate     PinGate
	sessions    SessionValidator
	profiles    ProfileSource
	users       UserSource
	links       LinkIssuer
	notifier    Notifier
	auditLogger *audit.Logger
	siteName    string
	storageDir  string
	now         func() time.Time
}

func (s *AttestationService) newNumero() (string, error) {
	digits, err := common.GenerateDigits(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ATT-%d-%s", s.now().Year(), digits), nil
}

// Generate promotes a validated request into a draft attestation.
func (s *AttestationService) Generate(ctx context.Context, actor auth.Principal, requestID uint) (*model.Attestation, error) {
	var att *model.Attestation
	err := s.repo.Transaction(ctx, func(repo Repository) error {
		req, err := repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.RequestStatusValidated {
			return ErrRequestNotValidated
		}
		ok, err := repo.UpdateRequestStatus(ctx, requestID, model.RequestStatusValidated, model.RequestStatusAttestationGenerated)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestNotValidated
		}

		for i := 0; i < maxAllocateRetries; i++ {
			numero, err := s.newNumero()
			if err != nil {
				return err
			}
			candidate := &model.Attestation{
				RequestID:     requestID,
				Numero:        numero,
				Status:        model.AttestationStatusDraft,
				GeneratedByID: actor.UserID,
				GeneratedAt:   s.now(),
			}
			err = repo.CreateAttestation(ctx, candidate)
			if isDuplicateKey(err) {
				slog.Warn("Attestation numero collision, retrying", "numero", numero)
				continue
			}
			if err != nil {
				return err
			}
			candidate.Request = req
			att = candidate
			return nil
		}
		return ErrCodeSpaceExhausted
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionAttestationGenerated, att.ID, "numero="+att.Numero)
	return att, nil
}

// Submit moves a draft attestation to the signature queue.
func (s *AttestationService) Submit(ctx context.Context, actor auth.Principal, id uint) (*model.Attestation, error) {
	ok, err := s.repo.UpdateAttestationStatus(ctx, id, model.AttestationStatusDraft, model.AttestationStatusPendingSignature)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, id)
	}
	att, err := s.repo.GetAttestation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionAttestationSubmitted, id, "numero="+att.Numero)
	return att, nil
}

// transitionError explains why a conditional status update matched no row.
func (s *AttestationService) transitionError(ctx context.Context, id uint) error {
	att, err := s.repo.GetAttestation(ctx, id)
	if err != nil {
		return err
	}
	if att.IsSigned() {
		return ErrAlreadySigned
	}
	return ErrInvalidStatus
}

// ReturnToAgent deletes the attestation whatever its status and reopens the request.
func (s *AttestationService) ReturnToAgent(ctx context.Context, director auth.Principal, id uint, comment string) error {
	var att *model.Attestation
	err := s.repo.Transaction(ctx, func(repo Repository) error {
		var err error
		att, err = repo.GetAttestation(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.DeleteAttestation(ctx, id); err != nil {
			return err
		}
		_, err = repo.UpdateRequestStatus(ctx, att.RequestID, model.RequestStatusAttestationGenerated, model.RequestStatusValidated)
		return err
	})
	if err != nil {
		return err
	}

	s.record(ctx, director, audit.ActionAttestationReturned, id, fmt.Sprintf("numero=%s status=%s", att.Numero, att.Status))
	if att.FilePath != "" {
		if err := os.Remove(att.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove archived attestation", "path", att.FilePath, "error", err)
		}
	}
	if att.Request != nil {
		if agent, err := s.users.GetUserByID(ctx, att.Request.AgentID); err == nil {
			s.notifier.AttestationReturned(ctx, notify.AttestationReturnedNotice{
				To:            agent.Email,
				RecipientName: agent.FullName,
				Numero:        att.Numero,
				RequestNumero: att.Request.Numero,
				DirectorName:  director.FullName,
				Comment:       comment,
			})
		} else {
			slog.Warn("Failed to resolve agent for return notice", "agentID", att.Request.AgentID, "error", err)
		}
	}
	return nil
}

func (s *AttestationService) List(ctx context.Context, filter ListFilter) ([]model.Attestation, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.FindAttestations(ctx, filter)
}

func (s *AttestationService) Get(ctx context.Context, id uint) (*model.Attestation, error) {
	return s.repo.GetAttestation(ctx, id)
}

// VerificationLink returns a freshly signed public link of a signed attestation.
func (s *AttestationService) VerificationLink(ctx context.Context, id uint) (string, error) {
	att, err := s.repo.GetAttestation(ctx, id)
	if err != nil {
		return "", err
	}
	if !att.IsSigned() || att.VerificationCode == nil {
		return "", ErrNotSigned
	}
	return s.links.URL(*att.VerificationCode), nil
}

func (s *AttestationService) RenderPDF(ctx context.Context, id uint, w io.Writer) (*model.Attestation, error) {
	att, err := s.repo.GetAttestation(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.buildDoc(ctx, att)
	if err != nil {
		return nil, err
	}
	return att, pdf.RenderAttestation(w, *doc)
}

func (s *AttestationService) buildDoc(ctx context.Context, att *model.Attestation) (*pdf.AttestationDoc, error) {
	if att.Request == nil {
		return nil, ErrRequestNotFound
	}
	doc := &pdf.AttestationDoc{
		SiteName:        s.siteName,
		Numero:          att.Numero,
		BeneficiaryName: att.Request.BeneficiaryName,
		ServiceName:     att.Request.ServiceName,
		StartDate:       att.Request.StartDate,
		EndDate:         att.Request.EndDate,
		GeneratedAt:     att.GeneratedAt,
	}
	if !att.IsSigned() || att.SignerID == nil || att.SignedAt == nil {
		return doc, nil
	}

	doc.Signed = true
	doc.SignedAt = *att.SignedAt
	if att.VerificationCode != nil {
		doc.VerifyURL = s.links.URL(*att.VerificationCode)
	}
	if signer, err := s.users.GetUserByID(ctx, *att.SignerID); err == nil {
		doc.SignerName = signer.FullName
	}
	if cfg, err := s.profiles.GetConfig(ctx, *att.SignerID); err == nil {
		doc.SignatureText = cfg.SignatureText
		doc.SignatureImage = cfg.SignatureImage
	}
	return doc, nil
}

// archive stores the signed PDF under storageDir. Failures are only logged.
func (s *AttestationService) archive(ctx context.Context, att *model.Attestation) {
	if s.storageDir == "" {
		return
	}
	doc, err := s.buildDoc(ctx, att)
	if err != nil {
		slog.Warn("Failed to prepare attestation archive", "id", att.ID, "error", err)
		return
	}
	var buf bytes.Buffer
	if err := pdf.RenderAttestation(&buf, *doc); err != nil {
		doc.SignatureImage = ""
		buf.Reset()
		if err := pdf.RenderAttestation(&buf, *doc); err != nil {
			slog.Warn("Failed to render attestation archive", "id", att.ID, "error", err)
			return
		}
	}

	dir := filepath.Join(s.storageDir, "attestations")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		slog.Warn("Failed to create archive directory", "dir", dir, "error", err)
		return
	}
	path := filepath.Join(dir, att.Numero+".pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o640); err != nil {
		slog.Warn("Failed to write attestation archive", "path", path, "error", err)
		return
	}
	if err := s.repo.UpdateFilePath(ctx, att.ID, path); err != nil {
		slog.Warn("Failed to store attestation file path", "id", att.ID, "error", err)
		return
	}
	att.FilePath = path
}

func (s *AttestationService) record(ctx context.Context, actor auth.Principal, action string, subjectID uint, details string) {
	s.auditLogger.Record(ctx, audit.Entry{
		Action:    action,
		ActorID:   actor.UserID,
		SubjectID: audit.Subject(subjectID),
		Details:   details,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
	})
}

// SetClock overrides the time source.
func (s *AttestationService) SetClock(now func() time.Time) {
	s.now = now
}

func NewAttestationService(
	repo Repository,
	pinGate PinGate,
	sessions SessionValidator,
	profiles ProfileSource,
	users UserSource,
	links LinkIssuer,
	notifier Notifier,
	auditLogger *audit.Logger,
	siteName string,
	storageDir string,
) *AttestationService {
	return &AttestationService{
		repo:        repo,
		pinGate:     pinGate,
		sessions:    sessions,
		profiles:    profiles,
		users:       users,
		links:       links,
		notifier:    notifier,
		auditLogger: auditLogger,
		siteName:    siteName,
		storageDir:  storageDir,
		now:         time.Now,
	}
}
