package attestations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/notify"
	"github.com/khanghh/kattest/model"
	"github.com/khanghh/kattest/params"
)

type SignInput struct {
	AttestationID uint
	Director      auth.Principal
	Pin           string
	SessionToken  string
}

type BatchInput struct {
	AttestationIDs []uint
	Director       auth.Principal
	Pin            string
	SessionToken   string
}

type SignedItem struct {
	ID       uint   `json:"id"`
	Numero   string `json:"numero"`
	Status   string `json:"statut"`
	SignedAt string `json:"dateSignature"`
}

type BatchItemError struct {
	ID     uint   `json:"id"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

type BatchDetails struct {
	Total  int `json:"total"`
	Signed int `json:"signed"`
	Failed int `json:"failed"`
}

// BatchResult is returned even when every item failed.
type BatchResult struct {
	Signed  []SignedItem     `json:"signees"`
	Errors  []BatchItemError `json:"erreurs"`
	Details BatchDetails     `json:"details"`
}

func NewSignedItem(att *model.Attestation) SignedItem {
	item := SignedItem{ID: att.ID, Numero: att.Numero, Status: att.Status}
	if att.SignedAt != nil {
		item.SignedAt = att.SignedAt.Format(time.RFC3339)
	}
	return item
}

// authorize runs the PIN gate then checks the 2FA session token. Nothing is mutated
// before both pass.
func (s *AttestationService) authorize(ctx context.Context, director auth.Principal, pin, sessionToken string) error {
	if !director.IsDirector() {
		return auth.ErrForbidden
	}
	if err := s.pinGate.RequirePin(ctx, director, pin); err != nil {
		return err
	}
	return s.sessions.ValidateSessionToken(ctx, sessionToken, director.UserID, params.ActionSignAttestation)
}

// SignAttestation signs one pending attestation.
func (s *AttestationService) SignAttestation(ctx context.Context, in SignInput) (*model.Attestation, error) {
	if err := s.authorize(ctx, in.Director, in.Pin, in.SessionToken); err != nil {
		common.SignaturesTotal.WithLabelValues("single", "denied").Inc()
		s.record(ctx, in.Director, audit.ActionAttestationSignFailed, in.AttestationID, "reason="+reasonOf(err))
		return nil, err
	}
	att, err := s.sign(ctx, in.Director, in.AttestationID)
	if err != nil {
		common.SignaturesTotal.WithLabelValues("single", "failed").Inc()
		s.record(ctx, in.Director, audit.ActionAttestationSignFailed, in.AttestationID, "reason="+reasonOf(err))
		return nil, err
	}
	common.SignaturesTotal.WithLabelValues("single", "signed").Inc()
	return att, nil
}

// SignBatch checks the PIN and the session token once, then signs every item
// independently. Item failures are collected and never abort the batch.
func (s *AttestationService) SignBatch(ctx context.Context, in BatchInput) (*BatchResult, error) {
	if len(in.AttestationIDs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(in.AttestationIDs) > params.BatchSignMaxItems {
		return nil, ErrBatchTooLarge
	}
	if err := s.authorize(ctx, in.Director, in.Pin, in.SessionToken); err != nil {
		common.SignaturesTotal.WithLabelValues("batch", "denied").Inc()
		s.record(ctx, in.Director, audit.ActionAttestationSignFailed, in.Director.UserID, "batch reason="+reasonOf(err))
		return nil, err
	}

	result := &BatchResult{
		Signed: []SignedItem{},
		Errors: []BatchItemError{},
	}
	for _, id := range in.AttestationIDs {
		att, err := s.sign(ctx, in.Director, id)
		if err != nil {
			common.SignaturesTotal.WithLabelValues("batch", "failed").Inc()
			result.Errors = append(result.Errors, batchItemError(id, err))
			continue
		}
		common.SignaturesTotal.WithLabelValues("batch", "signed").Inc()
		result.Signed = append(result.Signed, NewSignedItem(att))
	}
	result.Details = BatchDetails{
		Total:  len(in.AttestationIDs),
		Signed: len(result.Signed),
		Failed: len(result.Errors),
	}
	s.record(ctx, in.Director, audit.ActionAttestationsBatchSigned, in.Director.UserID,
		fmt.Sprintf("total=%d signed=%d failed=%d", result.Details.Total, result.Details.Signed, result.Details.Failed))
	return result, nil
}

// sign performs the pending_signature to signed transition with a fresh
// verification code, then runs the post-signature side effects.
func (s *AttestationService) sign(ctx context.Context, director auth.Principal, id uint) (*model.Attestation, error) {
	signed := false
	for i := 0; i < maxAllocateRetries && !signed; i++ {
		code, err := common.GenerateCode(verificationCodeSize)
		if err != nil {
			return nil, err
		}
		ok, err := s.repo.MarkSigned(ctx, id, director.UserID, s.now(), code)
		if isDuplicateKey(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.transitionError(ctx, id)
		}
		signed = true
	}
	if !signed {
		return nil, ErrCodeSpaceExhausted
	}

	att, err := s.repo.GetAttestation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, director, audit.ActionAttestationSigned, id, "numero="+att.Numero)
	s.notifySigned(ctx, att)
	s.archive(ctx, att)
	return att, nil
}

func (s *AttestationService) notifySigned(ctx context.Context, att *model.Attestation) {
	if att.Request == nil || att.SignedAt == nil || att.VerificationCode == nil {
		return
	}
	agent, err := s.users.GetUserByID(ctx, att.Request.AgentID)
	if err != nil {
		slog.Warn("Failed to resolve agent for signature notice", "agentID", att.Request.AgentID, "error", err)
		return
	}
	notice := notify.AttestationSignedNotice{
		To:              agent.Email,
		RecipientName:   agent.FullName,
		Numero:          att.Numero,
		BeneficiaryName: att.Request.BeneficiaryName,
		SignedAt:        *att.SignedAt,
		VerifyURL:       s.links.URL(*att.VerificationCode),
	}
	s.notifier.AttestationSigned(ctx, notice)
	if att.Request.BeneficiaryEmail != "" {
		notice.To = att.Request.BeneficiaryEmail
		notice.RecipientName = att.Request.BeneficiaryName
		s.notifier.AttestationSigned(ctx, notice)
	}
}

func reasonOf(err error) string {
	var bizErr *common.BusinessError
	if errors.As(err, &bizErr) {
		return bizErr.Reason
	}
	if errors.Is(err, auth.ErrForbidden) {
		return "forbidden"
	}
	return "internal"
}

func batchItemError(id uint, err error) BatchItemError {
	var bizErr *common.BusinessError
	if errors.As(err, &bizErr) {
		return BatchItemError{ID: id, Reason: bizErr.Reason, Error: bizErr.Message}
	}
	slog.Error("Failed to sign attestation in batch", "id", id, "error", err)
	return BatchItemError{ID: id, Reason: "internal", Error: "internal error"}
}
