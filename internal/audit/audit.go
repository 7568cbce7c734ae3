package audit

import (
	"context"
	"log/slog"

	"github.com/khanghh/kattest/model"
)

const (
	ActionPinChanged              = "PIN_CHANGED"
	ActionPinFailed               = "PIN_FAILED"
	ActionPinLocked               = "PIN_LOCKED"
	ActionOTPRequested            = "OTP_REQUESTED"
	ActionOTPVerified             = "OTP_VERIFIED"
	ActionOTPFailed               = "OTP_FAILED"
	ActionTOTPSetup               = "TOTP_SETUP"
	ActionTOTPEnabled             = "TOTP_ENABLED"
	ActionTOTPDisabled            = "TOTP_DISABLED"
	ActionTOTPForceReset          = "TOTP_FORCE_RESET"
	ActionBackupCodeUsed          = "BACKUP_CODE_USED"
	ActionAttestationGenerated    = "ATTESTATION_GENERATED"
	ActionAttestationSubmitted    = "ATTESTATION_SUBMITTED"
	ActionAttestationSigned       = "ATTESTATION_SIGNED"
	ActionAttestationSignFailed   = "ATTESTATION_SIGN_FAILED"
	ActionAttestationsBatchSigned = "ATTESTATIONS_BATCH_SIGNED"
	ActionAttestationReturned     = "ATTESTATION_RETURNED"
	ActionLoginSuccess            = "LOGIN_SUCCESS"
	ActionLoginFailed             = "LOGIN_FAILED"
	ActionSignatureProfileUpdated = "SIGNATURE_PROFILE_UPDATED"
)

// Entry describes one state change performed by an actor.
type Entry struct {
	Action    string
	ActorID   uint
	SubjectID *uint
	Details   string
	IP        string
	UserAgent string
}

type ListFilter struct {
	Action  string
	ActorID uint
	Limit   int
}

// Logger is the audit sink shared by every service. Writes are best-effort.
type Logger struct {
	repo AuditLogRepository
}

// Record appends an entry. Failures are logged and never returned to the caller.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if l == nil || l.repo == nil {
		return
	}
	record := &model.AuditLog{
		Action:    entry.Action,
		ActorID:   entry.ActorID,
		SubjectID: entry.SubjectID,
		Details:   entry.Details,
		IP:        entry.IP,
		UserAgent: entry.UserAgent,
	}
	if err := l.repo.Create(context.WithoutCancel(ctx), record); err != nil {
		slog.Error("Failed to write audit log", "action", entry.Action, "actorID", entry.ActorID, "error", err)
	}
}

func (l *Logger) List(ctx context.Context, filter ListFilter) ([]model.AuditLog, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return l.repo.Find(ctx, filter)
}

func NewLogger(repo AuditLogRepository) *Logger {
	return &Logger{repo: repo}
}

// Subject returns a pointer suitable for Entry.SubjectID.
func Subject(id uint) *uint {
	return &id
}
