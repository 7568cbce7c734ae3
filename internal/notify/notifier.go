package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type AttestationSignedNotice struct {
	To              string
	RecipientName   string
	Numero          string
	BeneficiaryName string
	SignedAt        time.Time
	VerifyURL       string
}

type AttestationReturnedNotice struct {
	To            string
	RecipientName string
	Numero        string
	RequestNumero string
	DirectorName  string
	Comment       string
}

// Notifier enqueues notifications and returns immediately. Enqueue failures are
// logged and never reported to the caller.
type Notifier struct {
	queue Queue
}

func (n *Notifier) enqueue(ctx context.Context, kind Kind, to string, data map[string]string) {
	if to == "" {
		slog.Warn("Notification without recipient skipped", "kind", kind)
		return
	}
	job := &Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		To:         to,
		Data:       data,
		EnqueuedAt: time.Now(),
	}
	if err := n.queue.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		slog.Error("Failed to enqueue notification", "kind", kind, "error", err)
	}
}

func (n *Notifier) OTPCode(ctx context.Context, email, fullName, code string, expiresIn time.Duration) {
	n.enqueue(ctx, KindOTPCode, email, map[string]string{
		"fullName":      fullName,
		"code":          code,
		"expireMinutes": strconv.Itoa(int(expiresIn.Minutes())),
	})
}

func (n *Notifier) AttestationSigned(ctx context.Context, notice AttestationSignedNotice) {
	n.enqueue(ctx, KindAttestationSigned, notice.To, map[string]string{
		"recipientName":   notice.RecipientName,
		"numero":          notice.Numero,
		"beneficiaryName": notice.BeneficiaryName,
		"signedAt":        notice.SignedAt.Format("02/01/2006 15:04"),
		"verifyURL":       notice.VerifyURL,
	})
}

func (n *Notifier) AttestationReturned(ctx context.Context, notice AttestationReturnedNotice) {
	n.enqueue(ctx, KindAttestationReturned, notice.To, map[string]string{
		"recipientName": notice.RecipientName,
		"numero":        notice.Numero,
		"requestNumero": notice.RequestNumero,
		"directorName":  notice.DirectorName,
		"comment":       notice.Comment,
	})
}

func NewNotifier(queue Queue) *Notifier {
	return &Notifier{queue: queue}
}
