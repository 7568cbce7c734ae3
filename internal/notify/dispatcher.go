package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/mail"
	"github.com/khanghh/kattest/params"
)

// Dispatcher delivers queued jobs with a pool of workers. A failed job is re-enqueued
// until MaxRetries deliveries were attempted, so delivery is at-least-once.
type Dispatcher struct {
	queue      Queue
	sender     mail.MailSender
	workers    int
	maxRetries int
	retryDelay time.Duration
	wg         sync.WaitGroup
}

// Run blocks until ctx is cancelled and all workers have returned.
func (d *Dispatcher) Run(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := d.queue.Dequeue(ctx, params.NotifyDequeueTimeout)
		if errors.Is(err, ErrQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Failed to dequeue notification", "worker", id, "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}
		d.process(ctx, job)
	}
}

func (d *Dispatcher) process(ctx context.Context, job *Job) {
	err := d.deliver(job)
	if err == nil {
		common.NotificationsTotal.WithLabelValues(string(job.Kind), "delivered").Inc()
		return
	}

	job.Attempts++
	if job.Attempts >= d.maxRetries {
		common.NotificationsTotal.WithLabelValues(string(job.Kind), "dropped").Inc()
		slog.Error("Dropping notification after retries", "id", job.ID, "kind", job.Kind, "attempts", job.Attempts, "error", err)
		return
	}
	common.NotificationsTotal.WithLabelValues(string(job.Kind), "retried").Inc()
	slog.Warn("Notification delivery failed, retrying", "id", job.ID, "kind", job.Kind, "attempts", job.Attempts, "error", err)
	if !sleepCtx(ctx, d.retryDelay) {
		// shutting down, keep the job for the next run
		ctx = context.WithoutCancel(ctx)
	}
	if err := d.queue.Enqueue(ctx, job); err != nil {
		slog.Error("Failed to re-enqueue notification", "id", job.ID, "error", err)
	}
}

func (d *Dispatcher) deliver(job *Job) error {
	switch job.Kind {
	case KindOTPCode:
		minutes, _ := strconv.Atoi(job.Data["expireMinutes"])
		return mail.SendOTP(d.sender, job.To, job.Data["fullName"], job.Data["code"], minutes)
	case KindAttestationSigned:
		return mail.SendAttestationSigned(d.sender, job.To, mail.AttestationSignedData{
			RecipientName:   job.Data["recipientName"],
			Numero:          job.Data["numero"],
			BeneficiaryName: job.Data["beneficiaryName"],
			SignedAt:        job.Data["signedAt"],
			VerifyURL:       job.Data["verifyURL"],
		})
	case KindAttestationReturned:
		return mail.SendAttestationReturned(d.sender, job.To, mail.AttestationReturnedData{
			RecipientName: job.Data["recipientName"],
			Numero:        job.Data["numero"],
			RequestNumero: job.Data["requestNumero"],
			DirectorName:  job.Data["directorName"],
			Comment:       job.Data["comment"],
		})
	}
	return fmt.Errorf("unknown notification kind %q", job.Kind)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func NewDispatcher(queue Queue, sender mail.MailSender, workers int, maxRetries int, retryDelay time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = params.NotifyWorkers
	}
	if maxRetries <= 0 {
		maxRetries = params.NotifyMaxRetries
	}
	return &Dispatcher{
		queue:      queue,
		sender:     sender,
		workers:    workers,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}
