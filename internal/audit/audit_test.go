package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/khanghh/kattest/model"
)

type memoryAuditRepo struct {
	records []model.AuditLog
	fail    bool
}

func (r *memoryAuditRepo) Create(ctx context.Context, record *model.AuditLog) error {
	if r.fail {
		return errors.New("database unavailable")
	}
	record.ID = uint64(len(r.records) + 1)
	r.records = append(r.records, *record)
	return nil
}

func (r *memoryAuditRepo) Find(ctx context.Context, filter ListFilter) ([]model.AuditLog, error) {
	var out []model.AuditLog
	for i := len(r.records) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		rec := r.records[i]
		if filter.Action != "" && rec.Action != filter.Action {
			continue
		}
		if filter.ActorID != 0 && rec.ActorID != filter.ActorID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func TestLogger_RecordAndList(t *testing.T) {
	repo := &memoryAuditRepo{}
	logger := NewLogger(repo)
	ctx := context.Background()

	logger.Record(ctx, Entry{Action: ActionPinFailed, ActorID: 1, IP: "10.0.0.1"})
	logger.Record(ctx, Entry{Action: ActionAttestationSigned, ActorID: 1, SubjectID: Subject(42)})
	logger.Record(ctx, Entry{Action: ActionAttestationSigned, ActorID: 2, SubjectID: Subject(43)})

	got, err := logger.List(ctx, ListFilter{Action: ActionAttestationSigned})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 signed entries, got %d", len(got))
	}
	if *got[0].SubjectID != 43 {
		t.Fatalf("expected newest entry first, got subject %d", *got[0].SubjectID)
	}
}

func TestLogger_RecordSwallowsErrors(t *testing.T) {
	logger := NewLogger(&memoryAuditRepo{fail: true})
	logger.Record(context.Background(), Entry{Action: ActionLoginFailed})

	var nilLogger *Logger
	nilLogger.Record(context.Background(), Entry{Action: ActionLoginFailed})
}
