package verification

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/users"
	"github.com/khanghh/kattest/model"
)

var fixedNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type attestationMap map[string]*model.Attestation

func (m attestationMap) GetByVerificationCode(ctx context.Context, code string) (*model.Attestation, error) {
	if att, ok := m[code]; ok {
		return att, nil
	}
	return nil, ErrNotFound
}

type userMap map[uint]*model.User

func (m userMap) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	if user, ok := m[userID]; ok {
		return user, nil
	}
	return nil, users.ErrUserNotFound
}

func newTestSigner() *LinkSigner {
	signer := NewLinkSigner("verify-secret", "https://attest.example.org", 24*time.Hour)
	signer.SetClock(func() time.Time { return fixedNow })
	return signer
}

func tamper(s string) string {
	b := []byte(s)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}

func TestLinkSigner_Check(t *testing.T) {
	signer := newTestSigner()
	ts := fixedNow.Add(-time.Hour).Unix()
	tsStr := strconv.FormatInt(ts, 10)
	sig := signer.Sign("ABC123", ts)

	tests := []struct {
		name   string
		code   string
		sig    string
		ts     string
		reason string
	}{
		{"valid", "ABC123", sig, tsStr, ""},
		{"tampered signature", "ABC123", tamper(sig), tsStr, common.ReasonBadSignature},
		{"tampered code", tamper("ABC123"), sig, tsStr, common.ReasonBadSignature},
		{"tampered timestamp", "ABC123", sig, strconv.FormatInt(ts+1, 10), common.ReasonBadSignature},
		{"missing sig", "ABC123", "", tsStr, common.ReasonInvalidRequest},
		{"non numeric ts", "ABC123", sig, "yesterday", common.ReasonInvalidRequest},
		{"short sig", "ABC123", sig[:10], tsStr, common.ReasonInvalidRequest},
		{"case-flipped signature", "ABC123", upperFirstLetter(sig), tsStr, common.ReasonBadSignature},
		{"signed timestamp", "ABC123", sig, "+" + tsStr, common.ReasonInvalidRequest},
		{"zero padded timestamp", "ABC123", sig, "0" + tsStr, common.ReasonInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := signer.Check(tt.code, tt.sig, tt.ts, fixedNow)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("expected valid link, got %v", err)
				}
				return
			}
			var bizErr *common.BusinessError
			if !errors.As(err, &bizErr) || bizErr.Reason != tt.reason {
				t.Fatalf("expected reason %s, got %v", tt.reason, err)
			}
		})
	}
}

// upperFirstLetter upper-cases the first hex letter of s.
func upperFirstLetter(s string) string {
	i := strings.IndexAny(s, "abcdef")
	if i < 0 {
		return s
	}
	return s[:i] + strings.ToUpper(s[i:i+1]) + s[i+1:]
}

func TestLinkSigner_RejectsStaleTimestampWithCorrectSignature(t *testing.T) {
	signer := newTestSigner()
	old := fixedNow.Add(-25 * time.Hour).Unix()
	err := signer.Check("ABC123", signer.Sign("ABC123", old), strconv.FormatInt(old, 10), fixedNow)
	if !errors.Is(err, ErrExpiredSignature) {
		t.Fatalf("expected expired_signature, got %v", err)
	}

	future := fixedNow.Add(10 * time.Minute).Unix()
	err = signer.Check("ABC123", signer.Sign("ABC123", future), strconv.FormatInt(future, 10), fixedNow)
	if !errors.Is(err, ErrExpiredSignature) {
		t.Fatalf("expected expired_signature for future ts, got %v", err)
	}

	near := fixedNow.Add(2 * time.Minute).Unix()
	if err := signer.Check("ABC123", signer.Sign("ABC123", near), strconv.FormatInt(near, 10), fixedNow); err != nil {
		t.Fatalf("small clock drift should be tolerated, got %v", err)
	}
}

func TestService_Verify(t *testing.T) {
	signer := newTestSigner()
	signedAt := fixedNow.Add(-48 * time.Hour)
	signerID := uint(42)
	code := "K7Q2M9XA"
	svc := NewService(signer, attestationMap{
		code: {
			ID:       7,
			Numero:   "ATT-2025-000007",
			Status:   model.AttestationStatusSigned,
			SignerID: &signerID,
			SignedAt: &signedAt,
			Request: &model.Request{
				BeneficiaryName: "Awa Diop",
				ServiceName:     "Service civique",
				StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				EndDate:         time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			},
		},
		"DRAFT": {Status: model.AttestationStatusDraft},
	}, userMap{42: {ID: 42, FullName: "Mme la Directrice"}})

	ts := strconv.FormatInt(fixedNow.Unix(), 10)
	res, err := svc.Verify(context.Background(), code, signer.Sign(code, fixedNow.Unix()), ts)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !res.Valid || res.Attestation.Numero != "ATT-2025-000007" || res.Attestation.Signer != "Mme la Directrice" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Attestation.PeriodEnd != "2024-12-31" {
		t.Fatalf("unexpected period end %q", res.Attestation.PeriodEnd)
	}

	res, err = svc.Verify(context.Background(), "UNKNOWN", signer.Sign("UNKNOWN", fixedNow.Unix()), ts)
	if err != nil || res.Valid || res.Reason != common.ReasonNotFound {
		t.Fatalf("expected not_found, got %+v %v", res, err)
	}

	res, err = svc.Verify(context.Background(), "DRAFT", signer.Sign("DRAFT", fixedNow.Unix()), ts)
	if err != nil || res.Valid || res.Reason != common.ReasonNotFound {
		t.Fatalf("unsigned attestation must not verify, got %+v %v", res, err)
	}

	res, err = svc.Verify(context.Background(), code, "00", ts)
	if err != nil || res.Valid || res.Reason != common.ReasonInvalidRequest {
		t.Fatalf("expected invalid_request, got %+v %v", res, err)
	}
}

func TestLinkSigner_URLRoundTrip(t *testing.T) {
	signer := newTestSigner()
	link := signer.URL("K7Q2M9XA")
	want := "https://attest.example.org/verifier/K7Q2M9XA?sig=" + signer.Sign("K7Q2M9XA", fixedNow.Unix()) + "&ts=" + strconv.FormatInt(fixedNow.Unix(), 10)
	if link != want {
		t.Fatalf("unexpected link\n got %s\nwant %s", link, want)
	}
}
