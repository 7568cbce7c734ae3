package verification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/khanghh/kattest/params"
)

// LinkSigner issues and checks public verification links. The signature is a hex
// HMAC-SHA256 over code + "." + ts, ts being unix seconds.
type LinkSigner struct {
	key     []byte
	baseURL string
	maxAge  time.Duration
	now     func() time.Time
}

func (s *LinkSigner) Sign(code string, ts int64) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(code + "." + strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *LinkSigner) URL(code string) string {
	ts := s.now().Unix()
	query := url.Values{}
	query.Set("ts", strconv.FormatInt(ts, 10))
	query.Set("sig", s.Sign(code, ts))
	return fmt.Sprintf("%s/verifier/%s?%s", s.baseURL, url.PathEscape(code), query.Encode())
}

func (s *LinkSigner) Check(code, sig, ts string, now time.Time) error {
	if code == "" || sig == "" || ts == "" {
		return ErrMalformedLink
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || unix <= 0 || strconv.FormatInt(unix, 10) != ts {
		return ErrMalformedLink
	}
	if len(sig) != hex.EncodedLen(sha256.Size) {
		return ErrMalformedLink
	}

	issuedAt := time.Unix(unix, 0)
	if now.Sub(issuedAt) > s.maxAge || issuedAt.Sub(now) > params.VerifyLinkFutureSkew {
		return ErrExpiredSignature
	}

	// sig is compared as issued, lowercase hex
	if !hmac.Equal([]byte(sig), []byte(s.Sign(code, unix))) {
		return ErrBadSignature
	}
	return nil
}

func (s *LinkSigner) SetClock(now func() time.Time) {
	s.now = now
}

func NewLinkSigner(verifyKey string, baseURL string, maxAge time.Duration) *LinkSigner {
	if maxAge <= 0 {
		maxAge = params.VerifyLinkMaxAge
	}
	return &LinkSigner{
		key:     []byte(verifyKey),
		baseURL: baseURL,
		maxAge:  maxAge,
		now:     time.Now,
	}
}
