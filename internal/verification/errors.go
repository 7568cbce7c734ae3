package verification

import "github.com/khanghh/kattest/internal/common"

var (
	ErrMalformedLink    = common.NewBusinessError(common.ReasonInvalidRequest, "malformed verification link")
	ErrExpiredSignature = common.NewBusinessError(common.ReasonExpiredSignature, "verification link expired")
	ErrBadSignature     = common.NewBusinessError(common.ReasonBadSignature, "verification link signature mismatch")
	ErrNotFound         = common.NewBusinessError(common.ReasonNotFound, "attestation not found")
)
