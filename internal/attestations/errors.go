package attestations

import (
	"errors"

	"github.com/khanghh/kattest/internal/common"
)

var (
	ErrAttestationNotFound = common.NewBusinessError(common.ReasonNotFound, "attestation not found")
	ErrRequestNotFound     = common.NewBusinessError(common.ReasonNotFound, "request not found")
	ErrAlreadySigned       = common.NewBusinessError(common.ReasonAlreadySigned, "attestation already signed")
	ErrInvalidStatus       = common.NewBusinessError(common.ReasonInvalidStatus, "attestation is not in the expected status")
	ErrRequestNotValidated = common.NewBusinessError(common.ReasonInvalidStatus, "request is not validated")
	ErrNotSigned           = common.NewBusinessError(common.ReasonInvalidStatus, "attestation is not signed")
	ErrEmptyBatch          = common.NewBusinessError(common.ReasonInvalidRequest, "no attestation selected")
	ErrBatchTooLarge       = common.NewBusinessError(common.ReasonInvalidRequest, "too many attestations in one batch")
	ErrCodeSpaceExhausted  = errors.New("could not allocate a unique identifier")
)
