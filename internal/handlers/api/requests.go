package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/params"
	"github.com/spf13/cast"
)

type validatable interface {
	validate(v *common.ValidationError)
}

// decodeBody decodes a JSON body into req, rejecting unknown fields and trailing data,
// then validates it.
func decodeBody(ctx *fiber.Ctx, req validatable) error {
	body := ctx.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalidBody("body must contain a single JSON object")
	}
	v := &common.ValidationError{}
	req.validate(v)
	return v.Err()
}

func invalidBody(message string) error {
	v := &common.ValidationError{}
	v.Add("body", "invalid", message)
	return v
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		v := &common.ValidationError{}
		v.Add(typeErr.Field, "invalid_type", fmt.Sprintf("must be %s", typeErr.Type.String()))
		return v
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		v := &common.ValidationError{}
		v.Add(strings.Trim(field, `"`), "unknown_field", "is not allowed")
		return v
	}
	return invalidBody("malformed JSON body")
}

func paramID(ctx *fiber.Ctx, name string) (uint, error) {
	id, err := cast.ToUintE(ctx.Params(name))
	if err != nil || id == 0 {
		v := &common.ValidationError{}
		v.Add(name, "invalid", "must be a positive integer")
		return 0, v
	}
	return id, nil
}

func required(v *common.ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required", "is required")
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *loginRequest) validate(v *common.ValidationError) {
	required(v, "email", r.Email)
	required(v, "password", r.Password)
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			v.Add("email", "invalid", "is not a valid email address")
		}
	}
}

type requestOTPRequest struct {
	Action string `json:"action"`
	Pin    string `json:"pin"`
}

func (r *requestOTPRequest) validate(v *common.ValidationError) {
	required(v, "action", r.Action)
	required(v, "pin", r.Pin)
}

type verifyOTPRequest struct {
	Action string `json:"action"`
	Code   string `json:"code"`
}

func (r *verifyOTPRequest) validate(v *common.ValidationError) {
	required(v, "action", r.Action)
	required(v, "code", r.Code)
}

type enableTOTPRequest struct {
	Secret      string   `json:"secret"`
	Code        string   `json:"code"`
	BackupCodes []string `json:"backupCodes"`
}

func (r *enableTOTPRequest) validate(v *common.ValidationError) {
	required(v, "secret", r.Secret)
	required(v, "code", r.Code)
}

type disableTOTPRequest struct {
	Code  string `json:"code"`
	Force bool   `json:"force"`
}

func (r *disableTOTPRequest) validate(v *common.ValidationError) {
	if !r.Force {
		required(v, "code", r.Code)
	}
	if r.Force && r.Code != "" {
		v.Add("code", "conflict", "must be omitted when force is set")
	}
}

type updateProfileRequest struct {
	SignatureText  string `json:"signatureText"`
	SignatureImage string `json:"signatureImage"`
}

func (r *updateProfileRequest) validate(v *common.ValidationError) {
	if len(r.SignatureText) > 512 {
		v.Add("signatureText", "too_long", "must be at most 512 characters")
	}
	if r.SignatureImage != "" && !strings.HasPrefix(r.SignatureImage, "data:image/png;base64,") {
		v.Add("signatureImage", "invalid", "must be a PNG data URL")
	}
}

// changePinRequest accepts the current PIN under both currentPin and ancienPin.
type changePinRequest struct {
	CurrentPin string `json:"currentPin"`
	AncienPin  string `json:"ancienPin"`
	NewPin     string `json:"newPin"`
}

func (r *changePinRequest) validate(v *common.ValidationError) {
	required(v, "newPin", r.NewPin)
	if r.CurrentPin != "" && r.AncienPin != "" && r.CurrentPin != r.AncienPin {
		v.Add("ancienPin", "conflict", "differs from currentPin")
	}
}

func (r *changePinRequest) current() string {
	if r.CurrentPin != "" {
		return r.CurrentPin
	}
	return r.AncienPin
}

type signRequest struct {
	Pin          string `json:"pin"`
	SessionToken string `json:"sessionToken"`
}

func (r *signRequest) validate(v *common.ValidationError) {
	required(v, "pin", r.Pin)
}

type signBatchRequest struct {
	AttestationIDs []uint `json:"attestationIds"`
	Pin            string `json:"pin"`
	SessionToken   string `json:"sessionToken"`
}

func (r *signBatchRequest) validate(v *common.ValidationError) {
	required(v, "pin", r.Pin)
	if len(r.AttestationIDs) == 0 {
		v.Add("attestationIds", "required", "must contain at least one id")
	}
	if len(r.AttestationIDs) > params.BatchSignMaxItems {
		v.Add("attestationIds", "too_many", fmt.Sprintf("must contain at most %d ids", params.BatchSignMaxItems))
	}
	for i, id := range r.AttestationIDs {
		if id == 0 {
			v.Add(fmt.Sprintf("attestationIds[%d]", i), "invalid", "must be a positive integer")
		}
	}
}

type returnRequest struct {
	Comment string `json:"comment"`
}

func (r *returnRequest) validate(v *common.ValidationError) {
	if len(r.Comment) > 1024 {
		v.Add("comment", "too_long", "must be at most 1024 characters")
	}
}

// sessionToken prefers the X-2FA-Token header over the body field.
func sessionToken(ctx *fiber.Ctx, body string) string {
	if token := ctx.Get("X-2FA-Token"); token != "" {
		return token
	}
	return body
}
