package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/middlewares"
	"github.com/khanghh/kattest/internal/twofactor"
	"github.com/khanghh/kattest/model"
	"github.com/khanghh/kattest/params"
)

type TwoFactorHandler struct {
	twoFactorService TwoFactorService
	signatureService SignatureService
}

// PostRequestOTP checks the PIN then starts a second factor challenge for the action.
func (h *TwoFactorHandler) PostRequestOTP(ctx *fiber.Ctx) error {
	var req requestOTPRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	if !twofactor.IsSupportedAction(req.Action) {
		return twofactor.ErrUnsupportedAction
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	if err := h.signatureService.RequirePin(ctx.Context(), principal, req.Pin); err != nil {
		return err
	}
	info, err := h.twoFactorService.RequestChallenge(ctx.Context(), principal, req.Action)
	if err != nil {
		return err
	}
	return sendData(ctx, requestOTPResponse{
		Method:    info.Method,
		ExpiresIn: int(info.ExpiresIn.Seconds()),
	})
}

func (h *TwoFactorHandler) PostVerifyOTP(ctx *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	if !twofactor.IsSupportedAction(req.Action) {
		return twofactor.ErrUnsupportedAction
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	if err := h.twoFactorService.Verify(ctx.Context(), principal, req.Action, req.Code); err != nil {
		return err
	}
	token, expiresAt, err := h.twoFactorService.GenerateSessionToken(ctx.Context(), principal.UserID, req.Action)
	if err != nil {
		return err
	}
	return sendData(ctx, verifyOTPResponse{
		SessionToken:    token,
		ValidForMinutes: int(params.TwoFactorSessionTokenTTL.Minutes()),
		ExpiresAt:       expiresAt.Format(time.RFC3339),
	})
}

func (h *TwoFactorHandler) PostSetupTOTP(ctx *fiber.Ctx) error {
	principal, _ := middlewares.GetPrincipal(ctx)
	setup, err := h.twoFactorService.SetupTOTP(ctx.Context(), principal)
	if err != nil {
		return err
	}
	return sendData(ctx, setup)
}

func (h *TwoFactorHandler) PostEnableTOTP(ctx *fiber.Ctx) error {
	var req enableTOTPRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	if err := h.twoFactorService.EnableTOTP(ctx.Context(), principal, req.Secret, req.Code, req.BackupCodes); err != nil {
		return err
	}
	return sendData(ctx, methodResponse{Method: model.TwoFactorMethodTOTP})
}

func (h *TwoFactorHandler) PostDisableTOTP(ctx *fiber.Ctx) error {
	var req disableTOTPRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	if err := h.twoFactorService.DisableTOTP(ctx.Context(), principal, req.Code, req.Force); err != nil {
		return err
	}
	return sendData(ctx, methodResponse{Method: model.TwoFactorMethodEmail})
}

func NewTwoFactorHandler(twoFactorService TwoFactorService, signatureService SignatureService) *TwoFactorHandler {
	return &TwoFactorHandler{
		twoFactorService: twoFactorService,
		signatureService: signatureService,
	}
}
