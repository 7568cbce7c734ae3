package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/middlewares"
)

type SignatureHandler struct {
	signatureService SignatureService
}

func (h *SignatureHandler) GetProfile(ctx *fiber.Ctx) error {
	principal, _ := middlewares.GetPrincipal(ctx)
	profile, err := h.signatureService.GetProfile(ctx.Context(), principal.UserID)
	if err != nil {
		return err
	}
	return sendData(ctx, profile)
}

func (h *SignatureHandler) PutProfile(ctx *fiber.Ctx) error {
	var req updateProfileRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	profile, err := h.signatureService.UpdateProfile(ctx.Context(), principal, req.SignatureText, req.SignatureImage)
	if err != nil {
		return err
	}
	return sendData(ctx, profile)
}

func (h *SignatureHandler) ChangePin(ctx *fiber.Ctx) error {
	var req changePinRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	if err := h.signatureService.ChangePin(ctx.Context(), principal, req.current(), req.NewPin); err != nil {
		return err
	}
	return sendData(ctx, successResponse{Success: true})
}

func NewSignatureHandler(signatureService SignatureService) *SignatureHandler {
	return &SignatureHandler{signatureService: signatureService}
}
