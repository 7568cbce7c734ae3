package api

import (
	"github.com/gofiber/fiber/v2"
)

type VerifyHandler struct {
	verificationService VerificationService
}

// GetVerify is public. Rejections are reported with valid=false and a reason.
func (h *VerifyHandler) GetVerify(ctx *fiber.Ctx) error {
	result, err := h.verificationService.Verify(ctx.Context(), ctx.Params("code"), ctx.Query("sig"), ctx.Query("ts"))
	if err != nil {
		return err
	}
	return sendData(ctx, result)
}

func NewVerifyHandler(verificationService VerificationService) *VerifyHandler {
	return &VerifyHandler{verificationService: verificationService}
}
