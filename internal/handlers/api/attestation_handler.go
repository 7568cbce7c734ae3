package api

import (
	"bytes"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/attestations"
	"github.com/khanghh/kattest/internal/middlewares"
	"github.com/khanghh/kattest/model"
	"github.com/spf13/cast"
)

type AttestationHandler struct {
	attestationService AttestationService
}

func newAttestationResponse(att *model.Attestation) attestationResponse {
	resp := attestationResponse{
		ID:              att.ID,
		Numero:          att.Numero,
		Status:          att.Status,
		RequestID:       att.RequestID,
		GeneratedAt:     att.GeneratedAt.Format(time.RFC3339),
		SignerID:        att.SignerID,
		HasVerification: att.VerificationCode != nil,
	}
	if att.Request != nil {
		resp.BeneficiaryName = att.Request.BeneficiaryName
		resp.ServiceName = att.Request.ServiceName
	}
	if att.SignedAt != nil {
		signedAt := att.SignedAt.Format(time.RFC3339)
		resp.SignedAt = &signedAt
	}
	return resp
}

func (h *AttestationHandler) GetList(ctx *fiber.Ctx) error {
	filter := attestations.ListFilter{
		Status: ctx.Query("status", ctx.Query("statut")),
		Limit:  cast.ToInt(ctx.Query("limit")),
		Offset: cast.ToInt(ctx.Query("offset")),
	}
	list, err := h.attestationService.List(ctx.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]attestationResponse, 0, len(list))
	for i := range list {
		items = append(items, newAttestationResponse(&list[i]))
	}
	return sendData(ctx, fiber.Map{"attestations": items, "total": len(items)})
}

func (h *AttestationHandler) PostSign(ctx *fiber.Ctx) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var req signRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	att, err := h.attestationService.SignAttestation(ctx.Context(), attestations.SignInput{
		AttestationID: id,
		Director:      principal,
		Pin:           req.Pin,
		SessionToken:  sessionToken(ctx, req.SessionToken),
	})
	if err != nil {
		return err
	}
	return sendData(ctx, signOneResponse{Attestation: newAttestationResponse(att)})
}

func (h *AttestationHandler) PostSignBatch(ctx *fiber.Ctx) error {
	var req signBatchRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	result, err := h.attestationService.SignBatch(ctx.Context(), attestations.BatchInput{
		AttestationIDs: req.AttestationIDs,
		Director:       principal,
		Pin:            req.Pin,
		SessionToken:   sessionToken(ctx, req.SessionToken),
	})
	if err != nil {
		return err
	}
	return sendData(ctx, result)
}

func (h *AttestationHandler) PostReturn(ctx *fiber.Ctx) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var req returnRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	if err := h.attestationService.ReturnToAgent(ctx.Context(), principal, id, req.Comment); err != nil {
		return err
	}
	return sendData(ctx, successResponse{Success: true})
}

func (h *AttestationHandler) GetVerificationLink(ctx *fiber.Ctx) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	link, err := h.attestationService.VerificationLink(ctx.Context(), id)
	if err != nil {
		return err
	}
	return sendData(ctx, linkResponse{URL: link})
}

func (h *AttestationHandler) PostGenerate(ctx *fiber.Ctx) error {
	requestID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	att, err := h.attestationService.Generate(ctx.Context(), principal, requestID)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(fiber.Map{"attestation": newAttestationResponse(att)}))
}

func (h *AttestationHandler) PostSubmit(ctx *fiber.Ctx) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	principal, _ := middlewares.GetPrincipal(ctx)
	att, err := h.attestationService.Submit(ctx.Context(), principal, id)
	if err != nil {
		return err
	}
	return sendData(ctx, fiber.Map{"attestation": newAttestationResponse(att)})
}

func (h *AttestationHandler) GetPDF(ctx *fiber.Ctx) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	att, err := h.attestationService.RenderPDF(ctx.Context(), id, &buf)
	if err != nil {
		return err
	}
	ctx.Set(fiber.HeaderContentType, "application/pdf")
	ctx.Set(fiber.HeaderContentDisposition, `inline; filename="`+att.Numero+`.pdf"`)
	return ctx.Send(buf.Bytes())
}

func NewAttestationHandler(attestationService AttestationService) *AttestationHandler {
	return &AttestationHandler{attestationService: attestationService}
}
