package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/audit"
	"github.com/spf13/cast"
)

type AuditHandler struct {
	auditLog AuditLog
}

func (h *AuditHandler) GetAudit(ctx *fiber.Ctx) error {
	entries, err := h.auditLog.List(ctx.Context(), audit.ListFilter{
		Action:  ctx.Query("action"),
		ActorID: cast.ToUint(ctx.Query("actorId")),
		Limit:   cast.ToInt(ctx.Query("limit")),
	})
	if err != nil {
		return err
	}
	return sendData(ctx, fiber.Map{"entries": entries, "total": len(entries)})
}

func NewAuditHandler(auditLog AuditLog) *AuditHandler {
	return &AuditHandler{auditLog: auditLog}
}
