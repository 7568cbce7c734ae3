package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/middlewares"
	"github.com/khanghh/kattest/internal/middlewares/csrf"
	"github.com/khanghh/kattest/internal/middlewares/sessions"
	"github.com/khanghh/kattest/model"
)

type Handlers struct {
	Auth        *AuthHandler
	TwoFactor   *TwoFactorHandler
	Signature   *SignatureHandler
	Attestation *AttestationHandler
	Verify      *VerifyHandler
	Audit       *AuditHandler
}

func SetupRoutes(router fiber.Router, h Handlers, sessionConfig sessions.Config, users middlewares.UserLookup) {
	router.Get("/verifier/:code", h.Verify.GetVerify)

	router.Use(sessions.New(sessionConfig))
	router.Use(csrf.New(csrf.Config{ExcludePaths: []string{"/auth/login"}}))
	router.Post("/auth/login", h.Auth.PostLogin)

	authed := router.Group("", middlewares.RequireAuth(users))
	authed.Post("/auth/logout", h.Auth.PostLogout)
	authed.Get("/auth/me", h.Auth.GetMe)
	authed.Get("/attestations/:id/pdf", h.Attestation.GetPDF)

	director := authed.Group("/directeur", middlewares.RequireRole(model.RoleDirecteur))
	director.Post("/2fa/request-otp", h.TwoFactor.PostRequestOTP)
	director.Post("/2fa/verify-otp", h.TwoFactor.PostVerifyOTP)
	director.Post("/2fa/setup-totp", h.TwoFactor.PostSetupTOTP)
	director.Post("/2fa/enable-totp", h.TwoFactor.PostEnableTOTP)
	director.Post("/2fa/disable-totp", h.TwoFactor.PostDisableTOTP)
	director.Get("/signature", h.Signature.GetProfile)
	director.Put("/signature", h.Signature.PutProfile)
	director.Put("/signature/pin", h.Signature.ChangePin)
	director.Post("/signature/pin", h.Signature.ChangePin)
	director.Put("/signature/change-pin", h.Signature.ChangePin)
	director.Post("/signature/change-pin", h.Signature.ChangePin)
	director.Get("/attestations", h.Attestation.GetList)
	director.Post("/attestations/signer-lot", h.Attestation.PostSignBatch)
	director.Post("/attestations/:id/signer", h.Attestation.PostSign)
	director.Post("/attestations/:id/retour", h.Attestation.PostReturn)
	director.Get("/attestations/:id/verification-link", h.Attestation.GetVerificationLink)

	agent := authed.Group("/agent", middlewares.RequireRole(model.RoleAgent, model.RoleChef, model.RoleAdmin))
	agent.Post("/demandes/:id/attestation", h.Attestation.PostGenerate)
	agent.Post("/attestations/:id/soumettre", h.Attestation.PostSubmit)

	admin := authed.Group("/admin", middlewares.RequireRole(model.RoleAdmin))
	admin.Get("/audit", h.Audit.GetAudit)
}
