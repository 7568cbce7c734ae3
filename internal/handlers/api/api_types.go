package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/middlewares"
)

// Google JSON API style envelope. Errors are rendered by middlewares.NewErrorHandler.
type APIResponse struct {
	APIVersion string `json:"apiVersion"`
	Data       any    `json:"data,omitempty"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{APIVersion: middlewares.APIVersion, Data: data}
}

func sendData(ctx *fiber.Ctx, data any) error {
	return ctx.Status(fiber.StatusOK).JSON(NewDataResponse(data))
}

type principalResponse struct {
	UserID   uint   `json:"userId"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

type loginResponse struct {
	User      principalResponse `json:"user"`
	CSRFToken string            `json:"csrfToken"`
}

type requestOTPResponse struct {
	Method    string `json:"method"`
	ExpiresIn int    `json:"expiresIn"`
}

type verifyOTPResponse struct {
	SessionToken    string `json:"sessionToken"`
	ValidForMinutes int    `json:"validForMinutes"`
	ExpiresAt       string `json:"expiresAt"`
}

type methodResponse struct {
	Method string `json:"method"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type attestationResponse struct {
	ID              uint    `json:"id"`
	Numero          string  `json:"numero"`
	Status          string  `json:"statut"`
	RequestID       uint    `json:"demandeId"`
	BeneficiaryName string  `json:"beneficiaire,omitempty"`
	ServiceName     string  `json:"service,omitempty"`
	GeneratedAt     string  `json:"dateGeneration"`
	SignedAt        *string `json:"dateSignature,omitempty"`
	SignerID        *uint   `json:"signataireId,omitempty"`
	HasVerification bool    `json:"verifiable"`
}

type signOneResponse struct {
	Attestation attestationResponse `json:"attestation"`
}

type linkResponse struct {
	URL string `json:"url"`
}
