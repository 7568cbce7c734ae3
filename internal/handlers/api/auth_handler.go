package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/middlewares"
	"github.com/khanghh/kattest/internal/middlewares/csrf"
	"github.com/khanghh/kattest/internal/middlewares/sessions"
	"github.com/khanghh/kattest/internal/users"
)

var errInvalidCredentials = fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")

type AuthHandler struct {
	userService UserService
	auditLogger *audit.Logger
}

func (h *AuthHandler) PostLogin(ctx *fiber.Ctx) error {
	var req loginRequest
	if err := decodeBody(ctx, &req); err != nil {
		return err
	}

	user, err := h.userService.Authenticate(ctx.Context(), req.Email, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) || errors.Is(err, users.ErrUserDisabled) {
		h.auditLogger.Record(ctx.Context(), audit.Entry{
			Action:    audit.ActionLoginFailed,
			Details:   "email=" + req.Email,
			IP:        ctx.IP(),
			UserAgent: ctx.Get(fiber.HeaderUserAgent),
		})
		return errInvalidCredentials
	}
	if err != nil {
		return err
	}

	if err := sessions.Reset(ctx, sessions.SessionData{
		UserID:    user.ID,
		IP:        ctx.IP(),
		LoginTime: time.Now(),
	}); err != nil {
		return err
	}
	token := csrf.Token(sessions.Get(ctx))

	h.auditLogger.Record(ctx.Context(), audit.Entry{
		Action:    audit.ActionLoginSuccess,
		ActorID:   user.ID,
		SubjectID: audit.Subject(user.ID),
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	})
	return sendData(ctx, loginResponse{
		User: principalResponse{
			UserID:   user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		},
		CSRFToken: token,
	})
}

func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	if err := sessions.Destroy(ctx); err != nil {
		return err
	}
	return sendData(ctx, successResponse{Success: true})
}

func (h *AuthHandler) GetMe(ctx *fiber.Ctx) error {
	principal, _ := middlewares.GetPrincipal(ctx)
	return sendData(ctx, fiber.Map{
		"user": principalResponse{
			UserID:   principal.UserID,
			Email:    principal.Email,
			FullName: principal.FullName,
			Role:     principal.Role,
		},
		"csrfToken": csrf.Token(sessions.Get(ctx)),
	})
}

func NewAuthHandler(userService UserService, auditLogger *audit.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		auditLogger: auditLogger,
	}
}
