package middlewares

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/signature"
	"github.com/khanghh/kattest/internal/twofactor"
	"github.com/khanghh/kattest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveError(t *testing.T) {
	until := time.Date(2025, 6, 1, 9, 15, 0, 0, time.UTC)
	validation := &common.ValidationError{}
	validation.Add("pin", "required", "is required")

	tests := []struct {
		name   string
		err    error
		code   int
		reason string
	}{
		{name: "validation", err: validation, code: fiber.StatusBadRequest, reason: common.ReasonInvalidRequest},
		{name: "business", err: common.NewBusinessError(common.ReasonAlreadySigned, "already signed"), code: fiber.StatusBadRequest, reason: common.ReasonAlreadySigned},
		{name: "not found", err: fmt.Errorf("load: %w", common.NewBusinessError(common.ReasonNotFound, "missing")), code: fiber.StatusNotFound, reason: common.ReasonNotFound},
		{name: "pin locked", err: &signature.PinLockedError{Until: until}, code: fiber.StatusBadRequest, reason: common.ReasonLocked},
		{name: "unauthenticated", err: auth.ErrUnauthenticated, code: fiber.StatusUnauthorized},
		{name: "forbidden", err: auth.ErrForbidden, code: fiber.StatusForbidden},
		{name: "fiber", err: fiber.ErrMethodNotAllowed, code: fiber.StatusMethodNotAllowed},
		{name: "internal", err: errors.New("connection refused"), code: fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ResolveError(tt.err, false)
			assert.Equal(t, tt.code, info.Code)
			assert.Equal(t, tt.reason, info.Reason)
		})
	}

	info := ResolveError(&signature.PinLockedError{Until: until}, false)
	require.NotNil(t, info.LockedUntil)
	assert.True(t, until.Equal(*info.LockedUntil))

	info = ResolveError(&signature.AttemptFailError{AttemptsLeft: 3}, false)
	require.NotNil(t, info.AttemptsLeft)
	assert.Equal(t, 3, *info.AttemptsLeft)

	info = ResolveError(twofactor.NewAttemptFailError(2), false)
	require.NotNil(t, info.AttemptsLeft)
	assert.Equal(t, 2, *info.AttemptsLeft)

	info = ResolveError(validation, false)
	require.Len(t, info.Errors, 1)
	assert.Equal(t, "pin", info.Errors[0].Field)
}

func TestResolveError_HidesInternalDetails(t *testing.T) {
	err := errors.New("dial tcp 10.0.0.3:3306: connection refused")
	assert.Equal(t, "Internal server error", ResolveError(err, false).Message)
	assert.Equal(t, err.Error(), ResolveError(err, true).Message)
}

func TestRequireRole(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(false)})
	app.Use(func(ctx *fiber.Ctx) error {
		if role := ctx.Get("X-Test-Role"); role != "" {
			ctx.Locals(principalContextKey, auth.Principal{UserID: 1, Role: role})
		}
		return ctx.Next()
	})
	app.Get("/directeur", RequireRole(model.RoleDirecteur), func(ctx *fiber.Ctx) error {
		return ctx.SendString("ok")
	})

	tests := []struct {
		role string
		code int
	}{
		{role: model.RoleDirecteur, code: fiber.StatusOK},
		{role: model.RoleAgent, code: fiber.StatusForbidden},
		{role: "", code: fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(fiber.MethodGet, "/directeur", nil)
		if tt.role != "" {
			req.Header.Set("X-Test-Role", tt.role)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tt.code, resp.StatusCode, "role %q", tt.role)
		if tt.code != fiber.StatusOK {
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, APIVersion, body.APIVersion)
			assert.Equal(t, tt.code, body.Error.Code)
		}
		resp.Body.Close()
	}
}
