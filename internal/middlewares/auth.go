package middlewares

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/middlewares/sessions"
	"github.com/khanghh/kattest/model"
)

const principalContextKey = "principal"

type UserLookup interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
}

// RequireAuth loads the session user and stores the resolved principal in the request
// locals. Disabled or deleted users lose their session.
func RequireAuth(users UserLookup) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		session := sessions.Get(ctx)
		if !session.IsLoggedIn() {
			return auth.ErrUnauthenticated
		}
		user, err := users.GetUserByID(ctx.Context(), session.UserID)
		if err != nil || user.Disabled {
			if err != nil {
				slog.Warn("Session user could not be loaded", "userID", session.UserID, "error", err)
			}
			if err := session.Destroy(); err != nil {
				slog.Error("Could not destroy session", "error", err)
			}
			return auth.ErrUnauthenticated
		}
		ctx.Locals(principalContextKey, auth.NewPrincipal(user, ctx.IP(), ctx.Get(fiber.HeaderUserAgent)))
		return ctx.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		principal, ok := GetPrincipal(ctx)
		if !ok {
			return auth.ErrUnauthenticated
		}
		if !principal.HasRole(roles...) {
			return auth.ErrForbidden
		}
		return ctx.Next()
	}
}

func GetPrincipal(ctx *fiber.Ctx) (auth.Principal, bool) {
	principal, ok := ctx.Locals(principalContextKey).(auth.Principal)
	return principal, ok
}
