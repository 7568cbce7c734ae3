package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"path"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/middlewares/sessions"
)

const HeaderName = "X-CSRF-Token"

var ErrInvalidToken = fiber.NewError(fiber.StatusForbidden, "invalid CSRF token")

// Token returns the CSRF token bound to the session, creating one when missing.
func Token(session *sessions.Session) string {
	if session.CSRFToken == "" {
		session.CSRFToken = randomToken()
		session.Save()
	}
	return session.CSRFToken
}

func Verify(ctx *fiber.Ctx) bool {
	expected := sessions.Get(ctx).CSRFToken
	given := ctx.Get(HeaderName)
	if expected == "" || given == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(given))
}

func randomToken() string {
	const tokenLength = 32
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate CSRF token: " + err.Error())
	}
	return hex.EncodeToString(b)
}

type Config struct {
	ExcludePaths []string
}

func isSafeMethod(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	}
	return false
}

// New rejects state-changing requests whose X-CSRF-Token header does not match the
// session token.
func New(config Config) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if isSafeMethod(ctx.Method()) {
			return ctx.Next()
		}
		for _, p := range config.ExcludePaths {
			if ok, _ := path.Match(p, ctx.Path()); ok {
				return ctx.Next()
			}
		}
		if !Verify(ctx) {
			return ErrInvalidToken
		}
		return ctx.Next()
	}
}
