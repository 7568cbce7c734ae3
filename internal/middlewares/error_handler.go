package middlewares

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/auth"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/signature"
	"github.com/khanghh/kattest/internal/twofactor"
)

const APIVersion = "1.0"

type ErrorResponse struct {
	APIVersion string    `json:"apiVersion"`
	Error      ErrorInfo `json:"error"`
}

type ErrorInfo struct {
	Code         int                 `json:"code"`
	Message      string              `json:"message"`
	Reason       string              `json:"reason,omitempty"`
	LockedUntil  *time.Time          `json:"lockedUntil,omitempty"`
	AttemptsLeft *int                `json:"attemptsLeft,omitempty"`
	Errors       []common.FieldError `json:"errors,omitempty"`
}

func businessStatus(reason string) int {
	if reason == common.ReasonNotFound {
		return fiber.StatusNotFound
	}
	return fiber.StatusBadRequest
}

// ResolveError maps a handler or service error to its HTTP status and body.
func ResolveError(err error, debug bool) ErrorInfo {
	var (
		validationErr *common.ValidationError
		bizErr        *common.BusinessError
		fiberErr      *fiber.Error
		pinLockedErr  *signature.PinLockedError
		pinFailErr    *signature.AttemptFailError
		otpFailErr    *twofactor.AttemptFailError
	)
	switch {
	case errors.As(err, &validationErr):
		return ErrorInfo{
			Code:    fiber.StatusBadRequest,
			Message: "Invalid request",
			Reason:  common.ReasonInvalidRequest,
			Errors:  validationErr.Fields,
		}
	case errors.As(err, &bizErr):
		info := ErrorInfo{
			Code:    businessStatus(bizErr.Reason),
			Message: bizErr.Message,
			Reason:  bizErr.Reason,
		}
		if errors.As(err, &pinLockedErr) {
			until := pinLockedErr.Until
			info.LockedUntil = &until
		}
		if errors.As(err, &pinFailErr) {
			left := pinFailErr.AttemptsLeft
			info.AttemptsLeft = &left
		} else if errors.As(err, &otpFailErr) {
			left := otpFailErr.AttemptsLeft
			info.AttemptsLeft = &left
		}
		return info
	case errors.Is(err, auth.ErrUnauthenticated):
		return ErrorInfo{Code: fiber.StatusUnauthorized, Message: "Authentication required"}
	case errors.Is(err, auth.ErrForbidden):
		return ErrorInfo{Code: fiber.StatusForbidden, Message: "Forbidden"}
	case errors.As(err, &fiberErr):
		return ErrorInfo{Code: fiberErr.Code, Message: fiberErr.Message}
	}

	info := ErrorInfo{Code: fiber.StatusInternalServerError, Message: "Internal server error"}
	if debug {
		info.Message = err.Error()
	}
	return info
}

// NewErrorHandler renders every error as a JSON envelope. Internal error details are
// only exposed in debug mode.
func NewErrorHandler(debug bool) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		info := ResolveError(err, debug)
		if info.Code >= fiber.StatusInternalServerError {
			slog.Error("unhandled error", "method", ctx.Method(), "path", ctx.Path(), "error", err)
		}
		return ctx.Status(info.Code).JSON(ErrorResponse{APIVersion: APIVersion, Error: info})
	}
}
