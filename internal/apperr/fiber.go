package apperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

type errorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler renders classified errors as {"error": {code, message}}.
// Unclassified errors are logged and returned as a generic 500 so internal
// detail never reaches the client.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := render(err)
		if status >= http.StatusInternalServerError {
			requestID, _ := c.Locals("X-Request-ID").(string)
			logger.Error("request failed",
				slog.String("code", string(body.Code)),
				slog.String("path", c.Path()),
				slog.String("request_id", requestID),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(fiber.Map{"error": body})
	}
}

func render(err error) (int, errorBody) {
	if appErr, ok := FromError(err); ok {
		return appErr.Status(), errorBody{Code: appErr.Code, Message: appErr.Error()}
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, errorBody{Code: codeForStatus(fe.Code), Message: fe.Message}
	}
	return http.StatusInternalServerError, errorBody{Code: CodeInternal, Message: "internal error"}
}

func codeForStatus(status int) Code {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthenticated
	case status == http.StatusForbidden:
		return CodeForbidden
	case status >= 400 && status < 500:
		return CodeInputValidation
	default:
		return CodeInternal
	}
}
