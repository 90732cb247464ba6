package fail

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Response struct {
	Message string `json:"message"`

	// Fallback is the URL to render directly when the cache couldn't help.
	Fallback string `json:"fallback,omitempty"`
}

func Fail(c echo.Context, status int, format string, args ...interface{}) error {
	return FailWithFallback(c, status, "", format, args...)
}

func FailWithFallback(c echo.Context, status int, fallback string, format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)

	zap.L().Warn(message)

	return c.JSON(status, &Response{
		Message:  message,
		Fallback: fallback,
	})
}
