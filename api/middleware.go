package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeaderAPIKey carries the project API key when key checking is enabled.
const HeaderAPIKey = "X-Api-Key"

// APIKeyMiddleware rejects requests whose X-Api-Key does not match one of
// keys. An empty key list disables the check.
func APIKeyMiddleware(keys []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if len(keys) == 0 {
			return next
		}
		return func(c echo.Context) error {
			got := c.Request().Header.Get(HeaderAPIKey)
			if got == "" {
				got = c.QueryParam("apiKey")
			}
			for _, k := range keys {
				if subtle.ConstantTimeCompare([]byte(got), []byte(k)) == 1 {
					return next(c)
				}
			}
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Code: CodeUnauthorized, Message: "invalid api key"})
		}
	}
}
