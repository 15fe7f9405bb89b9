package middlewares

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ozanyurt/crm-comms-service/pkg/logger"
	"github.com/ozanyurt/crm-comms-service/pkg/response"
)

const SignatureHeader = "x-openphone-signature"

// WebhookSignature verifies the provider's HMAC-SHA256 signature over the
// raw request body. The expected header format is "sha256=<hex>". With no
// secret configured, verification is skipped so local development can post
// unsigned payloads.
func WebhookSignature(secret string) echo.MiddlewareFunc {
	if secret == "" {
		logger.Warnf("Webhook signature secret not configured, skipping verification")
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return response.BadRequestWithMessage(c, "failed to read request body")
			}
			// Hand the body back to the handler.
			c.Request().Body = io.NopCloser(bytes.NewReader(body))

			sig := strings.TrimSpace(c.Request().Header.Get(SignatureHeader))
			if !strings.HasPrefix(sig, "sha256=") {
				return response.UnauthorizedWithMessage(c, "Missing or malformed webhook signature")
			}

			provided, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
			if err != nil {
				return response.UnauthorizedWithMessage(c, "Missing or malformed webhook signature")
			}

			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write(body)
			if !hmac.Equal(provided, mac.Sum(nil)) {
				logger.Warnf("Webhook signature mismatch from %s", c.RealIP())
				return response.UnauthorizedWithMessage(c, "Invalid webhook signature")
			}

			return next(c)
		}
	}
}
