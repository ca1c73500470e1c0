// Package middleware holds fiber middleware shared by the API routes.
package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voucherworks/voucher-service/internal/model"
)

// TokenRepositoryInterface defines the token lookups needed by the auth
// middleware.
type TokenRepositoryInterface interface {
	FindActive(ctx context.Context, token string) (*model.APIToken, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

// TokenName is the fiber locals key carrying the authenticated token's name.
const TokenName = "api_token_name"

// NewTokenAuth returns a middleware that requires a bearer token matching an
// active, non-expired api_tokens row.
func NewTokenAuth(tokens TokenRepositoryInterface) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication token is required"})
		}

		rec, err := tokens.FindActive(c.Context(), token)
		if err != nil {
			log.Error().Err(err).Msg("token lookup failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}
		if rec == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
		if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token has expired"})
		}

		// Best-effort bookkeeping; an update failure must not block the request.
		if err := tokens.TouchLastUsed(c.Context(), rec.ID); err != nil {
			log.Warn().Err(err).Str("token_name", rec.Name).Msg("failed to update token last_used_at")
		}

		c.Locals(TokenName, rec.Name)
		return c.Next()
	}
}
