package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voucherworks/voucher-service/internal/model"
)

// mockTokenRepo is a mock implementation of TokenRepositoryInterface.
type mockTokenRepo struct {
	findActiveFn    func(ctx context.Context, token string) (*model.APIToken, error)
	touchLastUsedFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTokenRepo) FindActive(ctx context.Context, token string) (*model.APIToken, error) {
	if m.findActiveFn != nil {
		return m.findActiveFn(ctx, token)
	}
	return nil, nil
}

func (m *mockTokenRepo) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	if m.touchLastUsedFn != nil {
		return m.touchLastUsedFn(ctx, id)
	}
	return nil
}

func setupAuthApp(tokens *mockTokenRepo) *fiber.App {
	app := fiber.New()
	app.Use(NewTokenAuth(tokens))
	app.Get("/protected", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"token_name": c.Locals(TokenName)})
	})
	return app
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func activeToken() *model.APIToken {
	return &model.APIToken{
		ID:       uuid.New(),
		Token:    "tok_abc123",
		Name:     "ci-pipeline",
		IsActive: true,
	}
}

func TestTokenAuth_ValidToken(t *testing.T) {
	touched := false
	tokens := &mockTokenRepo{
		findActiveFn: func(ctx context.Context, token string) (*model.APIToken, error) {
			assert.Equal(t, "tok_abc123", token)
			return activeToken(), nil
		},
		touchLastUsedFn: func(ctx context.Context, id uuid.UUID) error {
			touched = true
			return nil
		},
	}
	app := setupAuthApp(tokens)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok_abc123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, touched, "last_used_at should be updated")

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ci-pipeline", result["token_name"], "token name should be stored in locals")
}

func TestTokenAuth_MissingHeader(t *testing.T) {
	app := setupAuthApp(&mockTokenRepo{})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Authentication token is required", result["error"], "Exact error message required")
}

func TestTokenAuth_NotBearer(t *testing.T) {
	app := setupAuthApp(&mockTokenRepo{})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Authentication token is required", result["error"])
}

func TestTokenAuth_UnknownToken(t *testing.T) {
	tokens := &mockTokenRepo{
		findActiveFn: func(ctx context.Context, token string) (*model.APIToken, error) {
			return nil, nil
		},
	}
	app := setupAuthApp(tokens)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok_unknown")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Invalid token", result["error"], "Exact error message required")
}

func TestTokenAuth_ExpiredToken(t *testing.T) {
	tokens := &mockTokenRepo{
		findActiveFn: func(ctx context.Context, token string) (*model.APIToken, error) {
			rec := activeToken()
			rec.ExpiresAt = timePtr(time.Now().Add(-time.Hour))
			return rec, nil
		},
	}
	app := setupAuthApp(tokens)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok_abc123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Token has expired", result["error"], "Exact error message required")
}

func TestTokenAuth_FutureExpiryAccepted(t *testing.T) {
	tokens := &mockTokenRepo{
		findActiveFn: func(ctx context.Context, token string) (*model.APIToken, error) {
			rec := activeToken()
			rec.ExpiresAt = timePtr(time.Now().Add(time.Hour))
			return rec, nil
		},
	}
	app := setupAuthApp(tokens)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok_abc123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestTokenAuth_LookupError(t *testing.T) {
	tokens := &mockTokenRepo{
		findActiveFn: func(ctx context.Context, token string) (*model.APIToken, error) {
			return nil, errors.New("connection refused")
		},
	}
	app := setupAuthApp(tokens)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok_abc123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestTokenAuth_TouchFailureDoesNotBlock(t *testing.T) {
	tokens := &mockTokenRepo{
		findActiveFn: func(ctx context.Context, token string) (*model.APIToken, error) {
			return activeToken(), nil
		},
		touchLastUsedFn: func(ctx context.Context, id uuid.UUID) error {
			return errors.New("update timeout")
		},
	}
	app := setupAuthApp(tokens)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok_abc123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "bookkeeping failures must not reject the request")
}
