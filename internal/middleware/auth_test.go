package middleware_test

import (
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"erp/internal/middleware"
	"erp/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware_test_secret"

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func setupApp(tokens *services.TokenService) *fiber.App {
	app := fiber.New()
	app.Use(middleware.ProcessTime())
	app.Get("/private", middleware.AuthRequired(tokens), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"username": middleware.Username(c),
			"actor":    services.ActorFromContext(c.UserContext()),
		})
	})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})
	return app
}

func TestAuthRequired_AcceptsValidToken(t *testing.T) {
	tokens := services.NewTokenService(testSecret, time.Hour)
	app := setupApp(tokens)

	issued, err := tokens.Issue("alice")
	require.NoError(t, err)

	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		req := httptest.NewRequest("GET", "/private", nil)
		req.Header.Set("Authorization", scheme+" "+issued.Token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, scheme)

		body, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{"username":"alice","actor":"alice"}`, string(body))
	}
}

func TestAuthRequired_RejectsWithGenericBody(t *testing.T) {
	tokens := services.NewTokenService(testSecret, time.Hour)
	app := setupApp(tokens)

	past := time.Now().Add(-2 * time.Hour)
	expiredTokens := services.NewTokenService(testSecret, time.Hour)
	expiredTokens.SetClock(func() time.Time { return past })
	expired, err := expiredTokens.Issue("alice")
	require.NoError(t, err)

	forged, err := services.NewTokenService("someone_else", time.Hour).Issue("alice")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.StandardClaims{
		Subject:   "alice",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	valid, err := tokens.Issue("alice")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + valid.Token},
		{"no token", "Bearer "},
		{"malformed", "Bearer not-a-jwt"},
		{"expired", "Bearer " + expired.Token},
		{"forged", "Bearer " + forged.Token},
		{"alg none", "Bearer " + none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))

			body, _ := io.ReadAll(resp.Body)
			assert.JSONEq(t, `{"message":"Unauthorized"}`, string(body))
		})
	}
}

func TestResolveIdentity(t *testing.T) {
	tokens := services.NewTokenService(testSecret, time.Hour)
	issued, err := tokens.Issue("bob")
	require.NoError(t, err)

	app := fiber.New()
	var username string
	var resolveErr error
	app.Get("/", func(c *fiber.Ctx) error {
		username, resolveErr = middleware.ResolveIdentity(c, tokens)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	_, err = app.Test(req, -1)
	require.NoError(t, err)
	require.NoError(t, resolveErr)
	assert.Equal(t, "bob", username)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	_, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.True(t, errors.Is(resolveErr, services.ErrUnauthorized))
	assert.True(t, errors.Is(resolveErr, services.ErrInvalidToken), "reason stays inspectable")
}

func TestProcessTime(t *testing.T) {
	app := setupApp(services.NewTokenService(testSecret, time.Hour))

	resp, err := app.Test(httptest.NewRequest("GET", "/private", nil), -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderProcessTime))

	resp, err = app.Test(httptest.NewRequest("GET", "/fail", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderProcessTime), "set on error responses too")
}
