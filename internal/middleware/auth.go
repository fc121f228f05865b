package middleware

import (
	"errors"
	"log"
	"strings"

	"erp/internal/services"

	"github.com/gofiber/fiber/v2"
)

// LocalsUsername is the fiber.Ctx Locals key holding the authenticated username.
const LocalsUsername = "username"

// ResolveIdentity returns the username carried by the request's bearer
// token. Every failure is reported as services.ErrUnauthorized; the
// underlying reason is wrapped for logging.
func ResolveIdentity(c *fiber.Ctx, tokens *services.TokenService) (string, error) {
	authHeader := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authHeader == "" {
		return "", errors.Join(services.ErrUnauthorized, errors.New("missing authorization header"))
	}

	// Expected format: "Bearer <token>"
	scheme, token, ok := strings.Cut(authHeader, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errors.Join(services.ErrUnauthorized, errors.New("authorization header is not a bearer token"))
	}

	username, err := tokens.Verify(token)
	if err != nil {
		return "", errors.Join(services.ErrUnauthorized, err)
	}
	return username, nil
}

// AuthRequired is a Fiber middleware that admits only requests with a valid
// bearer token. Rejections share one body regardless of the cause.
func AuthRequired(tokens *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, err := ResolveIdentity(c, tokens)
		if err != nil {
			log.Printf("Rejected %s %s: %v", c.Method(), c.Path(), err)
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}

		c.Locals(LocalsUsername, username)
		c.SetUserContext(services.WithActor(c.UserContext(), username))

		return c.Next()
	}
}

// Username returns the username stored by AuthRequired.
func Username(c *fiber.Ctx) string {
	username, _ := c.Locals(LocalsUsername).(string)
	return username
}
