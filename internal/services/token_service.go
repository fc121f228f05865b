package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// DefaultTokenLifetime is used when a non-positive lifetime is configured.
const DefaultTokenLifetime = 30 * time.Minute

// IssuedToken is a signed bearer token and the instant it stops verifying.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenService issues and verifies HS256 identity tokens. It keeps no
// per-token state; expiry is the only way a token stops being valid.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	parser   *jwt.Parser
	now      func() time.Time
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TokenService{
		secret:   []byte(secret),
		lifetime: lifetime,
		// Expiry is checked against s.now below instead of jwt.TimeFunc.
		parser: &jwt.Parser{
			ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
			SkipClaimsValidation: true,
		},
		now: time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *TokenService) SetClock(now func() time.Time) {
	s.now = now
}

// Lifetime returns the configured token lifetime.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for username. The expiry is rounded up to the next
// whole second, so the token verifies at every instant before
// issue time + lifetime.
func (s *TokenService) Issue(username string) (IssuedToken, error) {
	if strings.TrimSpace(username) == "" {
		return IssuedToken{}, errors.New("cannot issue token without a subject")
	}
	jti, err := uuid.NewRandom()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("failed to generate token id: %w", err)
	}

	now := s.now()
	expiry := now.Add(s.lifetime)
	exp := expiry.Unix()
	if expiry.Nanosecond() > 0 {
		exp++
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   username,
		IssuedAt:  now.Unix(),
		ExpiresAt: exp,
		Id:        jti.String(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return IssuedToken{Token: signed, ExpiresAt: time.Unix(exp, 0).UTC()}, nil
}

// Verify checks the signature and expiry of tokenString and returns its
// subject. Every failure wraps ErrInvalidToken; an elapsed lifetime is
// reported as ErrTokenExpired.
func (s *TokenService) Verify(tokenString string) (string, error) {
	var claims jwt.StandardClaims
	_, err := s.parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.ExpiresAt == 0 {
		return "", fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}
	if s.now().Unix() >= claims.ExpiresAt {
		return "", ErrTokenExpired
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
