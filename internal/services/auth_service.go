package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"erp/internal/models"
	"erp/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// AuthService handles registration, credential checks and token issuance.
type AuthService struct {
	userRepo   repositories.UserRepository
	tokens     *TokenService
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// RegisterInput carries the fields accepted when creating an account.
type RegisterInput struct {
	Username string
	Email    string // optional
	Password string
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, tokens *TokenService, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:   userRepo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// Tokens returns the token service used to sign logins.
func (s *AuthService) Tokens() *TokenService {
	return s.tokens
}

// Register hashes the password and stores a new user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" {
		return nil, validationError("username is required")
	}
	if in.Password == "" {
		return nil, validationError("password is required")
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, validationError("password must be at most %d bytes", maxPasswordBytes)
	}

	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if email != "" {
		if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
			return nil, ErrDuplicateEmail
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashed),
		CreatedAt:    s.now().UTC(),
	}
	if email != "" {
		user.Email = &email
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// Lost a race against a concurrent registration.
			if _, lookupErr := s.userRepo.GetByUsername(ctx, username); lookupErr == nil {
				return nil, ErrDuplicateUsername
			}
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	log.Printf("Registered user %s (ID: %d)", user.Username, user.ID)
	return user, nil
}

// Authenticate checks a username (or email, when identifier contains "@")
// and password. Unknown users and wrong passwords both yield
// ErrInvalidCredentials after a bcrypt comparison.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)

	user, err := s.userRepo.GetByUsername(ctx, identifier)
	if errors.Is(err, repositories.ErrNotFound) && strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetByEmail(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the caller and issues a token for them.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*models.User, IssuedToken, error) {
	user, err := s.Authenticate(ctx, identifier, password)
	if err != nil {
		return nil, IssuedToken{}, err
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, IssuedToken{}, fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

// CurrentUser loads the account a verified token refers to.
func (s *AuthService) CurrentUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
		if err != nil {
			log.Printf("Failed to prepare dummy password hash: %v", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
