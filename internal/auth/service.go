package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fitbook.org/internal/ids"
)

const minPasswordLength = 6

// ExternalIdentity is the profile an external identity provider vouches for.
type ExternalIdentity struct {
	Email      string
	ExternalID string
	Name       string
}

// ExternalVerifier exchanges a raw provider token for a verified profile.
// Implementations live outside this package (see internal/googleauth).
type ExternalVerifier interface {
	Verify(ctx context.Context, rawToken string) (ExternalIdentity, error)
}

// Service is the authentication gate: it verifies presented credentials and
// resolves or creates the corresponding identity.
type Service struct {
	users    UserStore
	tokens   *TokenService
	verifier ExternalVerifier
}

// ServiceOption configures Service construction.
type ServiceOption func(*Service) error

// WithExternalVerifier enables external-identity login.
func WithExternalVerifier(v ExternalVerifier) ServiceOption {
	return func(s *Service) error {
		s.verifier = v
		return nil
	}
}

// NewService constructs the authentication gate.
func NewService(users UserStore, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	s := &Service{users: users, tokens: tokens}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RegisterInput carries the fields accepted at signup.
type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	PhoneNumber string
	GoogleID    string
}

// Register creates a new identity. Duplicate email or phone number surfaces
// as ErrConflict from the store.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           ids.New(),
		Name:         name,
		Email:        email,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		PasswordHash: hash,
		GoogleID:     strings.TrimSpace(in.GoogleID),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ValidateCredentials checks an email/password pair. A missing user and a
// wrong password are indistinguishable to the caller, which keeps account
// enumeration off the table.
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// ValidateExternalIdentity resolves a verified external profile to a local
// identity. An existing user lacking the external link gets it attached
// in place; an unknown email gets a fresh identity with an opaque password
// placeholder.
func (s *Service) ValidateExternalIdentity(ctx context.Context, ext ExternalIdentity) (*User, error) {
	email := strings.TrimSpace(strings.ToLower(ext.Email))
	externalID := strings.TrimSpace(ext.ExternalID)
	if email == "" || externalID == "" {
		return nil, fmt.Errorf("%w: email and external id are required", ErrInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.GoogleID == "" {
			if err := s.users.LinkGoogleID(ctx, user.ID, externalID); err != nil {
				return nil, err
			}
			user.GoogleID = externalID
		}
		return user, nil
	case errors.Is(err, ErrNotFound):
		placeholder, err := randomPasswordPlaceholder()
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(ext.Name)
		if name == "" {
			name = email
		}
		return s.Register(ctx, RegisterInput{
			Email:    email,
			Password: placeholder,
			Name:     name,
			GoogleID: externalID,
		})
	default:
		return nil, err
	}
}

// ExchangeExternalToken verifies a raw provider token and resolves the
// identity. Any provider failure surfaces as an authentication failure,
// never as a system error.
func (s *Service) ExchangeExternalToken(ctx context.Context, rawToken string) (*User, error) {
	if s.verifier == nil {
		return nil, ErrUnauthorized
	}
	ext, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return s.ValidateExternalIdentity(ctx, ext)
}

// Login issues a token pair for an already-validated identity and rotates
// the stored refresh hash.
func (s *Service) Login(ctx context.Context, user *User) (TokenPair, error) {
	return s.tokens.IssueTokenPair(ctx, user)
}
