package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer = "fitbook"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims are the JWT claims carried by both access and refresh tokens. The
// two token kinds share the claim set and differ only in signing secret and
// lifetime.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenPair is a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenService issues, verifies and rotates signed token pairs. A sha256
// hash of the current refresh token is persisted per user; issuing a new
// pair replaces it, so at most one refresh token is valid at a time.
type TokenService struct {
	users UserStore
	now   func() time.Time

	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService) error

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = strings.TrimSpace(issuer)
		}
		return nil
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewTokenService constructs a TokenService. Access and refresh secrets must
// be non-empty and independent.
func NewTokenService(users UserStore, accessSecret, refreshSecret string, opts ...TokenOption) (*TokenService, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, errors.New("both token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	s := &TokenService{
		users:         users,
		now:           time.Now,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		issuer:        defaultIssuer,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// IssueTokenPair signs an access and a refresh token for the user and rotates
// the persisted refresh hash, invalidating any previously issued pair.
func (s *TokenService) IssueTokenPair(ctx context.Context, user *User) (TokenPair, error) {
	if user == nil || user.ID == "" {
		return TokenPair{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	now := s.now().UTC()
	access, accessExp, err := s.sign(user, s.accessSecret, s.accessTTL, now)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.sign(user, s.refreshSecret, s.refreshTTL, now)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.RotateRefreshToken(ctx, user.ID, refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenService) sign(user *User, secret []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccessToken validates an access token and returns its claims.
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	return s.parse(token, s.accessSecret)
}

// VerifyRefreshClaims validates a refresh token signature and expiry. It does
// not consult the persisted hash; pair it with VerifyRefreshToken.
func (s *TokenService) VerifyRefreshClaims(token string) (*Claims, error) {
	return s.parse(token, s.refreshSecret)
}

func (s *TokenService) parse(token string, secret []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RotateRefreshToken persists a one-way hash of the new refresh token,
// replacing any prior value. An empty token revokes instead.
func (s *TokenService) RotateRefreshToken(ctx context.Context, userID, token string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	hash := ""
	if token != "" {
		hash = hashToken(token)
	}
	return s.users.UpdateRefreshTokenHash(ctx, userID, hash)
}

// VerifyRefreshToken compares a presented refresh token against the persisted
// hash. It fails closed: no stored hash, store errors and mismatches all
// report false.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, userID, presented string) bool {
	if userID == "" || presented == "" {
		return false
	}
	user, err := s.users.Find(ctx, userID)
	if err != nil || user.RefreshTokenHash == "" {
		return false
	}
	expected := []byte(user.RefreshTokenHash)
	actual := []byte(hashToken(presented))
	return len(expected) == len(actual) && subtle.ConstantTimeCompare(expected, actual) == 1
}

// Refresh validates a presented refresh token and, on success, issues a new
// pair. The stored hash moves to the new token, so each refresh token is
// usable exactly once.
func (s *TokenService) Refresh(ctx context.Context, userID, presented string) (TokenPair, error) {
	if !s.VerifyRefreshToken(ctx, userID, presented) {
		return TokenPair{}, ErrInvalidToken
	}
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	return s.IssueTokenPair(ctx, user)
}

// Logout revokes any outstanding refresh token for the user. Calling it
// repeatedly is harmless.
func (s *TokenService) Logout(ctx context.Context, userID string) error {
	return s.RotateRefreshToken(ctx, userID, "")
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
