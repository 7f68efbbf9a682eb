// Package googleauth verifies Google ID tokens via OIDC discovery.
package googleauth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"fitbook.org/internal/auth"
)

const googleIssuer = "https://accounts.google.com"

// Verifier checks Google-issued ID tokens against Google's JWKS and turns
// their claims into an external identity. It satisfies auth.ExternalVerifier.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

var _ auth.ExternalVerifier = (*Verifier)(nil)

// New discovers Google's OIDC configuration. clientID is the OAuth client
// expected in the token audience.
func New(ctx context.Context, clientID string) (*Verifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("googleauth: client id required")
	}
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("googleauth: provider discovery: %w", err)
	}
	return &Verifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify validates the raw ID token and extracts the subject, email and name.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (auth.ExternalIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return auth.ExternalIdentity{}, fmt.Errorf("googleauth: token verification failed: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return auth.ExternalIdentity{}, fmt.Errorf("googleauth: parse claims: %w", err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return auth.ExternalIdentity{}, fmt.Errorf("googleauth: verified email claim required")
	}

	return auth.ExternalIdentity{
		Email:      claims.Email,
		ExternalID: idToken.Subject,
		Name:       claims.Name,
	}, nil
}
