// Google sign-in through OpenID Connect.
//
// Environment variables:
//   - GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET: OAuth client credentials
//   - GOOGLE_REDIRECT_URL: callback registered with Google (/auth/google/callback)
//   - GOOGLE_ISSUER_URL: discovery issuer, overridable for tests

package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/shelfmark/backend/internal/config"
	"github.com/shelfmark/backend/internal/service"
	"golang.org/x/oauth2"
)

const googleProviderName = "google"

type GoogleIdentityProvider struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// googleClaims are the ID token claims used to build a local account.
type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// NewGoogleIdentityProvider runs OIDC discovery against the issuer, so it
// needs network access at startup.
func NewGoogleIdentityProvider(ctx context.Context, cfg config.OAuthConfig) (*GoogleIdentityProvider, error) {
	if strings.TrimSpace(cfg.GoogleClientID) == "" || strings.TrimSpace(cfg.GoogleClientSecret) == "" {
		return nil, fmt.Errorf("%w: GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required", service.ErrMisconfigured)
	}
	if strings.TrimSpace(cfg.GoogleRedirectURL) == "" {
		return nil, fmt.Errorf("%w: GOOGLE_REDIRECT_URL is required", service.ErrMisconfigured)
	}

	provider, err := oidc.NewProvider(ctx, cfg.GoogleIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}

	return &GoogleIdentityProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.GoogleClientID}),
	}, nil
}

func (p *GoogleIdentityProvider) Name() string {
	return googleProviderName
}

func (p *GoogleIdentityProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades the authorization code for tokens and reads the verified
// ID token claims.
func (p *GoogleIdentityProvider) Exchange(ctx context.Context, code string) (*service.FederatedIdentity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("id_token verification failed: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id_token claims: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: id_token has no email", service.ErrProviderDataIncomplete)
	}

	return &service.FederatedIdentity{
		Provider:      googleProviderName,
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
	}, nil
}

var _ service.IdentityProvider = (*GoogleIdentityProvider)(nil)
