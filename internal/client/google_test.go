package client

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shelfmark/backend/internal/config"
	"github.com/shelfmark/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "shelfmark-client"
	testKeyID    = "test-key"
)

// fakeIssuer serves just enough of an OIDC provider for discovery, JWKS and
// the token endpoint.
type fakeIssuer struct {
	server *httptest.Server
	key    *rsa.PrivateKey
	claims jwt.MapClaims
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", f.discovery)
	mux.HandleFunc("/keys", f.keys)
	mux.HandleFunc("/token", f.token)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	f.claims = jwt.MapClaims{
		"sub":            "google-sub-1",
		"email":          "reader@example.com",
		"email_verified": true,
		"given_name":     "Rea",
		"family_name":    "Der",
	}
	return f
}

func (f *fakeIssuer) config() config.OAuthConfig {
	return config.OAuthConfig{
		GoogleClientID:     testClientID,
		GoogleClientSecret: "secret",
		GoogleRedirectURL:  "http://localhost:8080/auth/google/callback",
		GoogleIssuerURL:    f.server.URL,
	}
}

func (f *fakeIssuer) discovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                f.server.URL,
		"authorization_endpoint":                f.server.URL + "/auth",
		"token_endpoint":                        f.server.URL + "/token",
		"jwks_uri":                              f.server.URL + "/keys",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (f *fakeIssuer) keys(w http.ResponseWriter, r *http.Request) {
	pub := f.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (f *fakeIssuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": f.server.URL,
		"aud": testClientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range f.claims {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	idToken, err := token.SignedString(f.key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "provider-access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     idToken,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestGoogleIdentityProviderExchange(t *testing.T) {
	issuer := newFakeIssuer(t)
	ctx := context.Background()

	p, err := NewGoogleIdentityProvider(ctx, issuer.config())
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	identity, err := p.Exchange(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, &service.FederatedIdentity{
		Provider:      "google",
		Subject:       "google-sub-1",
		Email:         "reader@example.com",
		EmailVerified: true,
		GivenName:     "Rea",
		FamilyName:    "Der",
	}, identity)
}

func TestGoogleIdentityProviderAuthCodeURL(t *testing.T) {
	issuer := newFakeIssuer(t)

	p, err := NewGoogleIdentityProvider(context.Background(), issuer.config())
	require.NoError(t, err)

	u, err := url.Parse(p.AuthCodeURL("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "/auth", u.Path)
	assert.Equal(t, "xyz", u.Query().Get("state"))
	assert.Equal(t, testClientID, u.Query().Get("client_id"))
	assert.Contains(t, u.Query().Get("scope"), "openid")
	assert.Contains(t, u.Query().Get("scope"), "email")
}

func TestGoogleIdentityProviderRejectsBadCode(t *testing.T) {
	issuer := newFakeIssuer(t)

	p, err := NewGoogleIdentityProvider(context.Background(), issuer.config())
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrProviderDataIncomplete)
}

func TestGoogleIdentityProviderMissingEmail(t *testing.T) {
	issuer := newFakeIssuer(t)
	delete(issuer.claims, "email")

	p, err := NewGoogleIdentityProvider(context.Background(), issuer.config())
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, service.ErrProviderDataIncomplete)
}

func TestGoogleIdentityProviderUnverifiedEmailPassesThrough(t *testing.T) {
	issuer := newFakeIssuer(t)
	issuer.claims["email_verified"] = false

	p, err := NewGoogleIdentityProvider(context.Background(), issuer.config())
	require.NoError(t, err)

	identity, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.False(t, identity.EmailVerified)
}

func TestNewGoogleIdentityProviderRequiresCredentials(t *testing.T) {
	_, err := NewGoogleIdentityProvider(context.Background(), config.OAuthConfig{GoogleClientID: "id"})
	assert.ErrorIs(t, err, service.ErrMisconfigured)
}
