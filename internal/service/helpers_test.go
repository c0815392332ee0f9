package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shelfmark/backend/internal/config"
	"github.com/shelfmark/backend/internal/db/dbtest"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:     "test-secret",
		JWTIssuer:     "shelfmark-test",
		JWTAccessTTL:  "2h",
		JWTRefreshTTL: "720h",
		BcryptCost:    "4",
	}
}

type authFixture struct {
	svc      *AuthService
	store    *dbtest.MemStore
	tokens   *TokenManager
	recorder *eventRecorder
}

func newAuthFixture(t *testing.T, idp IdentityProvider) authFixture {
	t.Helper()

	tokens, err := NewTokenManager(testAuthConfig())
	require.NoError(t, err)
	hasher, err := NewBcryptHasher(testAuthConfig())
	require.NoError(t, err)

	store := dbtest.NewMemStore()
	rec := &eventRecorder{}
	return authFixture{
		svc:      NewAuthService(store, hasher, tokens, rec, idp),
		store:    store,
		tokens:   tokens,
		recorder: rec,
	}
}

func (f authFixture) register(t *testing.T, username, email, password string) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username:  username,
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)
}

// eventRecorder captures metric calls.
type eventRecorder struct {
	mu      sync.Mutex
	events  []string
	issued  map[string]int
	revoked map[string]int
	purged  int64
}

func (r *eventRecorder) RecordAuthEvent(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, operation+":"+outcome)
}

func (r *eventRecorder) RecordTokenIssued(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.issued == nil {
		r.issued = map[string]int{}
	}
	r.issued[kind]++
}

func (r *eventRecorder) RecordTokenRevoked(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked == nil {
		r.revoked = map[string]int{}
	}
	r.revoked[reason]++
}

func (r *eventRecorder) RecordRevocationsPurged(count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged += count
}

func (r *eventRecorder) RecordHTTPRequest(string, string, int) {}

func (r *eventRecorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
