package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/shelfmark/backend/internal/db/dbtest"
	"github.com/shelfmark/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func strPtr(s string) *string { return &s }

func TestRegisterDefaultsToGuestAndHashesPassword(t *testing.T) {
	f := newAuthFixture(t, nil)

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "s3cret!",
		FirstName: "Alice",
		LastName:  "Liddell",
		Country:   strPtr("GB"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.RoleGuest, user.Role)
	assert.Nil(t, user.PasswordHash)
	assert.Equal(t, "GB", *user.Country)
	assert.Equal(t, []string{"register:success"}, f.recorder.Events())

	out, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "$2a$")
	assert.NotContains(t, string(out), "password")

	stored, err := f.store.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordHash)
	assert.NotEqual(t, "s3cret!", *stored.PasswordHash)
	assert.True(t, f.svc.hasher.Verify("s3cret!", *stored.PasswordHash))
}

func TestRegisterRejectsOverlongFields(t *testing.T) {
	full := RegisterInput{
		Username: "dora", Email: "dora@example.com", Password: "pw",
		FirstName: "Dora", LastName: "D",
	}
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"username", func(in *RegisterInput) { in.Username = strings.Repeat("u", maxUsernameLength+1) }},
		{"email", func(in *RegisterInput) { in.Email = strings.Repeat("e", maxNameLength) + "@x.io" }},
		{"first_name", func(in *RegisterInput) { in.FirstName = strings.Repeat("f", maxNameLength+1) }},
		{"last_name", func(in *RegisterInput) { in.LastName = strings.Repeat("l", maxNameLength+1) }},
		{"country", func(in *RegisterInput) { in.Country = strPtr(strings.Repeat("c", maxNameLength+1)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, nil)
			in := full
			tt.mutate(&in)

			_, err := f.svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.name)
			assert.Equal(t, 0, f.store.UserCount())
		})
	}
}

func TestRegisterCountsCharactersNotBytes(t *testing.T) {
	f := newAuthFixture(t, nil)

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Username: strings.Repeat("中", maxUsernameLength), Email: "zh@example.com", Password: "pw",
		FirstName: strings.Repeat("é", maxNameLength), LastName: "L",
	})
	require.NoError(t, err)
	assert.Equal(t, maxUsernameLength, utf8.RuneCountInString(user.Username))
}

func TestRegisterRoleIsCaseInsensitive(t *testing.T) {
	f := newAuthFixture(t, nil)

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "root", Email: "root@example.com", Password: "pw",
		FirstName: "R", LastName: "T", Role: strPtr("SuperAdmin"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, user.Role)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "pw",
		FirstName: "B", LastName: "B", Role: strPtr("owner"),
	})
	assert.ErrorIs(t, err, ErrInvalidRole)
	assert.Equal(t, 0, f.store.UserCount())
}

func TestRegisterRequiresEveryField(t *testing.T) {
	full := RegisterInput{
		Username: "carol", Email: "carol@example.com", Password: "pw",
		FirstName: "Carol", LastName: "C",
	}
	cases := map[string]func(*RegisterInput){
		"username":   func(in *RegisterInput) { in.Username = "  " },
		"email":      func(in *RegisterInput) { in.Email = "" },
		"password":   func(in *RegisterInput) { in.Password = "" },
		"first_name": func(in *RegisterInput) { in.FirstName = "" },
		"last_name":  func(in *RegisterInput) { in.LastName = "" },
	}

	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			f := newAuthFixture(t, nil)
			in := full
			mutate(&in)
			_, err := f.svc.Register(context.Background(), in)
			require.ErrorIs(t, err, ErrMissingField)
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestRegisterConflictsCaseInsensitively(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.register(t, "dave", "dave@example.com", "pw")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "DAVE", Email: "other@example.com", Password: "pw", FirstName: "D", LastName: "D",
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Register(context.Background(), RegisterInput{
		Username: "dave2", Email: "Dave@Example.com", Password: "pw", FirstName: "D", LastName: "D",
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.store.UserCount())
}

func TestLoginByUsernameOrEmail(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.register(t, "erin", "erin@example.com", "pw-erin")

	for _, identifier := range []string{"erin", "ERIN", "erin@example.com"} {
		pair, err := f.svc.Login(context.Background(), identifier, "pw-erin")
		require.NoError(t, err, identifier)

		claims, err := f.svc.Authenticate(context.Background(), pair.Access.Token, model.TokenKindAccess)
		require.NoError(t, err)
		user, err := f.svc.ResolveUser(context.Background(), claims)
		require.NoError(t, err)
		assert.Equal(t, "erin", user.Username)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.register(t, "frank", "frank@example.com", "right")

	_, wrongPassword := f.svc.Login(context.Background(), "frank", "wrong")
	_, unknownUser := f.svc.Login(context.Background(), "nobody", "wrong")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.True(t, IsAuthError(wrongPassword))
}

func TestLoginRequiresCredentials(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.Login(context.Background(), "", "pw")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = f.svc.Login(context.Background(), "someone", "")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestRefreshRotatesAndIsSingleUse(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.register(t, "gina", "gina@example.com", "pw")

	pair, err := f.svc.Login(context.Background(), "gina", "pw")
	require.NoError(t, err)

	next, err := f.svc.Refresh(context.Background(), pair.Refresh.Token)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access.JTI, next.Access.JTI)
	assert.NotEqual(t, pair.Refresh.JTI, next.Refresh.JTI)

	_, err = f.svc.Refresh(context.Background(), pair.Refresh.Token)
	assert.ErrorIs(t, err, ErrRevoked)

	_, err = f.svc.Refresh(context.Background(), next.Refresh.Token)
	assert.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.register(t, "hank", "hank@example.com", "pw")

	pair, err := f.svc.Login(context.Background(), "hank", "pw")
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), pair.Access.Token)
	assert.ErrorIs(t, err, ErrWrongKind)
	assert.Equal(t, 0, f.store.RevokedCount())
}

func TestLogoutRevokesOnlyThatAccessToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.register(t, "ivy", "ivy@example.com", "pw")
	ctx := context.Background()

	first, err := f.svc.Login(ctx, "ivy", "pw")
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, "ivy", "pw")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, first.Access.Token))

	_, err = f.svc.Authenticate(ctx, first.Access.Token, model.TokenKindAccess)
	assert.ErrorIs(t, err, ErrRevoked)

	_, err = f.svc.Authenticate(ctx, second.Access.Token, model.TokenKindAccess)
	assert.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.Refresh.Token)
	assert.NoError(t, err)

	err = f.svc.Logout(ctx, first.Access.Token)
	assert.ErrorIs(t, err, ErrRevoked)
	assert.Equal(t, 1, f.recorder.revoked["logout"])
}

func TestLogoutRejectsRefreshToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.register(t, "jack", "jack@example.com", "pw")

	pair, err := f.svc.Login(context.Background(), "jack", "pw")
	require.NoError(t, err)

	err = f.svc.Logout(context.Background(), pair.Refresh.Token)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestResolveUserUnknownSubject(t *testing.T) {
	f := newAuthFixture(t, nil)

	token, err := f.tokens.IssueAccessToken(999)
	require.NoError(t, err)

	claims, err := f.svc.Authenticate(context.Background(), token.Token, model.TokenKindAccess)
	require.NoError(t, err)

	_, err = f.svc.ResolveUser(context.Background(), claims)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestStorageFailureIsNotAnAuthFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.register(t, "kate", "kate@example.com", "pw")
	pair, err := f.svc.Login(context.Background(), "kate", "pw")
	require.NoError(t, err)

	f.store.Err = errors.New("connection refused")

	_, err = f.svc.Login(context.Background(), "kate", "pw")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.False(t, IsAuthError(err))

	_, err = f.svc.Authenticate(context.Background(), pair.Access.Token, model.TokenKindAccess)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.False(t, IsAuthError(err))
}

func TestRequireRole(t *testing.T) {
	guest := &model.User{Role: model.RoleGuest}
	admin := &model.User{Role: model.RoleAdmin}
	super := &model.User{Role: model.RoleSuperAdmin}

	assert.NoError(t, RequireRole(admin, model.StaffRoles...))
	assert.NoError(t, RequireRole(super, model.StaffRoles...))
	assert.ErrorIs(t, RequireRole(guest, model.StaffRoles...), ErrForbidden)
	assert.ErrorIs(t, RequireRole(super, model.RoleGuest), ErrForbidden)
	assert.ErrorIs(t, RequireRole(nil, model.RoleGuest), ErrUnauthorized)
	assert.ErrorIs(t, RequireRole(admin), ErrForbidden)
}

func TestBcryptHasher(t *testing.T) {
	h, err := NewBcryptHasher(testAuthConfig())
	require.NoError(t, err)

	digest, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.True(t, h.Verify("hunter2", digest))
	assert.False(t, h.Verify("hunter3", digest))
	assert.False(t, h.Verify("hunter2", "not-a-digest"))
	assert.False(t, h.Verify("hunter2", ""))

	cfg := testAuthConfig()
	cfg.BcryptCost = "99"
	_, err = NewBcryptHasher(cfg)
	assert.ErrorIs(t, err, ErrMisconfigured)
}

type failingHasher struct {
	mu      sync.Mutex
	digests []string
}

func (h *failingHasher) Hash(string) (string, error) {
	return "", errors.New("hasher offline")
}

func (h *failingHasher) Verify(_, digest string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.digests = append(h.digests, digest)
	return false
}

func TestLoginEqualizerFallsBackWhenHashFails(t *testing.T) {
	tokens, err := NewTokenManager(testAuthConfig())
	require.NoError(t, err)
	hasher := &failingHasher{}
	svc := NewAuthService(dbtest.NewMemStore(), hasher, tokens, nil, nil)

	_, err = svc.Login(context.Background(), "ghost", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.Len(t, hasher.digests, 1)
	assert.Equal(t, fallbackEqualizerDigest, hasher.digests[0])

	bcryptHasher, err := NewBcryptHasher(testAuthConfig())
	require.NoError(t, err)
	assert.False(t, bcryptHasher.Verify("pw", fallbackEqualizerDigest))
	_, err = bcrypt.Cost([]byte(fallbackEqualizerDigest))
	assert.NoError(t, err)
}
