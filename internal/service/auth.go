package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/shelfmark/backend/internal/db"
	"github.com/shelfmark/backend/internal/metrics"
	"github.com/shelfmark/backend/internal/model"
)

const (
	maxUsernameLength    = 80
	maxNameLength        = 150
	maxUsernameAttempts  = 20
	timingEqualizerInput = "shelfmark-timing-equalizer"

	// Well-formed bcrypt digest used when the configured hasher cannot
	// produce one for the timing equalizer.
	fallbackEqualizerDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

// CredentialStore is the persistence the auth flows need: user records
// and the revocation ledger.
type CredentialStore interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      *string
	Country   *string
}

type AuthService struct {
	store   CredentialStore
	hasher  PasswordHasher
	tokens  *TokenManager
	metrics metrics.Recorder
	idp     IdentityProvider

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the auth flows. idp may be nil when federated login
// is not configured; rec may be nil to disable metrics.
func NewAuthService(store CredentialStore, hasher PasswordHasher, tokens *TokenManager, rec metrics.Recorder, idp IdentityProvider) *AuthService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AuthService{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		metrics: rec,
		idp:     idp,
	}
}

func (s *AuthService) Tokens() *TokenManager {
	return s.tokens
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user *model.User, err error) {
	defer func() { s.metrics.RecordAuthEvent("register", outcome(err)) }()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	required := []struct{ name, value string }{
		{"username", in.Username},
		{"email", in.Email},
		{"password", in.Password},
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, field.name)
		}
	}
	limits := []fieldLimit{
		{"username", in.Username, maxUsernameLength},
		{"email", in.Email, maxNameLength},
		{"first_name", in.FirstName, maxNameLength},
		{"last_name", in.LastName, maxNameLength},
	}
	if in.Country != nil {
		limits = append(limits, fieldLimit{"country", *in.Country, maxNameLength})
	}
	if err := checkLengths(limits); err != nil {
		return nil, err
	}

	role := model.RoleGuest
	if in.Role != nil && strings.TrimSpace(*in.Role) != "" {
		role, err = model.ParseRole(*in.Role)
		if err != nil {
			return nil, ErrInvalidRole
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateUser(ctx, &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: &hash,
		Role:         role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Country:      in.Country,
	})
	if err != nil {
		if db.IsDuplicate(err) {
			return nil, ErrConflict
		}
		return nil, storageError(err)
	}

	log.Ctx(ctx).Info().
		Int64("user_id", created.ID).
		Str("role", created.Role.String()).
		Msg("user registered")
	created.PasswordHash = nil
	return created, nil
}

// Login accepts a username or an email as identifier. Unknown identifiers
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (pair TokenPair, err error) {
	defer func() { s.metrics.RecordAuthEvent("login", outcome(err)) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return TokenPair{}, fmt.Errorf("%w: username", ErrMissingField)
	}
	if password == "" {
		return TokenPair{}, fmt.Errorf("%w: password", ErrMissingField)
	}

	user, err := s.store.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if !db.IsNotFound(err) {
			return TokenPair{}, storageError(err)
		}
		s.hasher.Verify(password, s.timingEqualizer())
		return TokenPair{}, ErrInvalidCredentials
	}

	if user.PasswordHash == nil {
		s.hasher.Verify(password, s.timingEqualizer())
		return TokenPair{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, *user.PasswordHash) {
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.issuePair(ctx, user)
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is revoked in the same step, so each one can be redeemed once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	defer func() { s.metrics.RecordAuthEvent("refresh", outcome(err)) }()

	claims, err := s.Authenticate(ctx, refreshToken, model.TokenKindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := s.ResolveUser(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}

	consumed, err := s.store.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return TokenPair{}, storageError(err)
	}
	if !consumed {
		return TokenPair{}, ErrRevoked
	}
	s.metrics.RecordTokenRevoked("refresh")

	return s.issuePair(ctx, user)
}

// Logout revokes the presented access token. Other tokens issued to the
// same user stay valid.
func (s *AuthService) Logout(ctx context.Context, accessToken string) (err error) {
	defer func() { s.metrics.RecordAuthEvent("logout", outcome(err)) }()

	claims, err := s.Authenticate(ctx, accessToken, model.TokenKindAccess)
	if err != nil {
		return err
	}

	inserted, err := s.store.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return storageError(err)
	}
	if !inserted {
		return ErrRevoked
	}
	s.metrics.RecordTokenRevoked("logout")

	log.Ctx(ctx).Info().
		Str("user_id", claims.Subject).
		Str("jti", claims.ID).
		Msg("access token revoked")
	return nil
}

// Authenticate validates a token of the wanted kind and checks it against
// the revocation ledger.
func (s *AuthService) Authenticate(ctx context.Context, token string, kind model.TokenKind) (*Claims, error) {
	claims, err := s.tokens.Validate(token, kind)
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, storageError(err)
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

// ResolveUser loads the subject of already validated claims.
func (s *AuthService) ResolveUser(ctx context.Context, claims *Claims) (*model.User, error) {
	if claims == nil {
		return nil, ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUnknownUser
		}
		return nil, storageError(err)
	}
	return user, nil
}

func (s *AuthService) issuePair(ctx context.Context, user *model.User) (TokenPair, error) {
	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	s.metrics.RecordTokenIssued(string(model.TokenKindAccess))
	s.metrics.RecordTokenIssued(string(model.TokenKindRefresh))

	log.Ctx(ctx).Debug().
		Int64("user_id", user.ID).
		Str("access_jti", pair.Access.JTI).
		Str("refresh_jti", pair.Refresh.JTI).
		Msg("token pair issued")
	return pair, nil
}

func (s *AuthService) timingEqualizer() string {
	s.dummyOnce.Do(func() {
		s.dummyHash = fallbackEqualizerDigest
		hash, err := s.hasher.Hash(timingEqualizerInput)
		if err != nil {
			log.Warn().Err(err).Msg("timing equalizer digest unavailable, using fallback")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

type fieldLimit struct {
	name  string
	value string
	max   int
}

// checkLengths counts characters, matching the VARCHAR limits of the users table.
func checkLengths(fields []fieldLimit) error {
	for _, field := range fields {
		if utf8.RuneCountInString(field.value) > field.max {
			return fmt.Errorf("%w: %s too long", ErrInvalidInput, field.name)
		}
	}
	return nil
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

// IsAuthError reports whether err should surface as a plain 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
