package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shelfmark/backend/internal/db"
	"github.com/shelfmark/backend/internal/model"
)

// FederatedIdentity is what an external identity provider asserts about
// the person who just signed in.
type FederatedIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
}

type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*FederatedIdentity, error)
}

func (s *AuthService) FederationEnabled() bool {
	return s.idp != nil
}

// FederatedLoginURL is where the browser is sent to start a federated login.
func (s *AuthService) FederatedLoginURL(state string) (string, error) {
	if s.idp == nil {
		return "", ErrFederationDisabled
	}
	return s.idp.AuthCodeURL(state), nil
}

// CompleteFederatedLogin exchanges the provider's authorization code and
// signs the asserted identity in.
func (s *AuthService) CompleteFederatedLogin(ctx context.Context, code string) (TokenPair, error) {
	if s.idp == nil {
		return TokenPair{}, ErrFederationDisabled
	}
	if strings.TrimSpace(code) == "" {
		return TokenPair{}, fmt.Errorf("%w: code", ErrMissingField)
	}

	identity, err := s.idp.Exchange(ctx, code)
	if err != nil {
		if !errors.Is(err, ErrProviderDataIncomplete) {
			log.Ctx(ctx).Warn().Err(err).Str("provider", s.idp.Name()).Msg("identity provider exchange failed")
			err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		s.metrics.RecordAuthEvent("federated_login", outcome(err))
		return TokenPair{}, err
	}
	if identity.Provider == "" {
		identity.Provider = s.idp.Name()
	}
	return s.FederatedLogin(ctx, *identity)
}

// FederatedLogin finds the local account for a verified email or creates
// one with no password and the guest role.
func (s *AuthService) FederatedLogin(ctx context.Context, identity FederatedIdentity) (pair TokenPair, err error) {
	defer func() { s.metrics.RecordAuthEvent("federated_login", outcome(err)) }()

	email := strings.TrimSpace(identity.Email)
	if email == "" || !identity.EmailVerified {
		return TokenPair{}, ErrProviderDataIncomplete
	}
	if err := checkLengths([]fieldLimit{{"email", email, maxNameLength}}); err != nil {
		return TokenPair{}, err
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return s.issuePair(ctx, user)
	case !db.IsNotFound(err):
		return TokenPair{}, storageError(err)
	}

	user, err = s.createFederatedUser(ctx, identity, email)
	if err != nil {
		return TokenPair{}, err
	}
	return s.issuePair(ctx, user)
}

func (s *AuthService) createFederatedUser(ctx context.Context, identity FederatedIdentity, email string) (*model.User, error) {
	base := usernameFromEmail(email)
	firstName := truncateRunes(strings.TrimSpace(identity.GivenName), maxNameLength)
	if firstName == "" {
		firstName = base
	}

	for attempt := 0; attempt <= maxUsernameAttempts; attempt++ {
		username := base
		if attempt > 0 {
			username = fmt.Sprintf("%s-%d", base, attempt)
		}

		created, err := s.store.CreateUser(ctx, &model.User{
			Username:  username,
			Email:     email,
			Role:      model.RoleGuest,
			FirstName: firstName,
			LastName:  truncateRunes(strings.TrimSpace(identity.FamilyName), maxNameLength),
		})
		if err == nil {
			log.Ctx(ctx).Info().
				Int64("user_id", created.ID).
				Str("provider", identity.Provider).
				Msg("federated user created")
			return created, nil
		}
		if !db.IsDuplicate(err) {
			return nil, storageError(err)
		}

		// A concurrent login for the same email may have won the insert.
		existing, err := s.store.GetUserByEmail(ctx, email)
		if err == nil {
			return existing, nil
		}
		if !db.IsNotFound(err) {
			return nil, storageError(err)
		}
	}
	return nil, fmt.Errorf("%w: no free username for %s", ErrConflict, base)
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.TrimSpace(local)
	if local == "" {
		local = "user"
	}
	// Leave room for the collision suffix.
	return truncateRunes(local, maxUsernameLength-4)
}
