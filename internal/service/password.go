package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shelfmark/backend/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the one-way password primitive.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify never fails loudly: a malformed digest is simply a mismatch.
	Verify(plaintext, digest string) bool
}

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cfg config.AuthConfig) (*BcryptHasher, error) {
	cost := bcrypt.DefaultCost
	if raw := strings.TrimSpace(cfg.BcryptCost); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < bcrypt.MinCost || parsed > bcrypt.MaxCost {
			return nil, fmt.Errorf("%w: invalid AUTH_BCRYPT_COST", ErrMisconfigured)
		}
		cost = parsed
	}
	return &BcryptHasher{cost: cost}, nil
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", ErrInvalidInput)
		}
		return "", err
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
