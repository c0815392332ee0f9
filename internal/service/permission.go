package service

import "github.com/shelfmark/backend/internal/model"

// RequireRole authorizes an already resolved user. It never authenticates.
func RequireRole(user *model.User, allowed ...model.Role) error {
	if user == nil {
		return ErrUnauthorized
	}
	if !user.Role.In(allowed...) {
		return ErrForbidden
	}
	return nil
}
