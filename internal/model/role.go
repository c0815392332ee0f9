package model

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the authorization level of a user.
type Role uint8

const (
	RoleGuest Role = iota + 1
	RoleAdmin
	RoleSuperAdmin
)

var ErrUnknownRole = errors.New("unknown role")

// StaffRoles may mutate the catalog.
var StaffRoles = []Role{RoleAdmin, RoleSuperAdmin}

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "superadmin"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func (r Role) Valid() bool {
	return r >= RoleGuest && r <= RoleSuperAdmin
}

// ParseRole accepts the role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "guest":
		return RoleGuest, nil
	case "admin":
		return RoleAdmin, nil
	case "superadmin":
		return RoleSuperAdmin, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// In reports whether r is one of allowed.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
